// Package metrics collects in-process counters for the relay.
//
// Key metrics:
//   - Connection totals, active count, and peak
//   - Message counts by frame type and mean handling latency
//   - Error counts by kind
//   - Rate-limit rejections
//
// Recording is fire-and-forget: calls never block beyond a counter
// update and never fail the caller.
package metrics
