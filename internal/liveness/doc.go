// Package liveness detects dead WebSocket connections that never sent a
// close frame. A background sweep pings every registered connection and
// evicts those whose last sign of life is older than the allowed idle
// window, funneling them through the same close path a client-initiated
// disconnect takes.
package liveness
