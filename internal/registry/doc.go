// Package registry implements the Connection Registry, the authoritative
// map of live connections.
//
// The registry owns each connection's send handle and metadata (display
// name, session tag, last-ping and last-activity timestamps). All other
// components consult it: the coordinator for fan-out, the presence
// broadcaster for the online view, the liveness monitor for staleness.
//
// Send never propagates a transport failure to the caller; it reports a
// DeliveryResult instead. Delivery failures happen mid-broadcast and must
// not abort sibling deliveries.
package registry
