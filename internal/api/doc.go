// Package api exposes the relay's HTTP surface: the /ws WebSocket
// endpoint, REST presence heartbeats backed by the optional store,
// runtime metrics, and health probes.
package api
