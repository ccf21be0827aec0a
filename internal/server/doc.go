// Package server owns the WebSocket endpoint: the upgrade, the HELLO
// handshake, the per-connection read loop, and the single-exit cleanup
// path every disconnect funnels through, whether the client closed, the
// read failed, a newer connection replaced this one, or the liveness
// monitor evicted it.
package server
