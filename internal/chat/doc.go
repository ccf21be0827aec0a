// Package chat implements the Session/Chat Coordinator: pairwise chat
// formation, membership, typing state, and reconnection recovery.
//
// Each identity points at most one active chat at a time. Opening a chat
// on one side silently repoints the other participant's active chat too;
// this single-pointer model is load-bearing for message routing.
//
// Disconnects do not destroy sessions immediately. Teardown is deferred
// by a grace period so a client that reconnects after a network blip
// keeps its chat and receives a fresh CHAT_OPENED to resynchronize.
package chat
