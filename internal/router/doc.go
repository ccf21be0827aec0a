// Package router dispatches decoded WebSocket frames from authenticated
// connections to the chat coordinator, translating coordinator errors
// into the wire ERROR envelope. Every frame passes the rate gate first;
// a rejected frame costs an ERROR reply but never the connection.
package router
