// Package presence computes and pushes online-view changes.
//
// The two frame shapes are deliberately asymmetric: a joiner receives
// one bulk snapshot of everyone already online, while everyone else
// receives a one-entry delta about the new arrival. Broadcasting the
// full list to every peer on every join would make each connect cycle
// O(n²) in payload.
package presence
