// Package ratelimit implements per-identity, per-category sliding-window
// admission control.
//
// Each Allow call evicts timestamps older than the window from the front
// of the identity's queue, then admits if the remaining count is below
// the category limit. Per-call eviction alone is sufficient for
// correctness; the periodic sweep only bounds memory for idle identities.
package ratelimit
