// Package store persists REST presence heartbeats in PostgreSQL. The
// users_online table is keyed by display name: a heartbeat upserts the
// row and refreshes last_seen, and a user counts as online while their
// last_seen is inside the configured threshold. A background reaper
// prunes rows that have gone quiet.
//
// The store is independent of the WebSocket registry; it serves clients
// that poll presence over plain HTTP.
package store
