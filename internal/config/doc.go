// Package config loads and validates relay configuration from YAML,
// with ${VAR} environment expansion and defaults for every optional
// field. The database section is optional: without a host the relay
// runs in memory-only mode and the presence REST resources report
// unavailable.
package config
