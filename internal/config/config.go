package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DBConfig        `yaml:"database"`
	Chat      ChatConfig      `yaml:"chat"`
	Liveness  LivenessConfig  `yaml:"liveness"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Presence  PresenceConfig  `yaml:"presence"`
}

// ServerConfig holds HTTP and WebSocket endpoint settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	HelloTimeout time.Duration `yaml:"hello_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadLimit    int64         `yaml:"read_limit"`
}

// DBConfig holds the presence store connection. An empty host disables
// the store entirely.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a presence store is configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// ChatConfig holds chat coordinator settings.
type ChatConfig struct {
	GracePeriod time.Duration `yaml:"grace_period"`
}

// LivenessConfig holds dead-connection detection settings.
type LivenessConfig struct {
	Interval        time.Duration `yaml:"interval"`
	MissedThreshold int           `yaml:"missed_threshold"`
}

// RateLimitConfig holds per-identity frame limits.
type RateLimitConfig struct {
	Window        time.Duration `yaml:"window"`
	MessageLimit  int           `yaml:"message_limit"`
	TypingLimit   int           `yaml:"typing_limit"`
	PingLimit     int           `yaml:"ping_limit"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// PresenceConfig holds REST heartbeat store settings.
type PresenceConfig struct {
	OnlineThreshold time.Duration `yaml:"online_threshold"`
	ReapInterval    time.Duration `yaml:"reap_interval"`
}
