package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr         = ":8000"
	DefaultHelloTimeout = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultReadLimit    = 64 * 1024

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultGracePeriod = 5 * time.Second

	DefaultLivenessInterval = 30 * time.Second
	DefaultMissedThreshold  = 4

	DefaultRateLimitWindow = 1 * time.Minute
	DefaultMessageLimit    = 60
	DefaultTypingLimit     = 10
	DefaultPingLimit       = 30
	DefaultSweepInterval   = 5 * time.Minute

	DefaultOnlineThreshold = 60 * time.Second
	DefaultReapInterval    = 5 * time.Minute
)

func (c *RelayConfig) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.HelloTimeout == 0 {
		c.Server.HelloTimeout = DefaultHelloTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = DefaultReadLimit
	}

	// Database defaults (only meaningful when a host is set)
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Chat defaults
	if c.Chat.GracePeriod == 0 {
		c.Chat.GracePeriod = DefaultGracePeriod
	}

	// Liveness defaults
	if c.Liveness.Interval == 0 {
		c.Liveness.Interval = DefaultLivenessInterval
	}
	if c.Liveness.MissedThreshold == 0 {
		c.Liveness.MissedThreshold = DefaultMissedThreshold
	}

	// Rate limit defaults
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = DefaultRateLimitWindow
	}
	if c.RateLimit.MessageLimit == 0 {
		c.RateLimit.MessageLimit = DefaultMessageLimit
	}
	if c.RateLimit.TypingLimit == 0 {
		c.RateLimit.TypingLimit = DefaultTypingLimit
	}
	if c.RateLimit.PingLimit == 0 {
		c.RateLimit.PingLimit = DefaultPingLimit
	}
	if c.RateLimit.SweepInterval == 0 {
		c.RateLimit.SweepInterval = DefaultSweepInterval
	}

	// Presence defaults
	if c.Presence.OnlineThreshold == 0 {
		c.Presence.OnlineThreshold = DefaultOnlineThreshold
	}
	if c.Presence.ReapInterval == 0 {
		c.Presence.ReapInterval = DefaultReapInterval
	}
}
