package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.HelloTimeout <= 0 {
		return errors.New("server.hello_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return errors.New("server.write_timeout must be positive")
	}
	if c.Server.ReadLimit < 1024 {
		return fmt.Errorf("server.read_limit must be >= 1024, got %d", c.Server.ReadLimit)
	}

	if c.Database.Enabled() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Chat.GracePeriod <= 0 {
		return errors.New("chat.grace_period must be positive")
	}

	if c.Liveness.Interval <= 0 {
		return errors.New("liveness.interval must be positive")
	}
	if c.Liveness.MissedThreshold < 1 {
		return errors.New("liveness.missed_threshold must be >= 1")
	}

	if c.RateLimit.Window <= 0 {
		return errors.New("rate_limit.window must be positive")
	}
	if c.RateLimit.MessageLimit < 1 {
		return errors.New("rate_limit.message_limit must be >= 1")
	}
	if c.RateLimit.TypingLimit < 1 {
		return errors.New("rate_limit.typing_limit must be >= 1")
	}
	if c.RateLimit.PingLimit < 1 {
		return errors.New("rate_limit.ping_limit must be >= 1")
	}

	if c.Presence.OnlineThreshold <= 0 {
		return errors.New("presence.online_threshold must be positive")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
