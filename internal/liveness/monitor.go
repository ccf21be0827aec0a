package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fastchat/relay/internal/registry"
)

// Config holds monitor configuration.
type Config struct {
	Interval        time.Duration // Sweep interval (default: 30s)
	MissedThreshold int           // Sweeps without a sign of life before eviction (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        30 * time.Second,
		MissedThreshold: 4,
	}
}

// MaxIdle is the idle window a connection may stay silent before the
// sweep evicts it.
func (c Config) MaxIdle() time.Duration {
	return c.Interval * time.Duration(c.MissedThreshold)
}

// Monitor periodically probes registered connections and closes the
// ones that stopped responding.
type Monitor struct {
	cfg      Config
	registry *registry.Registry
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Monitor.
func New(cfg Config, reg *registry.Registry, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:      cfg,
		registry: reg,
		logger:   logger,
	}
}

// Start begins the sweep loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("liveness monitor started",
		"interval", m.cfg.Interval,
		"max_idle", m.cfg.MaxIdle(),
	)

	return nil
}

// Stop gracefully shuts down the monitor.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("liveness monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main sweep loop.
func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep probes every connection, then closes the ones that have shown
// no sign of life for the full idle window. Closing triggers the
// connection's normal read-loop teardown, so registry and chat cleanup
// happen on the owning goroutine rather than here.
func (m *Monitor) Sweep() {
	m.registry.ProbeAll()

	stale := m.registry.Stale(m.cfg.MaxIdle())
	for _, id := range stale {
		m.logger.Warn("closing unresponsive connection",
			"user_id", id,
			"max_idle", m.cfg.MaxIdle(),
		)
		m.registry.CloseConn(id, registry.ReasonLivenessTimeout)
	}

	if len(stale) > 0 {
		m.logger.Info("liveness sweep complete",
			"probed", m.registry.Count(),
			"evicted", len(stale),
		)
	}
}
