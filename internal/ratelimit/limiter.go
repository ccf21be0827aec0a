package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Category classifies a frame for rate-limiting purposes.
type Category string

const (
	CategoryMessage Category = "message"
	CategoryTyping  Category = "typing"
	CategoryPing    Category = "ping"
)

// Config holds limiter settings.
type Config struct {
	Window        time.Duration // Sliding window size
	MessageLimit  int           // Max messages per window
	TypingLimit   int           // Max typing indicators per window
	PingLimit     int           // Max pings per window
	SweepInterval time.Duration // Full-eviction sweep for idle identities
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		Window:        time.Minute,
		MessageLimit:  60,
		TypingLimit:   10,
		PingLimit:     30,
		SweepInterval: 5 * time.Minute,
	}
}

// Limiter is a per-identity, per-category sliding-window rate limiter.
type Limiter struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	windows map[uuid.UUID]map[Category][]time.Time

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Limiter.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		cfg:     cfg,
		logger:  logger,
		windows: make(map[uuid.UUID]map[Category][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether id may perform one action of the given category,
// recording the attempt when admitted. Rejected attempts are not
// recorded. Unknown categories are unconditionally allowed.
func (l *Limiter) Allow(id uuid.UUID, cat Category) bool {
	limit, known := l.limitFor(cat)
	if !known {
		return true
	}

	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	cats := l.windows[id]
	if cats == nil {
		cats = make(map[Category][]time.Time)
		l.windows[id] = cats
	}

	q := evictBefore(cats[cat], cutoff)
	if len(q) >= limit {
		cats[cat] = q
		l.logger.Warn("rate limited", "user_id", id, "category", cat)
		return false
	}

	cats[cat] = append(q, now)
	return true
}

// Reset drops all history for id so a later reconnect starts fresh.
func (l *Limiter) Reset(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, id)
}

// Usage returns the current in-window count for id and category.
func (l *Limiter) Usage(id uuid.UUID, cat Category) int {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ts := range l.windows[id][cat] {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// Start launches the periodic memory-hygiene sweep.
func (l *Limiter) Start(ctx context.Context) error {
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go l.sweepLoop()

	return nil
}

// Stop halts the sweep loop.
func (l *Limiter) Stop(ctx context.Context) error {
	if l.cancel != nil {
		l.cancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		l.logger.Warn("rate limiter stop timed out")
	}
	return nil
}

func (l *Limiter) sweepLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep evicts expired timestamps for every identity and drops empty
// entries entirely.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, cats := range l.windows {
		for cat, q := range cats {
			q = evictBefore(q, cutoff)
			if len(q) == 0 {
				delete(cats, cat)
			} else {
				cats[cat] = q
			}
		}
		if len(cats) == 0 {
			delete(l.windows, id)
		}
	}
}

func (l *Limiter) limitFor(cat Category) (int, bool) {
	switch cat {
	case CategoryMessage:
		return l.cfg.MessageLimit, true
	case CategoryTyping:
		return l.cfg.TypingLimit, true
	case CategoryPing:
		return l.cfg.PingLimit, true
	default:
		return 0, false
	}
}

// evictBefore drops leading timestamps older than cutoff. The queue is
// append-only so timestamps are already ordered.
func evictBefore(q []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(q) && q[i].Before(cutoff) {
		i++
	}
	return q[i:]
}
