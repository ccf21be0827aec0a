package liveness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastchat/relay/internal/registry"
)

type fakeSender struct {
	mu          sync.Mutex
	pings       int
	closeReason string
}

func (f *fakeSender) Send([]byte) error { return nil }

func (f *fakeSender) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeSender) Close(reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeReason = reason
	return nil
}

func (f *fakeSender) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeSender) closedWith() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeReason
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Interval)
	}
	if cfg.MissedThreshold != 4 {
		t.Errorf("MissedThreshold = %d, want 4", cfg.MissedThreshold)
	}
	if cfg.MaxIdle() != 2*time.Minute {
		t.Errorf("MaxIdle = %v, want 2m", cfg.MaxIdle())
	}
}

func TestSweep_ProbesEveryConnection(t *testing.T) {
	reg := registry.New(nil)
	s1 := &fakeSender{}
	s2 := &fakeSender{}
	reg.Register(uuid.New(), "alice", s1, "")
	reg.Register(uuid.New(), "bob", s2, "")

	m := New(DefaultConfig(), reg, nil)
	m.Sweep()

	if s1.pingCount() != 1 || s2.pingCount() != 1 {
		t.Errorf("ping counts = %d/%d, want 1/1", s1.pingCount(), s2.pingCount())
	}
	// Fresh connections are inside the idle window.
	if s1.closedWith() != "" || s2.closedWith() != "" {
		t.Error("fresh connections must not be evicted")
	}
}

func TestSweep_EvictsIdleConnections(t *testing.T) {
	reg := registry.New(nil)

	idle := &fakeSender{}
	fresh := &fakeSender{}
	idleID := uuid.New()
	freshID := uuid.New()
	reg.Register(idleID, "alice", idle, "")

	cfg := Config{Interval: 10 * time.Millisecond, MissedThreshold: 1}
	m := New(cfg, reg, nil)

	time.Sleep(30 * time.Millisecond)
	reg.Register(freshID, "bob", fresh, "")
	m.Sweep()

	if idle.closedWith() != registry.ReasonLivenessTimeout {
		t.Errorf("idle close reason = %q, want %q", idle.closedWith(), registry.ReasonLivenessTimeout)
	}
	if fresh.closedWith() != "" {
		t.Error("fresh connection evicted")
	}
}

func TestSweep_ActivityKeepsConnectionAlive(t *testing.T) {
	reg := registry.New(nil)
	s := &fakeSender{}
	id := uuid.New()
	reg.Register(id, "alice", s, "")

	cfg := Config{Interval: 10 * time.Millisecond, MissedThreshold: 1}
	m := New(cfg, reg, nil)

	time.Sleep(30 * time.Millisecond)

	// Any inbound frame counts as a sign of life, not just pong.
	reg.TouchActivity(id)
	m.Sweep()

	if s.closedWith() != "" {
		t.Errorf("active connection evicted with reason %q", s.closedWith())
	}
}

func TestStartStop(t *testing.T) {
	reg := registry.New(nil)
	s := &fakeSender{}
	reg.Register(uuid.New(), "alice", s, "")

	m := New(Config{Interval: 5 * time.Millisecond, MissedThreshold: 100}, reg, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.pingCount() == 0 {
		t.Error("sweep loop never probed the connection")
	}
}
