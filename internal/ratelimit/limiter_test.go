package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg, nil)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_MessageWindow(t *testing.T) {
	l, now := newTestLimiter(DefaultConfig())
	id := uuid.New()

	for i := 0; i < 60; i++ {
		if !l.Allow(id, CategoryMessage) {
			t.Fatalf("Allow rejected message %d within limit", i+1)
		}
	}
	if l.Allow(id, CategoryMessage) {
		t.Error("Allow admitted message 61 within the window")
	}

	// The rejection was not recorded, so once the window passes the
	// queue is empty again.
	*now = now.Add(61 * time.Second)
	if !l.Allow(id, CategoryMessage) {
		t.Error("Allow rejected after the whole window aged out")
	}
}

func TestLimiter_OldestAgesOutIncrementally(t *testing.T) {
	l, now := newTestLimiter(Config{
		Window:        time.Minute,
		MessageLimit:  2,
		TypingLimit:   10,
		PingLimit:     30,
		SweepInterval: 5 * time.Minute,
	})
	id := uuid.New()

	l.Allow(id, CategoryMessage) // t=0
	*now = now.Add(30 * time.Second)
	l.Allow(id, CategoryMessage) // t=30

	if l.Allow(id, CategoryMessage) {
		t.Fatal("Allow admitted while both timestamps in window")
	}

	// t=61: the t=0 entry has aged out, the t=30 entry has not.
	*now = now.Add(31 * time.Second)
	if !l.Allow(id, CategoryMessage) {
		t.Error("Allow rejected after oldest timestamp aged out")
	}
	if l.Allow(id, CategoryMessage) {
		t.Error("Allow admitted beyond limit after single slot freed")
	}
}

func TestLimiter_CategoriesIndependent(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig())
	id := uuid.New()

	for i := 0; i < 10; i++ {
		if !l.Allow(id, CategoryTyping) {
			t.Fatalf("Allow rejected typing %d within limit", i+1)
		}
	}
	if l.Allow(id, CategoryTyping) {
		t.Error("Allow admitted typing 11")
	}
	if !l.Allow(id, CategoryMessage) {
		t.Error("typing exhaustion must not affect message category")
	}
	if !l.Allow(id, CategoryPing) {
		t.Error("typing exhaustion must not affect ping category")
	}
}

func TestLimiter_IdentitiesIndependent(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig())
	a, b := uuid.New(), uuid.New()

	for i := 0; i < 60; i++ {
		l.Allow(a, CategoryMessage)
	}
	if l.Allow(a, CategoryMessage) {
		t.Fatal("identity a should be exhausted")
	}
	if !l.Allow(b, CategoryMessage) {
		t.Error("identity b must not share identity a's window")
	}
}

func TestLimiter_UnknownCategoryAlwaysAllowed(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig())
	id := uuid.New()

	for i := 0; i < 1000; i++ {
		if !l.Allow(id, Category("open_chat")) {
			t.Fatal("unknown category must be unconditionally allowed")
		}
	}
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig())
	id := uuid.New()

	for i := 0; i < 60; i++ {
		l.Allow(id, CategoryMessage)
	}
	if l.Allow(id, CategoryMessage) {
		t.Fatal("expected exhaustion before Reset")
	}

	l.Reset(id)
	if !l.Allow(id, CategoryMessage) {
		t.Error("Allow rejected after Reset")
	}
}

func TestLimiter_SweepDropsIdleIdentities(t *testing.T) {
	l, now := newTestLimiter(DefaultConfig())
	id := uuid.New()

	l.Allow(id, CategoryMessage)
	*now = now.Add(2 * time.Minute)
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.windows) != 0 {
		t.Errorf("windows has %d entries after sweep, want 0", len(l.windows))
	}
}

func TestLimiter_StartStop(t *testing.T) {
	l := New(DefaultConfig(), nil)

	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := l.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
