package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastchat/relay/internal/protocol"
)

// ErrInvalidDisplayName rejects empty or oversized heartbeat names.
var ErrInvalidDisplayName = errors.New("display name must be 1-100 characters")

// UserOnline is one row of the users_online table.
type UserOnline struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	LastSeen    time.Time `json:"last_seen"`
}

// Config holds presence store settings.
type Config struct {
	OnlineThreshold time.Duration // How recent last_seen must be to count as online
	ReapInterval    time.Duration // How often stale rows are pruned
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		OnlineThreshold: 60 * time.Second,
		ReapInterval:    5 * time.Minute,
	}
}

// Store is the PostgreSQL-backed presence heartbeat store.
type Store struct {
	cfg    Config
	db     *pgxpool.Pool
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Store.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the users_online table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users_online (
			id UUID PRIMARY KEY,
			display_name TEXT NOT NULL UNIQUE,
			last_seen TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create users_online: %w", err)
	}
	return nil
}

// Heartbeat records that displayName is alive right now. The row is
// keyed by display name: a repeat heartbeat refreshes last_seen and
// keeps the original id.
func (s *Store) Heartbeat(ctx context.Context, displayName string) (UserOnline, error) {
	if displayName == "" || len(displayName) > protocol.MaxDisplayNameLength {
		return UserOnline{}, ErrInvalidDisplayName
	}

	var u UserOnline
	err := s.db.QueryRow(ctx, `
		INSERT INTO users_online (id, display_name, last_seen)
		VALUES ($1, $2, now())
		ON CONFLICT (display_name) DO UPDATE SET last_seen = now()
		RETURNING id, display_name, last_seen`,
		uuid.New(), displayName,
	).Scan(&u.ID, &u.DisplayName, &u.LastSeen)
	if err != nil {
		return UserOnline{}, fmt.Errorf("upsert heartbeat: %w", err)
	}
	return u, nil
}

// Online returns everyone whose last heartbeat is inside the threshold,
// most recent first.
func (s *Store) Online(ctx context.Context) ([]UserOnline, error) {
	cutoff := time.Now().Add(-s.cfg.OnlineThreshold)

	rows, err := s.db.Query(ctx, `
		SELECT id, display_name, last_seen
		FROM users_online
		WHERE last_seen > $1
		ORDER BY last_seen DESC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query online users: %w", err)
	}
	defer rows.Close()

	users := make([]UserOnline, 0)
	for rows.Next() {
		var u UserOnline
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.LastSeen); err != nil {
			return nil, fmt.Errorf("scan online user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Prune deletes rows whose heartbeat fell outside the threshold and
// returns how many were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.OnlineThreshold)

	tag, err := s.db.Exec(ctx, `DELETE FROM users_online WHERE last_seen <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune stale users: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping verifies the database connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Start launches the background reaper.
func (s *Store) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.reapLoop()

	s.logger.Info("presence store started",
		"online_threshold", s.cfg.OnlineThreshold,
		"reap_interval", s.cfg.ReapInterval,
	)
	return nil
}

// Stop halts the reaper.
func (s *Store) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("presence store stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) reapLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			removed, err := s.Prune(ctx)
			cancel()

			if err != nil {
				s.logger.Warn("presence reap failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("pruned stale presence rows", "removed", removed)
			}
		}
	}
}
