package registry

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeliveryResult reports the outcome of a Send attempt.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota
	NotConnected
	Failed
)

func (r DeliveryResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case NotConnected:
		return "not_connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sender is the send half of a client transport. Implementations must be
// safe for concurrent use.
type Sender interface {
	// Send writes one frame to the peer.
	Send(data []byte) error

	// Ping writes a transport-level keepalive probe.
	Ping() error

	// Close closes the transport, telling the peer why.
	Close(reason string) error
}

// Close reasons passed to Sender.Close.
const (
	ReasonReplaced        = "replaced"
	ReasonLivenessTimeout = "liveness timeout"
	ReasonShutdown        = "server shutting down"
)

// Peer is a public view of one registered connection.
type Peer struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}

type entry struct {
	userID       uuid.UUID
	displayName  string
	sessionTag   string
	sender       Sender
	lastPing     time.Time
	lastActivity time.Time
}

// Registry is the authoritative map of live connections, keyed by
// identity. Last writer wins per identity: registering over a live
// connection force-closes the previous transport.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[uuid.UUID]*entry

	now func() time.Time
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		conns:  make(map[uuid.UUID]*entry),
		now:    time.Now,
	}
}

// Register stores a connection for id, replacing and force-closing any
// previous one. Both timestamps start at now.
func (r *Registry) Register(id uuid.UUID, displayName string, sender Sender, sessionTag string) {
	r.mu.Lock()
	prev := r.conns[id]
	now := r.now()
	r.conns[id] = &entry{
		userID:       id,
		displayName:  displayName,
		sessionTag:   sessionTag,
		sender:       sender,
		lastPing:     now,
		lastActivity: now,
	}
	r.mu.Unlock()

	if prev != nil {
		r.logger.Info("replacing existing connection", "user_id", id)
		if err := prev.sender.Close(ReasonReplaced); err != nil {
			r.logger.Debug("close of replaced connection failed", "user_id", id, "error", err)
		}
	}

	r.logger.Info("connection registered",
		"user_id", id,
		"display_name", displayName,
		"session", sessionTag,
	)
}

// Unregister removes id's connection if sender is still the registered
// transport. It reports whether an entry was removed. A stale sender
// (already replaced by a newer connection) is a no-op, so a replaced
// connection's cleanup cannot evict its successor. Unregister performs no
// chat or presence side effects; the caller orchestrates those.
func (r *Registry) Unregister(id uuid.UUID, sender Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.conns[id]
	if !ok || (sender != nil && cur.sender != sender) {
		return false
	}
	delete(r.conns, id)
	r.logger.Info("connection unregistered", "user_id", id)
	return true
}

// Send marshals frame and delivers it to id. Transport failures are
// reported, never raised: the caller is responsible for eventually
// unregistering a failing connection.
func (r *Registry) Send(id uuid.UUID, frame any) DeliveryResult {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()

	if !ok {
		return NotConnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error("frame marshal failed", "user_id", id, "error", err)
		return Failed
	}

	if err := e.sender.Send(data); err != nil {
		r.logger.Warn("send failed", "user_id", id, "error", err)
		return Failed
	}
	return Delivered
}

// IsOnline reports whether id has a live connection.
func (r *Registry) IsOnline(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// DisplayName returns id's display name, if connected.
func (r *Registry) DisplayName(id uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return "", false
	}
	return e.displayName, true
}

// TouchActivity refreshes id's last-activity timestamp. Every inbound
// application frame calls this so liveness never fires on a chatty
// client.
func (r *Registry) TouchActivity(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.lastActivity = r.now()
	}
}

// TouchPing refreshes id's last-ping timestamp (application PING/PONG
// frames and transport pongs).
func (r *Registry) TouchPing(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.lastPing = r.now()
	}
}

// Peers returns a snapshot of everyone currently online.
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.conns))
	for _, e := range r.conns {
		peers = append(peers, Peer{UserID: e.userID, DisplayName: e.displayName})
	}
	return peers
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ProbeAll sends a transport keepalive to every connection. Failures are
// left for the liveness sweep to collect.
func (r *Registry) ProbeAll() {
	r.mu.RLock()
	senders := make([]Sender, 0, len(r.conns))
	for _, e := range r.conns {
		senders = append(senders, e.sender)
	}
	r.mu.RUnlock()

	for _, s := range senders {
		if err := s.Ping(); err != nil {
			r.logger.Debug("keepalive probe failed", "error", err)
		}
	}
}

// Stale returns the identities whose last ping and last activity are
// both older than maxIdle.
func (r *Registry) Stale(maxIdle time.Duration) []uuid.UUID {
	cutoff := r.now().Add(-maxIdle)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []uuid.UUID
	for id, e := range r.conns {
		latest := e.lastPing
		if e.lastActivity.After(latest) {
			latest = e.lastActivity
		}
		if latest.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}

// CloseConn force-closes id's transport with the given reason. The
// connection's own read loop then runs the regular disconnect path.
func (r *Registry) CloseConn(id uuid.UUID, reason string) {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()

	if !ok {
		return
	}
	if err := e.sender.Close(reason); err != nil {
		r.logger.Debug("force close failed", "user_id", id, "error", err)
	}
}
