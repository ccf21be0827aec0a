package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fastchat/relay/internal/protocol"
	"github.com/fastchat/relay/internal/registry"
)

// Coordinator errors, mapped to ERROR codes by the router.
var (
	ErrUserNotFound = errors.New("target user is not online")
	ErrNotInChat    = errors.New("no active chat")
	ErrValidation   = errors.New("invalid message content")
)

// Config holds coordinator settings.
type Config struct {
	// GracePeriod is how long a disconnected participant's membership
	// survives before the session is torn down.
	GracePeriod time.Duration
}

// DefaultConfig returns the stock grace period.
func DefaultConfig() Config {
	return Config{GracePeriod: 5 * time.Second}
}

// session is one two-party conversation. Display names are kept so
// resync frames can be built even while the peer is offline.
type session struct {
	id           uuid.UUID
	participants map[uuid.UUID]string
}

func (s *session) has(id uuid.UUID) bool {
	_, ok := s.participants[id]
	return ok
}

// Coordinator owns all chat state: sessions, the per-identity
// active-chat pointer, typing sets, and deferred teardown timers.
type Coordinator struct {
	cfg      Config
	registry *registry.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session               // chat id → session
	active   map[uuid.UUID]uuid.UUID              // identity → chat id
	typing   map[uuid.UUID]map[uuid.UUID]struct{} // chat id → typing identities
	pending  map[uuid.UUID]*time.Timer            // identity → teardown timer

	now func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config, reg *registry.Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		registry: reg,
		logger:   logger,
		sessions: make(map[uuid.UUID]*session),
		active:   make(map[uuid.UUID]uuid.UUID),
		typing:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
		pending:  make(map[uuid.UUID]*time.Timer),
	}
}

// OpenChat forms (or reuses) the chat between requester and target,
// repoints both active-chat pointers to it, and notifies both
// participants. Opening is idempotent: the same pair yields the same
// chat identifier in either direction.
func (c *Coordinator) OpenChat(requester, target uuid.UUID, targetName string) (uuid.UUID, error) {
	if !c.registry.IsOnline(target) {
		return uuid.Nil, ErrUserNotFound
	}
	requesterName, _ := c.registry.DisplayName(requester)

	c.mu.Lock()
	sess := c.ensureSessionLocked(requester, requesterName, target, targetName)
	frame := protocol.NewChatOpened(sess.id, []uuid.UUID{requester, target}, target, targetName)
	c.mu.Unlock()

	c.registry.Send(requester, frame)
	c.registry.Send(target, frame)

	c.logger.Info("chat opened",
		"chat_id", sess.id,
		"requester", requester,
		"target", target,
	)
	return sess.id, nil
}

// PostMessage routes content through sender's active chat. Without an
// active chat it falls back to pairing with any online peer; with no
// peer online it fails with ErrNotInChat. On success the message fans
// out to the other participants and the sender receives a MSG_ACK whose
// status reflects whether every recipient was connected.
func (c *Coordinator) PostMessage(sender uuid.UUID, content string) error {
	if content == "" || utf8.RuneCountInString(content) > protocol.MaxContentLength {
		return ErrValidation
	}

	c.mu.Lock()
	sess, opened, err := c.resolveOrPairLocked(sender)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	senderName := sess.participants[sender]
	recipients := make([]uuid.UUID, 0, len(sess.participants)-1)
	for id := range sess.participants {
		if id != sender {
			recipients = append(recipients, id)
		}
	}

	// Sending a message ends the sender's typing state.
	c.clearTypingLocked(sess.id, sender)

	var openFrame protocol.ChatOpened
	if opened != uuid.Nil {
		openFrame = protocol.NewChatOpened(sess.id, []uuid.UUID{sender, opened}, opened, sess.participants[opened])
	}
	chatID := sess.id
	c.mu.Unlock()

	if opened != uuid.Nil {
		c.registry.Send(sender, openFrame)
		c.registry.Send(opened, openFrame)
		c.logger.Info("auto-paired sender with online peer",
			"chat_id", chatID,
			"sender", sender,
			"peer", opened,
		)
	}

	msg := protocol.NewMsg(uuid.New(), content, sender, senderName, c.timeNow())

	status := protocol.StatusDelivered
	for _, id := range recipients {
		// A recipient can disconnect between two sends in the same
		// fan-out; the result is absorbed into the ack status.
		if c.registry.Send(id, msg) != registry.Delivered {
			status = protocol.StatusPending
		}
	}

	c.registry.Send(sender, protocol.NewMsgAck(msg.MessageID, status))
	return nil
}

// SetTyping updates sender's typing state in its active chat and fans
// the indicator to the other participants. Unlike PostMessage there is
// no pairing fallback.
func (c *Coordinator) SetTyping(sender uuid.UUID, isTyping bool) error {
	c.mu.Lock()
	sess := c.activeSessionLocked(sender)
	if sess == nil {
		c.mu.Unlock()
		return ErrNotInChat
	}

	if isTyping {
		set := c.typing[sess.id]
		if set == nil {
			set = make(map[uuid.UUID]struct{})
			c.typing[sess.id] = set
		}
		set[sender] = struct{}{}
	} else {
		c.clearTypingLocked(sess.id, sender)
	}

	senderName := sess.participants[sender]
	recipients := make([]uuid.UUID, 0, len(sess.participants)-1)
	for id := range sess.participants {
		if id != sender {
			recipients = append(recipients, id)
		}
	}
	c.mu.Unlock()

	frame := protocol.NewTypingUpdate(sender, senderName, isTyping)
	for _, id := range recipients {
		c.registry.Send(id, frame)
	}
	return nil
}

// TypingIn returns the identities currently signaling typing in a chat.
func (c *Coordinator) TypingIn(chatID uuid.UUID) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(c.typing[chatID]))
	for id := range c.typing[chatID] {
		ids = append(ids, id)
	}
	return ids
}

// ActiveChat returns identity's current chat pointer.
func (c *Coordinator) ActiveChat(id uuid.UUID) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cid, ok := c.active[id]
	return cid, ok
}

// SessionCount returns the number of live sessions.
func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// OnDisconnect clears identity's typing state and schedules session
// teardown after the grace period. It must not run chat cleanup
// inline: the disconnect may have been detected mid-send and immediate
// teardown would race the failing broadcast.
func (c *Coordinator) OnDisconnect(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for chatID := range c.typing {
		c.clearTypingLocked(chatID, id)
	}

	if _, ok := c.active[id]; !ok {
		return
	}

	if t, ok := c.pending[id]; ok {
		t.Stop()
	}
	c.pending[id] = time.AfterFunc(c.cfg.GracePeriod, func() {
		c.expire(id)
	})

	c.logger.Debug("session teardown scheduled",
		"user_id", id,
		"grace", c.cfg.GracePeriod,
	)
}

// OnReconnect cancels any pending teardown for identity. If its chat
// survived, a fresh CHAT_OPENED is re-delivered so the reconnected
// client can resynchronize its view. Reports whether a chat was
// restored.
func (c *Coordinator) OnReconnect(id uuid.UUID) bool {
	c.mu.Lock()
	if t, ok := c.pending[id]; ok {
		t.Stop()
		delete(c.pending, id)
	}

	sess := c.activeSessionLocked(id)
	if sess == nil {
		c.mu.Unlock()
		return false
	}

	var peer uuid.UUID
	var peerName string
	participants := make([]uuid.UUID, 0, len(sess.participants))
	for pid, name := range sess.participants {
		participants = append(participants, pid)
		if pid != id {
			peer, peerName = pid, name
		}
	}
	frame := protocol.NewChatOpened(sess.id, participants, peer, peerName)
	c.mu.Unlock()

	c.registry.Send(id, frame)
	c.logger.Info("chat restored after reconnect", "user_id", id, "chat_id", frame.ChatID)
	return true
}

// Stop cancels all pending teardown timers.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.pending {
		t.Stop()
		delete(c.pending, id)
	}
	return nil
}

// expire runs after the grace period: the identity did not come back,
// so its membership is dropped and under-populated sessions are torn
// down.
func (c *Coordinator) expire(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[id]; !ok {
		// Cancelled by a reconnect that raced the timer firing.
		return
	}
	delete(c.pending, id)

	chatID, ok := c.active[id]
	if !ok {
		return
	}
	delete(c.active, id)

	sess, ok := c.sessions[chatID]
	if !ok {
		return
	}
	delete(sess.participants, id)

	if len(sess.participants) < 2 {
		delete(c.sessions, chatID)
		delete(c.typing, chatID)
		// The surviving participant's pointer must not dangle.
		for pid, cid := range c.active {
			if cid == chatID {
				delete(c.active, pid)
			}
		}
		c.logger.Info("chat session torn down", "chat_id", chatID)
	}
}

// ensureSessionLocked returns the session for the pair, creating one if
// no session contains exactly {a, b}, and repoints both active-chat
// pointers to it.
func (c *Coordinator) ensureSessionLocked(a uuid.UUID, aName string, b uuid.UUID, bName string) *session {
	sess := c.findPairLocked(a, b)
	if sess == nil {
		sess = &session{
			id:           uuid.New(),
			participants: map[uuid.UUID]string{a: aName, b: bName},
		}
		c.sessions[sess.id] = sess
	} else {
		// Refresh names; clients may have renamed between opens.
		sess.participants[a] = aName
		sess.participants[b] = bName
	}

	c.repointLocked(a, sess.id)
	c.repointLocked(b, sess.id)
	return sess
}

// findPairLocked finds the session containing exactly {a, b}.
func (c *Coordinator) findPairLocked(a, b uuid.UUID) *session {
	for _, sess := range c.sessions {
		if len(sess.participants) == 2 && sess.has(a) && sess.has(b) {
			return sess
		}
	}
	return nil
}

// repointLocked moves id's active-chat pointer, clearing its typing
// state in the chat it leaves behind.
func (c *Coordinator) repointLocked(id, chatID uuid.UUID) {
	if prev, ok := c.active[id]; ok && prev != chatID {
		c.clearTypingLocked(prev, id)
	}
	c.active[id] = chatID
}

// activeSessionLocked resolves id's pointer to a live session, clearing
// a dangling pointer if the session is gone.
func (c *Coordinator) activeSessionLocked(id uuid.UUID) *session {
	chatID, ok := c.active[id]
	if !ok {
		return nil
	}
	sess, ok := c.sessions[chatID]
	if !ok || !sess.has(id) {
		delete(c.active, id)
		return nil
	}
	return sess
}

// resolveOrPairLocked resolves sender's active session, auto-pairing
// with any online peer when there is none. The returned uuid is the
// peer a new pairing was formed with, or Nil when no pairing happened.
func (c *Coordinator) resolveOrPairLocked(sender uuid.UUID) (*session, uuid.UUID, error) {
	if sess := c.activeSessionLocked(sender); sess != nil {
		return sess, uuid.Nil, nil
	}

	senderName, _ := c.registry.DisplayName(sender)
	for _, p := range c.registry.Peers() {
		if p.UserID == sender {
			continue
		}
		sess := c.ensureSessionLocked(sender, senderName, p.UserID, p.DisplayName)
		return sess, p.UserID, nil
	}
	return nil, uuid.Nil, ErrNotInChat
}

func (c *Coordinator) clearTypingLocked(chatID, id uuid.UUID) {
	set, ok := c.typing[chatID]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(c.typing, chatID)
	}
}

func (c *Coordinator) timeNow() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}
