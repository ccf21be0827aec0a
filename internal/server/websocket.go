package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fastchat/relay/internal/chat"
	"github.com/fastchat/relay/internal/metrics"
	"github.com/fastchat/relay/internal/presence"
	"github.com/fastchat/relay/internal/protocol"
	"github.com/fastchat/relay/internal/ratelimit"
	"github.com/fastchat/relay/internal/registry"
	"github.com/fastchat/relay/internal/router"
)

// Config holds WebSocket endpoint settings.
type Config struct {
	HelloTimeout time.Duration // Handshake deadline (default: 10s)
	WriteTimeout time.Duration // Per-frame write deadline (default: 5s)
	ReadLimit    int64         // Max inbound frame size in bytes (default: 64KiB)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HelloTimeout: 10 * time.Second,
		WriteTimeout: 5 * time.Second,
		ReadLimit:    64 * 1024,
	}
}

// Handler serves the /ws endpoint.
type Handler struct {
	cfg      Config
	registry *registry.Registry
	chats    *chat.Coordinator
	presence *presence.Broadcaster
	limiter  *ratelimit.Limiter
	metrics  *metrics.Collector
	router   *router.Router
	logger   *slog.Logger

	upgrader websocket.Upgrader
}

// NewHandler creates a Handler.
func NewHandler(
	cfg Config,
	reg *registry.Registry,
	chats *chat.Coordinator,
	broadcaster *presence.Broadcaster,
	limiter *ratelimit.Limiter,
	collector *metrics.Collector,
	rt *router.Router,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		registry: reg,
		chats:    chats,
		presence: broadcaster,
		limiter:  limiter,
		metrics:  collector,
		router:   rt,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the connection to completion.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(h.cfg.ReadLimit)

	ws := newWSConn(conn, h.cfg.WriteTimeout)

	hello, ok := h.handshake(conn, ws)
	if !ok {
		ws.Close("")
		return
	}

	userID := h.resolveUserID(hello.UserID)
	displayName := hello.DisplayName

	// Pongs refresh the liveness clock. Installed before registration
	// so a probe racing the registration cannot be missed.
	conn.SetPongHandler(func(string) error {
		h.registry.TouchPing(userID)
		return nil
	})

	h.registry.Register(userID, displayName, ws, hello.SessionID)
	h.metrics.RecordConnect()

	h.registry.Send(userID, protocol.NewHelloAck(userID))
	h.presence.AnnounceConnect(userID, displayName)
	if h.chats.OnReconnect(userID) {
		h.logger.Info("client resumed an existing chat", "user_id", userID)
	}

	h.logger.Info("client connected",
		"user_id", userID,
		"display_name", displayName,
		"remote", r.RemoteAddr,
	)

	h.readLoop(conn, userID, displayName)

	// Single exit: every disconnect cause ends here. The Unregister
	// gate keeps a replaced connection's exit from tearing down state
	// the successor now owns.
	if h.registry.Unregister(userID, ws) {
		h.chats.OnDisconnect(userID)
		h.presence.AnnounceDisconnect(userID, displayName)
		h.limiter.Reset(userID)
		h.metrics.RecordDisconnect()
		h.logger.Info("client disconnected", "user_id", userID)
	}
	ws.Close("")
}

// handshake reads the first frame, which must be a valid HELLO within
// the deadline. Failures are answered with an ERROR frame before the
// transport closes.
func (h *Handler) handshake(conn *websocket.Conn, ws *wsConn) (protocol.Hello, bool) {
	conn.SetReadDeadline(time.Now().Add(h.cfg.HelloTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		h.rejectHandshake(ws, protocol.CodeHelloTimeout, "no HELLO received in time")
		return protocol.Hello{}, false
	}

	var hello protocol.Hello
	if err := json.Unmarshal(data, &hello); err != nil {
		h.rejectHandshake(ws, protocol.CodeInvalidJSON, "frame is not valid JSON")
		return protocol.Hello{}, false
	}
	if hello.Type != protocol.TypeHello {
		h.rejectHandshake(ws, protocol.CodeHelloRequired, "first frame must be HELLO")
		return protocol.Hello{}, false
	}
	if hello.DisplayName == "" || len(hello.DisplayName) > protocol.MaxDisplayNameLength {
		h.rejectHandshake(ws, protocol.CodeValidation, "display_name must be 1-100 characters")
		return protocol.Hello{}, false
	}

	// Handshake complete; the read loop manages its own deadlines.
	conn.SetReadDeadline(time.Time{})
	return hello, true
}

func (h *Handler) rejectHandshake(ws *wsConn, code, message string) {
	h.metrics.RecordError(code)
	frame, err := json.Marshal(protocol.NewError(code, message))
	if err != nil {
		return
	}
	if err := ws.Send(frame); err != nil {
		h.logger.Debug("handshake rejection not delivered", "code", code, "error", err)
	}
}

// resolveUserID parses the client-supplied identity, minting a fresh
// one when absent or malformed. A malformed id is not an error; the
// client simply gets a new identity.
func (h *Handler) resolveUserID(raw string) uuid.UUID {
	if raw == "" {
		return uuid.New()
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		h.logger.Debug("replacing malformed user_id", "supplied", raw)
		return uuid.New()
	}
	return id
}

// readLoop pumps inbound frames into the router until the transport
// dies. Frames from one connection are handled serially, which is what
// keeps one sender's messages ordered end to end.
func (h *Handler) readLoop(conn *websocket.Conn, userID uuid.UUID, displayName string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("read loop ended", "user_id", userID, "error", err)
			}
			return
		}
		h.router.Dispatch(userID, displayName, data)
	}
}

// Status summarizes the endpoint for the REST status resource.
type Status struct {
	ActiveConnections int             `json:"active_connections"`
	ActiveChats       int             `json:"active_chats"`
	OnlineUsers       []registry.Peer `json:"online_users"`
}

// Status reports the current connection and chat population.
func (h *Handler) Status() Status {
	return Status{
		ActiveConnections: h.registry.Count(),
		ActiveChats:       h.chats.SessionCount(),
		OnlineUsers:       h.registry.Peers(),
	}
}
