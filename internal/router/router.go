package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fastchat/relay/internal/chat"
	"github.com/fastchat/relay/internal/metrics"
	"github.com/fastchat/relay/internal/protocol"
	"github.com/fastchat/relay/internal/ratelimit"
	"github.com/fastchat/relay/internal/registry"
)

// supportedTypes is reported in UNKNOWN_MESSAGE_TYPE errors.
var supportedTypes = []string{
	protocol.TypeOpenChat,
	protocol.TypeMsg,
	protocol.TypeMsgAck,
	protocol.TypeTyping,
	protocol.TypePing,
	protocol.TypePong,
}

// Router dispatches frames from authenticated connections.
type Router struct {
	registry *registry.Registry
	chats    *chat.Coordinator
	limiter  *ratelimit.Limiter
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// New creates a Router.
func New(reg *registry.Registry, chats *chat.Coordinator, limiter *ratelimit.Limiter, collector *metrics.Collector, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: reg,
		chats:    chats,
		limiter:  limiter,
		metrics:  collector,
		logger:   logger,
	}
}

// Dispatch handles one inbound frame from senderID's connection. Every
// failure is reported to the sender as an ERROR frame; the connection
// stays open in all cases, including a handler panic.
func (r *Router) Dispatch(senderID uuid.UUID, senderName string, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("frame handler panicked",
				"user_id", senderID,
				"panic", rec,
			)
			r.metrics.RecordError("panic")
			r.registry.Send(senderID, protocol.NewError(protocol.CodeInternalError, "internal server error"))
		}
	}()

	start := time.Now()

	// Any well-formed traffic counts as a sign of life for liveness.
	r.registry.TouchActivity(senderID)

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.sendError(senderID, protocol.CodeInvalidJSON, "frame is not valid JSON")
		return
	}

	if cat, limited := categoryFor(env.Type); limited && !r.limiter.Allow(senderID, cat) {
		r.metrics.RecordRateLimitHit()
		r.registry.Send(senderID, protocol.NewErrorWithDetails(
			protocol.CodeRateLimited,
			"rate limit exceeded",
			map[string]any{"message_type": env.Type},
		))
		return
	}

	switch env.Type {
	case protocol.TypeOpenChat:
		r.handleOpenChat(senderID, data)
	case protocol.TypeMsg:
		r.handleMessage(senderID, data)
	case protocol.TypeMsgAck:
		// Client-side delivery receipt; informational only.
		r.logger.Debug("client ack", "user_id", senderID)
	case protocol.TypeTyping:
		r.handleTyping(senderID, data)
	case protocol.TypePing:
		r.registry.TouchPing(senderID)
		r.registry.Send(senderID, protocol.NewPong())
	case protocol.TypePong:
		r.registry.TouchPing(senderID)
	default:
		// HELLO after the handshake lands here too.
		r.metrics.RecordError(protocol.CodeUnknownMessageType)
		r.registry.Send(senderID, protocol.NewErrorWithDetails(
			protocol.CodeUnknownMessageType,
			"unsupported message type",
			map[string]any{"received": env.Type, "supported": supportedTypes},
		))
		return
	}

	r.metrics.RecordMessage(env.Type, time.Since(start))
}

func (r *Router) handleOpenChat(senderID uuid.UUID, data []byte) {
	var req protocol.OpenChat
	if err := json.Unmarshal(data, &req); err != nil || req.TargetUserID == uuid.Nil {
		r.sendError(senderID, protocol.CodeInvalidOpenChat, "open_chat requires a target_user_id")
		return
	}

	if _, err := r.chats.OpenChat(senderID, req.TargetUserID, req.TargetDisplayName); err != nil {
		switch {
		case errors.Is(err, chat.ErrUserNotFound):
			r.sendError(senderID, protocol.CodeUserNotFound, "target user is not online")
		default:
			r.internalError(senderID, "open chat", err)
		}
	}
}

func (r *Router) handleMessage(senderID uuid.UUID, data []byte) {
	var msg protocol.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.sendError(senderID, protocol.CodeInvalidJSON, "malformed message frame")
		return
	}

	if err := r.chats.PostMessage(senderID, msg.Content); err != nil {
		switch {
		case errors.Is(err, chat.ErrValidation):
			r.sendError(senderID, protocol.CodeValidation, "message content must be 1-1000 characters")
		case errors.Is(err, chat.ErrNotInChat):
			r.sendError(senderID, protocol.CodeNotInChat, "no active chat and no one else is online")
		default:
			r.internalError(senderID, "post message", err)
		}
	}
}

func (r *Router) handleTyping(senderID uuid.UUID, data []byte) {
	var ind protocol.Typing
	if err := json.Unmarshal(data, &ind); err != nil {
		r.sendError(senderID, protocol.CodeInvalidJSON, "malformed typing frame")
		return
	}

	if err := r.chats.SetTyping(senderID, ind.IsTyping); err != nil {
		switch {
		case errors.Is(err, chat.ErrNotInChat):
			r.sendError(senderID, protocol.CodeNotInChat, "no active chat")
		default:
			r.internalError(senderID, "set typing", err)
		}
	}
}

func (r *Router) sendError(id uuid.UUID, code, message string) {
	r.metrics.RecordError(code)
	r.registry.Send(id, protocol.NewError(code, message))
}

func (r *Router) internalError(id uuid.UUID, op string, err error) {
	r.logger.Error("frame handling failed", "op", op, "user_id", id, "error", err)
	r.sendError(id, protocol.CodeInternalError, "internal server error")
}

// categoryFor maps a frame type to its rate-limit category. Types
// outside the three limited categories pass the gate untouched.
func categoryFor(frameType string) (ratelimit.Category, bool) {
	switch frameType {
	case protocol.TypeMsg:
		return ratelimit.CategoryMessage, true
	case protocol.TypeTyping:
		return ratelimit.CategoryTyping, true
	case protocol.TypePing:
		return ratelimit.CategoryPing, true
	default:
		return "", false
	}
}
