package protocol

import "github.com/google/uuid"

// Message types.
const (
	TypeHello      = "HELLO"
	TypeHelloAck   = "HELLO_ACK"
	TypeOpenChat   = "OPEN_CHAT"
	TypeChatOpened = "CHAT_OPENED"
	TypeMsg        = "MSG"
	TypeMsgAck     = "MSG_ACK"
	TypeTyping     = "TYPING"
	TypePing       = "PING"
	TypePong       = "PONG"
	TypePresence   = "PRESENCE"
	TypeError      = "ERROR"
)

// Error codes carried in the ERROR envelope.
const (
	CodeHelloRequired      = "HELLO_REQUIRED"
	CodeHelloTimeout       = "HELLO_TIMEOUT"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeUnknownMessageType = "UNKNOWN_MESSAGE_TYPE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInvalidOpenChat    = "INVALID_OPEN_CHAT"
	CodeNotInChat          = "NOT_IN_CHAT"
	CodeValidation         = "VALIDATION"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Content limits.
const (
	MaxContentLength     = 1000
	MaxDisplayNameLength = 100
)

// Envelope is used for fast type extraction before payload decoding.
type Envelope struct {
	Type string `json:"type"`
}

// Hello is the handshake frame. UserID is optional; the server generates
// one on first contact. SessionID distinguishes multiple tabs or devices
// for the same identity and is advisory only.
type Hello struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	UserID      string `json:"user_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// OpenChat requests a two-party chat with another online user.
type OpenChat struct {
	Type              string    `json:"type"`
	TargetUserID      uuid.UUID `json:"target_user_id"`
	TargetDisplayName string    `json:"target_display_name"`
}

// ChatMessage is an inbound text message. The chat_id a client states is
// not authoritative; routing always follows the sender's active chat.
type ChatMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	ChatID  string `json:"chat_id,omitempty"`
}

// Typing is an inbound typing-indicator frame.
type Typing struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// HelloAck confirms a completed handshake.
type HelloAck struct {
	Type   string    `json:"type"`
	UserID uuid.UUID `json:"user_id"`
}

// ChatOpened notifies both participants that a chat is ready.
type ChatOpened struct {
	Type              string    `json:"type"`
	ChatID            uuid.UUID `json:"chat_id"`
	Participants      []string  `json:"participants"`
	TargetUserID      uuid.UUID `json:"target_user_id"`
	TargetDisplayName string    `json:"target_display_name"`
}

// Msg is the outbound fan-out form of a chat message.
type Msg struct {
	Type       string    `json:"type"`
	MessageID  uuid.UUID `json:"message_id"`
	Content    string    `json:"content"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Timestamp  string    `json:"timestamp"`
}

// Delivery statuses reported in MsgAck.
const (
	StatusDelivered = "delivered"
	StatusPending   = "pending"
)

// MsgAck reports fan-out status back to the sender.
type MsgAck struct {
	Type      string    `json:"type"`
	MessageID uuid.UUID `json:"message_id"`
	Status    string    `json:"status"`
}

// TypingUpdate is the outbound fan-out form of a typing indicator.
type TypingUpdate struct {
	Type        string    `json:"type"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	IsTyping    bool      `json:"is_typing"`
}

// Presence actions.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// PresenceUser is one entry of a presence frame.
type PresenceUser struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Online      bool      `json:"online"`
}

// Presence announces online-view changes. A joiner receives a bulk
// snapshot of everyone else; everyone else receives a one-entry delta.
type Presence struct {
	Type   string         `json:"type"`
	Users  []PresenceUser `json:"users"`
	Action string         `json:"action"`
}

// Pong replies to an application-level PING.
type Pong struct {
	Type string `json:"type"`
}

// ErrorFrame is the uniform error envelope for every failure path.
type ErrorFrame struct {
	Type      string         `json:"type"`
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
