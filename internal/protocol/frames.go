package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Timestamp formats t as UTC RFC3339 with millisecond precision, the
// format carried in Msg frames.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// NewError builds an ERROR frame.
func NewError(code, message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, ErrorCode: code, Message: message}
}

// NewErrorWithDetails builds an ERROR frame with extra context.
func NewErrorWithDetails(code, message string, details map[string]any) ErrorFrame {
	return ErrorFrame{Type: TypeError, ErrorCode: code, Message: message, Details: details}
}

// NewHelloAck builds a HELLO_ACK frame.
func NewHelloAck(userID uuid.UUID) HelloAck {
	return HelloAck{Type: TypeHelloAck, UserID: userID}
}

// NewChatOpened builds a CHAT_OPENED frame. The same frame is delivered
// to both participants; clients resolve the peer from the participant
// list.
func NewChatOpened(chatID uuid.UUID, participants []uuid.UUID, targetID uuid.UUID, targetName string) ChatOpened {
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.String()
	}
	return ChatOpened{
		Type:              TypeChatOpened,
		ChatID:            chatID,
		Participants:      ids,
		TargetUserID:      targetID,
		TargetDisplayName: targetName,
	}
}

// NewMsg builds the outbound form of a chat message.
func NewMsg(messageID uuid.UUID, content string, senderID uuid.UUID, senderName string, at time.Time) Msg {
	return Msg{
		Type:       TypeMsg,
		MessageID:  messageID,
		Content:    content,
		SenderID:   senderID,
		SenderName: senderName,
		Timestamp:  Timestamp(at),
	}
}

// NewMsgAck builds a MSG_ACK frame.
func NewMsgAck(messageID uuid.UUID, status string) MsgAck {
	return MsgAck{Type: TypeMsgAck, MessageID: messageID, Status: status}
}

// NewTypingUpdate builds the outbound form of a typing indicator.
func NewTypingUpdate(userID uuid.UUID, displayName string, isTyping bool) TypingUpdate {
	return TypingUpdate{Type: TypeTyping, UserID: userID, DisplayName: displayName, IsTyping: isTyping}
}

// NewPresence builds a presence frame.
func NewPresence(action string, users []PresenceUser) Presence {
	return Presence{Type: TypePresence, Users: users, Action: action}
}

// NewPong builds a PONG frame.
func NewPong() Pong {
	return Pong{Type: TypePong}
}
