package chat

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/chatterbox-im/backend/internal/storage"
)

// Event names on the wire.
const (
	EventConnected          = "connected"
	EventJoinConversation   = "join_conversation"
	EventConversationJoined = "conversation_joined"
	EventLeaveConversation  = "leave_conversation"
	EventConversationLeft   = "conversation_left"
	EventUserLeft           = "user_left"
	EventSendMessage        = "send_message"
	EventMessageSent        = "message_sent"
	EventMessageReceived    = "message_received"
	EventTypingStart        = "typing_start"
	EventTypingStop         = "typing_stop"
	EventTypingUsersUpdated = "typing_users_updated"
	EventSetPresence        = "set_presence"
	EventReadReceipt        = "read_receipt"
	EventError              = "error"
)

// Envelope is the frame every wire event travels in.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ConnectedPayload struct {
	UserID    int64  `json:"userId"`
	Timestamp string `json:"timestamp"`
}

type JoinPayload struct {
	ConversationID int64 `json:"conversationId"`
}

type ConversationJoinedPayload struct {
	ConversationID int64            `json:"conversationId"`
	Messages       []MessagePayload `json:"messages"`
}

type ConversationLeftPayload struct {
	ConversationID int64  `json:"conversationId"`
	Timestamp      string `json:"timestamp"`
}

type UserLeftPayload struct {
	ConversationID int64  `json:"conversationId"`
	UserID         int64  `json:"userId"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Timestamp      string `json:"timestamp"`
}

type SendMessagePayload struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType,omitempty"`
	ReplyToID      *int64 `json:"replyToId,omitempty"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
	AttachmentType string `json:"attachmentType,omitempty"`
}

// MessagePayload is the fan-out envelope: the persisted message plus an
// ISO-8601 timestamp.
type MessagePayload struct {
	storage.Message
	Timestamp string `json:"timestamp"`
}

type TypingPayload struct {
	ConversationID int64 `json:"conversationId"`
}

type TypingUsersPayload struct {
	ConversationID int64   `json:"conversationId"`
	TypingUsers    []int64 `json:"typingUsers"`
	Timestamp      string  `json:"timestamp"`
}

type SetPresencePayload struct {
	Status string `json:"status"`
}

type ReadReceiptPayload struct {
	ConversationID int64  `json:"conversationId"`
	MessageID      int64  `json:"messageId"`
	ReaderID       int64  `json:"readerId"`
	Timestamp      string `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessagePayload(m *storage.Message) MessagePayload {
	return MessagePayload{Message: *m, Timestamp: m.CreatedAt.Format(time.RFC3339)}
}

func marshalEvent(eventType string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event payload", "type", eventType, "err", err)
		return nil
	}
	b, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		slog.Error("marshal event envelope", "type", eventType, "err", err)
		return nil
	}
	return b
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
