// Package storage defines the narrow persistence interfaces the realtime
// core consumes, plus the entities they trade in. Implementations live in
// the sqlite and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Avatar    string `json:"avatar"`
}

type Participant struct {
	ConversationID int64      `json:"conversationId"`
	UserID         int64      `json:"userId"`
	Role           string     `json:"role"`
	IsMuted        bool       `json:"isMuted"`
	LastReadAt     *time.Time `json:"lastReadAt,omitempty"`
}

type Conversation struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	IsGroup        bool      `json:"isGroup"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Message is the persisted record with sender (and, when present, reply-to
// sender) display fields already resolved, ready for fan-out.
type Message struct {
	ID              int64     `json:"id"`
	ConversationID  int64     `json:"conversationId"`
	SenderID        int64     `json:"senderId"`
	SenderFirstName string    `json:"senderFirstName"`
	SenderLastName  string    `json:"senderLastName"`
	SenderAvatar    string    `json:"senderAvatar,omitempty"`
	Content         string    `json:"content"`
	MessageType     string    `json:"messageType"`
	ReplyToID       *int64    `json:"replyToId,omitempty"`
	ReplyTo         *ReplyRef `json:"replyTo,omitempty"`
	AttachmentURL   string    `json:"attachmentUrl,omitempty"`
	AttachmentType  string    `json:"attachmentType,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ReplyRef is the abbreviated view of the message being replied to.
type ReplyRef struct {
	ID              int64  `json:"id"`
	SenderID        int64  `json:"senderId"`
	SenderFirstName string `json:"senderFirstName"`
	SenderLastName  string `json:"senderLastName"`
	Content         string `json:"content"`
}

// NewMessage carries the validated fields for a message insert. The id and
// creation timestamp are server-assigned by the store.
type NewMessage struct {
	ConversationID int64
	SenderID       int64
	Content        string
	MessageType    string
	ReplyToID      *int64
	AttachmentURL  string
	AttachmentType string
}

type UserStore interface {
	UserByID(ctx context.Context, id int64) (*User, error)
}

type ParticipantStore interface {
	Participant(ctx context.Context, conversationID, userID int64) (*Participant, error)
	ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m NewMessage) (*Message, error)
	MessageByID(ctx context.Context, id int64) (*Message, error)
	// History returns messages newest first.
	History(ctx context.Context, conversationID int64, limit, offset int) ([]Message, error)
}

type ConversationStore interface {
	TouchConversation(ctx context.Context, id int64) error
	CreatePrivateConversation(ctx context.Context, userID, otherID int64) (id int64, existed bool, err error)
	CreateGroupConversation(ctx context.Context, name string, creatorID int64, memberIDs []int64) (int64, error)
	AddParticipant(ctx context.Context, conversationID, userID int64) error
	RemoveParticipant(ctx context.Context, conversationID, userID int64) error
	SetParticipantMuted(ctx context.Context, conversationID, userID int64, muted bool) error
	ConversationsForUser(ctx context.Context, userID int64) ([]Conversation, error)
}

type ReceiptStore interface {
	MarkRead(ctx context.Context, messageID, userID int64) error
}

// Store is the full collaborator surface a backend must provide.
type Store interface {
	UserStore
	ParticipantStore
	MessageStore
	ConversationStore
	ReceiptStore
}
