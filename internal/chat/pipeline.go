package chat

import (
	"errors"
	"log/slog"

	"github.com/chatterbox-im/backend/internal/storage"
	"github.com/chatterbox-im/backend/internal/utils"
)

const maxContentLength = 5000

// handleSend runs the ingress pipeline: every gate rejects before the
// message is persisted, so a rejected send leaves no message, receipt, or
// activity bump behind.
func (h *Hub) handleSend(c *Client, p SendMessagePayload) error {
	if c.UserID == 0 {
		return reject(msgNotAuthenticated)
	}
	if !c.cooldown.allow() {
		return reject(msgTooFast)
	}

	part, err := h.store.Participant(h.ctx, p.ConversationID, c.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reject(msgNotParticipant)
		}
		return err
	}
	if part.IsMuted {
		return reject(msgMuted)
	}

	if p.ReplyToID != nil {
		target, err := h.store.MessageByID(h.ctx, *p.ReplyToID)
		if errors.Is(err, storage.ErrNotFound) {
			return reject(msgReplyNotFound)
		}
		if err != nil {
			return err
		}
		if target.ConversationID != p.ConversationID {
			return reject(msgReplyNotFound)
		}
	}

	if p.AttachmentURL != "" || p.AttachmentType != "" {
		if err := validateAttachmentURL(p.AttachmentURL, h.hosts); err != nil {
			return err
		}
	}

	content := utils.SanitizeContent(p.Content, maxContentLength)
	if content == "" && p.AttachmentURL == "" {
		return reject(msgEmptyContent)
	}

	msgType := p.MessageType
	if msgType == "" {
		msgType = "text"
	}

	msg, err := h.store.CreateMessage(h.ctx, storage.NewMessage{
		ConversationID: p.ConversationID,
		SenderID:       c.UserID,
		Content:        content,
		MessageType:    msgType,
		ReplyToID:      p.ReplyToID,
		AttachmentURL:  p.AttachmentURL,
		AttachmentType: p.AttachmentType,
	})
	if err != nil {
		return err
	}

	// The message exists from here on; bookkeeping failures are logged, not
	// surfaced as rejections.
	if err := h.store.TouchConversation(h.ctx, p.ConversationID); err != nil {
		slog.Error("touch conversation failed", "conversation", p.ConversationID, "err", err)
	}
	if err := h.store.MarkRead(h.ctx, msg.ID, c.UserID); err != nil {
		slog.Error("sender read receipt failed", "message", msg.ID, "err", err)
	}

	payload := newMessagePayload(msg)
	h.broadcastToRoom(p.ConversationID, marshalEvent(EventMessageReceived, payload), c)
	c.queue(marshalEvent(EventMessageSent, payload))
	return nil
}
