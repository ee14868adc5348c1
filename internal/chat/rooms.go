package chat

import (
	"errors"
	"slices"

	"github.com/chatterbox-im/backend/internal/presence"
	"github.com/chatterbox-im/backend/internal/storage"
)

// handleJoin authorizes the user against the participant record, replays
// the most recent history oldest-first, and subscribes the connection to
// the room. Authorization is re-checked on every join since membership can
// change between connections.
func (h *Hub) handleJoin(c *Client, p JoinPayload) error {
	if c.UserID == 0 {
		return reject(msgNotAuthenticated)
	}

	if _, err := h.store.Participant(h.ctx, p.ConversationID, c.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reject(msgNotParticipant)
		}
		return err
	}

	history, err := h.store.History(h.ctx, p.ConversationID, historyLimit, 0)
	if err != nil {
		return err
	}
	slices.Reverse(history)

	msgs := make([]MessagePayload, 0, len(history))
	for i := range history {
		msgs = append(msgs, newMessagePayload(&history[i]))
	}

	room := h.rooms[p.ConversationID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[p.ConversationID] = room
	}
	room[c] = true
	c.rooms[p.ConversationID] = true

	c.queue(marshalEvent(EventConversationJoined, ConversationJoinedPayload{
		ConversationID: p.ConversationID,
		Messages:       msgs,
	}))

	h.presence.SetConversation(c.UserID, p.ConversationID)
	return nil
}

// handleLeave unsubscribes unconditionally; leaving a room you never joined
// is a harmless ack.
func (h *Hub) handleLeave(c *Client, conversationID int64) error {
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	delete(c.rooms, conversationID)

	ts := nowISO()
	h.broadcastToRoom(conversationID, marshalEvent(EventUserLeft, UserLeftPayload{
		ConversationID: conversationID,
		UserID:         c.UserID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Timestamp:      ts,
	}), c)

	c.queue(marshalEvent(EventConversationLeft, ConversationLeftPayload{
		ConversationID: conversationID,
		Timestamp:      ts,
	}))

	h.presence.ClearConversation(c.UserID, conversationID)
	return nil
}

func (h *Hub) handleTyping(c *Client, conversationID int64, isTyping bool) error {
	if c.UserID == 0 {
		return reject(msgNotAuthenticated)
	}
	users := h.presence.SetTyping(c.UserID, conversationID, isTyping)
	h.broadcastTyping(conversationID, users)
	return nil
}

func (h *Hub) handleSetPresence(c *Client, p SetPresencePayload) error {
	status := presence.Status(p.Status)
	switch status {
	case presence.StatusOnline, presence.StatusAway:
	default:
		return reject("Invalid presence status")
	}
	h.presence.UpdatePresence(c.UserID, presence.Update{Status: &status})
	return nil
}
