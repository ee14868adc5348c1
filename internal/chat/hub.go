// Package chat implements the realtime core: the connection gateway, room
// membership, the message ingress pipeline, and fan-out to subscribers.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/chatterbox-im/backend/internal/presence"
	"github.com/chatterbox-im/backend/internal/storage"
)

const historyLimit = 50

type clientEvent struct {
	client   *Client
	envelope Envelope
}

type typingUpdate struct {
	conversationID int64
	typingUsers    []int64
}

type userNotification struct {
	userIDs []int64
	payload []byte
}

// Options tunes the hub's presence behavior and attachment policy.
type Options struct {
	TypingTTL       time.Duration
	AwayAfter       time.Duration
	AttachmentHosts []string
}

// Hub owns room membership and runs the event loop. All room maps are
// touched only on the Run goroutine; one inbound event is processed to
// completion before the next, so handlers need no locking of their own.
type Hub struct {
	store    storage.Store
	presence *presence.Store
	hosts    []string

	register   chan *Client
	unregister chan *Client
	events     chan *clientEvent

	// typingUpdates carries expiry firings from timer goroutines back onto
	// the loop; notify carries targeted events from HTTP handlers.
	typingUpdates chan typingUpdate
	notify        chan userNotification

	// conversationID -> subscribed connections
	rooms map[int64]map[*Client]bool
	// userID -> this user's connections (personal notification group)
	personal map[int64]map[*Client]bool

	ctx  context.Context
	quit chan struct{}
}

func NewHub(store storage.Store, opts Options) *Hub {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = 3 * time.Second
	}
	if opts.AwayAfter <= 0 {
		opts.AwayAfter = 5 * time.Minute
	}
	h := &Hub{
		store:         store,
		hosts:         opts.AttachmentHosts,
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		events:        make(chan *clientEvent),
		typingUpdates: make(chan typingUpdate, 64),
		notify:        make(chan userNotification, 64),
		rooms:         make(map[int64]map[*Client]bool),
		personal:      make(map[int64]map[*Client]bool),
		ctx:           context.Background(),
		quit:          make(chan struct{}),
	}
	h.presence = presence.NewStore(opts.TypingTTL, opts.AwayAfter, h.typingExpired)
	return h
}

// Presence exposes the store for the sweeper and HTTP queries.
func (h *Hub) Presence() *presence.Store { return h.presence }

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case ev := <-h.events:
			h.dispatch(ev)
		case tu := <-h.typingUpdates:
			h.broadcastTyping(tu.conversationID, tu.typingUsers)
		case n := <-h.notify:
			for _, uid := range n.userIDs {
				for cl := range h.personal[uid] {
					cl.queue(n.payload)
				}
			}
		case <-h.quit:
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}

func (h *Hub) registerClient(c *Client) {
	if h.personal[c.UserID] == nil {
		h.personal[c.UserID] = make(map[*Client]bool)
	}
	h.personal[c.UserID][c] = true
	h.presence.AddConnection(c.UserID, c.ID)
	slog.Info("client connected", "user", c.UserID, "conn", c.ID)

	c.queue(marshalEvent(EventConnected, ConnectedPayload{UserID: c.UserID, Timestamp: nowISO()}))
}

func (h *Hub) unregisterClient(c *Client) {
	for convID := range c.rooms {
		if room, ok := h.rooms[convID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, convID)
			}
		}
	}
	if set, ok := h.personal[c.UserID]; ok {
		if set[c] {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.personal, c.UserID)
		}
	}

	wentOffline, cleared := h.presence.RemoveConnection(c.UserID, c.ID)
	for _, snap := range cleared {
		h.broadcastTyping(snap.ConversationID, snap.TypingUsers)
	}
	slog.Info("client disconnected", "user", c.UserID, "conn", c.ID, "offline", wentOffline)
}

func (h *Hub) dispatch(ev *clientEvent) {
	c := ev.client
	h.presence.Touch(c.UserID)

	var err error
	switch ev.envelope.Type {
	case EventJoinConversation:
		var p JoinPayload
		if err = decodePayload(ev.envelope.Payload, &p); err == nil {
			err = h.handleJoin(c, p)
		}
	case EventLeaveConversation:
		var p JoinPayload
		if err = decodePayload(ev.envelope.Payload, &p); err == nil {
			err = h.handleLeave(c, p.ConversationID)
		}
	case EventSendMessage:
		var p SendMessagePayload
		if err = decodePayload(ev.envelope.Payload, &p); err == nil {
			err = h.handleSend(c, p)
		}
	case EventTypingStart, EventTypingStop:
		var p TypingPayload
		if err = decodePayload(ev.envelope.Payload, &p); err == nil {
			err = h.handleTyping(c, p.ConversationID, ev.envelope.Type == EventTypingStart)
		}
	case EventSetPresence:
		var p SetPresencePayload
		if err = decodePayload(ev.envelope.Payload, &p); err == nil {
			err = h.handleSetPresence(c, p)
		}
	default:
		err = reject("Unknown event type")
	}

	if err == nil {
		return
	}
	var rej rejectionError
	if errors.As(err, &rej) {
		c.queue(marshalEvent(EventError, ErrorPayload{Message: rej.msg}))
		return
	}
	slog.Error("event handler failed", "type", ev.envelope.Type, "user", c.UserID, "err", err)
	c.queue(marshalEvent(EventError, ErrorPayload{Message: msgInternal}))
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return reject("Missing event payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return reject("Invalid event payload")
	}
	return nil
}

// typingExpired is the presence store's expiry callback; it runs on a timer
// goroutine, so the update is queued back onto the loop rather than touching
// room maps directly.
func (h *Hub) typingExpired(conversationID int64, typingUsers []int64) {
	select {
	case h.typingUpdates <- typingUpdate{conversationID: conversationID, typingUsers: typingUsers}:
	default:
		slog.Warn("typing update queue full, dropping", "conversation", conversationID)
	}
}

// BroadcastToUsers delivers an event to every connection in the given
// users' personal groups. Safe to call from any goroutine.
func (h *Hub) BroadcastToUsers(userIDs []int64, eventType string, payload any) {
	b := marshalEvent(eventType, payload)
	if b == nil {
		return
	}
	h.notify <- userNotification{userIDs: userIDs, payload: b}
}

func (h *Hub) broadcastToRoom(conversationID int64, payload []byte, except *Client) {
	if payload == nil {
		return
	}
	for cl := range h.rooms[conversationID] {
		if cl == except {
			continue
		}
		if !cl.queue(payload) {
			// slow/broken client: force the transport closed, cleanup runs
			// through the normal unregister path
			slog.Warn("dropping slow client", "user", cl.UserID, "conn", cl.ID)
			if cl.conn != nil {
				cl.conn.Close()
			}
		}
	}
}

func (h *Hub) broadcastTyping(conversationID int64, typingUsers []int64) {
	if typingUsers == nil {
		typingUsers = []int64{}
	}
	h.broadcastToRoom(conversationID, marshalEvent(EventTypingUsersUpdated, TypingUsersPayload{
		ConversationID: conversationID,
		TypingUsers:    typingUsers,
		Timestamp:      nowISO(),
	}), nil)
}
