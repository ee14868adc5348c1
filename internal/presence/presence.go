// Package presence tracks which users are online, which conversation they
// last joined, and who is typing where. One Store is created per server
// process and shared by the websocket hub and the background sweeper.
package presence

import (
	"slices"
	"sync"
	"time"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Snapshot is a copy of one user's presence state at read time.
type Snapshot struct {
	UserID              int64     `json:"userId"`
	Status              Status    `json:"status"`
	Connections         int       `json:"connections"`
	LastSeen            time.Time `json:"lastSeen"`
	CurrentConversation int64     `json:"currentConversation,omitempty"`
	TypingIn            []int64   `json:"typingIn,omitempty"`
}

// TypingSnapshot reports the full typing-user list of one conversation
// after a transition.
type TypingSnapshot struct {
	ConversationID int64
	TypingUsers    []int64
}

type typingTimer struct {
	timer *time.Timer
}

type record struct {
	status              Status
	connections         map[string]struct{}
	lastSeen            time.Time
	currentConversation int64
	typing              map[int64]*typingTimer
}

// Update carries the caller-supplied fields merged by UpdatePresence.
type Update struct {
	Status *Status
}

// Store owns all presence state. Methods are safe for concurrent use; each
// one is a short critical section so callers never observe partial
// transitions. Expired typing timers report through the onExpire callback,
// which runs outside the lock on the timer's goroutine.
type Store struct {
	mu        sync.Mutex
	users     map[int64]*record
	typingTTL time.Duration
	awayAfter time.Duration
	onExpire  func(conversationID int64, typingUsers []int64)
}

func NewStore(typingTTL, awayAfter time.Duration, onExpire func(conversationID int64, typingUsers []int64)) *Store {
	return &Store{
		users:     make(map[int64]*record),
		typingTTL: typingTTL,
		awayAfter: awayAfter,
		onExpire:  onExpire,
	}
}

// AddConnection registers a connection for a user and marks them online.
// Adding the same connection id twice is a no-op.
func (s *Store) AddConnection(userID int64, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.users[userID]
	if rec == nil {
		rec = &record{
			connections: make(map[string]struct{}),
			typing:      make(map[int64]*typingTimer),
		}
		s.users[userID] = rec
	}
	rec.connections[connID] = struct{}{}
	rec.status = StatusOnline
	rec.lastSeen = time.Now()
}

// RemoveConnection drops a connection. When the user's last connection goes,
// every pending typing timer is canceled, the typing set and current
// conversation are cleared, and the record is removed. The returned
// snapshots list the conversations whose typing lists changed so the caller
// can broadcast them.
func (s *Store) RemoveConnection(userID int64, connID string) (wentOffline bool, cleared []TypingSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.users[userID]
	if rec == nil {
		return false, nil
	}
	delete(rec.connections, connID)
	if len(rec.connections) > 0 {
		return false, nil
	}

	for convID, tt := range rec.typing {
		tt.timer.Stop()
		delete(rec.typing, convID)
		cleared = append(cleared, TypingSnapshot{
			ConversationID: convID,
			TypingUsers:    s.typingUsersLocked(convID),
		})
	}
	delete(s.users, userID)
	return true, cleared
}

// UpdatePresence merges the supplied fields into an existing record. It
// never creates a record: unknown users are a no-op, so unauthenticated
// callers cannot plant ghost entries.
func (s *Store) UpdatePresence(userID int64, upd Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.users[userID]
	if rec == nil {
		return false
	}
	if upd.Status != nil && *upd.Status != StatusOffline {
		rec.status = *upd.Status
	}
	rec.lastSeen = time.Now()
	return true
}

// Touch bumps last-seen and revives away users. Called on every inbound
// client event.
func (s *Store) Touch(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.users[userID]; rec != nil {
		rec.lastSeen = time.Now()
		if rec.status == StatusAway {
			rec.status = StatusOnline
		}
	}
}

// SetConversation records the room the user last joined. Zero clears it.
func (s *Store) SetConversation(userID, conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.users[userID]; rec != nil {
		rec.currentConversation = conversationID
	}
}

// ClearConversation resets the current conversation only if it still points
// at the given room.
func (s *Store) ClearConversation(userID, conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.users[userID]; rec != nil && rec.currentConversation == conversationID {
		rec.currentConversation = 0
	}
}

// SetTyping starts, restarts, or stops typing for a (user, conversation)
// pair. A start always cancels the previous timer first so only one expiry
// can ever fire. The returned list is the conversation's complete
// typing-user set after the transition; the caller broadcasts it whole so
// lost or reordered events self-heal on the next one.
func (s *Store) SetTyping(userID, conversationID int64, isTyping bool) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.users[userID]
	if rec == nil {
		return s.typingUsersLocked(conversationID)
	}

	if prev, ok := rec.typing[conversationID]; ok {
		prev.timer.Stop()
		delete(rec.typing, conversationID)
	}

	if isTyping {
		tt := &typingTimer{}
		tt.timer = time.AfterFunc(s.typingTTL, func() {
			s.expireTyping(userID, conversationID, tt)
		})
		rec.typing[conversationID] = tt
	}
	rec.lastSeen = time.Now()
	return s.typingUsersLocked(conversationID)
}

// expireTyping runs on the timer goroutine. The identity check against the
// stored timer discards firings that lost a race with a restart or stop.
func (s *Store) expireTyping(userID, conversationID int64, tt *typingTimer) {
	s.mu.Lock()
	rec := s.users[userID]
	if rec == nil || rec.typing[conversationID] != tt {
		s.mu.Unlock()
		return
	}
	delete(rec.typing, conversationID)
	users := s.typingUsersLocked(conversationID)
	s.mu.Unlock()

	if s.onExpire != nil {
		s.onExpire(conversationID, users)
	}
}

func (s *Store) typingUsersLocked(conversationID int64) []int64 {
	var list []int64
	for uid, rec := range s.users {
		if _, ok := rec.typing[conversationID]; ok {
			list = append(list, uid)
		}
	}
	slices.Sort(list)
	return list
}

func (s *Store) IsOnline(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.users[userID]
	return rec != nil && len(rec.connections) > 0
}

func (s *Store) OnlineUsers() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []int64
	for uid, rec := range s.users {
		if len(rec.connections) > 0 {
			list = append(list, uid)
		}
	}
	slices.Sort(list)
	return list
}

// UsersInConversation lists users whose last-joined room is the given one.
func (s *Store) UsersInConversation(conversationID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []int64
	for uid, rec := range s.users {
		if rec.currentConversation == conversationID {
			list = append(list, uid)
		}
	}
	slices.Sort(list)
	return list
}

func (s *Store) TypingUsers(conversationID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typingUsersLocked(conversationID)
}

// Presence reports one user's state. Unknown users read as offline.
func (s *Store) Presence(userID int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.users[userID]
	if rec == nil {
		return Snapshot{UserID: userID, Status: StatusOffline}
	}
	snap := Snapshot{
		UserID:              userID,
		Status:              rec.status,
		Connections:         len(rec.connections),
		LastSeen:            rec.lastSeen,
		CurrentConversation: rec.currentConversation,
	}
	for convID := range rec.typing {
		snap.TypingIn = append(snap.TypingIn, convID)
	}
	slices.Sort(snap.TypingIn)
	return snap
}

// CleanupInactiveUsers demotes online users whose last-seen exceeds the
// inactivity threshold to away. Users without connections are already gone
// from the map, so the sweep never resurrects offline state. Returns the
// number of users demoted.
func (s *Store) CleanupInactiveUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.awayAfter)
	n := 0
	for _, rec := range s.users {
		if rec.status == StatusOnline && len(rec.connections) > 0 && rec.lastSeen.Before(cutoff) {
			rec.status = StatusAway
			n++
		}
	}
	return n
}
