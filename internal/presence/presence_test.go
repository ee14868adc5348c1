package presence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTypingTTL = 50 * time.Millisecond

func newTestStore(onExpire func(int64, []int64)) *Store {
	return NewStore(testTypingTTL, time.Minute, onExpire)
}

func TestStatusFollowsConnectionSet(t *testing.T) {
	s := newTestStore(nil)

	assert.False(t, s.IsOnline(7))

	s.AddConnection(7, "c1")
	assert.True(t, s.IsOnline(7))
	assert.Equal(t, StatusOnline, s.Presence(7).Status)

	s.AddConnection(7, "c2")
	s.AddConnection(7, "c2") // duplicate add is a no-op
	assert.Equal(t, 2, s.Presence(7).Connections)

	_, _ = s.RemoveConnection(7, "c1")
	assert.True(t, s.IsOnline(7), "one connection remains")

	wentOffline, _ := s.RemoveConnection(7, "c2")
	assert.True(t, wentOffline)
	assert.False(t, s.IsOnline(7))
	assert.Equal(t, StatusOffline, s.Presence(7).Status)
}

func TestStatusManyConnectionSequences(t *testing.T) {
	s := newTestStore(nil)

	for n := 1; n <= 5; n++ {
		for i := 0; i < n; i++ {
			s.AddConnection(1, fmt.Sprintf("conn-%d", i))
		}
		for i := 0; i < n-1; i++ {
			s.RemoveConnection(1, fmt.Sprintf("conn-%d", i))
			assert.True(t, s.IsOnline(1))
		}
		s.RemoveConnection(1, fmt.Sprintf("conn-%d", n-1))
		assert.False(t, s.IsOnline(1))
	}
}

func TestTypingExpires(t *testing.T) {
	expiries := make(chan TypingSnapshot, 8)
	s := newTestStore(func(convID int64, users []int64) {
		expiries <- TypingSnapshot{ConversationID: convID, TypingUsers: users}
	})

	s.AddConnection(1, "c1")
	users := s.SetTyping(1, 10, true)
	assert.Equal(t, []int64{1}, users)
	assert.Equal(t, []int64{1}, s.TypingUsers(10))

	select {
	case snap := <-expiries:
		assert.Equal(t, int64(10), snap.ConversationID)
		assert.Empty(t, snap.TypingUsers)
	case <-time.After(time.Second):
		t.Fatal("typing never expired")
	}
	assert.Empty(t, s.TypingUsers(10))

	// exactly one firing
	select {
	case <-expiries:
		t.Fatal("second expiry fired")
	case <-time.After(3 * testTypingTTL):
	}
}

func TestTypingRestartKeepsOneTimer(t *testing.T) {
	expiries := make(chan int64, 8)
	s := newTestStore(func(convID int64, _ []int64) { expiries <- convID })

	s.AddConnection(1, "c1")
	s.SetTyping(1, 10, true)
	time.Sleep(testTypingTTL / 2)
	s.SetTyping(1, 10, true) // restart before the first expires

	select {
	case <-expiries:
	case <-time.After(time.Second):
		t.Fatal("no expiry after restart")
	}
	select {
	case <-expiries:
		t.Fatal("superseded timer fired too")
	case <-time.After(3 * testTypingTTL):
	}
}

func TestTypingStopCancelsTimer(t *testing.T) {
	expiries := make(chan int64, 8)
	s := newTestStore(func(convID int64, _ []int64) { expiries <- convID })

	s.AddConnection(1, "c1")
	s.SetTyping(1, 10, true)
	users := s.SetTyping(1, 10, false)
	assert.Empty(t, users)

	select {
	case <-expiries:
		t.Fatal("canceled timer fired")
	case <-time.After(3 * testTypingTTL):
	}
}

func TestTypingIgnoredForUnknownUser(t *testing.T) {
	s := newTestStore(nil)
	users := s.SetTyping(99, 10, true)
	assert.Empty(t, users)
	assert.Empty(t, s.TypingUsers(10))
}

func TestDisconnectCancelsAllTypingTimers(t *testing.T) {
	expiries := make(chan int64, 8)
	s := newTestStore(func(convID int64, _ []int64) { expiries <- convID })

	s.AddConnection(1, "c1")
	s.SetTyping(1, 10, true)
	s.SetTyping(1, 20, true)

	wentOffline, cleared := s.RemoveConnection(1, "c1")
	require.True(t, wentOffline)
	require.Len(t, cleared, 2)
	for _, snap := range cleared {
		assert.Empty(t, snap.TypingUsers)
	}

	select {
	case <-expiries:
		t.Fatal("timer fired after disconnect")
	case <-time.After(3 * testTypingTTL):
	}
}

func TestUpdatePresenceNeverCreatesRecords(t *testing.T) {
	s := newTestStore(nil)

	st := StatusAway
	assert.False(t, s.UpdatePresence(42, Update{Status: &st}))
	assert.Empty(t, s.OnlineUsers())

	s.AddConnection(42, "c1")
	assert.True(t, s.UpdatePresence(42, Update{Status: &st}))
	assert.Equal(t, StatusAway, s.Presence(42).Status)

	// offline cannot be forced while connections remain
	off := StatusOffline
	s.UpdatePresence(42, Update{Status: &off})
	assert.Equal(t, StatusAway, s.Presence(42).Status)
}

func TestCurrentConversation(t *testing.T) {
	s := newTestStore(nil)
	s.AddConnection(1, "c1")
	s.AddConnection(2, "c2")

	s.SetConversation(1, 10)
	s.SetConversation(2, 10)
	assert.Equal(t, []int64{1, 2}, s.UsersInConversation(10))

	// clearing only applies when the room still matches
	s.SetConversation(2, 20)
	s.ClearConversation(2, 10)
	assert.Equal(t, int64(20), s.Presence(2).CurrentConversation)

	s.ClearConversation(1, 10)
	assert.Empty(t, s.UsersInConversation(10))
}

func TestCleanupDemotesIdleUsers(t *testing.T) {
	s := NewStore(testTypingTTL, 20*time.Millisecond, nil)

	s.AddConnection(1, "c1")
	time.Sleep(40 * time.Millisecond)
	s.AddConnection(2, "c2")

	assert.Equal(t, 1, s.CleanupInactiveUsers())
	assert.Equal(t, StatusAway, s.Presence(1).Status)
	assert.Equal(t, StatusOnline, s.Presence(2).Status)
	assert.True(t, s.IsOnline(1), "away users still count as connected")

	// activity revives an away user
	s.Touch(1)
	assert.Equal(t, StatusOnline, s.Presence(1).Status)
	assert.Equal(t, 0, s.CleanupInactiveUsers())
}

func TestOnlineUsers(t *testing.T) {
	s := newTestStore(nil)
	s.AddConnection(3, "a")
	s.AddConnection(1, "b")
	s.AddConnection(2, "c")
	assert.Equal(t, []int64{1, 2, 3}, s.OnlineUsers())

	s.RemoveConnection(2, "c")
	assert.Equal(t, []int64{1, 3}, s.OnlineUsers())
}
