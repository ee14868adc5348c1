package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterbox-im/backend/internal/storage"
)

func newTestDB(t *testing.T) *Sqlite {
	t.Helper()
	s, err := New("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Db.Close() })
	require.NoError(t, s.Migrate("../../../sql/schema.sql"))
	return s
}

func seedUser(t *testing.T, s *Sqlite, first, last string) int64 {
	t.Helper()
	res, err := s.Db.Exec(`INSERT INTO users (first_name, last_name, avatar) VALUES (?, ?, '')`, first, last)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestUserByID(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	id := seedUser(t, s, "Alice", "Anders")

	u, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Equal(t, "Anders", u.LastName)

	_, err = s.UserByID(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPrivateConversationReuse(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, s, "Alice", "Anders")
	bob := seedUser(t, s, "Bob", "Burke")

	id, existed, err := s.CreatePrivateConversation(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, existed)

	again, existed, err := s.CreatePrivateConversation(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, id, again)

	p, err := s.Participant(ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, "member", p.Role)
	assert.False(t, p.IsMuted)

	_, err = s.Participant(ctx, id, 777)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGroupConversationAndParticipants(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, s, "Alice", "Anders")
	bob := seedUser(t, s, "Bob", "Burke")
	cara := seedUser(t, s, "Cara", "Cole")

	cid, err := s.CreateGroupConversation(ctx, "team", alice, []int64{bob, alice})
	require.NoError(t, err)

	creator, err := s.Participant(ctx, cid, alice)
	require.NoError(t, err)
	assert.Equal(t, "admin", creator.Role)

	ids, err := s.ParticipantIDs(ctx, cid)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{alice, bob}, ids)

	require.NoError(t, s.AddParticipant(ctx, cid, cara))
	require.NoError(t, s.AddParticipant(ctx, cid, cara)) // idempotent
	ids, err = s.ParticipantIDs(ctx, cid)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	require.NoError(t, s.RemoveParticipant(ctx, cid, cara))
	_, err = s.Participant(ctx, cid, cara)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetParticipantMuted(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, s, "Alice", "Anders")
	bob := seedUser(t, s, "Bob", "Burke")
	cid, _, err := s.CreatePrivateConversation(ctx, alice, bob)
	require.NoError(t, err)

	require.NoError(t, s.SetParticipantMuted(ctx, cid, bob, true))
	p, err := s.Participant(ctx, cid, bob)
	require.NoError(t, err)
	assert.True(t, p.IsMuted)

	require.NoError(t, s.SetParticipantMuted(ctx, cid, bob, false))
	p, err = s.Participant(ctx, cid, bob)
	require.NoError(t, err)
	assert.False(t, p.IsMuted)

	assert.ErrorIs(t, s.SetParticipantMuted(ctx, cid, 777, true), storage.ErrNotFound)
}

func TestMessagesAndHistory(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, s, "Alice", "Anders")
	bob := seedUser(t, s, "Bob", "Burke")
	cid, _, err := s.CreatePrivateConversation(ctx, alice, bob)
	require.NoError(t, err)

	first, err := s.CreateMessage(ctx, storage.NewMessage{
		ConversationID: cid, SenderID: alice, Content: "hello", MessageType: "text",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", first.SenderFirstName)
	assert.Nil(t, first.ReplyTo)

	reply, err := s.CreateMessage(ctx, storage.NewMessage{
		ConversationID: cid, SenderID: bob, Content: "hi back", MessageType: "text",
		ReplyToID: &first.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, first.ID, reply.ReplyTo.ID)
	assert.Equal(t, "Alice", reply.ReplyTo.SenderFirstName)
	assert.Equal(t, "hello", reply.ReplyTo.Content)

	withFile, err := s.CreateMessage(ctx, storage.NewMessage{
		ConversationID: cid, SenderID: alice, Content: "see attached", MessageType: "file",
		AttachmentURL: "https://files.chatterbox.im/doc.pdf", AttachmentType: "document",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://files.chatterbox.im/doc.pdf", withFile.AttachmentURL)

	// newest first
	list, err := s.History(ctx, cid, 50, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, withFile.ID, list[0].ID)
	assert.Equal(t, first.ID, list[2].ID)

	list, err = s.History(ctx, cid, 2, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.History(ctx, cid, 50, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	_, err = s.MessageByID(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMarkReadUpsert(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, s, "Alice", "Anders")
	bob := seedUser(t, s, "Bob", "Burke")
	cid, _, err := s.CreatePrivateConversation(ctx, alice, bob)
	require.NoError(t, err)

	msg, err := s.CreateMessage(ctx, storage.NewMessage{
		ConversationID: cid, SenderID: alice, Content: "hello", MessageType: "text",
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkRead(ctx, msg.ID, bob))
	require.NoError(t, s.MarkRead(ctx, msg.ID, bob)) // second read updates in place

	var n int
	require.NoError(t, s.Db.QueryRow(
		`SELECT COUNT(1) FROM read_receipts WHERE message_id=? AND user_id=?`, msg.ID, bob).Scan(&n))
	assert.Equal(t, 1, n)

	p, err := s.Participant(ctx, cid, bob)
	require.NoError(t, err)
	assert.NotNil(t, p.LastReadAt)
}

func TestTouchAndListConversations(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, s, "Alice", "Anders")
	bob := seedUser(t, s, "Bob", "Burke")

	cid, _, err := s.CreatePrivateConversation(ctx, alice, bob)
	require.NoError(t, err)
	gid, err := s.CreateGroupConversation(ctx, "team", alice, []int64{bob})
	require.NoError(t, err)

	require.NoError(t, s.TouchConversation(ctx, cid))

	list, err := s.ConversationsForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []int64{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []int64{cid, gid}, ids)
	for _, conv := range list {
		assert.False(t, conv.LastActivityAt.IsZero())
	}
}
