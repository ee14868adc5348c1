package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/chatterbox-im/backend/internal/storage"
)

// fakeStore is an in-memory storage.Store for hub tests. Counters expose
// which mutations the pipeline actually performed.
type fakeStore struct {
	mu           sync.Mutex
	users        map[int64]storage.User
	participants map[[2]int64]storage.Participant
	messages     map[int64]storage.Message
	nextID       int64

	createCalls int
	touches     map[int64]int
	reads       map[[2]int64]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[int64]storage.User),
		participants: make(map[[2]int64]storage.Participant),
		messages:     make(map[int64]storage.Message),
		touches:      make(map[int64]int),
		reads:        make(map[[2]int64]int),
	}
}

func (f *fakeStore) addUser(u storage.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeStore) addParticipant(p storage.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants[[2]int64{p.ConversationID, p.UserID}] = p
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (f *fakeStore) Participant(_ context.Context, conversationID, userID int64) (*storage.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[[2]int64{conversationID, userID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) ParticipantIDs(_ context.Context, conversationID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for key := range f.participants {
		if key[0] == conversationID {
			ids = append(ids, key[1])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m storage.NewMessage) (*storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	sender, ok := f.users[m.SenderID]
	if !ok {
		return nil, errors.New("fake: unknown sender")
	}
	f.nextID++
	msg := storage.Message{
		ID:              f.nextID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		SenderFirstName: sender.FirstName,
		SenderLastName:  sender.LastName,
		SenderAvatar:    sender.Avatar,
		Content:         m.Content,
		MessageType:     m.MessageType,
		ReplyToID:       m.ReplyToID,
		AttachmentURL:   m.AttachmentURL,
		AttachmentType:  m.AttachmentType,
		CreatedAt:       time.Now().UTC(),
	}
	if m.ReplyToID != nil {
		if target, ok := f.messages[*m.ReplyToID]; ok {
			msg.ReplyTo = &storage.ReplyRef{
				ID:              target.ID,
				SenderID:        target.SenderID,
				SenderFirstName: target.SenderFirstName,
				SenderLastName:  target.SenderLastName,
				Content:         target.Content,
			}
		}
	}
	f.messages[msg.ID] = msg
	return &msg, nil
}

func (f *fakeStore) MessageByID(_ context.Context, id int64) (*storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

func (f *fakeStore) History(_ context.Context, conversationID int64, limit, offset int) ([]storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []storage.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			list = append(list, m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (f *fakeStore) TouchConversation(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches[id]++
	return nil
}

func (f *fakeStore) MarkRead(_ context.Context, messageID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[[2]int64{messageID, userID}]++
	return nil
}

func (f *fakeStore) CreatePrivateConversation(context.Context, int64, int64) (int64, bool, error) {
	return 0, false, errors.New("fake: not implemented")
}

func (f *fakeStore) CreateGroupConversation(context.Context, string, int64, []int64) (int64, error) {
	return 0, errors.New("fake: not implemented")
}

func (f *fakeStore) AddParticipant(context.Context, int64, int64) error {
	return errors.New("fake: not implemented")
}

func (f *fakeStore) RemoveParticipant(context.Context, int64, int64) error {
	return errors.New("fake: not implemented")
}

func (f *fakeStore) SetParticipantMuted(context.Context, int64, int64, bool) error {
	return errors.New("fake: not implemented")
}

func (f *fakeStore) ConversationsForUser(context.Context, int64) ([]storage.Conversation, error) {
	return nil, errors.New("fake: not implemented")
}

func (f *fakeStore) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

func (f *fakeStore) touchCount(conversationID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touches[conversationID]
}

func (f *fakeStore) readCount(messageID, userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[[2]int64{messageID, userID}]
}
