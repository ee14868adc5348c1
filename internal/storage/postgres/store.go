package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chatterbox-im/backend/internal/storage"
)

const messageColumns = `
	m.id, m.conversation_id, m.sender_id, u.first_name, u.last_name, u.avatar,
	m.content, m.message_type, m.reply_to_id,
	COALESCE(m.attachment_url, ''), COALESCE(m.attachment_type, ''), m.created_at,
	r.id, r.sender_id, ru.first_name, ru.last_name, r.content`

const messageJoins = `
	FROM messages m
	JOIN users u ON u.id = m.sender_id
	LEFT JOIN messages r ON r.id = m.reply_to_id
	LEFT JOIN users ru ON ru.id = r.sender_id`

func (s *Postgres) UserByID(ctx context.Context, id int64) (*storage.User, error) {
	row := s.Db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, COALESCE(avatar, '') FROM users WHERE id=$1`, id)

	var u storage.User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Avatar); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Postgres) Participant(ctx context.Context, conversationID, userID int64) (*storage.Participant, error) {
	row := s.Db.QueryRowContext(ctx,
		`SELECT conversation_id, user_id, role, is_muted, last_read_at
		FROM participants WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)

	var p storage.Participant
	var lastRead sql.NullTime
	if err := row.Scan(&p.ConversationID, &p.UserID, &p.Role, &p.IsMuted, &lastRead); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if lastRead.Valid {
		p.LastReadAt = &lastRead.Time
	}
	return &p, nil
}

func (s *Postgres) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := s.Db.QueryContext(ctx,
		`SELECT user_id FROM participants WHERE conversation_id=$1`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Postgres) CreateMessage(ctx context.Context, m storage.NewMessage) (*storage.Message, error) {
	var id int64
	err := s.Db.QueryRowContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content, message_type, reply_to_id, attachment_url, attachment_type)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, '')) RETURNING id`,
		m.ConversationID, m.SenderID, m.Content, m.MessageType, m.ReplyToID, m.AttachmentURL, m.AttachmentType).Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.MessageByID(ctx, id)
}

func (s *Postgres) MessageByID(ctx context.Context, id int64) (*storage.Message, error) {
	row := s.Db.QueryRowContext(ctx,
		`SELECT `+messageColumns+messageJoins+` WHERE m.id=$1`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (s *Postgres) History(ctx context.Context, conversationID int64, limit, offset int) ([]storage.Message, error) {
	rows, err := s.Db.QueryContext(ctx,
		`SELECT `+messageColumns+messageJoins+`
		WHERE m.conversation_id=$1
		ORDER BY m.created_at DESC, m.id DESC LIMIT $2 OFFSET $3`,
		conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []storage.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *msg)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(rs rowScanner) (*storage.Message, error) {
	var m storage.Message
	var replyTo sql.NullInt64
	var rID, rSenderID sql.NullInt64
	var rFirst, rLast, rContent sql.NullString

	err := rs.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.SenderFirstName, &m.SenderLastName, &m.SenderAvatar,
		&m.Content, &m.MessageType, &replyTo,
		&m.AttachmentURL, &m.AttachmentType, &m.CreatedAt,
		&rID, &rSenderID, &rFirst, &rLast, &rContent,
	)
	if err != nil {
		return nil, err
	}
	if replyTo.Valid {
		m.ReplyToID = &replyTo.Int64
	}
	if rID.Valid {
		m.ReplyTo = &storage.ReplyRef{
			ID:              rID.Int64,
			SenderID:        rSenderID.Int64,
			SenderFirstName: rFirst.String,
			SenderLastName:  rLast.String,
			Content:         rContent.String,
		}
	}
	return &m, nil
}

func (s *Postgres) TouchConversation(ctx context.Context, id int64) error {
	_, err := s.Db.ExecContext(ctx,
		`UPDATE conversations SET last_activity_at=CURRENT_TIMESTAMP WHERE id=$1`, id)
	return err
}

func (s *Postgres) CreatePrivateConversation(ctx context.Context, userID, otherID int64) (int64, bool, error) {
	row := s.Db.QueryRowContext(ctx, `SELECT c.id FROM conversations c
		JOIN participants p1 ON p1.conversation_id=c.id AND p1.user_id=$1
		JOIN participants p2 ON p2.conversation_id=c.id AND p2.user_id=$2
		WHERE c.is_group_chat=FALSE LIMIT 1`, userID, otherID)

	var id int64
	if err := row.Scan(&id); err == nil {
		return id, true, nil
	}

	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO conversations (name, is_group_chat) VALUES (NULL, FALSE) RETURNING id`).Scan(&id); err != nil {
		return 0, false, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO participants (conversation_id, user_id, role) VALUES ($1, $2, 'member'), ($3, $4, 'member')`,
		id, userID, id, otherID)
	if err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return id, false, nil
}

func (s *Postgres) CreateGroupConversation(ctx context.Context, name string, creatorID int64, memberIDs []int64) (int64, error) {
	var cid int64
	if err := s.Db.QueryRowContext(ctx,
		`INSERT INTO conversations (name, is_group_chat) VALUES ($1, TRUE) RETURNING id`, name).Scan(&cid); err != nil {
		return 0, err
	}

	if _, err := s.Db.ExecContext(ctx,
		`INSERT INTO participants (conversation_id, user_id, role) VALUES ($1, $2, 'admin')`, cid, creatorID); err != nil {
		return 0, err
	}

	for _, mid := range memberIDs {
		if mid == creatorID {
			continue
		}
		_, _ = s.Db.ExecContext(ctx,
			`INSERT INTO participants (conversation_id, user_id, role) VALUES ($1, $2, 'member') ON CONFLICT DO NOTHING`, cid, mid)
	}
	return cid, nil
}

func (s *Postgres) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO participants (conversation_id, user_id, role) VALUES ($1, $2, 'member') ON CONFLICT DO NOTHING`,
		conversationID, userID)
	return err
}

func (s *Postgres) RemoveParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := s.Db.ExecContext(ctx,
		`DELETE FROM participants WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	return err
}

func (s *Postgres) SetParticipantMuted(ctx context.Context, conversationID, userID int64, muted bool) error {
	res, err := s.Db.ExecContext(ctx,
		`UPDATE participants SET is_muted=$1 WHERE conversation_id=$2 AND user_id=$3`,
		muted, conversationID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Postgres) ConversationsForUser(ctx context.Context, userID int64) ([]storage.Conversation, error) {
	rows, err := s.Db.QueryContext(ctx, `
		SELECT c.id, COALESCE(c.name, ''), c.is_group_chat, c.last_activity_at, c.created_at
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.last_activity_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []storage.Conversation
	for rows.Next() {
		var conv storage.Conversation
		if err := rows.Scan(&conv.ID, &conv.Name, &conv.IsGroup, &conv.LastActivityAt, &conv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, conv)
	}
	return list, rows.Err()
}

func (s *Postgres) MarkRead(ctx context.Context, messageID, userID int64) error {
	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO read_receipts (message_id, user_id) VALUES ($1, $2)
		ON CONFLICT (message_id, user_id) DO UPDATE SET read_at=CURRENT_TIMESTAMP`,
		messageID, userID)
	if err != nil {
		return err
	}
	_, err = s.Db.ExecContext(ctx,
		`UPDATE participants SET last_read_at=CURRENT_TIMESTAMP
		WHERE user_id=$1 AND conversation_id=(SELECT conversation_id FROM messages WHERE id=$2)`,
		userID, messageID)
	return err
}
