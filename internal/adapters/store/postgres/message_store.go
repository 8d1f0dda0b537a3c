package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

func (s *Store) CreateConversation(ctx context.Context, participants []domain.UserID) (*domain.Conversation, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: a conversation needs at least two participants", core.ErrProtocol)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin create conversation", err)
	}
	defer tx.Rollback(ctx)

	conv := &domain.Conversation{Participants: append([]domain.UserID(nil), participants...)}
	err = tx.QueryRow(ctx, `INSERT INTO conversations DEFAULT VALUES RETURNING id`).Scan(&conv.ID)
	if err != nil {
		return nil, unavailable("create conversation", err)
	}

	for pos, user := range participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, position)
			VALUES ($1, $2, $3)
		`, conv.ID, user, pos)
		if err != nil {
			return nil, unavailable("add participant", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit create conversation", err)
	}
	return conv, nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, last_message_at FROM conversations WHERE id = $1
	`, id).Scan(&conv.ID, &conv.LastMessageAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, id)
		}
		return nil, unavailable("get conversation", err)
	}

	conv.Participants, err = s.participantsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Store) ConversationsOf(ctx context.Context, user domain.UserID) ([]*domain.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.last_message_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.last_message_at DESC NULLS LAST
	`, user)
	if err != nil {
		return nil, unavailable("get conversations of user", err)
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ID, &conv.LastMessageAt); err != nil {
			return nil, unavailable("scan conversation", err)
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate conversations", err)
	}

	for _, conv := range convs {
		if conv.Participants, err = s.participantsOf(ctx, conv.ID); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

func (s *Store) participantsOf(ctx context.Context, id domain.ConversationID) ([]domain.UserID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, unavailable("get participants", err)
	}
	defer rows.Close()

	var out []domain.UserID
	for rows.Next() {
		var u domain.UserID
		if err := rows.Scan(&u); err != nil {
			return nil, unavailable("scan participant", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CreateMessage(ctx context.Context, conversation domain.ConversationID, sender domain.UserID, body string) (*domain.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin create message", err)
	}
	defer tx.Rollback(ctx)

	msg := &domain.Message{ConversationID: conversation, Sender: sender, Body: body}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, conversation, sender, body).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, unavailable("create message", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE conversations SET last_message_at = $1 WHERE id = $2
	`, msg.CreatedAt, conversation)
	if err != nil {
		return nil, unavailable("bump conversation timestamp", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversation)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit create message", err)
	}
	return msg, nil
}

func (s *Store) MessagesOf(ctx context.Context, conversation domain.ConversationID) ([]*domain.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender, body, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversation)
	if err != nil {
		return nil, unavailable("get messages", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Body, &m.CreatedAt); err != nil {
			return nil, unavailable("scan message", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
