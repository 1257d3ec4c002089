package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/profai/internal/model"
)

const messageColumns = `id, conversation_id, content, role, message_type, ai_response,
	xp_earned, coins_earned, created_at`

func scanMessage(row rowScanner) (model.Message, error) {
	var (
		m     model.Message
		reply sql.NullString
	)
	err := row.Scan(&m.ID, &m.ConversationID, &m.Content, &m.Role, &m.Type, &reply,
		&m.XPEarned, &m.CoinsEarned, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	if reply.Valid && reply.String != "" {
		var r model.Reply
		if err := json.Unmarshal([]byte(reply.String), &r); err != nil {
			return m, fmt.Errorf("decode ai_response of message %s: %w", m.ID, err)
		}
		m.Reply = &r
	}
	return m, nil
}

// AddMessage appends a message to a conversation.
func (s *Store) AddMessage(ctx context.Context, m model.Message) (*model.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = now()

	var reply sql.NullString
	if m.Reply != nil {
		data, err := json.Marshal(m.Reply)
		if err != nil {
			return nil, fmt.Errorf("encode ai_response: %w", err)
		}
		reply = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Content, m.Role, m.Type, reply,
		m.XPEarned, m.CoinsEarned, m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns up to limit messages of a conversation in chronological order.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY seq ASC LIMIT ?`,
		conversationID, limit)
}

// RecentMessages returns the last limit messages of a conversation in chronological order.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	msgs, err := s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CountMessages returns the number of messages across the given conversations.
func (s *Store) CountMessages(ctx context.Context, conversationIDs []string) (int, error) {
	if len(conversationIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(conversationIDs)), ", ")
	args := make([]any, len(conversationIDs))
	for i, id := range conversationIDs {
		args[i] = id
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id IN (`+placeholders+`)`, args...,
	).Scan(&count)
	return count, err
}
