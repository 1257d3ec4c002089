package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/profai/internal/model"
)

const conversationColumns = `id, user_id, title, subject, summary, is_active, created_at, updated_at`

func scanConversation(row rowScanner) (model.Conversation, error) {
	var c model.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Subject, &c.Summary, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateConversation inserts a new active conversation.
func (s *Store) CreateConversation(ctx context.Context, c model.Conversation) (*model.Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Active = true
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.Subject, c.Summary, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation returns the conversation if it exists and belongs to userID, or nil.
func (s *Store) GetConversation(ctx context.Context, id, userID string) (*model.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns the user's active conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user_id = ? AND is_active = 1
		 ORDER BY updated_at DESC, rowid DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	conversations := []model.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// CountConversations returns the number of active conversations of a user.
func (s *Store) CountConversations(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = ? AND is_active = 1`, userID,
	).Scan(&count)
	return count, err
}

// TouchConversation sets the last-updated timestamp of a conversation.
func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, at.UTC(), id)
	return err
}
