package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/profai/internal/model"
)

const exportMessageLimit = 1_000_000

// ExportUser builds the export document for one user: profile summary plus every
// conversation, active or not, with its messages in order.
func (s *Store) ExportUser(ctx context.Context, userID string) (*model.UserExport, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ? ORDER BY created_at, rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	var conversations []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		conversations = append(conversations, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := &model.UserExport{
		Username:      user.Username,
		FullName:      user.FullName,
		Grade:         user.Grade,
		XP:            user.XP,
		Coins:         user.Coins,
		Level:         model.LevelFor(user.XP),
		Conversations: []model.ConversationExport{},
	}
	for _, c := range conversations {
		msgs, err := s.ListMessages(ctx, c.ID, exportMessageLimit)
		if err != nil {
			return nil, fmt.Errorf("list messages of %s: %w", c.ID, err)
		}
		ce := model.ConversationExport{
			Title:     c.Title,
			Subject:   c.Subject,
			Active:    c.Active,
			CreatedAt: c.CreatedAt,
			Messages:  make([]model.ExportedMessage, 0, len(msgs)),
		}
		for _, m := range msgs {
			ce.Messages = append(ce.Messages, model.ExportedMessage{
				Role:        string(m.Role),
				Type:        string(m.Type),
				Content:     m.Content,
				XPEarned:    m.XPEarned,
				CoinsEarned: m.CoinsEarned,
				At:          m.CreatedAt,
			})
		}
		out.Conversations = append(out.Conversations, ce)
	}
	return out, nil
}
