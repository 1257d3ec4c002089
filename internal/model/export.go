package model

import "time"

// UserExport is the top-level JSON structure for a student's study history export.
type UserExport struct {
	Username      string               `json:"username"`
	FullName      string               `json:"full_name"`
	Grade         string               `json:"grade"`
	XP            int                  `json:"xp"`
	Coins         int                  `json:"coins"`
	Level         int                  `json:"level"`
	ExportedAt    time.Time            `json:"exported_at"`
	Conversations []ConversationExport `json:"conversations"`
}

// ConversationExport holds one conversation and its messages for export.
type ConversationExport struct {
	Title     string            `json:"title"`
	Subject   string            `json:"subject"`
	Active    bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	Messages  []ExportedMessage `json:"messages"`
}

// ExportedMessage is a single message in an exported conversation.
type ExportedMessage struct {
	Role        string    `json:"role"`
	Type        string    `json:"message_type"`
	Content     string    `json:"content"`
	XPEarned    int       `json:"xp_earned"`
	CoinsEarned int       `json:"coins_earned"`
	At          time.Time `json:"at"`
}
