package model

import (
	"context"
	"time"
)

// Role represents a chat message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RequestType classifies what the student wants from a chat turn.
type RequestType string

const (
	// RequestHelp asks for guided help without revealing the final answer.
	RequestHelp RequestType = "help"
	// RequestHint asks for a single targeted hint.
	RequestHint RequestType = "hint"
	// RequestAnswer asks for the full resolution.
	RequestAnswer RequestType = "answer"
)

// DefaultStyle is the teaching style assigned at registration.
const DefaultStyle = "paciente"

// User represents a registered student.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Grade        string    `json:"grade"`
	School       string    `json:"school"`
	Avatar       string    `json:"avatar,omitempty"`
	AIStyle      string    `json:"ai_style"`
	XP           int       `json:"xp"`
	Coins        int       `json:"coins"`
	Level        int       `json:"level"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// LevelFor derives the user level from accumulated experience points.
func LevelFor(xp int) int {
	level := xp/100 + 1
	if level < 1 {
		return 1
	}
	return level
}

// NextLevelXP returns the xp threshold of the level after the given one.
func NextLevelXP(level int) int {
	return level * 100
}

// ProfileUpdate holds the optional fields of a profile edit.
// Nil pointers leave the stored value untouched.
type ProfileUpdate struct {
	FullName *string
	Grade    *string
	School   *string
	AIStyle  *string
	Avatar   *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.FullName == nil && p.Grade == nil && p.School == nil && p.AIStyle == nil && p.Avatar == nil
}

// Conversation is a chat thread owned by a single user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	Summary   string    `json:"summary"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single chat message inside a conversation.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Content        string      `json:"content"`
	Role           Role        `json:"role"`
	Type           RequestType `json:"message_type"`
	Reply          *Reply      `json:"ai_response,omitempty"`
	XPEarned       int         `json:"xp_earned"`
	CoinsEarned    int         `json:"coins_earned"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ChatRequest is the input of a single chat turn.
type ChatRequest struct {
	ConversationID string      `json:"conversation_id"`
	Message        string      `json:"message"`
	RequestType    RequestType `json:"request_type"`
	Subject        string      `json:"subject,omitempty"`
}

// ServerConfig holds runtime chat parameters set via CLI flags.
type ServerConfig struct {
	HistoryLimit      int           // messages loaded from storage per turn, zero for the default
	PromptHistory     int           // history turns forwarded to the model, zero for the default
	MaxTokens         int
	Temperature       float64
	JSONMode          bool          // ask the provider for a JSON object response
	GenerationTimeout time.Duration // outer bound on the upstream call
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
