package llm

import (
	"context"
	"fmt"
	"strings"
)

// Role is the speaker of a chat turn sent upstream.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion request.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// JSON asks providers that support it for a JSON object response.
	JSON bool
}

// System returns the content of the leading system turn, if any, and the remaining turns.
// Providers whose APIs take the system instruction out of band use it.
func (r Request) System() (string, []Message) {
	if len(r.Messages) > 0 && r.Messages[0].Role == RoleSystem {
		return r.Messages[0].Content, r.Messages[1:]
	}
	return "", r.Messages
}

// Provider sends a completion request to an LLM and returns the raw text of the reply.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	ModelID() string
}

// Config selects and configures a provider.
type Config struct {
	Provider string // openai, anthropic, gemini, mock
	BaseURL  string // OpenAI-compatible endpoint; empty uses the vendor default
	APIKey   string
	Model    string
}

// New builds the provider named in cfg, wrapped with request logging.
func New(ctx context.Context, cfg Config) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		p, err = NewOpenAIProvider(cfg)
	case "anthropic":
		p, err = NewAnthropicProvider(cfg)
	case "gemini":
		p, err = NewGeminiProvider(ctx, cfg)
	case "mock":
		p = &MockProvider{Echo: true}
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithLogging(p), nil
}
