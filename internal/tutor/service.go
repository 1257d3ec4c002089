// Package tutor runs chat turns: it validates ownership, replays history to
// the model, normalizes the reply and books the rewards.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/profai/internal/llm"
	"github.com/pavelanni/profai/internal/llm/prompts"
	"github.com/pavelanni/profai/internal/model"
)

// DefaultHistoryLimit is the number of stored messages replayed per turn.
const DefaultHistoryLimit = 30

// ErrNotFound is returned when a conversation does not exist or belongs to another user.
var ErrNotFound = errors.New("conversation not found")

// Stage names a step of a chat turn.
type Stage string

const (
	StageValidating                 Stage = "validating"
	StageLoadingHistory             Stage = "loading_history"
	StagePersistingUserMessage      Stage = "persisting_user_message"
	StageGeneratingReply            Stage = "generating_reply"
	StagePersistingAssistantMessage Stage = "persisting_assistant_message"
	StageUpdatingRewards            Stage = "updating_rewards"
	StageDone                       Stage = "done"
)

// GenerationError reports a failed upstream call. The user message of the
// turn has already been stored when it is returned.
type GenerationError struct {
	UserMessageID string
	Err           error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate reply: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StageError wraps a storage failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Store is the persistence the tutor needs.
type Store interface {
	GetConversation(ctx context.Context, id, userID string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]model.Conversation, error)
	CountConversations(ctx context.Context, userID string) (int, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	CountMessages(ctx context.Context, conversationIDs []string) (int, error)
	AddMessage(ctx context.Context, m model.Message) (*model.Message, error)
	AddRewards(ctx context.Context, userID string, xp, coins int) error
	TouchConversation(ctx context.Context, id string, at time.Time) error
}

// Service runs chat turns and builds dashboards.
type Service struct {
	store      Store
	llm        llm.Provider
	config     model.ServerConfig
	normalizer *Normalizer
	now        func() time.Time
}

// NewService creates a Service. Zero limits in cfg fall back to the defaults.
func NewService(s Store, p llm.Provider, cfg model.ServerConfig, fc FallbackCopy) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.PromptHistory <= 0 {
		cfg.PromptHistory = prompts.DefaultMaxHistory
	}
	return &Service{
		store:      s,
		llm:        p,
		config:     cfg,
		normalizer: NewNormalizer(fc),
		now:        time.Now,
	}
}

// Chat runs one turn for user and returns the stored assistant message.
func (s *Service) Chat(ctx context.Context, user *model.User, req model.ChatRequest) (*model.Message, error) {
	log := slog.With("conversation_id", req.ConversationID, "user_id", user.ID)
	stage := func(st Stage) { log.Debug("chat turn", "stage", st) }

	rt := req.RequestType
	if rt == "" {
		rt = model.RequestHelp
	}

	stage(StageValidating)
	conv, err := s.store.GetConversation(ctx, req.ConversationID, user.ID)
	if err != nil {
		return nil, &StageError{Stage: StageValidating, Err: err}
	}
	if conv == nil {
		return nil, ErrNotFound
	}

	stage(StageLoadingHistory)
	stored, err := s.store.RecentMessages(ctx, conv.ID, s.config.HistoryLimit)
	if err != nil {
		return nil, &StageError{Stage: StageLoadingHistory, Err: err}
	}
	history := make([]prompts.Turn, len(stored))
	for i, m := range stored {
		history[i] = prompts.Turn{Role: m.Role, Content: m.Content}
	}

	stage(StagePersistingUserMessage)
	userMsg, err := s.store.AddMessage(ctx, model.Message{
		ConversationID: conv.ID,
		Content:        req.Message,
		Role:           model.RoleUser,
		Type:           rt,
	})
	if err != nil {
		return nil, &StageError{Stage: StagePersistingUserMessage, Err: err}
	}

	stage(StageGeneratingReply)
	subject := req.Subject
	if subject == "" {
		subject = conv.Subject
	}
	reply, err := s.generate(ctx, prompts.Input{
		Message:     req.Message,
		RequestType: rt,
		Subject:     subject,
		Style:       user.AIStyle,
		History:     history,
		MaxHistory:  s.config.PromptHistory,
	})
	if err != nil {
		log.Error("AI generation failed", "error", err)
		return nil, &GenerationError{UserMessageID: userMsg.ID, Err: err}
	}

	xp, coins := max(reply.XP.Int(), 0), max(reply.Coins.Int(), 0)

	stage(StagePersistingAssistantMessage)
	assistant, err := s.store.AddMessage(ctx, model.Message{
		ConversationID: conv.ID,
		Content:        reply.Explanation,
		Role:           model.RoleAssistant,
		Type:           rt,
		Reply:          &reply,
		XPEarned:       xp,
		CoinsEarned:    coins,
	})
	if err != nil {
		return nil, &StageError{Stage: StagePersistingAssistantMessage, Err: err}
	}

	stage(StageUpdatingRewards)
	if err := s.store.AddRewards(ctx, user.ID, xp, coins); err != nil {
		return nil, &StageError{Stage: StageUpdatingRewards, Err: err}
	}
	if err := s.store.TouchConversation(ctx, conv.ID, s.now()); err != nil {
		return nil, &StageError{Stage: StageUpdatingRewards, Err: err}
	}

	stage(StageDone)
	log.Info("chat turn completed", "request_type", rt, "xp", xp, "coins", coins)
	return assistant, nil
}

func (s *Service) generate(ctx context.Context, in prompts.Input) (model.Reply, error) {
	msgs, err := prompts.Build(in)
	if err != nil {
		return model.Reply{}, fmt.Errorf("build prompt: %w", err)
	}

	if s.config.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.GenerationTimeout)
		defer cancel()
	}

	raw, err := s.llm.Complete(ctx, llm.Request{
		Messages:    msgs,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		JSON:        s.config.JSONMode,
	})
	if err != nil {
		return model.Reply{}, err
	}

	reply, source := s.normalizer.Normalize(raw, in.RequestType)
	if source != SourceStrict {
		slog.Warn("model reply was not strict JSON", "source", source, "request_type", in.RequestType)
	}
	return reply, nil
}
