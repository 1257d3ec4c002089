package tutor

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/profai/internal/model"
)

const recentConversations = 5

// Achievement thresholds.
const (
	DedicatedStudentXP = 100
	ExplorerSubjects   = 3
)

// Achievement identifiers.
const (
	AchievementFirstChat        = "first_chat"
	AchievementDedicatedStudent = "dedicated_student"
	AchievementExplorer         = "explorer"
)

// DashboardUser is the profile summary shown on the dashboard.
type DashboardUser struct {
	FullName    string `json:"full_name"`
	Grade       string `json:"grade"`
	XP          int    `json:"xp"`
	Coins       int    `json:"coins"`
	Level       int    `json:"level"`
	NextLevelXP int    `json:"next_level_xp"`
	Avatar      string `json:"avatar"`
}

// DashboardStats summarizes study activity.
type DashboardStats struct {
	TotalConversations int `json:"total_conversations"`
	TotalMessages      int `json:"total_messages"`
	SubjectsStudied    int `json:"subjects_studied"`
}

// ConversationSummary is a short view of a recent conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Achievement is an unlockable badge. Name and Description are filled in
// by the caller for the request language.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

// Dashboard is the student's home screen data.
type Dashboard struct {
	User                DashboardUser         `json:"user"`
	Stats               DashboardStats        `json:"stats"`
	RecentConversations []ConversationSummary `json:"recent_conversations"`
	Achievements        []Achievement         `json:"achievements"`
}

// Dashboard builds the dashboard for user. Message and subject counts cover
// the most recently updated conversations only.
func (s *Service) Dashboard(ctx context.Context, user *model.User) (*Dashboard, error) {
	recent, err := s.store.ListConversations(ctx, user.ID, recentConversations)
	if err != nil {
		return nil, fmt.Errorf("list recent conversations: %w", err)
	}
	total, err := s.store.CountConversations(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}

	ids := make([]string, len(recent))
	subjects := make(map[string]struct{})
	summaries := make([]ConversationSummary, len(recent))
	for i, c := range recent {
		ids[i] = c.ID
		subjects[c.Subject] = struct{}{}
		summaries[i] = ConversationSummary{ID: c.ID, Title: c.Title, Subject: c.Subject, UpdatedAt: c.UpdatedAt}
	}

	messages, err := s.store.CountMessages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	level := model.LevelFor(user.XP)
	return &Dashboard{
		User: DashboardUser{
			FullName:    user.FullName,
			Grade:       user.Grade,
			XP:          user.XP,
			Coins:       user.Coins,
			Level:       level,
			NextLevelXP: model.NextLevelXP(level),
			Avatar:      user.Avatar,
		},
		Stats: DashboardStats{
			TotalConversations: total,
			TotalMessages:      messages,
			SubjectsStudied:    len(subjects),
		},
		RecentConversations: summaries,
		Achievements: []Achievement{
			{ID: AchievementFirstChat, Unlocked: total > 0},
			{ID: AchievementDedicatedStudent, Unlocked: user.XP >= DedicatedStudentXP},
			{ID: AchievementExplorer, Unlocked: len(subjects) >= ExplorerSubjects},
		},
	}, nil
}
