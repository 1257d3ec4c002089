package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/profai/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, username string) *model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "hash",
		FullName:     "Test " + username,
		Grade:        "7º EF",
	})
	if err != nil {
		t.Fatalf("createTestUser: %v", err)
	}
	return u
}

func createTestConversation(t *testing.T, s *Store, userID, subject string) *model.Conversation {
	t.Helper()
	c, err := s.CreateConversation(context.Background(), model.Conversation{
		UserID:  userID,
		Title:   "Dúvidas de " + subject,
		Subject: subject,
	})
	if err != nil {
		t.Fatalf("createTestConversation: %v", err)
	}
	return c
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "ana")
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if u.AIStyle != model.DefaultStyle {
		t.Errorf("expected default style %q, got %q", model.DefaultStyle, u.AIStyle)
	}

	got, err := s.GetUserByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("expected user %s, got %+v", u.ID, got)
	}
	if !got.Active {
		t.Error("expected new user to be active")
	}
	if got.Level != 1 {
		t.Errorf("expected level 1, got %d", got.Level)
	}

	got, err = s.GetUserByUsername(ctx, "ana")
	if err != nil || got == nil {
		t.Fatalf("GetUserByUsername: %v, %v", got, err)
	}

	// Not found returns nil, nil.
	got, err = s.GetUserByID(ctx, "missing")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil user, got %+v", got)
	}

	count, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "bia")

	tests := []struct {
		name     string
		email    string
		username string
	}{
		{"same email", "bia@example.com", "other"},
		{"same username", "other@example.com", "bia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateUser(context.Background(), model.User{
				Email: tt.email, Username: tt.username, PasswordHash: "x", FullName: "X",
			})
			if !errors.Is(err, ErrDuplicate) {
				t.Errorf("expected ErrDuplicate, got %v", err)
			}
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "caio")

	name, style := "Caio Souza", "direto"
	if err := s.UpdateProfile(ctx, u.ID, model.ProfileUpdate{FullName: &name, AIStyle: &style}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if err := s.UpdateProfile(ctx, u.ID, model.ProfileUpdate{}); err != nil {
		t.Fatalf("empty UpdateProfile: %v", err)
	}

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.FullName != name {
		t.Errorf("expected full name %q, got %q", name, got.FullName)
	}
	if got.AIStyle != style {
		t.Errorf("expected style %q, got %q", style, got.AIStyle)
	}
	if got.Grade != "7º EF" {
		t.Errorf("grade should be untouched, got %q", got.Grade)
	}
}

func TestAddRewards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "duda")

	for range 25 {
		if err := s.AddRewards(ctx, u.ID, 10, 2); err != nil {
			t.Fatalf("AddRewards: %v", err)
		}
	}

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.XP != 250 || got.Coins != 50 {
		t.Errorf("expected 250 xp / 50 coins, got %d / %d", got.XP, got.Coins)
	}
	if got.Level != 3 {
		t.Errorf("expected level 3, got %d", got.Level)
	}

	var stored int
	if err := s.db.QueryRow(`SELECT level FROM users WHERE id = ?`, u.ID).Scan(&stored); err != nil {
		t.Fatalf("read level: %v", err)
	}
	if stored != 3 {
		t.Errorf("expected stored level 3, got %d", stored)
	}

	if err := s.AddRewards(ctx, "missing", 1, 1); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestAddRewardsConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "edu")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.AddRewards(ctx, u.ID, 5, 1); err != nil {
				t.Errorf("AddRewards: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.XP != 100 || got.Coins != 20 {
		t.Errorf("expected 100 xp / 20 coins, got %d / %d", got.XP, got.Coins)
	}
}

func TestConversationOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")
	c := createTestConversation(t, s, alice.ID, "Matemática")

	got, err := s.GetConversation(ctx, c.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got == nil || got.Subject != "Matemática" {
		t.Fatalf("expected owner to see conversation, got %+v", got)
	}

	got, err = s.GetConversation(ctx, c.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for non-owner, got %+v", got)
	}

	list, err := s.ListConversations(ctx, bob.ID, 100)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no conversations for bob, got %d", len(list))
	}
}

func TestListConversationsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "fabi")

	subjects := []string{"Matemática", "História", "Física"}
	var ids []string
	for _, subj := range subjects {
		ids = append(ids, createTestConversation(t, s, u.ID, subj).ID)
	}

	// Touch the first conversation so it becomes the most recent.
	if err := s.TouchConversation(ctx, ids[0], time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("TouchConversation: %v", err)
	}

	list, err := s.ListConversations(ctx, u.ID, 100)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(list))
	}
	if list[0].ID != ids[0] {
		t.Errorf("expected touched conversation first, got %s", list[0].Subject)
	}

	limited, err := s.ListConversations(ctx, u.ID, 2)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit 2, got %d", len(limited))
	}

	count, err := s.CountConversations(ctx, u.ID)
	if err != nil {
		t.Fatalf("CountConversations: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func TestMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "gabi")
	c := createTestConversation(t, s, u.ID, "Química")

	for i := range 45 {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		if _, err := s.AddMessage(ctx, model.Message{
			ConversationID: c.ID,
			Content:        fmt.Sprintf("m%02d", i),
			Role:           role,
			Type:           model.RequestHelp,
		}); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	all, err := s.ListMessages(ctx, c.ID, 1000)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(all) != 45 {
		t.Fatalf("expected 45 messages, got %d", len(all))
	}
	for i, m := range all {
		if want := fmt.Sprintf("m%02d", i); m.Content != want {
			t.Fatalf("message %d: expected %q, got %q", i, want, m.Content)
		}
	}

	recent, err := s.RecentMessages(ctx, c.ID, 30)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(recent) != 30 {
		t.Fatalf("expected 30 recent messages, got %d", len(recent))
	}
	if recent[0].Content != "m15" || recent[29].Content != "m44" {
		t.Errorf("expected m15..m44, got %s..%s", recent[0].Content, recent[29].Content)
	}

	count, err := s.CountMessages(ctx, []string{c.ID, "other"})
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 45 {
		t.Errorf("expected 45, got %d", count)
	}
	count, err = s.CountMessages(ctx, nil)
	if err != nil || count != 0 {
		t.Errorf("expected 0 for no conversations, got %d, %v", count, err)
	}
}

func TestMessageReplyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "hugo")
	c := createTestConversation(t, s, u.ID, "Biologia")

	reply := &model.Reply{
		Type:              model.RequestAnswer,
		Intro:             "Vamos lá",
		Steps:             []string{"a", "b"},
		Explanation:       "A mitocôndria produz energia.",
		FinalAnswer:       "Mitocôndria",
		Examples:          []string{"célula muscular"},
		FollowUpQuestions: []string{"E o cloroplasto?"},
		XP:                model.PointsOf(2),
		Coins:             model.PointsOf(1),
	}
	if _, err := s.AddMessage(ctx, model.Message{
		ConversationID: c.ID,
		Content:        reply.Explanation,
		Role:           model.RoleAssistant,
		Type:           model.RequestAnswer,
		Reply:          reply,
		XPEarned:       2,
		CoinsEarned:    1,
	}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	msgs, err := s.ListMessages(ctx, c.ID, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Reply == nil {
		t.Fatalf("expected one message with a reply, got %+v", msgs)
	}
	got := msgs[0].Reply
	if got.FinalAnswer != "Mitocôndria" || got.XP.Int() != 2 || len(got.Steps) != 2 {
		t.Errorf("reply not preserved: %+v", got)
	}
	if msgs[0].XPEarned != 2 || msgs[0].CoinsEarned != 1 {
		t.Errorf("expected earned 2/1, got %d/%d", msgs[0].XPEarned, msgs[0].CoinsEarned)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetMetadata(ctx, "missing")
	if err != nil || v != "" {
		t.Fatalf("expected empty value, got %q, %v", v, err)
	}

	if err := s.SetMetadata(ctx, "k", "v1"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(ctx, "k", "v2"); err != nil {
		t.Fatalf("SetMetadata upsert: %v", err)
	}
	if v, _ := s.GetMetadata(ctx, "k"); v != "v2" {
		t.Errorf("expected v2, got %q", v)
	}

	calls := 0
	gen := func() (string, error) {
		calls++
		return fmt.Sprintf("secret-%d", calls), nil
	}
	first, err := s.EnsureMetadata(ctx, "jwt_secret", gen)
	if err != nil {
		t.Fatalf("EnsureMetadata: %v", err)
	}
	second, err := s.EnsureMetadata(ctx, "jwt_secret", gen)
	if err != nil {
		t.Fatalf("EnsureMetadata: %v", err)
	}
	if first != "secret-1" || second != first || calls != 1 {
		t.Errorf("expected stable secret-1 generated once, got %q %q (%d calls)", first, second, calls)
	}
}

func TestRevokedTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RevokeToken(ctx, "live", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := s.RevokeToken(ctx, "stale", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	tests := []struct {
		jti  string
		want bool
	}{
		{"live", true},
		{"stale", false},
		{"never", false},
	}
	for _, tt := range tests {
		t.Run(tt.jti, func(t *testing.T) {
			got, err := s.IsTokenRevoked(ctx, tt.jti)
			if err != nil {
				t.Fatalf("IsTokenRevoked: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsTokenRevoked(%q) = %v, want %v", tt.jti, got, tt.want)
			}
		})
	}

	n, err := s.CleanupRevokedTokens(ctx)
	if err != nil {
		t.Fatalf("CleanupRevokedTokens: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 cleaned up, got %d", n)
	}
}

func TestExportUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "iris")
	c := createTestConversation(t, s, u.ID, "Geografia")
	for _, content := range []string{"Qual a capital?", "Brasília"} {
		if _, err := s.AddMessage(ctx, model.Message{ConversationID: c.ID, Content: content, Role: model.RoleUser}); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}
	if err := s.AddRewards(ctx, u.ID, 120, 3); err != nil {
		t.Fatalf("AddRewards: %v", err)
	}

	exp, err := s.ExportUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ExportUser: %v", err)
	}
	if exp.Username != "iris" || exp.Level != 2 {
		t.Errorf("unexpected header: %+v", exp)
	}
	if len(exp.Conversations) != 1 || len(exp.Conversations[0].Messages) != 2 {
		t.Fatalf("expected 1 conversation with 2 messages, got %+v", exp.Conversations)
	}
	if exp.Conversations[0].Messages[1].Content != "Brasília" {
		t.Errorf("expected chronological messages, got %+v", exp.Conversations[0].Messages)
	}

	if _, err := s.ExportUser(ctx, "missing"); err == nil {
		t.Error("expected error for unknown user")
	}
}
