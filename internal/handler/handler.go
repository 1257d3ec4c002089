package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/profai/internal/auth"
	"github.com/pavelanni/profai/internal/catalog"
	appI18n "github.com/pavelanni/profai/internal/i18n"
	"github.com/pavelanni/profai/internal/store"
	"github.com/pavelanni/profai/internal/tutor"
)

const (
	conversationListLimit = 100
	messageListLimit      = 1000
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	tutor  *tutor.Service
	tokens *auth.Issuer
	now    func() time.Time
}

// New creates a new Handler.
func New(s *store.Store, t *tutor.Service, tokens *auth.Issuer) *Handler {
	return &Handler{store: s, tutor: t, tokens: tokens, now: time.Now}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/grades", h.handleGrades)
	r.Get("/subjects", h.handleSubjects)
	r.Get("/ai-styles", h.handleStyles)

	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/auth/me", h.handleMe)
		r.Put("/auth/profile", h.handleUpdateProfile)
		r.Post("/auth/logout", h.handleLogout)

		r.Post("/conversations", h.handleCreateConversation)
		r.Get("/conversations", h.handleListConversations)
		r.Get("/conversations/{conversationID}/messages", h.handleListMessages)
		r.Post("/chat", h.handleChat)
		r.Get("/dashboard", h.handleDashboard)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError sends the localized message for msgID as {"detail": ...}.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, map[string]string{"detail": appI18n.T(r.Context(), msgID)})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) handleGrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"grades": catalog.Grades})
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"subjects": catalog.Subjects})
}

type styleResponse struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleStyles(w http.ResponseWriter, r *http.Request) {
	styles := make([]styleResponse, len(catalog.Styles))
	for i, s := range catalog.Styles {
		styles[i] = styleResponse{
			Key:         string(s.Key),
			Name:        appI18n.T(r.Context(), s.NameID),
			Description: appI18n.T(r.Context(), s.DescriptionID),
		}
	}
	writeJSON(w, http.StatusOK, map[string][]styleResponse{"styles": styles})
}
