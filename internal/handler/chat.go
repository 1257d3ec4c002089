package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/profai/internal/i18n"
	"github.com/pavelanni/profai/internal/model"
	"github.com/pavelanni/profai/internal/tutor"
)

type createConversationRequest struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidBody")
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"detail": appI18n.Td(r.Context(), "ErrMissingField", map[string]any{"Field": "subject"}),
		})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = appI18n.Td(r.Context(), "DefaultConversationTitle", map[string]any{"Subject": req.Subject})
	}

	conv, err := h.store.CreateConversation(r.Context(), model.Conversation{
		UserID:  user.ID,
		Title:   req.Title,
		Subject: req.Subject,
	})
	if err != nil {
		slog.Error("failed to create conversation", "user_id", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	conversations, err := h.store.ListConversations(r.Context(), user.ID, conversationListLimit)
	if err != nil {
		slog.Error("failed to list conversations", "user_id", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.store.GetConversation(r.Context(), conversationID, user.ID)
	if err != nil {
		slog.Error("failed to get conversation", "conversation_id", conversationID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	if conv == nil {
		writeError(w, r, http.StatusNotFound, "ErrConversationNotFound")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), conv.ID, messageListLimit)
	if err != nil {
		slog.Error("failed to list messages", "conversation_id", conv.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	var req model.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidBody")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, r, http.StatusBadRequest, "ErrEmptyMessage")
		return
	}

	msg, err := h.tutor.Chat(r.Context(), user, req)
	var genErr *tutor.GenerationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, msg)
	case errors.Is(err, tutor.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "ErrConversationNotFound")
	case errors.As(err, &genErr):
		writeError(w, r, http.StatusInternalServerError, "ErrChatFailed")
	default:
		slog.Error("chat turn failed", "conversation_id", req.ConversationID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrChatFailed")
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	dash, err := h.tutor.Dashboard(r.Context(), user)
	if err != nil {
		slog.Error("failed to build dashboard", "user_id", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	for i := range dash.Achievements {
		a := &dash.Achievements[i]
		switch a.ID {
		case tutor.AchievementFirstChat:
			a.Name = appI18n.T(r.Context(), "AchievementFirstChatName")
			a.Description = appI18n.T(r.Context(), "AchievementFirstChatDescription")
		case tutor.AchievementDedicatedStudent:
			a.Name = appI18n.T(r.Context(), "AchievementDedicatedStudentName")
			a.Description = appI18n.Tp(r.Context(), "AchievementDedicatedStudentDescription", tutor.DedicatedStudentXP)
		case tutor.AchievementExplorer:
			a.Name = appI18n.T(r.Context(), "AchievementExplorerName")
			a.Description = appI18n.Tp(r.Context(), "AchievementExplorerDescription", tutor.ExplorerSubjects)
		}
	}
	writeJSON(w, http.StatusOK, dash)
}
