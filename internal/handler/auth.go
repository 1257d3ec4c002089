package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/pavelanni/profai/internal/auth"
	"github.com/pavelanni/profai/internal/avatar"
	appI18n "github.com/pavelanni/profai/internal/i18n"
	"github.com/pavelanni/profai/internal/model"
	"github.com/pavelanni/profai/internal/store"
)

const bearerPrefix = "Bearer "

// maxProfileBody leaves room for the text fields next to the avatar upload.
const maxProfileBody = avatar.MaxUploadBytes + 1<<20

type claimsCtxKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsCtxKey{}).(*auth.Claims)
	return c
}

// requireAuth is middleware that checks for a valid bearer token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			writeError(w, r, http.StatusUnauthorized, "ErrNotAuthenticated")
			return
		}

		claims, err := h.tokens.Parse(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			slog.Debug("rejected token", "error", err)
			writeError(w, r, http.StatusUnauthorized, "ErrInvalidToken")
			return
		}

		revoked, err := h.store.IsTokenRevoked(r.Context(), claims.TokenID)
		if err != nil {
			slog.Error("failed to check token revocation", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal")
			return
		}
		if revoked {
			writeError(w, r, http.StatusUnauthorized, "ErrInvalidToken")
			return
		}

		user, err := h.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			slog.Error("failed to get user", "user_id", claims.UserID, "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal")
			return
		}
		if user == nil {
			writeError(w, r, http.StatusNotFound, "ErrUserNotFound")
			return
		}
		if !user.Active {
			writeError(w, r, http.StatusUnauthorized, "ErrInactiveUser")
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = context.WithValue(ctx, claimsCtxKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Grade    string `json:"grade"`
	School   string `json:"school"`
	AIStyle  string `json:"ai_style"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}

type profileResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Grade    string `json:"grade"`
	School   string `json:"school"`
	Avatar   string `json:"avatar"`
	AIStyle  string `json:"ai_style"`
	XP       int    `json:"xp"`
	Coins    int    `json:"coins"`
	Level    int    `json:"level"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidBody")
		return
	}

	required := []struct{ name, value string }{
		{"email", req.Email},
		{"username", req.Username},
		{"password", req.Password},
		{"full_name", req.FullName},
		{"grade", req.Grade},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"detail": appI18n.Td(r.Context(), "ErrMissingField", map[string]any{"Field": f.name}),
			})
			return
		}
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidEmail")
		return
	}
	if req.AIStyle == "" {
		req.AIStyle = model.DefaultStyle
	}

	if msgID, err := h.duplicateField(r.Context(), req.Email, req.Username); err != nil {
		slog.Error("failed to check existing user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	} else if msgID != "" {
		writeError(w, r, http.StatusBadRequest, msgID)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	user, err := h.store.CreateUser(r.Context(), model.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		FullName:     req.FullName,
		Grade:        req.Grade,
		School:       req.School,
		AIStyle:      req.AIStyle,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a race with a concurrent registration.
		msgID, _ := h.duplicateField(r.Context(), req.Email, req.Username)
		if msgID == "" {
			msgID = "ErrEmailTaken"
		}
		writeError(w, r, http.StatusBadRequest, msgID)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	h.writeToken(w, r, user.ID)
}

// duplicateField returns the message ID describing which unique field is taken, or "".
func (h *Handler) duplicateField(ctx context.Context, email, username string) (string, error) {
	existing, err := h.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "ErrEmailTaken", nil
	}
	existing, err = h.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "ErrUsernameTaken", nil
	}
	return "", nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidBody")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	if user == nil || !user.Active || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, r, http.StatusUnauthorized, "ErrInvalidCredentials")
		return
	}

	h.writeToken(w, r, user.ID)
}

func (h *Handler) writeToken(w http.ResponseWriter, r *http.Request, userID string) {
	token, err := h.tokens.Issue(userID)
	if err != nil {
		slog.Error("failed to issue token", "user_id", userID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", UserID: userID})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u := model.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, profileResponse{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName,
		Grade:    u.Grade,
		School:   u.School,
		Avatar:   u.Avatar,
		AIStyle:  u.AIStyle,
		XP:       u.XP,
		Coins:    u.Coins,
		Level:    model.LevelFor(u.XP),
	})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxProfileBody)
	if err := r.ParseMultipartForm(maxProfileBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusBadRequest, "ErrAvatarTooLarge")
			return
		}
		writeError(w, r, http.StatusBadRequest, "ErrInvalidBody")
		return
	}

	var update model.ProfileUpdate
	field := func(name string) *string {
		if v := r.FormValue(name); v != "" {
			return &v
		}
		return nil
	}
	update.FullName = field("full_name")
	update.Grade = field("grade")
	update.School = field("school")
	update.AIStyle = field("ai_style")

	file, _, err := r.FormFile("avatar")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		writeError(w, r, http.StatusBadRequest, "ErrInvalidBody")
		return
	default:
		defer file.Close()
		encoded, err := avatar.Process(file)
		switch {
		case errors.Is(err, avatar.ErrTooLarge):
			writeError(w, r, http.StatusBadRequest, "ErrAvatarTooLarge")
			return
		case err != nil:
			slog.Info("rejected avatar upload", "user_id", user.ID, "error", err)
			writeError(w, r, http.StatusBadRequest, "ErrAvatarUnsupported")
			return
		}
		update.Avatar = &encoded
	}

	if err := h.store.UpdateProfile(r.Context(), user.ID, update); err != nil {
		slog.Error("failed to update profile", "user_id", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "ProfileUpdated")})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := h.store.RevokeToken(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
		slog.Error("failed to revoke token", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
