package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"easysheets/internal/tokens"
	"easysheets/internal/users"
)

const sessionCookieName = "token"

type tokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type userFinder interface {
	GetUser(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// SessionHandler serves the session-level auth endpoints: forced token
// refresh, logout and the profile lookup.
type SessionHandler struct {
	tokens       tokenRefresher
	users        userFinder
	logger       *slog.Logger
	secureCookie bool
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(tokens tokenRefresher, users userFinder, env string, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		tokens:       tokens,
		users:        users,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// RefreshToken handles POST /api/auth/refresh-token.
func (h *SessionHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	token, err := h.tokens.Refresh(r.Context(), strings.TrimSpace(payload.RefreshToken))
	if err != nil {
		if errors.Is(err, tokens.ErrMissingRefreshToken) {
			writeError(w, http.StatusBadRequest, "Refresh token missing.")
			return
		}
		writeServerError(w, h.logger, err)
		return
	}

	var expiryDate *int64
	if !token.Expiry.IsZero() {
		ms := token.Expiry.UnixMilli()
		expiryDate = &ms
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": token.AccessToken,
		"expiryDate":  expiryDate,
	})
}

// Logout clears the session cookie.
func (h *SessionHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Profile handles GET /api/auth/profile for the signed-in user.
func (h *SessionHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		writeServerError(w, h.logger, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"name":           user.Name,
		"email":          user.Email,
		"profilePicture": user.Picture,
	})
}
