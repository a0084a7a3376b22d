// Package tokens keeps each user's Google OAuth tokens usable across requests:
// it hydrates per-request token sources from the user store and persists
// whatever new tokens Google issues along the way.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"easysheets/internal/users"
)

var (
	// ErrUserNotFound is returned when hydrating tokens for an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrMissingRefreshToken is returned when a forced refresh has no token to redeem.
	ErrMissingRefreshToken = errors.New("refresh token is required")
)

// Provider is the OAuth client that issues and refreshes Google tokens.
type Provider interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
	Subject(ctx context.Context, rawIDToken string) (string, error)
}

// Event describes tokens freshly issued by the provider. Subject is a fallback
// identity used when IDToken is absent or cannot be verified.
type Event struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	IDToken      string
	Subject      string
}

// EventFromToken builds an Event from an oauth2 token response.
func EventFromToken(token *oauth2.Token, subject string) Event {
	ev := Event{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Subject:      subject,
	}
	if raw, ok := token.Extra("id_token").(string); ok {
		ev.IDToken = raw
	}
	return ev
}

// Manager owns token hydration and persistence. It holds no per-user state;
// every call builds its own token source.
type Manager struct {
	repo     users.Repository
	provider Provider
	logger   *slog.Logger
}

// NewManager creates a Manager.
func NewManager(repo users.Repository, provider Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{repo: repo, provider: provider, logger: logger}
}

// Hydrate loads the user's stored tokens and returns a token source bound to
// them. Tokens the source obtains by refreshing are written back to the store.
func (m *Manager) Hydrate(ctx context.Context, userID uuid.UUID) (oauth2.TokenSource, error) {
	user, err := m.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user tokens: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	stored := &oauth2.Token{
		AccessToken:  user.AccessToken,
		RefreshToken: user.RefreshToken,
		TokenType:    "Bearer",
	}
	if user.TokenExpiry != nil {
		stored.Expiry = *user.TokenExpiry
	}

	return &notifyingSource{
		ctx:     ctx,
		base:    m.provider.TokenSource(ctx, stored),
		manager: m,
		subject: user.GoogleID,
		last:    stored.AccessToken,
	}, nil
}

// Client returns an HTTP client authorized as the user.
func (m *Manager) Client(ctx context.Context, userID uuid.UUID) (*http.Client, error) {
	src, err := m.Hydrate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, src), nil
}

// OnTokenRefreshed persists newly issued tokens for the user they belong to.
// Events that cannot be matched to a stored user are logged and dropped. The
// stored refresh token is replaced only when the event carries a new one.
func (m *Manager) OnTokenRefreshed(ctx context.Context, ev Event) error {
	if ev.AccessToken == "" && ev.RefreshToken == "" {
		return nil
	}

	subject := ev.Subject
	if ev.IDToken != "" {
		decoded, err := m.provider.Subject(ctx, ev.IDToken)
		if err != nil {
			m.logger.Warn("token refresh: id_token rejected", "error", err)
		} else {
			subject = decoded
		}
	}
	if subject == "" {
		m.logger.Warn("token refresh: dropping event without identity")
		return nil
	}

	user, err := m.repo.FindByGoogleID(ctx, subject)
	if err != nil {
		return fmt.Errorf("find user for refreshed tokens: %w", err)
	}
	if user == nil {
		m.logger.Warn("token refresh: dropping event for unknown user", "subject", subject)
		return nil
	}

	update := users.TokenUpdate{AccessToken: ev.AccessToken, RefreshToken: ev.RefreshToken}
	if !ev.Expiry.IsZero() {
		expiry := ev.Expiry.UTC()
		update.Expiry = &expiry
	}

	if err := m.repo.UpdateTokens(ctx, user.ID, update); err != nil {
		return fmt.Errorf("store refreshed tokens: %w", err)
	}

	m.logger.Debug("token refresh: stored", "user_id", user.ID, "rotated_refresh_token", ev.RefreshToken != "")
	return nil
}

// Refresh redeems refreshToken with the provider. Provider errors are returned
// unchanged. New tokens are persisted for the owning user on a best-effort basis.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	token, err := m.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	var subject string
	owner, err := m.repo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		m.logger.Warn("token refresh: owner lookup failed", "error", err)
	} else if owner != nil {
		subject = owner.GoogleID
	}

	if err := m.OnTokenRefreshed(ctx, EventFromToken(token, subject)); err != nil {
		m.logger.Error("token refresh: persist failed", "error", err)
	}

	return token, nil
}

// notifyingSource reports every access token it has not seen before back to
// the manager so silent refreshes reach the store.
type notifyingSource struct {
	ctx     context.Context
	base    oauth2.TokenSource
	manager *Manager
	subject string

	mu   sync.Mutex
	last string
}

func (s *notifyingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed {
		if err := s.manager.OnTokenRefreshed(s.ctx, EventFromToken(token, s.subject)); err != nil {
			s.manager.logger.Error("token refresh: persist failed", "error", err)
		}
	}
	return token, nil
}
