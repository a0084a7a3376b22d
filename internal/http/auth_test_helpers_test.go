package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"easysheets/internal/auth"
	"easysheets/internal/users"
)

const testSessionSecret = "test-session-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type usersRepoStub struct {
	findByID           func(ctx context.Context, id uuid.UUID) (*users.User, error)
	findByGoogleID     func(ctx context.Context, googleID string) (*users.User, error)
	findByRefreshToken func(ctx context.Context, refreshToken string) (*users.User, error)
	create             func(ctx context.Context, user users.User) (users.User, error)
	updateProfile      func(ctx context.Context, id uuid.UUID, profile users.Profile) error
	updateTokens       func(ctx context.Context, id uuid.UUID, update users.TokenUpdate) error
}

func (r *usersRepoStub) FindByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	if r.findByID != nil {
		return r.findByID(ctx, id)
	}
	return nil, nil
}

func (r *usersRepoStub) FindByGoogleID(ctx context.Context, googleID string) (*users.User, error) {
	if r.findByGoogleID != nil {
		return r.findByGoogleID(ctx, googleID)
	}
	return nil, nil
}

func (r *usersRepoStub) FindByRefreshToken(ctx context.Context, refreshToken string) (*users.User, error) {
	if r.findByRefreshToken != nil {
		return r.findByRefreshToken(ctx, refreshToken)
	}
	return nil, nil
}

func (r *usersRepoStub) Create(ctx context.Context, user users.User) (users.User, error) {
	if r.create != nil {
		return r.create(ctx, user)
	}
	return user, nil
}

func (r *usersRepoStub) UpdateProfile(ctx context.Context, id uuid.UUID, profile users.Profile) error {
	if r.updateProfile != nil {
		return r.updateProfile(ctx, id, profile)
	}
	return nil
}

func (r *usersRepoStub) UpdateTokens(ctx context.Context, id uuid.UUID, update users.TokenUpdate) error {
	if r.updateTokens != nil {
		return r.updateTokens(ctx, id, update)
	}
	return nil
}

// fakeTokenRefresher stands in for tokens.Manager.
type fakeTokenRefresher struct {
	token *oauth2.Token
	err   error
	calls []string
}

func (f *fakeTokenRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.calls = append(f.calls, refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func newTestSessions() *auth.SessionIssuer {
	return auth.NewSessionIssuer(testSessionSecret, time.Hour)
}

// sessionCookie signs a session for userID and wraps it in the session cookie.
func sessionCookie(t *testing.T, sessions *auth.SessionIssuer, userID uuid.UUID, email string) *http.Cookie {
	t.Helper()
	token, _, err := sessions.Issue(userID, email)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: token}
}
