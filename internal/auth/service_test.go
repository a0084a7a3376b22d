package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"easysheets/internal/users"
)

type repoStub struct {
	findByID           func(ctx context.Context, id uuid.UUID) (*users.User, error)
	findByGoogleID     func(ctx context.Context, googleID string) (*users.User, error)
	findByRefreshToken func(ctx context.Context, refreshToken string) (*users.User, error)
	create             func(ctx context.Context, user users.User) (users.User, error)
	updateProfile      func(ctx context.Context, id uuid.UUID, profile users.Profile) error
	updateTokens       func(ctx context.Context, id uuid.UUID, update users.TokenUpdate) error
}

func (r *repoStub) FindByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	if r.findByID != nil {
		return r.findByID(ctx, id)
	}
	return nil, nil
}

func (r *repoStub) FindByGoogleID(ctx context.Context, googleID string) (*users.User, error) {
	if r.findByGoogleID != nil {
		return r.findByGoogleID(ctx, googleID)
	}
	return nil, nil
}

func (r *repoStub) FindByRefreshToken(ctx context.Context, refreshToken string) (*users.User, error) {
	if r.findByRefreshToken != nil {
		return r.findByRefreshToken(ctx, refreshToken)
	}
	return nil, nil
}

func (r *repoStub) Create(ctx context.Context, user users.User) (users.User, error) {
	if r.create != nil {
		return r.create(ctx, user)
	}
	return user, nil
}

func (r *repoStub) UpdateProfile(ctx context.Context, id uuid.UUID, profile users.Profile) error {
	if r.updateProfile != nil {
		return r.updateProfile(ctx, id, profile)
	}
	return nil
}

func (r *repoStub) UpdateTokens(ctx context.Context, id uuid.UUID, update users.TokenUpdate) error {
	if r.updateTokens != nil {
		return r.updateTokens(ctx, id, update)
	}
	return nil
}

func TestServiceSignInExistingKeepsRefreshToken(t *testing.T) {
	userID := uuid.New()
	existing := &users.User{
		ID:           userID,
		GoogleID:     "sub-123",
		Email:        "old@example.com",
		Name:         "Old Name",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	}
	var gotProfile users.Profile
	var gotUpdate users.TokenUpdate

	repo := &repoStub{
		findByGoogleID: func(ctx context.Context, googleID string) (*users.User, error) {
			return existing, nil
		},
		updateProfile: func(ctx context.Context, id uuid.UUID, profile users.Profile) error {
			if id != userID {
				return errors.New("unexpected id")
			}
			gotProfile = profile
			return nil
		},
		updateTokens: func(ctx context.Context, id uuid.UUID, update users.TokenUpdate) error {
			gotUpdate = update
			return nil
		},
	}
	svc := NewService(repo)

	profile := users.Profile{GoogleID: "sub-123", Email: "user@example.com", Name: "New Name", Picture: "new.png"}
	user, err := svc.SignIn(context.Background(), profile, &oauth2.Token{AccessToken: "new-access", Expiry: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if gotProfile != profile {
		t.Fatalf("expected UpdateProfile with %+v, got %+v", profile, gotProfile)
	}
	if gotUpdate.AccessToken != "new-access" || gotUpdate.RefreshToken != "" || gotUpdate.Expiry == nil {
		t.Fatalf("unexpected token update: %+v", gotUpdate)
	}
	if user.Name != "New Name" || user.AccessToken != "new-access" || user.RefreshToken != "old-refresh" {
		t.Fatalf("unexpected user after sign in: %+v", user)
	}
}

func TestServiceSignInCreatesNewUser(t *testing.T) {
	var created users.User
	repo := &repoStub{
		create: func(ctx context.Context, user users.User) (users.User, error) {
			created = user
			return user, nil
		},
	}
	svc := NewService(repo)

	profile := users.Profile{GoogleID: "sub-999", Email: "new@example.com", Name: "New User", Picture: "avatar.png"}
	user, err := svc.SignIn(context.Background(), profile, &oauth2.Token{AccessToken: "a", RefreshToken: "r"})
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected Create to receive a user ID")
	}
	if created.GoogleID != "sub-999" || created.AccessToken != "a" || created.RefreshToken != "r" {
		t.Fatalf("unexpected created user: %+v", created)
	}
	if created.TokenExpiry != nil {
		t.Fatalf("expected no expiry for token without one, got %v", created.TokenExpiry)
	}
	if user.Email != "new@example.com" {
		t.Fatalf("unexpected returned user: %+v", user)
	}
}

func TestServiceSignInFindError(t *testing.T) {
	repo := &repoStub{
		findByGoogleID: func(ctx context.Context, googleID string) (*users.User, error) {
			return nil, errors.New("boom")
		},
	}
	svc := NewService(repo)

	_, err := svc.SignIn(context.Background(), users.Profile{GoogleID: "sub"}, &oauth2.Token{})
	if err == nil || !strings.Contains(err.Error(), "find user") {
		t.Fatalf("expected find user error, got %v", err)
	}
}

func TestServiceGetUser(t *testing.T) {
	expected := &users.User{ID: uuid.New(), Email: "user@example.com"}
	repo := &repoStub{
		findByID: func(ctx context.Context, id uuid.UUID) (*users.User, error) {
			return expected, nil
		},
	}

	user, err := NewService(repo).GetUser(context.Background(), expected.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if user != expected {
		t.Fatal("expected repository user to be returned")
	}
}

func TestTokenUpdateFrom(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	update := TokenUpdateFrom(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry})
	if update.AccessToken != "a" || update.RefreshToken != "r" || update.Expiry == nil || !update.Expiry.Equal(expiry) {
		t.Fatalf("unexpected update: %+v", update)
	}

	if empty := TokenUpdateFrom(nil); empty.AccessToken != "" || empty.Expiry != nil {
		t.Fatalf("expected zero update for nil token, got %+v", empty)
	}
}
