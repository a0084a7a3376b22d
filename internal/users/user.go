package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by updates that address a user that does not exist.
var ErrNotFound = errors.New("user not found")

// User is a Google account that has signed in to the gateway, together with the
// OAuth tokens used to call Google on its behalf.
type User struct {
	ID           uuid.UUID
	GoogleID     string
	Email        string
	Name         string
	Picture      string
	AccessToken  string
	RefreshToken string
	TokenExpiry  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the identity data returned by Google's userinfo endpoint.
type Profile struct {
	GoogleID string
	Email    string
	Name     string
	Picture  string
}

// TokenUpdate carries newly issued provider tokens. Empty tokens leave the
// stored values in place.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}

// Apply merges the update into u following the refresh-token preservation rule.
func (t TokenUpdate) Apply(u *User) {
	if t.AccessToken != "" {
		u.AccessToken = t.AccessToken
		u.TokenExpiry = t.Expiry
	}
	if t.RefreshToken != "" {
		u.RefreshToken = t.RefreshToken
	}
}

// Repository persists users. Finders return (nil, nil) when nothing matches.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (*User, error)
	Create(ctx context.Context, user User) (User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, profile Profile) error
	UpdateTokens(ctx context.Context, id uuid.UUID, update TokenUpdate) error
}
