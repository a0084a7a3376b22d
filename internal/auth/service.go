package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"easysheets/internal/users"
)

// Service provides sign-in business logic.
type Service struct {
	repo users.Repository
	now  func() time.Time
}

// NewService creates a new auth Service.
func NewService(repo users.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SignIn upserts the user identified by profile and stores the tokens from the
// authorization code exchange. A missing refresh token keeps the stored one.
func (s *Service) SignIn(ctx context.Context, profile users.Profile, token *oauth2.Token) (*users.User, error) {
	update := TokenUpdateFrom(token)

	existing, err := s.repo.FindByGoogleID(ctx, profile.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if existing != nil {
		if err := s.repo.UpdateProfile(ctx, existing.ID, profile); err != nil {
			return nil, fmt.Errorf("update user profile: %w", err)
		}
		if err := s.repo.UpdateTokens(ctx, existing.ID, update); err != nil {
			return nil, fmt.Errorf("update user tokens: %w", err)
		}
		existing.Email = profile.Email
		existing.Name = profile.Name
		existing.Picture = profile.Picture
		update.Apply(existing)
		return existing, nil
	}

	now := s.now().UTC()
	newUser := users.User{
		ID:        uuid.New(),
		GoogleID:  profile.GoogleID,
		Email:     profile.Email,
		Name:      profile.Name,
		Picture:   profile.Picture,
		CreatedAt: now,
		UpdatedAt: now,
	}
	update.Apply(&newUser)

	created, err := s.repo.Create(ctx, newUser)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &created, nil
}

// GetUser returns the user or nil when it does not exist.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// TokenUpdateFrom converts an oauth2 token into a repository update.
func TokenUpdateFrom(token *oauth2.Token) users.TokenUpdate {
	if token == nil {
		return users.TokenUpdate{}
	}
	update := users.TokenUpdate{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		update.Expiry = &expiry
	}
	return update
}
