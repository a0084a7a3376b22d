package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository keeps users in a map for local development and tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]User
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{data: make(map[uuid.UUID]User)}
}

// FindByID returns the user with the given id.
func (r *InMemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// FindByGoogleID returns the user linked to the Google subject.
func (r *InMemoryRepository) FindByGoogleID(_ context.Context, googleID string) (*User, error) {
	return r.find(func(u User) bool { return u.GoogleID == googleID }), nil
}

// FindByRefreshToken returns the user currently holding refreshToken.
func (r *InMemoryRepository) FindByRefreshToken(_ context.Context, refreshToken string) (*User, error) {
	if refreshToken == "" {
		return nil, nil
	}
	return r.find(func(u User) bool { return u.RefreshToken == refreshToken }), nil
}

func (r *InMemoryRepository) find(match func(User) bool) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.data {
		if match(user) {
			found := user
			return &found
		}
	}
	return nil
}

// Create stores a new user.
func (r *InMemoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[user.ID] = user
	return user, nil
}

// UpdateProfile refreshes the identity fields of an existing user.
func (r *InMemoryRepository) UpdateProfile(_ context.Context, id uuid.UUID, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	user.Email = profile.Email
	user.Name = profile.Name
	user.Picture = profile.Picture
	user.UpdatedAt = time.Now().UTC()
	r.data[id] = user
	return nil
}

// UpdateTokens stores new provider tokens, keeping the refresh token when the
// update carries none.
func (r *InMemoryRepository) UpdateTokens(_ context.Context, id uuid.UUID, update TokenUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	update.Apply(&user)
	user.UpdatedAt = time.Now().UTC()
	r.data[id] = user
	return nil
}
