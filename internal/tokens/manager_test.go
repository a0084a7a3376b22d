package tokens

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"easysheets/internal/users"
)

type providerStub struct {
	refresh     func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	tokenSource func(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
	subject     func(ctx context.Context, rawIDToken string) (string, error)
}

func (p *providerStub) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return p.refresh(ctx, refreshToken)
}

func (p *providerStub) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	if p.tokenSource != nil {
		return p.tokenSource(ctx, token)
	}
	return oauth2.StaticTokenSource(token)
}

func (p *providerStub) Subject(ctx context.Context, rawIDToken string) (string, error) {
	if p.subject != nil {
		return p.subject(ctx, rawIDToken)
	}
	return "", errors.New("no verifier")
}

func seed(t *testing.T) (*users.InMemoryRepository, users.User) {
	t.Helper()
	repo := users.NewInMemoryRepository()
	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	user, err := repo.Create(context.Background(), users.User{
		ID:           uuid.New(),
		GoogleID:     "sub-1",
		Email:        "ada@example.com",
		AccessToken:  "A1",
		RefreshToken: "R1",
		TokenExpiry:  &expiry,
	})
	require.NoError(t, err)
	return repo, user
}

func TestHydrateUnknownUser(t *testing.T) {
	repo := users.NewInMemoryRepository()
	m := NewManager(repo, &providerStub{}, nil)

	_, err := m.Hydrate(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestHydrateUsesStoredTokens(t *testing.T) {
	repo, user := seed(t)
	m := NewManager(repo, &providerStub{}, nil)

	src, err := m.Hydrate(context.Background(), user.ID)
	require.NoError(t, err)

	token, err := src.Token()
	require.NoError(t, err)
	require.Equal(t, "A1", token.AccessToken)
	require.Equal(t, "R1", token.RefreshToken)
}

func TestHydratedSourcePersistsSilentRefresh(t *testing.T) {
	repo, user := seed(t)
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	provider := &providerStub{
		tokenSource: func(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
			return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "A2", Expiry: expiry})
		},
	}
	m := NewManager(repo, provider, nil)

	src, err := m.Hydrate(context.Background(), user.ID)
	require.NoError(t, err)
	_, err = src.Token()
	require.NoError(t, err)

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "A2", stored.AccessToken)
	require.Equal(t, "R1", stored.RefreshToken)
	require.Equal(t, expiry, *stored.TokenExpiry)
}

func TestClientSendsBearerToken(t *testing.T) {
	repo, user := seed(t)
	m := NewManager(repo, &providerStub{}, nil)

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client, err := m.Client(context.Background(), user.ID)
	require.NoError(t, err)
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "Bearer A1", gotAuth)
}

func TestOnTokenRefreshedAccessOnlyKeepsRefreshToken(t *testing.T) {
	repo, user := seed(t)
	m := NewManager(repo, &providerStub{}, nil)
	expiry := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.OnTokenRefreshed(context.Background(), Event{AccessToken: "A2", Expiry: expiry, Subject: "sub-1"}))

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "A2", stored.AccessToken)
	require.Equal(t, "R1", stored.RefreshToken)
	require.Equal(t, expiry, *stored.TokenExpiry)
}

func TestOnTokenRefreshedRotatedRefreshTokenOverwritesBoth(t *testing.T) {
	repo, user := seed(t)
	m := NewManager(repo, &providerStub{}, nil)

	require.NoError(t, m.OnTokenRefreshed(context.Background(), Event{AccessToken: "A2", RefreshToken: "R2", Subject: "sub-1"}))

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "A2", stored.AccessToken)
	require.Equal(t, "R2", stored.RefreshToken)
}

func TestOnTokenRefreshedRefreshOnlyKeepsAccessToken(t *testing.T) {
	repo, user := seed(t)
	m := NewManager(repo, &providerStub{}, nil)

	require.NoError(t, m.OnTokenRefreshed(context.Background(), Event{RefreshToken: "R2", Subject: "sub-1"}))

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "A1", stored.AccessToken)
	require.Equal(t, "R2", stored.RefreshToken)
	require.NotNil(t, stored.TokenExpiry)
	require.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), *stored.TokenExpiry)
}

func TestOnTokenRefreshedDecodesIDToken(t *testing.T) {
	repo, user := seed(t)
	provider := &providerStub{
		subject: func(ctx context.Context, rawIDToken string) (string, error) {
			require.Equal(t, "signed-id-token", rawIDToken)
			return "sub-1", nil
		},
	}
	m := NewManager(repo, provider, nil)

	require.NoError(t, m.OnTokenRefreshed(context.Background(), Event{AccessToken: "A3", IDToken: "signed-id-token", Subject: "someone-else"}))

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "A3", stored.AccessToken)
}

func TestOnTokenRefreshedDropsUnknownUser(t *testing.T) {
	repo, user := seed(t)
	m := NewManager(repo, &providerStub{}, nil)

	require.NoError(t, m.OnTokenRefreshed(context.Background(), Event{AccessToken: "A9", Subject: "stranger"}))
	require.NoError(t, m.OnTokenRefreshed(context.Background(), Event{AccessToken: "A9"}))

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "A1", stored.AccessToken)
}

func TestRefreshRequiresToken(t *testing.T) {
	m := NewManager(users.NewInMemoryRepository(), &providerStub{}, nil)

	_, err := m.Refresh(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingRefreshToken)
}

func TestRefreshPropagatesProviderError(t *testing.T) {
	revoked := errors.New("oauth2: \"invalid_grant\" \"Token has been expired or revoked.\"")
	provider := &providerStub{
		refresh: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			return nil, revoked
		},
	}
	m := NewManager(users.NewInMemoryRepository(), provider, nil)

	_, err := m.Refresh(context.Background(), "R1")
	require.Equal(t, revoked, err)
}

func TestRefreshStoresNewAccessToken(t *testing.T) {
	repo, user := seed(t)
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	provider := &providerStub{
		refresh: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			require.Equal(t, "R1", refreshToken)
			return &oauth2.Token{AccessToken: "A2", Expiry: expiry}, nil
		},
	}
	m := NewManager(repo, provider, nil)

	token, err := m.Refresh(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, "A2", token.AccessToken)

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "A2", stored.AccessToken)
	require.Equal(t, "R1", stored.RefreshToken)
	require.Equal(t, expiry, *stored.TokenExpiry)
}
