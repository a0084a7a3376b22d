package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"easysheets/internal/users"
)

// Scopes requested at consent time. Sheets and Drive access are needed for the
// spreadsheet endpoints, the userinfo scopes for the profile.
var Scopes = []string{
	oidc.ScopeOpenID,
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ErrNoIDToken is returned when a token response carries no id_token.
var ErrNoIDToken = errors.New("no id_token in response")

// GoogleAuthenticator handles the Google OAuth 2.0 authorization code flow and
// the follow-up calls made with the resulting tokens.
type GoogleAuthenticator struct {
	config         *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	allowedDomains map[string]struct{}
	allowedEmails  map[string]struct{}
	apiOptions     []option.ClientOption
}

// NewGoogleAuthenticator creates a new GoogleAuthenticator.
func NewGoogleAuthenticator(ctx context.Context, clientID, clientSecret, redirectURL string, allowedDomains, allowedEmails []string) (*GoogleAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}

	return &GoogleAuthenticator{
		config:         config,
		verifier:       provider.Verifier(&oidc.Config{ClientID: clientID}),
		allowedDomains: toSet(allowedDomains),
		allowedEmails:  toSet(allowedEmails),
	}, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// AuthURL generates the consent URL. Offline access with a forced consent
// prompt makes Google return a refresh token on every sign-in.
func (g *GoogleAuthenticator) AuthURL(state string) string {
	return g.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades the authorization code for provider tokens.
func (g *GoogleAuthenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return token, nil
}

// Profile fetches the signed-in user's identity from the userinfo endpoint.
func (g *GoogleAuthenticator) Profile(ctx context.Context, token *oauth2.Token) (users.Profile, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(g.config.TokenSource(ctx, token))}, g.apiOptions...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return users.Profile{}, fmt.Errorf("userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return users.Profile{}, fmt.Errorf("userinfo: %w", err)
	}

	return users.Profile{
		GoogleID: info.Id,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
	}, nil
}

// Refresh redeems a refresh token for a new access token. Provider errors are
// returned unwrapped so callers see Google's message.
func (g *GoogleAuthenticator) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return g.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// TokenSource returns a source that refreshes token when it expires.
func (g *GoogleAuthenticator) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return g.config.TokenSource(ctx, token)
}

// Subject verifies an id_token and returns its subject claim.
func (g *GoogleAuthenticator) Subject(ctx context.Context, rawIDToken string) (string, error) {
	if rawIDToken == "" {
		return "", ErrNoIDToken
	}
	if g.verifier == nil {
		return "", errors.New("id_token verifier not configured")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("verify id_token: %w", err)
	}
	return idToken.Subject, nil
}

// IsEmailAllowed checks if the given email is allowed based on domain/email allowlists.
func (g *GoogleAuthenticator) IsEmailAllowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, ok := g.allowedEmails[email]; ok {
		return true
	}

	if _, domain, ok := strings.Cut(email, "@"); ok {
		if _, allowed := g.allowedDomains[domain]; allowed {
			return true
		}
	}

	// No allowlist configured means everyone may sign in.
	return len(g.allowedDomains) == 0 && len(g.allowedEmails) == 0
}

// HasAllowlist returns true if any allowlist restrictions are configured.
func (g *GoogleAuthenticator) HasAllowlist() bool {
	return len(g.allowedDomains) > 0 || len(g.allowedEmails) > 0
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
