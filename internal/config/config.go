package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const developmentSessionSecret = "easysheets-development-session-secret"

// Config aggregates runtime configuration for the easysheets gateway.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	FrontendURL    string

	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	GoogleAllowedDomains []string
	GoogleAllowedEmails  []string

	SessionSecret      string
	SessionTTL         time.Duration
	TokenEncryptionKey string

	SortExcludesHeader bool
	RateLimitMax       int
	RateLimitWindow    time.Duration

	SMTP             SMTPConfig
	ContactRecipient string
}

// SMTPConfig holds mail relay settings. An empty Host disables delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/easysheets_database_url")
	if err != nil {
		return Config{}, err
	}
	clientSecret, err := getEnvOrFile("GOOGLE_CLIENT_SECRET", "/run/secrets/easysheets_google_client_secret")
	if err != nil {
		return Config{}, err
	}
	sessionSecret, err := getEnvOrFile("SESSION_SECRET", "/run/secrets/easysheets_session_secret")
	if err != nil {
		return Config{}, err
	}
	encryptionKey, err := getEnvOrFile("TOKEN_ENCRYPTION_KEY", "/run/secrets/easysheets_token_encryption_key")
	if err != nil {
		return Config{}, err
	}
	smtpPassword, err := getEnvOrFile("SMTP_PASSWORD", "/run/secrets/easysheets_smtp_password")
	if err != nil {
		return Config{}, err
	}

	frontendURL := strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/")

	cfg := Config{
		Environment:    strings.ToLower(getEnv("APP_ENV", "development")),
		DatabaseURL:    databaseURL,
		DataStore:      strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", frontendURL)),
		FrontendURL:    frontendURL,

		GoogleClientID:       strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret:   strings.TrimSpace(clientSecret),
		GoogleRedirectURL:    getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		GoogleAllowedDomains: parseCSV(os.Getenv("AUTH_GOOGLE_ALLOWED_DOMAINS")),
		GoogleAllowedEmails:  parseCSV(os.Getenv("AUTH_GOOGLE_ALLOWED_EMAILS")),

		SessionSecret:      strings.TrimSpace(sessionSecret),
		TokenEncryptionKey: strings.TrimSpace(encryptionKey),

		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
			Username: strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
			Password: smtpPassword,
		},
		ContactRecipient: strings.TrimSpace(os.Getenv("CONTACT_RECIPIENT")),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	if cfg.HTTPPort, err = strconv.Atoi(portValue); err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	if cfg.SMTP.Port, err = parseInt("SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitMax, err = parseInt("RATE_LIMIT_MAX", 100); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = parseDuration("RATE_LIMIT_WINDOW", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = parseDuration("SESSION_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SortExcludesHeader, err = parseBool("SORT_EXCLUDES_HEADER", true); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataStore != "memory" && c.DataStore != "postgres" {
		return fmt.Errorf("DATA_STORE must be memory or postgres, got %q", c.DataStore)
	}
	if c.DataStore == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}
	if c.RateLimitMax < 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must not be negative")
	}

	if c.IsDevelopment() {
		if c.SessionSecret == "" {
			c.SessionSecret = developmentSessionSecret
		}
		return nil
	}

	if c.GoogleClientID == "" {
		return errors.New("GOOGLE_CLIENT_ID is required outside development")
	}
	if c.GoogleClientSecret == "" {
		return errors.New("GOOGLE_CLIENT_SECRET is required outside development")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required outside development")
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return errors.New("ALLOWED_ORIGINS must not contain * outside development")
		}
	}
	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repositories should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment reports whether the process runs in the development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// OAuthEnabled reports whether Google sign-in is configured.
func (c Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SecureCookies reports whether cookies should carry the Secure attribute.
func (c Config) SecureCookies() bool {
	return !c.IsDevelopment()
}

// MailSender is the From address used for outgoing mail.
func (c Config) MailSender() string {
	if c.SMTP.Username != "" {
		return c.SMTP.Username
	}
	return "no-reply@localhost"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return value, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return value, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return value, nil
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
