package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"

	"easysheets/internal/analytics"
	"easysheets/internal/auth"
	"easysheets/internal/config"
	"easysheets/internal/contact"
	transporthttp "easysheets/internal/http"
	"easysheets/internal/platform/database"
	"easysheets/internal/platform/logging"
	"easysheets/internal/platform/migrate"
	"easysheets/internal/platform/secretbox"
	"easysheets/internal/spreadsheet"
	"easysheets/internal/tokens"
	"easysheets/internal/users"
)

const appName = "easysheets"

var errOAuthDisabled = errors.New("google oauth is not configured")

type repositories struct {
	users    users.Repository
	views    analytics.Repository
	contacts contact.Repository
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	figure.NewFigure(appName, "cybermedium", true).Print()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	repos, cleanup, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	deps := transporthttp.Dependencies{
		Users:    auth.NewService(repos.users),
		Sessions: auth.NewSessionIssuer(cfg.SessionSecret, cfg.SessionTTL),
		Views:    analytics.NewService(repos.views),
		Contact:  contact.NewService(repos.contacts, buildMailer(cfg, logger), cfg.MailSender(), cfg.ContactRecipient, logger),
	}

	var clients spreadsheet.ClientFactory = disabledClients{}
	if cfg.OAuthEnabled() {
		google, err := auth.NewGoogleAuthenticator(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.GoogleAllowedDomains, cfg.GoogleAllowedEmails)
		if err != nil {
			logger.Error("failed to initialize google oauth", "error", err)
			os.Exit(1)
		}
		manager := tokens.NewManager(repos.users, google, logger)
		deps.Google = google
		deps.Tokens = manager
		clients = spreadsheet.NewGoogleClientFactory(manager)
		if google.HasAllowlist() {
			logger.Info("google sign-in restricted by allowlist")
		}
	}
	deps.Sheets = spreadsheet.NewService(clients, logger, spreadsheet.Options{SortExcludesHeader: cfg.SortExcludesHeader})

	router := transporthttp.NewRouter(ctx, cfg, deps, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      65 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("easysheets API listening", "addr", srv.Addr, "store", cfg.DataStore, "oauth", cfg.OAuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (repositories, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory repository")
		return repositories{
			users:    users.NewInMemoryRepository(),
			views:    analytics.NewInMemoryRepository(),
			contacts: contact.NewInMemoryRepository(),
		}, nil, nil
	}

	box, err := secretbox.NewFromBase64(cfg.TokenEncryptionKey)
	if err != nil {
		return repositories{}, nil, err
	}
	if box == nil {
		logger.Warn("TOKEN_ENCRYPTION_KEY not set; OAuth tokens are stored unencrypted")
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.DefaultPool)
	if err != nil {
		return repositories{}, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return repositories{}, nil, err
	}

	logger.Info("connected to postgres")
	return repositories{
		users:    users.NewPostgresRepository(db, box),
		views:    analytics.NewPostgresRepository(db),
		contacts: contact.NewPostgresRepository(db),
	}, cleanup, nil
}

func buildMailer(cfg config.Config, logger *slog.Logger) contact.Mailer {
	smtp := contact.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	}
	if !smtp.Enabled() {
		logger.Warn("SMTP_HOST not set; contact mail is logged instead of sent")
		return contact.LogMailer{Logger: logger}
	}
	return contact.NewSMTPMailer(smtp)
}

// disabledClients answers every spreadsheet call when Google sign-in is off.
type disabledClients struct{}

func (disabledClients) Open(context.Context, uuid.UUID) (spreadsheet.Provider, error) {
	return nil, errOAuthDisabled
}
