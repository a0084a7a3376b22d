package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"easysheets/internal/config"
	"easysheets/internal/spreadsheet"
)

type userService interface {
	userSignIn
	userFinder
}

type sessionService interface {
	sessionIssuer
	sessionVerifier
}

type viewService interface {
	viewRecorder
	viewCounter
}

// Dependencies are the services the router dispatches to. Google and Tokens
// are nil when OAuth is not configured.
type Dependencies struct {
	Google   googleAuthenticator
	Tokens   tokenRefresher
	Users    userService
	Sessions sessionService
	Sheets   *spreadsheet.Service
	Views    viewService
	Contact  contactSubmitter
}

// NewRouter wires application routes and middleware using chi. The rate
// limiter's sweeper stops when ctx is done.
func NewRouter(ctx context.Context, cfg config.Config, deps Dependencies, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})

	requireSession := newSessionMiddleware(deps.Sessions, logger)
	sessionHandler := NewSessionHandler(deps.Tokens, deps.Users, cfg.Environment, logger)
	sheetsHandler := NewSheetsHandler(deps.Sheets, logger)
	siteHandler := NewSiteHandler(deps.Views, deps.Contact, logger)

	if deps.Google == nil {
		logger.Warn("Google OAuth not configured; sign-in endpoints answer 503")
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimitMax > 0 {
			limiter := newRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
			go limiter.run(ctx)
			r.Use(limiter.middleware)
		}
		r.Use(newViewTrackingMiddleware(deps.Views, deps.Sessions, logger))

		r.Route("/auth", func(r chi.Router) {
			if deps.Google != nil {
				oauthHandler := NewOAuthHandler(deps.Google, deps.Users, deps.Sessions, cfg.FrontendURL, cfg.Environment, logger)
				r.Get("/google", oauthHandler.InitiateGoogle)
				r.Get("/google/callback", oauthHandler.CallbackGoogle)
			} else {
				r.Get("/google", oauthUnavailable)
				r.Get("/google/callback", oauthUnavailable)
			}
			if deps.Tokens != nil {
				r.Post("/refresh-token", sessionHandler.RefreshToken)
			} else {
				r.Post("/refresh-token", oauthUnavailable)
			}
			r.Post("/logout", sessionHandler.Logout)
			r.With(requireSession).Get("/profile", sessionHandler.Profile)
		})

		r.Route("/sheets", func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/createSpreadSheet", sheetsHandler.CreateSpreadsheet)
			r.Get("/listSpreadSheets", sheetsHandler.ListSpreadsheets)
			r.Route("/{sheetId}", func(r chi.Router) {
				r.Post("/", sheetsHandler.ReadSheet)
				r.Post("/renameSpreadSheet", sheetsHandler.RenameSpreadsheet)
				r.Post("/createSheet", sheetsHandler.CreateSheet)
				r.Post("/renameSheet", sheetsHandler.RenameSheet)
				r.Post("/update", sheetsHandler.Update)
				r.Post("/writeBoldText", sheetsHandler.WriteBoldText)
				r.Post("/makeTextBold", sheetsHandler.MakeTextBold)
				r.Delete("/deleteSpreadSheet", sheetsHandler.DeleteSpreadsheet)
				r.Delete("/deleteSheet", sheetsHandler.DeleteSheet)
				r.Post("/append", sheetsHandler.Append)
				r.Post("/clear", sheetsHandler.Clear)
				r.Delete("/deleteRows", sheetsHandler.DeleteRows)
				r.Delete("/deleteColumn", sheetsHandler.DeleteColumn)
				r.Get("/listSheets", sheetsHandler.ListSheets)
				r.Get("/metadata", sheetsHandler.Metadata)
				r.Post("/sort", sheetsHandler.Sort)
				r.Post("/validate-format", sheetsHandler.Validate)
			})
		})

		r.Get("/view-counts", siteHandler.ViewCounts)
		r.Post("/contact", siteHandler.Contact)
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}

func oauthUnavailable(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
}
