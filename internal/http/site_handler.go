package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"easysheets/internal/analytics"
	"easysheets/internal/contact"
)

type viewCounter interface {
	Counts(ctx context.Context) (analytics.Totals, error)
}

type contactSubmitter interface {
	Submit(ctx context.Context, sub contact.Submission, ip string) (contact.Message, error)
}

// SiteHandler serves the public site endpoints: view counts and the contact form.
type SiteHandler struct {
	views   viewCounter
	contact contactSubmitter
	logger  *slog.Logger
}

// NewSiteHandler creates a SiteHandler.
func NewSiteHandler(views viewCounter, contact contactSubmitter, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{views: views, contact: contact, logger: logger}
}

// ViewCounts handles GET /api/view-counts.
func (h *SiteHandler) ViewCounts(w http.ResponseWriter, r *http.Request) {
	totals, err := h.views.Counts(r.Context())
	if err != nil {
		h.logger.Error("fetch view counts", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch view counts")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// Contact handles POST /api/contact.
func (h *SiteHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var sub contact.Submission
	if err := decodeJSONBody(w, r, &sub); err != nil {
		writeJSONError(w, err)
		return
	}

	if _, err := h.contact.Submit(r.Context(), sub, clientIPFromRequest(r)); err != nil {
		var validationErr *contact.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Message)
			return
		}
		h.logger.Error("contact form submission", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to submit the form. Please try again later.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Thank you for you message! We have received it and will get back to you soon.",
	})
}
