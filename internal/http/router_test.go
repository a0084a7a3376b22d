package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"easysheets/internal/analytics"
	"easysheets/internal/auth"
	"easysheets/internal/config"
	"easysheets/internal/contact"
	"easysheets/internal/spreadsheet"
	"easysheets/internal/spreadsheet/fakeprovider"
)

type routerFixture struct {
	handler  http.Handler
	provider *fakeprovider.Provider
	sessions *auth.SessionIssuer
	contacts *contact.InMemoryRepository
	userID   uuid.UUID
}

func newRouterFixture(t *testing.T, cfg config.Config) *routerFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := discardLogger()
	provider := fakeprovider.New()
	provider.AddSpreadsheet("doc-1", fakeprovider.Tab(7, "Data", 100, 26))
	sessions := newTestSessions()
	contacts := contact.NewInMemoryRepository()

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	deps := Dependencies{
		Users:    auth.NewService(&usersRepoStub{}),
		Sessions: sessions,
		Sheets:   spreadsheet.NewService(fakeprovider.NewFactory(provider), logger, spreadsheet.Options{SortExcludesHeader: true}),
		Views:    analytics.NewService(analytics.NewInMemoryRepository()),
		Contact:  contact.NewService(contacts, contact.LogMailer{}, "sheets@example.com", "owner@example.com", logger),
	}

	return &routerFixture{
		handler:  NewRouter(ctx, cfg, deps, logger),
		provider: provider,
		sessions: sessions,
		contacts: contacts,
		userID:   uuid.New(),
	}
}

func (f *routerFixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:5555"
	if authed {
		req.AddCookie(sessionCookie(t, f.sessions, f.userID, "user@example.com"))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRouterHealth(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodGet, "/health", "", false)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" || body["environment"] != "development" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterSheetsRequireSession(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodGet, "/api/sheets/doc-1/listSheets", "", false)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRouterUpdateUnknownSheetIsNotFound(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/api/sheets/doc-1/update",
		`{"sheetName":"Sheet1","range":"A1:B2","values":[["x","y"],["1","2"]]}`, true)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false || body["message"] != "Sheet not found" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(f.provider.Writes) != 0 {
		t.Fatalf("expected no writes, got %d", len(f.provider.Writes))
	}
}

func TestRouterUpdateWritesAndCenters(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/api/sheets/doc-1/update",
		`{"sheetName":"Data","range":"A1:B2","values":[["x","y"],["1","2"]]}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["updatedCells"] != float64(4) || body["message"] != "Data updated and center-aligned successfully" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(f.provider.Batches) != 1 {
		t.Fatalf("expected one formatting batch, got %d", len(f.provider.Batches))
	}
}

func TestRouterUpdateRejectsMalformedRange(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/api/sheets/doc-1/update",
		`{"sheetName":"Data","range":"1A","values":[["x"]]}`, true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Invalid range format" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterReadSheetWithoutBody(t *testing.T) {
	f := newRouterFixture(t, config.Config{})
	f.provider.AddSpreadsheet("doc-2", fakeprovider.Tab(0, "Sheet1", 10, 5))
	f.provider.SetValues("'Sheet1'!A1:Z", [][]any{{"a", "b"}})

	rec := f.do(t, http.MethodPost, "/api/sheets/doc-2", "", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data, ok := body["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("expected one row of data, got %v", body)
	}
}

func TestRouterCreateSpreadsheet(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/api/sheets/createSpreadSheet", `{}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["spreadsheetId"] != "sheet-1" {
		t.Fatalf("unexpected body %v", body)
	}
	if f.provider.CreateTitle[0] != "New SpreadSheet" {
		t.Fatalf("expected default title, got %q", f.provider.CreateTitle[0])
	}
}

func TestRouterDeleteSheet(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodDelete, "/api/sheets/doc-1/deleteSheet", `{"sheetName":"Data"}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Sheet Data deleted successfully." {
		t.Fatalf("unexpected body %v", body)
	}
	if sheets := f.provider.Spreadsheet("doc-1").Sheets; len(sheets) != 0 {
		t.Fatalf("expected tab to be removed, got %d tabs", len(sheets))
	}
}

func TestRouterAppendReportsUnknownRange(t *testing.T) {
	f := newRouterFixture(t, config.Config{})
	empty := ""
	f.provider.AppendedRange = &empty

	rec := f.do(t, http.MethodPost, "/api/sheets/doc-1/append", `{"sheetName":"Data","values":[["a"]]}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["updatedRange"] != "Unknown" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterValidationErrorEnvelope(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/api/sheets/doc-1/renameSheet", `{"sheetName":"Data"}`, true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false || body["message"] != "Both sheetName and newSheetName are required" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterProviderErrorIsPassedThrough(t *testing.T) {
	f := newRouterFixture(t, config.Config{})
	f.provider.Errs[fakeprovider.OpBatchUpdate] = &googleapi.Error{Code: http.StatusForbidden, Message: "The caller does not have permission"}

	rec := f.do(t, http.MethodPost, "/api/sheets/doc-1/renameSpreadSheet", `{"newTitle":"Budget"}`, true)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["message"] != "Something went wrong!" || !strings.Contains(body["error"].(string), "The caller does not have permission") {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterListSpreadsheets(t *testing.T) {
	f := newRouterFixture(t, config.Config{})
	f.provider.FilePages = [][]*drive.File{
		{{Id: "a", Name: "First"}},
		{{Id: "b", Name: "Second"}},
	}

	rec := f.do(t, http.MethodGet, "/api/sheets/listSpreadSheets", "", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	files, ok := decodeBody(t, rec)["spreadsheets"].([]any)
	if !ok || len(files) != 2 {
		t.Fatalf("expected both pages to be concatenated, got %s", rec.Body.String())
	}
}

func TestRouterListSpreadsheetsFailureEnvelope(t *testing.T) {
	f := newRouterFixture(t, config.Config{})
	f.provider.Errs[fakeprovider.OpListFiles] = errors.New("quota exceeded")

	rec := f.do(t, http.MethodGet, "/api/sheets/listSpreadSheets", "", true)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false || body["error"] != "Failed to retrieve spreadsheets." || !strings.Contains(body["details"].(string), "quota exceeded") {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterViewCountsIncludeTrackedRequests(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	f.do(t, http.MethodGet, "/api/view-counts", "", false)
	rec := f.do(t, http.MethodGet, "/api/view-counts", "", false)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["todaysViewCount"] != float64(2) || body["totalViews"] != float64(2) {
		t.Fatalf("unexpected counts %v", body)
	}
}

func TestRouterContactForm(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/api/contact", `{"name":"Ada","email":"ada@example.com","message":"Hello"}`, false)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["message"] != "Thank you for you message! We have received it and will get back to you soon." {
		t.Fatalf("unexpected body %v", body)
	}
	stored := f.contacts.Messages()
	if len(stored) != 1 || stored[0].IPAddress != "192.0.2.10" {
		t.Fatalf("expected stored message with caller IP, got %+v", stored)
	}
}

func TestRouterContactFormValidation(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/api/contact", `{"name":"Ada","email":"not-an-email","message":"Hello"}`, false)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Invalid email." {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterOAuthUnavailableWithoutGoogle(t *testing.T) {
	f := newRouterFixture(t, config.Config{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/google"},
		{http.MethodGet, "/api/auth/google/callback"},
		{http.MethodPost, "/api/auth/refresh-token"},
	} {
		if rec := f.do(t, tc.method, tc.path, "", false); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected status 503, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestRouterRateLimitsPerIP(t *testing.T) {
	f := newRouterFixture(t, config.Config{RateLimitMax: 1, RateLimitWindow: 15 * time.Minute})

	if rec := f.do(t, http.MethodGet, "/api/view-counts", "", false); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/view-counts", "", false); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}
