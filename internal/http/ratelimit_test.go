package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBlocksAfterBudget(t *testing.T) {
	limiter := newRateLimiter(2, 15*time.Minute)
	handler := limiter.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/view-counts", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("192.0.2.1:1000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := send("192.0.2.1:1001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var body struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != http.StatusTooManyRequests || body.Message != rateLimitMessage {
		t.Fatalf("unexpected body %+v", body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	if rec := send("198.51.100.2:1000"); rec.Code != http.StatusOK {
		t.Fatalf("expected other IP to be unaffected, got %d", rec.Code)
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }

	if ok, _, _ := limiter.allow("ip"); !ok {
		t.Fatal("expected first request to pass")
	}
	if ok, _, _ := limiter.allow("ip"); ok {
		t.Fatal("expected second request to be blocked")
	}

	now = now.Add(time.Minute)
	if ok, remaining, _ := limiter.allow("ip"); !ok || remaining != 0 {
		t.Fatalf("expected a fresh window, got ok=%v remaining=%d", ok, remaining)
	}
}

func TestRateLimiterSweepDropsExpiredWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(5, time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.allow("a")
	now = now.Add(2 * time.Minute)
	limiter.allow("b")
	limiter.sweep()

	if _, ok := limiter.clients["a"]; ok {
		t.Fatal("expected expired window to be swept")
	}
	if _, ok := limiter.clients["b"]; !ok {
		t.Fatal("expected live window to survive")
	}
}
