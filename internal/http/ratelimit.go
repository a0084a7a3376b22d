package http

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const rateLimitMessage = "Too many requests from this IP, please try again after 15 minutes."

// rateLimiter is a fixed-window per-IP request counter. State is in memory, so
// each instance enforces its own budget.
type rateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*rateWindow),
	}
}

// allow records a hit for key and reports whether it fits the current window,
// along with the remaining budget and the window reset time.
func (l *rateLimiter) allow(key string) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	win, ok := l.clients[key]
	if !ok || !now.Before(win.resetAt) {
		win = &rateWindow{resetAt: now.Add(l.window)}
		l.clients[key] = win
	}

	win.count++
	remaining := l.max - win.count
	if remaining < 0 {
		return false, 0, win.resetAt
	}
	return true, remaining, win.resetAt
}

func (l *rateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, win := range l.clients {
		if !now.Before(win.resetAt) {
			delete(l.clients, key)
		}
	}
}

// run drops expired windows until ctx is done.
func (l *rateLimiter) run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, resetAt := l.allow(clientIPFromRequest(r))

		resetIn := int(math.Ceil(resetAt.Sub(l.now()).Seconds()))
		w.Header().Set("RateLimit-Limit", strconv.Itoa(l.max))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(resetIn))

		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(resetIn))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"status":  http.StatusTooManyRequests,
				"message": rateLimitMessage,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
