package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/livelihood-backend/pkg/redis"
)

// countingLimiter keeps per-scope counters and reports a fixed reset.
type countingLimiter struct {
	mu      sync.Mutex
	counts  map[string]int64
	resetIn time.Duration
	err     error
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{counts: map[string]int64{}, resetIn: 42 * time.Second}
}

func (c *countingLimiter) Allow(_ context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error) {
	if c.err != nil {
		return pkgredis.Window{}, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[scope]++
	return pkgredis.Window{Count: c.counts[scope], Limit: limit, ResetIn: c.resetIn}, nil
}

func loginRequest(email, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = addr
	return req
}

func TestAuthRateLimitKeepsBodyForHandler(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)
	handler := AuthRateLimit(policy, newCountingLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"email":"tester@example.com"`) {
			t.Fatalf("handler lost the body: %s", body)
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("tester@example.com", "1.2.3.4:5678"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRateLimitEmailBucketIgnoresCaseAndAddress(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, newCountingLimiter(), nil)(okHandler())

	emails := []string{"blocked@example.com", "Blocked@Example.com ", "BLOCKED@example.com"}
	for i, email := range emails {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(email, "10.0.0."+string(rune('1'+i))+":1"))
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			var payload struct {
				Error struct {
					Code    string         `json:"code"`
					Details map[string]any `json:"details"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) || payload.Error.Details["scope"] != "email" {
				t.Fatalf("unexpected error payload %+v", payload.Error)
			}
		}
	}
}

func TestAuthRateLimitIPBucketSetsRetryAfter(t *testing.T) {
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, newCountingLimiter(), nil)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("foo@example.com", "5.6.7.8:1234"))
		if i == 1 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			if got := rec.Header().Get("Retry-After"); got != "42" {
				t.Fatalf("expected Retry-After 42, got %q", got)
			}
		}
	}
}

func TestAuthRateLimitFailsClosed(t *testing.T) {
	l := newCountingLimiter()
	l.err = errors.New("redis down")
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 5), l, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("a@example.com", "1.1.1.1:1"))
	if rec.Code < http.StatusInternalServerError {
		t.Fatalf("expected a 5xx when the limiter is down, got %d", rec.Code)
	}
}
