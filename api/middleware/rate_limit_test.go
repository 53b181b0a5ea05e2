package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/google/uuid"
)

func TestRateLimitKeysByUser(t *testing.T) {
	l := newCountingLimiter()
	handler := RateLimit(l, 2, time.Minute, nil)(okHandler())
	actor := authz.Actor{ID: uuid.New(), Role: enums.RoleBeneficiary}

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
		req = req.WithContext(WithActor(req.Context(), actor))
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", last.Code)
	}
	if last.Header().Get("X-RateLimit-Remaining") != "0" || last.Header().Get("Retry-After") != "42" {
		t.Fatalf("unexpected headers %v", last.Header())
	}
	if _, ok := l.counts["api:user:"+actor.ID.String()]; !ok {
		t.Fatalf("expected user scoped key, got %v", l.counts)
	}

	anon := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
	anon.RemoteAddr = "198.51.100.4:4000"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, anon)
	if resp.Code != http.StatusOK {
		t.Fatalf("anonymous caller should have its own budget, got %d", resp.Code)
	}
	if resp.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("expected remaining 1 got %q", resp.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	l := newCountingLimiter()
	l.err = errors.New("redis down")
	handler := RateLimit(l, 1, time.Minute, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pass-through got %d", resp.Code)
	}
}
