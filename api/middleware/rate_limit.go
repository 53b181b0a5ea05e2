package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/angelmondragon/livelihood-backend/api/responses"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/livelihood-backend/pkg/redis"
)

type limiter interface {
	Allow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
}

// RateLimit gives each caller a request budget per window: signed-in users
// by id, everyone else by client address. If the limiter is down the
// request goes through.
func RateLimit(l limiter, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := "api:ip:" + clientIP(r)
			if userID := UserIDFromContext(r.Context()); userID != "" {
				scope = "api:user:" + userID
			}

			state, err := l.Allow(r.Context(), scope, limit, window)
			if err != nil {
				logError(r.Context(), logg, "rate_limit.unavailable", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining(), 10))
			if !state.Allowed() {
				writeThrottled(r.Context(), logg, w, state, "api", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeThrottled answers 429 with Retry-After rounded up to whole seconds.
func writeThrottled(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, state pkgredis.Window, scope, msg string) {
	retry := int(math.Ceil(state.ResetIn.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	err := pkgerrors.New(pkgerrors.CodeRateLimit, msg).
		WithDetails(map[string]any{"scope": scope, "retry_after_seconds": retry})
	responses.WriteError(ctx, logg, w, err)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
