package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/livelihood-backend/api/responses"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

// Credential payloads are tiny; anything larger is not worth buffering.
const maxCredentialBody = 16 << 10

// AuthRateLimitPolicy throttles one credential endpoint by client address
// and by target email. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int64
	emailLimit int64
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: int64(ipLimit), emailLimit: int64(emailLimit)}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// AuthRateLimit applies the policy before the body reaches the handler.
// Unlike RateLimit it fails closed: a credential endpoint never runs
// unthrottled. Emails are hashed before they become part of a key.
func AuthRateLimit(policy AuthRateLimitPolicy, l limiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			type bucket struct {
				dimension string
				scope     string
				limit     int64
			}
			var buckets []bucket
			if policy.ipLimit > 0 {
				if ip := clientIP(r); ip != "" {
					buckets = append(buckets, bucket{"ip", policy.name + ":ip:" + ip, policy.ipLimit})
				}
			}
			if policy.emailLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := emailFromBody(body); email != "" {
					buckets = append(buckets, bucket{"email", policy.name + ":email:" + hashEmail(email), policy.emailLimit})
				}
			}

			for _, b := range buckets {
				state, err := l.Allow(ctx, b.scope, b.limit, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if state.Allowed() {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":    policy.name,
						"dimension": b.dimension,
						"attempts":  state.Count,
						"limit":     state.Limit,
					}), "auth.rate_limit.blocked")
				}
				writeThrottled(ctx, nil, w, state, b.dimension, "too many attempts, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:16])
}
