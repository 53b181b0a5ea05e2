package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

const localDevOrigin = "http://localhost:3000"

// CORS applies LIVELIHOOD_CORS_ORIGINS, falling back to the local dev server.
// Idempotency and request id headers are exposed so browser clients can
// detect replays and quote ids in support tickets.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{localDevOrigin}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, RequestIDHeader, "X-Requested-With"},
		ExposedHeaders:   []string{RequestIDHeader, ReplayedHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
