package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/internal/authz"
)

// principal is what the auth middleware learned about the caller.
type principal struct {
	actor    authz.Actor
	accessID string
}

type principalKey struct{}

func principalFrom(ctx context.Context) (principal, bool) {
	if ctx == nil {
		return principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

func withPrincipal(ctx context.Context, p principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// UserIDFromContext is empty for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.ID.String()
	}
	return ""
}

// AccessIDFromContext returns the jti of the access token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string {
	p, _ := principalFrom(ctx)
	return p.accessID
}

// ActorFromContext reports the authenticated caller; ok is false for anonymous requests.
func ActorFromContext(ctx context.Context) (authz.Actor, bool) {
	p, ok := principalFrom(ctx)
	if !ok || p.actor.ID == uuid.Nil || !p.actor.Role.IsValid() {
		return authz.Actor{}, false
	}
	return p.actor, true
}

// WithActor attaches a caller without a session, as tests and internal callers need.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	p, _ := principalFrom(ctx)
	p.actor = actor
	return withPrincipal(ctx, p)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	p, _ := principalFrom(ctx)
	p.accessID = accessID
	return withPrincipal(ctx, p)
}
