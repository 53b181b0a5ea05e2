package audit

import (
	"context"
	"strings"
)

type ctxKey struct{}

// RequestMeta is the client metadata copied onto each audit row.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches client metadata to the context for audit rows.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	meta.IPAddress = strings.TrimSpace(meta.IPAddress)
	meta.UserAgent = strings.TrimSpace(meta.UserAgent)
	if meta.IPAddress == "" && meta.UserAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, meta)
}

// RequestMetaFromContext extracts metadata if present.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(ctxKey{}).(RequestMeta)
	return meta, ok
}
