package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

const providerGoogle = "google"

var googleIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// Identity is the verified subject behind a federated assertion.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}

// IdentityVerifier checks an assertion and returns the identity it proves.
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (*Identity, error)
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier validates Google ID tokens against the configured OAuth client id.
type GoogleVerifier struct {
	audience string
	validate validateFunc
}

// NewGoogleVerifier builds a verifier for tokens minted for audience.
func NewGoogleVerifier(audience string) (*GoogleVerifier, error) {
	if strings.TrimSpace(audience) == "" {
		return nil, fmt.Errorf("federated audience is required")
	}
	return &GoogleVerifier{audience: audience, validate: idtoken.Validate}, nil
}

func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (*Identity, error) {
	if strings.TrimSpace(assertion) == "" {
		return nil, errors.New("empty id token")
	}
	payload, err := v.validate(ctx, assertion, v.audience)
	if err != nil {
		return nil, fmt.Errorf("validate id token: %w", err)
	}
	if _, ok := googleIssuers[payload.Issuer]; !ok {
		return nil, fmt.Errorf("unexpected issuer %q", payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, errors.New("id token has no subject")
	}

	identity := &Identity{
		Provider:      providerGoogle,
		Subject:       payload.Subject,
		Email:         claimString(payload.Claims, "email"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
		GivenName:     claimString(payload.Claims, "given_name"),
		FamilyName:    claimString(payload.Claims, "family_name"),
	}
	if identity.Email == "" {
		return nil, errors.New("id token has no email")
	}
	return identity, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// email_verified arrives as a bool from Google but as a string from some proxies.
func claimBool(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}
