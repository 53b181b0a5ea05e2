package config

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

const minProdSecretBytes = 32

// validate reports every cross-field problem at once so an operator can fix
// the environment in one pass.
func (c *Config) validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if !c.App.IsDev() && !c.App.IsProd() {
		add("%s must be %q or %q, got %q", EnvAppEnv, AppEnvDev, AppEnvProd, c.App.Env)
	}
	switch strings.ToLower(c.App.LogFormat) {
	case "json", "console":
	default:
		add("LIVELIHOOD_LOG_FORMAT must be json or console, got %q", c.App.LogFormat)
	}
	if c.App.IsProd() && slices.Contains(c.App.AllowedOrigins, "*") {
		add("wildcard CORS origin is not allowed in prod with credentialed requests")
	}

	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		add("%s must be %q or %q, got %q", EnvDBDriver, DBDriverPostgres, DBDriverSQLite, c.DB.Driver)
	}
	if c.App.IsProd() && c.DB.IsSQLite() {
		add("sqlite is for local development only")
	}

	if c.JWT.AccessTokenTTL() <= 0 {
		add("%s must be positive", EnvJWTExpMins)
	}
	if c.JWT.RefreshTokenTTL() <= c.JWT.AccessTokenTTL() {
		add("%s must exceed %s", EnvRefreshTokenTTLMinutes, EnvJWTExpMins)
	}
	if c.App.IsProd() && len(c.JWT.Secret) < minProdSecretBytes {
		add("%s must be at least %d bytes in prod", EnvJWTSecret, minProdSecretBytes)
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		add("rate limit requests and window must be positive")
	}
	if c.FeatureFlags.FederatedLogin && strings.TrimSpace(c.Federated.Audience) == "" {
		add("%s is required when federated login is enabled", EnvFederatedAudience)
	}
	if c.FeatureFlags.EmailDispatch && strings.TrimSpace(c.PubSub.NotificationTopic) == "" {
		add("%s is required when email dispatch is enabled", EnvPubSubNotification)
	}
	return errs
}
