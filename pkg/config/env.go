package config

const EnvPrefix = "LIVELIHOOD"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Environment variable names referenced outside of struct tags.
const (
	EnvAppEnv                 = "LIVELIHOOD_APP_ENV"
	EnvPort                   = "LIVELIHOOD_APP_PORT"
	EnvDBDSN                  = "LIVELIHOOD_DB_DSN"
	EnvDBDriver               = "LIVELIHOOD_DB_DRIVER"
	EnvDBHost                 = "LIVELIHOOD_DB_HOST"
	EnvDBPort                 = "LIVELIHOOD_DB_PORT"
	EnvDBUser                 = "LIVELIHOOD_DB_USER"
	EnvDBPassword             = "LIVELIHOOD_DB_PASSWORD"
	EnvDBName                 = "LIVELIHOOD_DB_NAME"
	EnvRedisURL               = "LIVELIHOOD_REDIS_URL"
	EnvJWTSecret              = "LIVELIHOOD_JWT_SECRET"
	EnvJWTIssuer              = "LIVELIHOOD_JWT_ISSUER"
	EnvJWTExpMins             = "LIVELIHOOD_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "LIVELIHOOD_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "LIVELIHOOD_GCP_PROJECT_ID"
	EnvPubSubNotification     = "LIVELIHOOD_PUBSUB_NOTIFICATION_TOPIC"
	EnvFederatedAudience      = "LIVELIHOOD_FEDERATED_AUDIENCE"
	EnvFirstSuperuser         = "LIVELIHOOD_FIRST_SUPERUSER"
	EnvFirstSuperuserPassword = "LIVELIHOOD_FIRST_SUPERUSER_PASSWORD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
