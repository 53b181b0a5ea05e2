package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Federated     FederatedConfig
	Bootstrap     BootstrapConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `envconfig:"LIVELIHOOD_APP_ENV" required:"true"`
	Port           string   `envconfig:"LIVELIHOOD_APP_PORT" required:"true"`
	LogLevel       string   `envconfig:"LIVELIHOOD_LOG_LEVEL" default:"info"`
	LogFormat      string   `envconfig:"LIVELIHOOD_LOG_FORMAT" default:"json"`
	LogWarnStack   bool     `envconfig:"LIVELIHOOD_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"LIVELIHOOD_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LIVELIHOOD_DB_DSN"`
	Driver string `envconfig:"LIVELIHOOD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIVELIHOOD_DB_HOST"`
	LegacyPort     int    `envconfig:"LIVELIHOOD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIVELIHOOD_DB_USER"`
	LegacyPassword string `envconfig:"LIVELIHOOD_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIVELIHOOD_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIVELIHOOD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIVELIHOOD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIVELIHOOD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIVELIHOOD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIVELIHOOD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LIVELIHOOD_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"LIVELIHOOD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIVELIHOOD_REDIS_ADDR"`
	Password     string        `envconfig:"LIVELIHOOD_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIVELIHOOD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIVELIHOOD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIVELIHOOD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIVELIHOOD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIVELIHOOD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIVELIHOOD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LIVELIHOOD_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LIVELIHOOD_JWT_ISSUER" default:"mswd-livelihood"`
	ExpirationMinutes      int    `envconfig:"LIVELIHOOD_JWT_EXPIRATION_MINUTES" default:"11520"`
	RefreshTokenTTLMinutes int    `envconfig:"LIVELIHOOD_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// AccessTokenTTL returns the lifetime of minted access tokens.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LIVELIHOOD_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LIVELIHOOD_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LIVELIHOOD_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LIVELIHOOD_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LIVELIHOOD_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LIVELIHOOD_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LIVELIHOOD_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LIVELIHOOD_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LIVELIHOOD_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LIVELIHOOD_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LIVELIHOOD_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// RateLimitConfig bounds authenticated API traffic per user (or per IP when anonymous).
type RateLimitConfig struct {
	Requests int64         `envconfig:"LIVELIHOOD_RATE_LIMIT_REQUESTS" default:"300"`
	Window   time.Duration `envconfig:"LIVELIHOOD_RATE_LIMIT_WINDOW" default:"1m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"LIVELIHOOD_AUTO_MIGRATE" default:"false"`
	FederatedLogin    bool `envconfig:"LIVELIHOOD_FEATURE_FEDERATED_LOGIN" default:"false"`
	EmailDispatch     bool `envconfig:"LIVELIHOOD_FEATURE_EMAIL_DISPATCH" default:"false"`
	PublicRegistering bool `envconfig:"LIVELIHOOD_FEATURE_PUBLIC_REGISTRATION" default:"true"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LIVELIHOOD_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string        `envconfig:"LIVELIHOOD_PUBSUB_NOTIFICATION_TOPIC" default:"livelihood-notification-emails"`
	PublishTimeout    time.Duration `envconfig:"LIVELIHOOD_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
}

type FederatedConfig struct {
	// Audience is the OAuth client id that Google ID tokens must be minted for.
	Audience string `envconfig:"LIVELIHOOD_FEDERATED_AUDIENCE"`
}

type BootstrapConfig struct {
	SuperAdminEmail    string `envconfig:"LIVELIHOOD_FIRST_SUPERUSER" default:"admin@mswd.gov.ph"`
	SuperAdminPassword string `envconfig:"LIVELIHOOD_FIRST_SUPERUSER_PASSWORD"`
}

// Enabled reports whether a first super admin should be provisioned on boot.
func (b BootstrapConfig) Enabled() bool {
	return strings.TrimSpace(b.SuperAdminEmail) != "" && b.SuperAdminPassword != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
