package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Emission     EmissionConfig
	Retry        RetryConfig
	Webhook      WebhookConfig
	Stripe       StripeConfig
	Square       SquareConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYENGINE_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYENGINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAYENGINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYENGINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PAYENGINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PAYENGINE_DB_DSN"`
	Driver string `envconfig:"PAYENGINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PAYENGINE_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYENGINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYENGINE_DB_USER"`
	LegacyPassword string `envconfig:"PAYENGINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYENGINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYENGINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYENGINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYENGINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYENGINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYENGINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYENGINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAYENGINE_REDIS_ADDR"`
	Password     string        `envconfig:"PAYENGINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYENGINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYENGINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYENGINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYENGINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYENGINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYENGINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PAYENGINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PAYENGINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PAYENGINE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PAYENGINE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PAYENGINE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PAYENGINE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"PAYENGINE_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"PAYENGINE_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
	AlertTopic         string `envconfig:"PAYENGINE_PUBSUB_ALERT_TOPIC"`
}

// EmissionConfig tunes the emission coordinator loop.
type EmissionConfig struct {
	TickInterval  time.Duration `envconfig:"PAYENGINE_EMISSION_TICK_INTERVAL" default:"1m"`
	BatchSize     int           `envconfig:"PAYENGINE_EMISSION_BATCH_SIZE" default:"100"`
	ChargeTimeout time.Duration `envconfig:"PAYENGINE_EMISSION_CHARGE_TIMEOUT" default:"30s"`
	// ClaimLease bounds how long a claimed schedule may sit in PROCESSING
	// before another worker may reclaim it.
	ClaimLease time.Duration `envconfig:"PAYENGINE_EMISSION_CLAIM_LEASE" default:"10m"`
}

// RetryConfig parameterizes the backoff curve applied to retryable
// payment failures.
type RetryConfig struct {
	MaxRetries     int           `envconfig:"PAYENGINE_RETRY_MAX_RETRIES" default:"3"`
	BackoffBase    time.Duration `envconfig:"PAYENGINE_RETRY_BACKOFF_BASE" default:"4h"`
	BackoffCap     time.Duration `envconfig:"PAYENGINE_RETRY_BACKOFF_CAP" default:"72h"`
	JitterFraction float64       `envconfig:"PAYENGINE_RETRY_JITTER_FRACTION" default:"0.1"`
}

type WebhookConfig struct {
	SignatureKey string        `envconfig:"PAYENGINE_WEBHOOK_SIGNATURE_KEY" required:"true"`
	DuplicateTTL time.Duration `envconfig:"PAYENGINE_WEBHOOK_DUPLICATE_TTL" default:"24h"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PAYENGINE_STRIPE_API_KEY"`
	Secret string `envconfig:"PAYENGINE_STRIPE_SECRET"`
	Env    string `envconfig:"PAYENGINE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"PAYENGINE_SQUARE_ACCESS_TOKEN"`
	Environment string `envconfig:"PAYENGINE_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"PAYENGINE_SQUARE_LOCATION_ID"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PAYENGINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PAYENGINE_AUTO_MIGRATE" default:"false"`
	SandboxPSP  bool `envconfig:"PAYENGINE_FEATURE_SANDBOX_PSP" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
