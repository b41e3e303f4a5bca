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
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
	Webhook      WebhookConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Breaker      BreakerConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDERFLOW_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ORDERFLOW_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ORDERFLOW_LOG_WARN_STACK" default:"false"`

	// Comma separated; empty allows only local development.
	CORSOrigins []string `envconfig:"ORDERFLOW_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERFLOW_DB_DSN"`
	Driver string `envconfig:"ORDERFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERFLOW_DB_USER"`
	LegacyPassword string `envconfig:"ORDERFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"ORDERFLOW_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERFLOW_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"ORDERFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ORDERFLOW_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig controls money handling and the abandoned checkout deadline.
type CheckoutConfig struct {
	Currency       string        `envconfig:"ORDERFLOW_CHECKOUT_CURRENCY" default:"usd"`
	PaymentTimeout time.Duration `envconfig:"ORDERFLOW_CHECKOUT_PAYMENT_TIMEOUT" default:"30m"`
	SweepBatchSize int           `envconfig:"ORDERFLOW_CHECKOUT_SWEEP_BATCH_SIZE" default:"100"`
}

func (c CheckoutConfig) validate() error {
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvPaymentTimeout)
	}
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("%s is required", EnvCurrency)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ORDERFLOW_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"ORDERFLOW_CRON_LOCK_TTL" default:"5m"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"ORDERFLOW_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERFLOW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ORDERFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LifecycleTopic string `envconfig:"ORDERFLOW_PUBSUB_LIFECYCLE_TOPIC" default:"orderflow-lifecycle-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ORDERFLOW_STRIPE_API_KEY"`
	Secret string `envconfig:"ORDERFLOW_STRIPE_SECRET"`
	Env    string `envconfig:"ORDERFLOW_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// BreakerConfig tunes the circuit breaker guarding payment gateway calls.
type BreakerConfig struct {
	MaxRequests      uint32        `envconfig:"ORDERFLOW_BREAKER_MAX_REQUESTS" default:"3"`
	Interval         time.Duration `envconfig:"ORDERFLOW_BREAKER_INTERVAL" default:"1m"`
	Timeout          time.Duration `envconfig:"ORDERFLOW_BREAKER_TIMEOUT" default:"30s"`
	FailureThreshold uint32        `envconfig:"ORDERFLOW_BREAKER_FAILURE_THRESHOLD" default:"5"`
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
