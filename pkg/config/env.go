package config

// EnvPrefix is empty because every field tag carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv         = "ORDERFLOW_APP_ENV"
	EnvPort           = "ORDERFLOW_APP_PORT"
	EnvLogLevel       = "ORDERFLOW_LOG_LEVEL"
	EnvLogFormat      = "ORDERFLOW_LOG_FORMAT"
	EnvDBDSN          = "ORDERFLOW_DB_DSN"
	EnvDBDriver       = "ORDERFLOW_DB_DRIVER"
	EnvDBHost         = "ORDERFLOW_DB_HOST"
	EnvDBPort         = "ORDERFLOW_DB_PORT"
	EnvDBUser         = "ORDERFLOW_DB_USER"
	EnvDBPassword     = "ORDERFLOW_DB_PASSWORD"
	EnvDBName         = "ORDERFLOW_DB_NAME"
	EnvDBSSLMode      = "ORDERFLOW_DB_SSLMODE"
	EnvRedisURL       = "ORDERFLOW_REDIS_URL"
	EnvCurrency       = "ORDERFLOW_CHECKOUT_CURRENCY"
	EnvPaymentTimeout = "ORDERFLOW_CHECKOUT_PAYMENT_TIMEOUT"
	EnvCronInterval   = "ORDERFLOW_CRON_INTERVAL"
	EnvStripeAPIKey   = "ORDERFLOW_STRIPE_API_KEY"
	EnvStripeSecret   = "ORDERFLOW_STRIPE_SECRET"
	EnvStripeEnv      = "ORDERFLOW_STRIPE_ENV"
	EnvGCPProjectID   = "ORDERFLOW_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
