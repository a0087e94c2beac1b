package config

const EnvPrefix = "R2BLAZE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "R2BLAZE_APP_ENV"
	EnvPort       = "R2BLAZE_APP_PORT"
	EnvAppBaseURL = "R2BLAZE_APP_BASE_URL"

	EnvDBDSN  = "R2BLAZE_DB_DSN"
	EnvDBHost = "R2BLAZE_DB_HOST"
	EnvDBUser = "R2BLAZE_DB_USER"
	EnvDBName = "R2BLAZE_DB_NAME"

	EnvRedisURL = "R2BLAZE_REDIS_URL"

	EnvPaystackSecretKey = "R2BLAZE_PAYSTACK_SECRET_KEY"
	EnvPaystackBaseURL   = "R2BLAZE_PAYSTACK_BASE_URL"

	EnvAllowedOrigins = "R2BLAZE_ALLOWED_ORIGINS"

	EnvSettlementPollInterval = "R2BLAZE_SETTLEMENT_POLL_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
