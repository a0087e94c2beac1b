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
	Paystack     PaystackConfig
	Checkout     CheckoutConfig
	Settlement   SettlementConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	Supabase     SupabaseConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	if err := cfg.App.validateBaseURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"R2BLAZE_APP_ENV" required:"true"`
	Port         string `envconfig:"R2BLAZE_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"R2BLAZE_APP_BASE_URL" required:"true"`
	LogLevel     string `envconfig:"R2BLAZE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"R2BLAZE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"R2BLAZE_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

func (a *AppConfig) validateBaseURL() error {
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	u, err := url.Parse(a.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url, got %q", EnvAppBaseURL, a.BaseURL)
	}
	return nil
}

type ServiceConfig struct {
	Kind string `envconfig:"R2BLAZE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"R2BLAZE_DB_DSN"`
	Driver string `envconfig:"R2BLAZE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"R2BLAZE_DB_HOST"`
	LegacyPort     int    `envconfig:"R2BLAZE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"R2BLAZE_DB_USER"`
	LegacyPassword string `envconfig:"R2BLAZE_DB_PASSWORD"`
	LegacyName     string `envconfig:"R2BLAZE_DB_NAME"`
	LegacySSLMode  string `envconfig:"R2BLAZE_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"R2BLAZE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"R2BLAZE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"R2BLAZE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"R2BLAZE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"R2BLAZE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"R2BLAZE_REDIS_URL"`
	Address      string        `envconfig:"R2BLAZE_REDIS_ADDR"`
	Password     string        `envconfig:"R2BLAZE_REDIS_PASSWORD"`
	DB           int           `envconfig:"R2BLAZE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"R2BLAZE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"R2BLAZE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"R2BLAZE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"R2BLAZE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"R2BLAZE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// PaystackConfig carries the processor credentials. The secret key both
// authenticates outbound calls and signs inbound notifications.
type PaystackConfig struct {
	SecretKey    string        `envconfig:"R2BLAZE_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL      string        `envconfig:"R2BLAZE_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Currency     string        `envconfig:"R2BLAZE_PAYSTACK_CURRENCY" default:"NGN"`
	Timeout      time.Duration `envconfig:"R2BLAZE_PAYSTACK_TIMEOUT" default:"10s"`
	CallbackPath string        `envconfig:"R2BLAZE_PAYSTACK_CALLBACK_PATH" default:"/checkout/success"`
}

type CheckoutConfig struct {
	ReferencePrefix string `envconfig:"R2BLAZE_CHECKOUT_REFERENCE_PREFIX" default:"r2b"`
	MinAmountMinor  int64  `envconfig:"R2BLAZE_CHECKOUT_MIN_AMOUNT_MINOR" default:"100"`
	SupportURL      string `envconfig:"R2BLAZE_CHECKOUT_SUPPORT_URL" default:"https://wa.me/2347018239270"`
}

type SettlementConfig struct {
	PollInterval      time.Duration `envconfig:"R2BLAZE_SETTLEMENT_POLL_INTERVAL" default:"3s"`
	PollAttempts      int           `envconfig:"R2BLAZE_SETTLEMENT_POLL_ATTEMPTS" default:"10"`
	ReconcileAfter    time.Duration `envconfig:"R2BLAZE_SETTLEMENT_RECONCILE_AFTER" default:"15m"`
	ExpireAfter       time.Duration `envconfig:"R2BLAZE_SETTLEMENT_EXPIRE_AFTER" default:"24h"`
	ReconcileBatch    int           `envconfig:"R2BLAZE_SETTLEMENT_RECONCILE_BATCH" default:"50"`
	NotifyReadTimeout time.Duration `envconfig:"R2BLAZE_SETTLEMENT_NOTIFY_READ_TIMEOUT" default:"5s"`
	NotifyDedupTTL    time.Duration `envconfig:"R2BLAZE_SETTLEMENT_NOTIFY_DEDUP_TTL" default:"24h"`
	SweepInterval     time.Duration `envconfig:"R2BLAZE_SETTLEMENT_SWEEP_INTERVAL" default:"5m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"R2BLAZE_ALLOWED_ORIGINS" default:"*"`
}

type RateLimitConfig struct {
	Window             time.Duration `envconfig:"R2BLAZE_RATE_LIMIT_WINDOW" default:"1m"`
	VerifyIPLimit      int           `envconfig:"R2BLAZE_RATE_LIMIT_VERIFY_IP_LIMIT" default:"60"`
	InitiateIPLimit    int           `envconfig:"R2BLAZE_RATE_LIMIT_INITIATE_IP_LIMIT" default:"10"`
	InitiateEmailLimit int           `envconfig:"R2BLAZE_RATE_LIMIT_INITIATE_EMAIL_LIMIT" default:"5"`
	TrustedProxyHops   int           `envconfig:"R2BLAZE_RATE_LIMIT_TRUSTED_PROXY_HOPS" default:"0"`
}

// SupabaseConfig validates the admin session tokens issued by Supabase Auth.
type SupabaseConfig struct {
	JWTSecret   string `envconfig:"R2BLAZE_SUPABASE_JWT_SECRET"`
	JWTAudience string `envconfig:"R2BLAZE_SUPABASE_JWT_AUDIENCE" default:"authenticated"`
	AdminRole   string `envconfig:"R2BLAZE_SUPABASE_ADMIN_ROLE" default:"admin"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"R2BLAZE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"R2BLAZE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"R2BLAZE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"R2BLAZE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentsTopic string `envconfig:"R2BLAZE_PUBSUB_PAYMENTS_TOPIC" default:"r2b-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"R2BLAZE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"R2BLAZE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"R2BLAZE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"R2BLAZE_OUTBOX_RETENTION" default:"720h"`
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

// AllowsAnyOrigin reports whether the wildcard origin is configured.
func (c CORSConfig) AllowsAnyOrigin() bool {
	for _, origin := range c.Origins() {
		if origin == "*" {
			return true
		}
	}
	return false
}

// Origins returns the trimmed, non-empty origins.
func (c CORSConfig) Origins() []string {
	out := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
