package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	Marketplace    MarketplaceConfig
	Reconciliation ReconciliationConfig
	Cron           CronConfig
	Eventing       EventingConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Outbox         OutboxConfig
	HTTP           HTTPConfig
	Retention      RetentionConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Marketplace.DefaultCommission(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRADEPOST_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADEPOST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRADEPOST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADEPOST_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"TRADEPOST_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRADEPOST_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics from background workers; empty disables it.
	MetricsAddr string `envconfig:"TRADEPOST_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADEPOST_DB_DSN"`
	Driver string `envconfig:"TRADEPOST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADEPOST_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADEPOST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADEPOST_DB_USER"`
	LegacyPassword string `envconfig:"TRADEPOST_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADEPOST_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADEPOST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADEPOST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADEPOST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADEPOST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADEPOST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TRADEPOST_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADEPOST_REDIS_URL"`
	Address      string        `envconfig:"TRADEPOST_REDIS_ADDR"`
	Password     string        `envconfig:"TRADEPOST_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADEPOST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADEPOST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADEPOST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADEPOST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADEPOST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADEPOST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRADEPOST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRADEPOST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRADEPOST_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRADEPOST_AUTO_MIGRATE" default:"false"`
}

// MarketplaceConfig carries the platform-wide commercial settings.
type MarketplaceConfig struct {
	DefaultCommissionPercent string `envconfig:"TRADEPOST_DEFAULT_COMMISSION_PERCENT" default:"10"`
}

// DefaultCommission parses the configured fallback commission percent.
func (m MarketplaceConfig) DefaultCommission() (decimal.Decimal, error) {
	raw := strings.TrimSpace(m.DefaultCommissionPercent)
	if raw == "" {
		return decimal.NewFromInt(DefaultCommissionPercent), nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvDefaultCommission, err)
	}
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 100", EnvDefaultCommission)
	}
	return value, nil
}

type ReconciliationConfig struct {
	Interval  time.Duration `envconfig:"TRADEPOST_RECONCILE_INTERVAL" default:"5m"`
	BatchSize int           `envconfig:"TRADEPOST_RECONCILE_BATCH_SIZE" default:"200"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"TRADEPOST_CRON_INTERVAL" default:"5m"`
	JobTimeout time.Duration `envconfig:"TRADEPOST_CRON_JOB_TIMEOUT" default:"4m"`
	LockTTL    time.Duration `envconfig:"TRADEPOST_CRON_LOCK_TTL" default:"10m"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TRADEPOST_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"TRADEPOST_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"TRADEPOST_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"TRADEPOST_PUBSUB_DOMAIN_TOPIC" default:"tp-domain-events"`
	NotificationTopic        string `envconfig:"TRADEPOST_PUBSUB_NOTIFICATION_TOPIC" default:"tp-notification-events"`
	NotificationSubscription string `envconfig:"TRADEPOST_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"tp-notification-events-sub"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRADEPOST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRADEPOST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRADEPOST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// HTTPConfig holds the API surface knobs.
type HTTPConfig struct {
	AllowedOrigins    []string      `envconfig:"TRADEPOST_HTTP_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	RateLimitWindow   time.Duration `envconfig:"TRADEPOST_HTTP_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerUser  int           `envconfig:"TRADEPOST_HTTP_RATE_LIMIT_PER_USER" default:"120"`
	RateLimitPerIP    int           `envconfig:"TRADEPOST_HTTP_RATE_LIMIT_PER_IP" default:"300"`
	ShutdownTimeout   time.Duration `envconfig:"TRADEPOST_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	ReadHeaderTimeout time.Duration `envconfig:"TRADEPOST_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
}

type RetentionConfig struct {
	OutboxDays       int `envconfig:"TRADEPOST_RETENTION_OUTBOX_DAYS" default:"30"`
	NotificationDays int `envconfig:"TRADEPOST_RETENTION_NOTIFICATION_DAYS" default:"90"`
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
