package config

const (
	EnvPrefix = "TRADEPOST"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DefaultCommissionPercent = 10

	EnvAppEnv            = "TRADEPOST_APP_ENV"
	EnvPort              = "TRADEPOST_APP_PORT"
	EnvDBDSN             = "TRADEPOST_DB_DSN"
	EnvDBHost            = "TRADEPOST_DB_HOST"
	EnvDBUser            = "TRADEPOST_DB_USER"
	EnvDBName            = "TRADEPOST_DB_NAME"
	EnvRedisURL          = "TRADEPOST_REDIS_URL"
	EnvJWTSecret         = "TRADEPOST_JWT_SECRET"
	EnvJWTIssuer         = "TRADEPOST_JWT_ISSUER"
	EnvJWTExpMins        = "TRADEPOST_JWT_EXPIRATION_MINUTES"
	EnvDefaultCommission = "TRADEPOST_DEFAULT_COMMISSION_PERCENT"
	EnvReconcileInterval = "TRADEPOST_RECONCILE_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
