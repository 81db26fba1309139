package config

const EnvPrefix = "LABSTOCK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

const (
	EnvAppEnv        = "LABSTOCK_APP_ENV"
	EnvPort          = "LABSTOCK_APP_PORT"
	EnvLogLevel      = "LABSTOCK_LOG_LEVEL"
	EnvCORSOrigins   = "LABSTOCK_CORS_ORIGINS"
	EnvDBDriver      = "LABSTOCK_DB_DRIVER"
	EnvDBDSN         = "LABSTOCK_DB_DSN"
	EnvDBSQLitePath  = "LABSTOCK_DB_SQLITE_PATH"
	EnvDBHost        = "LABSTOCK_DB_HOST"
	EnvDBPort        = "LABSTOCK_DB_PORT"
	EnvDBUser        = "LABSTOCK_DB_USER"
	EnvDBPassword    = "LABSTOCK_DB_PASSWORD"
	EnvDBName        = "LABSTOCK_DB_NAME"
	EnvDBLock        = "LABSTOCK_DB_LOCK_TIMEOUT"
	EnvDBRetryMax    = "LABSTOCK_DB_RETRY_MAX"
	EnvRedisURL      = "LABSTOCK_REDIS_URL"
	EnvStrictRelease = "LABSTOCK_ALLOC_STRICT_RELEASE"
	EnvOutboxStream  = "LABSTOCK_OUTBOX_STREAM"
)

var postgresDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
