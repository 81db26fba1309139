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
	Allocation   AllocationConfig
	Import       ImportConfig
	FeatureFlags FeatureFlagsConfig
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
	if err := cfg.App.checkCORS(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LABSTOCK_APP_ENV" required:"true"`
	Port         string `envconfig:"LABSTOCK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LABSTOCK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LABSTOCK_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow-list for browser clients.
	CORSOrigins []string `envconfig:"LABSTOCK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// checkCORS refuses a wildcard origin in prod.
func (a AppConfig) checkCORS() error {
	if !a.IsProd() {
		return nil
	}
	for _, origin := range a.CORSOrigins {
		if strings.TrimSpace(origin) == "*" {
			return fmt.Errorf("%s must list explicit origins when %s=%s", EnvCORSOrigins, EnvAppEnv, AppEnvProd)
		}
	}
	return nil
}

type ServiceConfig struct {
	Kind string `envconfig:"LABSTOCK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	Driver     string `envconfig:"LABSTOCK_DB_DRIVER" default:"sqlite"`
	DSN        string `envconfig:"LABSTOCK_DB_DSN"`
	SQLitePath string `envconfig:"LABSTOCK_DB_SQLITE_PATH" default:"labstock.db"`

	Host     string `envconfig:"LABSTOCK_DB_HOST"`
	Port     int    `envconfig:"LABSTOCK_DB_PORT" default:"5432"`
	User     string `envconfig:"LABSTOCK_DB_USER"`
	Password string `envconfig:"LABSTOCK_DB_PASSWORD"`
	Name     string `envconfig:"LABSTOCK_DB_NAME"`
	SSLMode  string `envconfig:"LABSTOCK_DB_SSLMODE" default:"disable"`

	// LockTimeout bounds how long a writer waits for the store's write lock
	// before the operation fails with RESOURCE_BUSY.
	LockTimeout time.Duration `envconfig:"LABSTOCK_DB_LOCK_TIMEOUT" default:"5s"`
	RetryMax    int           `envconfig:"LABSTOCK_DB_RETRY_MAX" default:"3"`
	RetryBase   time.Duration `envconfig:"LABSTOCK_DB_RETRY_BASE" default:"50ms"`

	MaxOpenConns    int           `envconfig:"LABSTOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LABSTOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LABSTOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LABSTOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the embedded single-file store is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"LABSTOCK_REDIS_URL"`
	Address      string        `envconfig:"LABSTOCK_REDIS_ADDR"`
	Password     string        `envconfig:"LABSTOCK_REDIS_PASSWORD"`
	DB           int           `envconfig:"LABSTOCK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LABSTOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LABSTOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LABSTOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LABSTOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LABSTOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type AllocationConfig struct {
	// StrictRelease limits release to allocations that are still reserved.
	StrictRelease bool `envconfig:"LABSTOCK_ALLOC_STRICT_RELEASE" default:"false"`
}

type ImportConfig struct {
	MaxRows int `envconfig:"LABSTOCK_IMPORT_MAX_ROWS" default:"5000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LABSTOCK_AUTO_MIGRATE" default:"true"`
	Idempotency bool `envconfig:"LABSTOCK_FEATURE_IDEMPOTENCY" default:"true"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"LABSTOCK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"LABSTOCK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"LABSTOCK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Stream         string `envconfig:"LABSTOCK_OUTBOX_STREAM" default:"events"`
	StreamMaxLen   int64  `envconfig:"LABSTOCK_OUTBOX_STREAM_MAXLEN" default:"100000"`
	RetentionDays  int    `envconfig:"LABSTOCK_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(db.Driver)) {
	case DBDriverSQLite:
		if strings.TrimSpace(db.SQLitePath) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvDBSQLitePath, EnvDBDriver, DBDriverSQLite)
		}
		db.DSN = db.SQLitePath
		return nil
	case DBDriverPostgres:
	default:
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, db.Driver)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range postgresDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
