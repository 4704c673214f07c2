package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "WEBSHOP_DB_DSN"
	EnvDBHost = "WEBSHOP_DB_HOST"
	EnvDBUser = "WEBSHOP_DB_USER"
	EnvDBName = "WEBSHOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	ERP      ERPConfig
	Cart     CartConfig
	Punchout PunchoutConfig
	Upload   UploadConfig
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
	Env          string `envconfig:"WEBSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"WEBSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WEBSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WEBSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"WEBSHOP_DB_DSN"`

	// UseSQLite selects the embedded fallback store when no Postgres is
	// reachable at startup. The choice is made once; callers never see it.
	UseSQLite  bool   `envconfig:"WEBSHOP_USE_SQLITE" default:"false"`
	SQLitePath string `envconfig:"WEBSHOP_SQLITE_PATH" default:"webshop.db"`

	LegacyHost     string `envconfig:"WEBSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"WEBSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WEBSHOP_DB_USER"`
	LegacyPassword string `envconfig:"WEBSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"WEBSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"WEBSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WEBSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WEBSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WEBSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WEBSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WEBSHOP_REDIS_URL"`
	Address      string        `envconfig:"WEBSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"WEBSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"WEBSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WEBSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WEBSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WEBSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WEBSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WEBSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ERPConfig addresses the remote order-creation service.
type ERPConfig struct {
	BaseURL        string        `envconfig:"WEBSHOP_ERP_BASE_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"WEBSHOP_ERP_REQUEST_TIMEOUT" default:"30s"`
	UploadTimeout  time.Duration `envconfig:"WEBSHOP_ERP_UPLOAD_TIMEOUT" default:"2m"`
}

type CartConfig struct {
	// DebounceWindow is how long rapid mutations coalesce before one
	// physical document write happens.
	DebounceWindow time.Duration `envconfig:"WEBSHOP_CART_DEBOUNCE_WINDOW" default:"150ms"`
}

type PunchoutConfig struct {
	// LaunchDocURL points at the intermediary document loaded into the
	// catalog window; it performs the actual cross-site submission.
	LaunchDocURL  string        `envconfig:"WEBSHOP_PUNCHOUT_LAUNCH_DOC_URL" default:"/punchout/launch.html"`
	AllowedOrigin string        `envconfig:"WEBSHOP_PUNCHOUT_ALLOWED_ORIGIN" required:"true"`
	ReadyTimeout  time.Duration `envconfig:"WEBSHOP_PUNCHOUT_READY_TIMEOUT" default:"10s"`
	PingDelay     time.Duration `envconfig:"WEBSHOP_PUNCHOUT_PING_DELAY" default:"1s"`
	SessionTTL    time.Duration `envconfig:"WEBSHOP_PUNCHOUT_SESSION_TTL" default:"12h"`
}

type UploadConfig struct {
	MaxUploadMB int `envconfig:"WEBSHOP_MAX_UPLOAD_MB" default:"50"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.UseSQLite {
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
