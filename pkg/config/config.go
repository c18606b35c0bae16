package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "mktbilling"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MKTBILLING_DB_DSN"
	EnvDBHost = "MKTBILLING_DB_HOST"
	EnvDBUser = "MKTBILLING_DB_USER"
	EnvDBName = "MKTBILLING_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	PayPal       PayPalConfig
	Charge       ChargeConfig
	Dispatch     DispatchConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"MKTBILLING_APP_ENV" required:"true"`
	Port         string `envconfig:"MKTBILLING_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MKTBILLING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MKTBILLING_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MKTBILLING_DB_DSN"`
	Driver string `envconfig:"MKTBILLING_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MKTBILLING_DB_HOST"`
	LegacyPort     int    `envconfig:"MKTBILLING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MKTBILLING_DB_USER"`
	LegacyPassword string `envconfig:"MKTBILLING_DB_PASSWORD"`
	LegacyName     string `envconfig:"MKTBILLING_DB_NAME"`
	LegacySSLMode  string `envconfig:"MKTBILLING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MKTBILLING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MKTBILLING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MKTBILLING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MKTBILLING_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MKTBILLING_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MKTBILLING_REDIS_ADDR"`
	Password     string        `envconfig:"MKTBILLING_REDIS_PASSWORD"`
	DB           int           `envconfig:"MKTBILLING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MKTBILLING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MKTBILLING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MKTBILLING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MKTBILLING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MKTBILLING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PayPalConfig carries Classic API (NVP) credentials for reference transactions.
type PayPalConfig struct {
	Username       string        `envconfig:"MKTBILLING_PAYPAL_USERNAME"`
	Password       string        `envconfig:"MKTBILLING_PAYPAL_PASSWORD"`
	Signature      string        `envconfig:"MKTBILLING_PAYPAL_SIGNATURE"`
	Env            string        `envconfig:"MKTBILLING_PAYPAL_ENV" default:"sandbox"`
	RequestTimeout time.Duration `envconfig:"MKTBILLING_PAYPAL_REQUEST_TIMEOUT" default:"20s"`
	Currency       string        `envconfig:"MKTBILLING_PAYPAL_CURRENCY" default:"USD"`
}

// Environment returns the normalized PayPal environment (sandbox/production).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// ChargeConfig tunes the commission charge path: retry policy, dedup lock,
// and the per-caller request cap.
type ChargeConfig struct {
	RetryCodes      []string      `envconfig:"MKTBILLING_CHARGE_RETRY_CODES" default:"10001,x-timeout,x-servererror"`
	TryMax          int           `envconfig:"MKTBILLING_CHARGE_TRY_MAX" default:"5"`
	LockTTL         time.Duration `envconfig:"MKTBILLING_CHARGE_LOCK_TTL" default:"10m"`
	ProcessTTL      time.Duration `envconfig:"MKTBILLING_CHARGE_PROCESS_TTL" default:"24h"`
	RetryDelay      time.Duration `envconfig:"MKTBILLING_CHARGE_RETRY_DELAY" default:"0s"`
	RateLimit       int           `envconfig:"MKTBILLING_CHARGE_RATE_LIMIT" default:"30"`
	RateLimitWindow time.Duration `envconfig:"MKTBILLING_CHARGE_RATE_LIMIT_WINDOW" default:"1m"`
}

// DispatchConfig tunes the async charge dispatcher.
type DispatchConfig struct {
	Mode       string `envconfig:"MKTBILLING_DISPATCH_MODE" default:"pool"`
	Workers    int    `envconfig:"MKTBILLING_DISPATCH_WORKERS" default:"4"`
	QueueDepth int    `envconfig:"MKTBILLING_DISPATCH_QUEUE_DEPTH" default:"64"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MKTBILLING_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MKTBILLING_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MKTBILLING_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ChargeTopic        string `envconfig:"MKTBILLING_PUBSUB_CHARGE_TOPIC" default:"mb-charge-jobs"`
	ChargeSubscription string `envconfig:"MKTBILLING_PUBSUB_CHARGE_SUBSCRIPTION" default:"mb-charge-jobs-worker"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MKTBILLING_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MKTBILLING_AUTO_MIGRATE" default:"false"`
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
		Path:   "/" + db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
