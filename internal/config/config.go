package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Report       ReportConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Service     string
	Development bool
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	BootstrapAdminName    string
	BootstrapAdminEmail   string
	BootstrapAdminPass    string
}

// NotificationConfig configures the SLA notification webhook.
type NotificationConfig struct {
	WebhookURL     string
	TimeoutSeconds int
	RetryCount     int
}

// SLAConfig drives deadline defaults and the periodic scan.
type SLAConfig struct {
	DefaultHours        int
	ScanIntervalMinutes int
	ScanLockSeconds     int
}

// ReportConfig controls summary caching and date rendering in exports.
type ReportConfig struct {
	CacheTTLSeconds int
	Timezone        string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "chromebook-helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Service:     getEnv("APP_NAME", "chromebook-helpdesk"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminName:    getEnv("AUTH_BOOTSTRAP_ADMIN_NAME", "Administrador"),
			BootstrapAdminEmail:   os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPass:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Notification: NotificationConfig{
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
			RetryCount:     getEnvAsInt("NOTIFY_RETRY_COUNT", 2),
		},
		SLA: SLAConfig{
			DefaultHours:        getEnvAsInt("SLA_DEFAULT_HOURS", 24),
			ScanIntervalMinutes: getEnvAsInt("SLA_SCAN_INTERVAL_MINUTES", 0),
			ScanLockSeconds:     getEnvAsInt("SLA_SCAN_LOCK_SECONDS", 300),
		},
		Report: ReportConfig{
			CacheTTLSeconds: getEnvAsInt("REPORT_CACHE_TTL_SECONDS", 60),
			Timezone:        getEnv("REPORT_TIMEZONE", "America/Sao_Paulo"),
		},
	}

	if cfg.SLA.DefaultHours <= 0 {
		return nil, fmt.Errorf("invalid SLA_DEFAULT_HOURS: %d", cfg.SLA.DefaultHours)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DefaultAllowance is the deadline allowance for problem types without a rule.
func (s SLAConfig) DefaultAllowance() time.Duration {
	return time.Duration(s.DefaultHours) * time.Hour
}

// ScanInterval returns zero when the periodic scan is disabled.
func (s SLAConfig) ScanInterval() time.Duration {
	if s.ScanIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(s.ScanIntervalMinutes) * time.Minute
}

func (s SLAConfig) ScanLockTTL() time.Duration {
	return time.Duration(s.ScanLockSeconds) * time.Second
}

func (r ReportConfig) CacheTTL() time.Duration {
	if r.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// Location resolves the export timezone, falling back to UTC.
func (r ReportConfig) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
