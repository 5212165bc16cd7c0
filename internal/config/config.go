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
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Telegram TelegramConfig
	Sweep    SweepConfig
	Admin    AdminConfig
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
	Level string
}

// TelegramConfig holds bot credentials and polling behavior.
type TelegramConfig struct {
	Token              string
	PollTimeoutSeconds int
}

// SweepConfig drives the SLA sweep cadence. Each sweep runs on the shared
// interval with its own initial offset so the ticks do not pile up.
type SweepConfig struct {
	IntervalSeconds           int
	UnassignedOffsetSeconds   int
	OverdueOffsetSeconds      int
	FanoutOffsetSeconds       int
	ClientUpdateOffsetSeconds int
	SettingsRefreshSeconds    int
}

// AdminConfig secures the owner-facing ops API.
type AdminConfig struct {
	PasswordHash    string
	JWTSecret       string
	TokenTTLMinutes int
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
			Name:                  getEnv("APP_NAME", "support-order-bot"),
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
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Telegram: TelegramConfig{
			Token:              os.Getenv("TELEGRAM_BOT_TOKEN"),
			PollTimeoutSeconds: getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 10),
		},
		Sweep: SweepConfig{
			IntervalSeconds:           getEnvAsInt("SWEEP_INTERVAL_SECONDS", 60),
			UnassignedOffsetSeconds:   getEnvAsInt("SWEEP_UNASSIGNED_OFFSET_SECONDS", 10),
			OverdueOffsetSeconds:      getEnvAsInt("SWEEP_OVERDUE_OFFSET_SECONDS", 20),
			FanoutOffsetSeconds:       getEnvAsInt("SWEEP_FANOUT_OFFSET_SECONDS", 30),
			ClientUpdateOffsetSeconds: getEnvAsInt("SWEEP_CLIENT_UPDATE_OFFSET_SECONDS", 40),
			SettingsRefreshSeconds:    getEnvAsInt("SETTINGS_REFRESH_SECONDS", 60),
		},
		Admin: AdminConfig{
			PasswordHash:    os.Getenv("ADMIN_PASSWORD_HASH"),
			JWTSecret:       getEnv("ADMIN_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("ADMIN_TOKEN_TTL_MINUTES", 60),
		},
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

// Interval returns the shared sweep cadence.
func (s SweepConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// PollTimeout returns the long-poll timeout for the Telegram updater.
func (t TelegramConfig) PollTimeout() time.Duration {
	if t.PollTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(t.PollTimeoutSeconds) * time.Second
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
