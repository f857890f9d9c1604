package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Workflow      WorkflowConfig
	Sweeper       SweeperConfig
	Notifications NotificationsConfig
	Cache         CacheConfig
	Reports       ReportsConfig
	Migrations    MigrationsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds what is needed to validate role tokens issued elsewhere.
type JWTConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig carries the deadline thresholds, in business days.
type WorkflowConfig struct {
	AdvanceNoticeDays           int
	ContinuousAdvanceNoticeDays int
	CancellationNoticeDays      int
	LastMinuteDays              int
	AlterationNoticeDays        int
	AllowDecemberRollover       bool
	UrgentDays                  int
	NearLimitDays               int
	Timezone                    string
}

// SweeperConfig schedules the batch sweeps.
type SweeperConfig struct {
	Enabled  bool
	Schedule string
	Timeout  time.Duration
}

// NotificationsConfig sizes the notification worker pool.
type NotificationsConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// CacheConfig tunes the request list cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ReportsConfig bounds report exports.
type ReportsConfig struct {
	MaxRows int
	Title   string
}

// MigrationsConfig points the migrate command at the schema files.
type MigrationsConfig struct {
	Source string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
		Leeway: parseDuration(v.GetString("JWT_LEEWAY"), 30*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		AdvanceNoticeDays:           v.GetInt("WORKFLOW_ADVANCE_NOTICE_DAYS"),
		ContinuousAdvanceNoticeDays: v.GetInt("WORKFLOW_CONTINUOUS_ADVANCE_NOTICE_DAYS"),
		CancellationNoticeDays:      v.GetInt("WORKFLOW_CANCELLATION_NOTICE_DAYS"),
		LastMinuteDays:              v.GetInt("WORKFLOW_LAST_MINUTE_DAYS"),
		AlterationNoticeDays:        v.GetInt("WORKFLOW_ALTERATION_NOTICE_DAYS"),
		AllowDecemberRollover:       v.GetBool("WORKFLOW_ALLOW_DECEMBER_ROLLOVER"),
		UrgentDays:                  v.GetInt("PRIORITY_URGENT_DAYS"),
		NearLimitDays:               v.GetInt("PRIORITY_NEAR_LIMIT_DAYS"),
		Timezone:                    v.GetString("WORKFLOW_TIMEZONE"),
	}

	cfg.Sweeper = SweeperConfig{
		Enabled:  v.GetBool("ENABLE_SWEEPER"),
		Schedule: v.GetString("SWEEPER_SCHEDULE"),
		Timeout:  parseDuration(v.GetString("SWEEPER_TIMEOUT"), 5*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:    v.GetBool("ENABLE_NOTIFICATIONS"),
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		BufferSize: v.GetInt("NOTIFICATIONS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("REQUESTS_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		MaxRows: v.GetInt("REPORTS_MAX_ROWS"),
		Title:   v.GetString("REPORTS_TITLE"),
	}

	cfg.Migrations = MigrationsConfig{
		Source: v.GetString("MIGRATIONS_SOURCE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sigpae")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_LEEWAY", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WORKFLOW_ADVANCE_NOTICE_DAYS", 2)
	v.SetDefault("WORKFLOW_CONTINUOUS_ADVANCE_NOTICE_DAYS", 5)
	v.SetDefault("WORKFLOW_CANCELLATION_NOTICE_DAYS", 2)
	v.SetDefault("WORKFLOW_LAST_MINUTE_DAYS", 5)
	v.SetDefault("WORKFLOW_ALTERATION_NOTICE_DAYS", 3)
	v.SetDefault("WORKFLOW_ALLOW_DECEMBER_ROLLOVER", true)
	v.SetDefault("PRIORITY_URGENT_DAYS", 2)
	v.SetDefault("PRIORITY_NEAR_LIMIT_DAYS", 5)
	v.SetDefault("WORKFLOW_TIMEZONE", "America/Sao_Paulo")

	v.SetDefault("ENABLE_SWEEPER", false)
	v.SetDefault("SWEEPER_SCHEDULE", "0 30 0 * * *")
	v.SetDefault("SWEEPER_TIMEOUT", "5m")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("REQUESTS_CACHE_TTL", "2m")

	v.SetDefault("REPORTS_MAX_ROWS", 5000)
	v.SetDefault("REPORTS_TITLE", "Relatório de Solicitações")

	v.SetDefault("MIGRATIONS_SOURCE", "file://migrations")
}

// Location resolves the workflow timezone, falling back to UTC.
func (w WorkflowConfig) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
