package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production
	HTTP HTTPConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Engine
	Alert    AlertConfig
	Screener ScreenerConfig
	Notify   NotifyConfig

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   LogFileConfig
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// HTTPConfig holds API server limits.
// WriteTimeout must outlast Alert.CycleTimeout, since POST /api/alerts/evaluate runs a whole cycle.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
}

// AlertConfig controls the alert evaluation cycle
type AlertConfig struct {
	Schedule      string        // cron expression with seconds
	MetricTimeout time.Duration // bound on each Metric Store call
	SinkTimeout   time.Duration // bound on each notification
	CycleTimeout  time.Duration // bound on a whole pass
	LockTTL       time.Duration // distributed rule lock lifetime
}

// ScreenerConfig controls batch screening
type ScreenerConfig struct {
	Workers          int
	PresetPath       string // optional YAML override of the built-in catalog
	PresetSchedule   string
	PercentileYears  int
	SnapshotCacheTTL time.Duration
	SnapshotTimeout  time.Duration // bound on each snapshot read while loading the universe
}

// NotifyConfig holds alert sink settings
type NotifyConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailTo      string // fallback recipient

	WeChatWebhookURL string

	RatePerSecond float64
	Burst         int
}

// LogFileConfig enables rotating file output next to stdout
type LogFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),
		HTTP: HTTPConfig{
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", "5s"),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", "15s"),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", "5m"),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout:   getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", "30s"),
			MaxHeaderBytes:    getEnvAsInt("HTTP_MAX_HEADER_BYTES", 1<<20),
		},

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "valuescope"),
			User:            getEnv("DB_USER", "valuescope"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Alert: AlertConfig{
			Schedule:      getEnv("ALERT_SCHEDULE", "0 */5 * * * *"),
			MetricTimeout: getEnvAsDuration("ALERT_METRIC_TIMEOUT", "5s"),
			SinkTimeout:   getEnvAsDuration("ALERT_SINK_TIMEOUT", "10s"),
			CycleTimeout:  getEnvAsDuration("ALERT_CYCLE_TIMEOUT", "4m"),
			LockTTL:       getEnvAsDuration("ALERT_LOCK_TTL", "1m"),
		},

		Screener: ScreenerConfig{
			Workers:          getEnvAsInt("SCREENER_WORKERS", 8),
			PresetPath:       getEnv("SCREENER_PRESET_PATH", ""),
			PresetSchedule:   getEnv("SCREENER_PRESET_SCHEDULE", "0 30 18 * * *"),
			PercentileYears:  getEnvAsInt("PERCENTILE_YEARS", 10),
			SnapshotCacheTTL: getEnvAsDuration("SNAPSHOT_CACHE_TTL", "1m"),
			SnapshotTimeout:  getEnvAsDuration("SCREENER_SNAPSHOT_TIMEOUT", "5s"),
		},

		Notify: NotifyConfig{
			SMTPHost:         getEnv("SMTP_HOST", ""),
			SMTPPort:         getEnvAsInt("SMTP_PORT", 465),
			SMTPUser:         getEnv("SMTP_USER", ""),
			SMTPPassword:     getEnv("SMTP_PASS", ""),
			EmailTo:          getEnv("ALERT_EMAIL_TO", ""),
			WeChatWebhookURL: getEnv("WECHAT_WEBHOOK_URL", ""),
			RatePerSecond:    getEnvAsFloat("NOTIFY_RATE_PER_SECOND", 5),
			Burst:            getEnvAsInt("NOTIFY_BURST", 10),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile: LogFileConfig{
			Path:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 7),
			MaxAgeDays: getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 30),
		},
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Alert.MetricTimeout <= 0 || c.Alert.SinkTimeout <= 0 {
		return fmt.Errorf("ALERT_METRIC_TIMEOUT and ALERT_SINK_TIMEOUT must be positive")
	}

	if c.Screener.Workers < 1 {
		return fmt.Errorf("SCREENER_WORKERS must be at least 1")
	}

	if c.HTTP.WriteTimeout <= c.Alert.CycleTimeout {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT (%s) must exceed ALERT_CYCLE_TIMEOUT (%s)", c.HTTP.WriteTimeout, c.Alert.CycleTimeout)
	}

	if c.Screener.SnapshotTimeout <= 0 {
		return fmt.Errorf("SCREENER_SNAPSHOT_TIMEOUT must be positive")
	}

	if c.Notify.RatePerSecond <= 0 || c.Notify.Burst < 1 {
		return fmt.Errorf("NOTIFY_RATE_PER_SECOND must be positive and NOTIFY_BURST at least 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
