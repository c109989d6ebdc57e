package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Runtime    RuntimeConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Queue      QueueConfig
	Analytics  AnalyticsConfig
	Scheduler  SchedulerConfig
	Promo      PromoConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	S3         S3Config
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// RuntimeConfig selects which parts of the process run.
type RuntimeConfig struct {
	RunAPI     bool
	RunWorkers bool
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// RedisConfig holds the queue backend connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ClickHouseConfig holds analytics warehouse settings.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	Username string
	Password string
}

// QueueConfig holds order queue and worker settings.
type QueueConfig struct {
	Prefix             string
	WorkerConcurrency  int
	PollInterval       time.Duration
	LockDuration       time.Duration
	Attempts           int
	BackoffDelay       time.Duration
	CompletedRetention time.Duration // how long removed-on-complete jobs stay readable
}

// AnalyticsConfig holds analytics mirror settings.
type AnalyticsConfig struct {
	RetryDelay        time.Duration
	WorkerConcurrency int
}

// SchedulerConfig holds periodic maintenance intervals.
type SchedulerConfig struct {
	StalledJobsInterval time.Duration
	PromoExpiryInterval time.Duration
}

// PromoConfig holds promo code bootstrap settings.
type PromoConfig struct {
	SeedDefault bool
	ImportFiles []string
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
}

// S3Config holds AWS S3 configuration for promo definition files.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "promo-codes/")
}

// Load loads configuration from environment variables, reading a .env file first when present.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Read reads configuration from the environment without validating it, so
// tools can adjust the runtime section first.
func Read() *Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Runtime: RuntimeConfig{
			RunAPI:     getEnvAsBool("RUN_API", true),
			RunWorkers: getEnvAsBool("RUN_WORKERS", true),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "promo_orders"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("CLICKHOUSE_DATABASE", "analytics"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
		Queue: QueueConfig{
			Prefix:             getEnv("QUEUE_PREFIX", "promo-orders"),
			WorkerConcurrency:  getEnvAsInt("QUEUE_WORKER_CONCURRENCY", 4),
			PollInterval:       getEnvAsDuration("QUEUE_POLL_INTERVAL", 500*time.Millisecond),
			LockDuration:       getEnvAsDuration("QUEUE_LOCK_DURATION", 30*time.Second),
			Attempts:           getEnvAsInt("QUEUE_ATTEMPTS", 3),
			BackoffDelay:       getEnvAsDuration("QUEUE_BACKOFF_DELAY", time.Second),
			CompletedRetention: getEnvAsDuration("QUEUE_COMPLETED_RETENTION", time.Minute),
		},
		Analytics: AnalyticsConfig{
			RetryDelay:        getEnvAsDuration("ANALYTICS_RETRY_DELAY", 5*time.Second),
			WorkerConcurrency: getEnvAsInt("ANALYTICS_WORKER_CONCURRENCY", 1),
		},
		Scheduler: SchedulerConfig{
			StalledJobsInterval: getEnvAsDuration("SCHEDULER_STALLED_JOBS_INTERVAL", 30*time.Second),
			PromoExpiryInterval: getEnvAsDuration("SCHEDULER_PROMO_EXPIRY_INTERVAL", 10*time.Minute),
		},
		Promo: PromoConfig{
			SeedDefault: getEnvAsBool("PROMO_SEED_DEFAULT", true),
			ImportFiles: getEnvAsList("PROMO_IMPORT_FILES"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "promo-codes/"),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Runtime.RunAPI && !c.Runtime.RunWorkers {
		return fmt.Errorf("at least one of RUN_API or RUN_WORKERS must be enabled")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.ClickHouse.Enabled && c.ClickHouse.Addr == "" {
		return fmt.Errorf("clickhouse address is required when clickhouse is enabled")
	}

	if c.Queue.WorkerConcurrency < 1 {
		return fmt.Errorf("queue worker concurrency must be at least 1")
	}

	if c.Queue.Attempts < 1 {
		return fmt.Errorf("queue attempts must be at least 1")
	}

	if c.Queue.PollInterval <= 0 || c.Queue.LockDuration <= 0 || c.Queue.BackoffDelay <= 0 {
		return fmt.Errorf("queue intervals must be positive")
	}

	if c.Queue.CompletedRetention < 0 {
		return fmt.Errorf("queue completed retention cannot be negative")
	}

	if c.Analytics.RetryDelay <= 0 {
		return fmt.Errorf("analytics retry delay must be positive")
	}

	if c.Analytics.WorkerConcurrency < 1 {
		return fmt.Errorf("analytics worker concurrency must be at least 1")
	}

	if c.Scheduler.StalledJobsInterval <= 0 || c.Scheduler.PromoExpiryInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}

	if c.Runtime.RunAPI && c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping empty entries.
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
