package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Ledger store backends
const (
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Duration is a time.Duration that reads from TOML strings like "10s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds application configuration
type Config struct {
	ServerPort     string `toml:"server_port"`
	DatabaseType   string `toml:"database_type"`
	DatabaseURL    string `toml:"database_url"`
	DatabasePath   string `toml:"database_path"`
	MigrationsPath string `toml:"migrations_path"`

	JWTSecret       string   `toml:"jwt_secret"`
	SessionDuration Duration `toml:"session_duration"`

	LogLevel      string `toml:"log_level"`
	LogPath       string `toml:"log_path"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`
	LogCompress   bool   `toml:"log_compress"`

	// LedgerBackend selects where account state lives: sql, redis or memory
	LedgerBackend    string   `toml:"ledger_backend"`
	RedisAddr        string   `toml:"redis_addr"`
	RedisPassword    string   `toml:"redis_password"`
	RedisDB          int      `toml:"redis_db"`
	StoreTimeout     Duration `toml:"store_timeout"`
	StoreLoadRetries int      `toml:"store_load_retries"`
	LedgerCacheSize  int      `toml:"ledger_cache_size"`

	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
	RateLimitBurst     int `toml:"rate_limit_burst"`

	AWSRegion        string   `toml:"aws_region"`
	EmailEnabled     bool     `toml:"email_enabled"`
	EmailFrom        string   `toml:"email_from"`
	ReminderInterval Duration `toml:"reminder_interval"`
	BackupBucket     string   `toml:"backup_bucket"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ServerPort:         "8080",
		DatabaseType:       "sqlite",
		DatabasePath:       "./commit.db",
		MigrationsPath:     "./migrations",
		SessionDuration:    Duration{24 * time.Hour},
		LogLevel:           "info",
		LogMaxSizeMB:       100,
		LogMaxBackups:      3,
		LogMaxAgeDays:      7,
		LedgerBackend:      BackendSQL,
		RedisAddr:          "localhost:6379",
		StoreTimeout:       Duration{10 * time.Second},
		StoreLoadRetries:   3,
		LedgerCacheSize:    1024,
		RateLimitPerMinute: 120,
		RateLimitBurst:     20,
		AWSRegion:          "us-east-1",
		ReminderInterval:   Duration{time.Hour},
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// COMMIT_CONFIG, an optional .env file and finally the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("COMMIT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.DatabaseType = getEnv("DB_TYPE", c.DatabaseType)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.MigrationsPath = getEnv("MIGRATIONS_PATH", c.MigrationsPath)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	c.LedgerBackend = getEnv("LEDGER_BACKEND", c.LedgerBackend)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.EmailFrom = getEnv("EMAIL_FROM", c.EmailFrom)
	c.BackupBucket = getEnv("BACKUP_BUCKET", c.BackupBucket)

	var err error
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.StoreLoadRetries, err = getEnvInt("STORE_LOAD_RETRIES", c.StoreLoadRetries); err != nil {
		return err
	}
	if c.LedgerCacheSize, err = getEnvInt("LEDGER_CACHE_SIZE", c.LedgerCacheSize); err != nil {
		return err
	}
	if c.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute); err != nil {
		return err
	}
	if c.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst); err != nil {
		return err
	}
	if c.StoreTimeout.Duration, err = getEnvDuration("STORE_TIMEOUT", c.StoreTimeout.Duration); err != nil {
		return err
	}
	if c.SessionDuration.Duration, err = getEnvDuration("SESSION_DURATION", c.SessionDuration.Duration); err != nil {
		return err
	}
	if c.ReminderInterval.Duration, err = getEnvDuration("REMINDER_INTERVAL", c.ReminderInterval.Duration); err != nil {
		return err
	}
	if c.EmailEnabled, err = getEnvBool("EMAIL_ENABLED", c.EmailEnabled); err != nil {
		return err
	}
	return nil
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch strings.ToLower(c.LedgerBackend) {
	case BackendSQL, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unsupported ledger backend: %s", c.LedgerBackend)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.EmailEnabled && c.EmailFrom == "" {
		return errors.New("EMAIL_FROM must be set when email is enabled")
	}
	if c.StoreTimeout.Duration <= 0 {
		return errors.New("store timeout must be positive")
	}
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
