package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port          string
	DBConn        string
	StorageDriver string
	DBMigrate     bool
	LogLevel      string

	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string

	NAVURL       string
	PriceTimeout time.Duration

	CronEnabled      bool
	CronSpec         string
	Timezone         string
	ExecutionWorkers int
	StaleLockAfter   time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=brokerage sslmode=disable"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),

		JWTSecret:         getEnv("JWT_SECRET", "secret"),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		NAVURL:   getEnv("NAV_URL", "http://localhost:9090/nav"),
		CronSpec: getEnv("CRON_SPEC", "0 6 * * *"),
		Timezone: getEnv("TIMEZONE", "Asia/Kolkata"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "noreply@brokerage.local"),
	}

	var err error
	if cfg.DBMigrate, err = getEnvBool("DB_MIGRATE", false); err != nil {
		return nil, err
	}
	if cfg.CronEnabled, err = getEnvBool("CRON_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.ExecutionWorkers, err = getEnvInt("EXECUTION_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.PriceTimeout, err = getEnvDuration("PRICE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.StaleLockAfter, err = getEnvDuration("STALE_LOCK_AFTER", 30*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DBConn == "" {
			return nil, fmt.Errorf("DB_CONN is required")
		}
	case StorageDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.ExecutionWorkers < 1 {
		return nil, fmt.Errorf("EXECUTION_WORKERS must be positive, got %d", cfg.ExecutionWorkers)
	}
	if cfg.StaleLockAfter <= 0 {
		return nil, fmt.Errorf("STALE_LOCK_AFTER must be positive")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location returns the time zone used to pick the run date
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NotificationsEnabled reports whether an SMTP relay is configured
func (c *Config) NotificationsEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
