package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
)

type Config struct {
	Port string

	StoreDriver             string
	DatabaseURL             string
	SQLitePath              string
	FirebaseProjectID       string
	FirebaseCredentialsFile string
	FirebaseCredentialsJSON string

	ClerkSecretKey     string
	ClerkWebhookSecret string

	StreakLocation    *time.Location
	StreakMaxAttempts int

	LogLevel  string
	LogFormat string

	MetricsUser string
	MetricsPass string

	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadDotenv reads .env files into the process environment. A missing file is
// not an error; it reports whether anything was loaded.
func LoadDotenv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                    getEnv("PORT", "3333"),
		StoreDriver:             strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		SQLitePath:              getEnv("SQLITE_PATH", "./data/diet.db"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"),
		ClerkSecretKey:          os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret:      os.Getenv("CLERK_WEBHOOK_SECRET"),
		LogLevel:                strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "json")),
		MetricsUser:             os.Getenv("METRICS_USER"),
		MetricsPass:             os.Getenv("METRICS_PASS"),
	}

	zone := getEnv("STREAK_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid STREAK_TIMEZONE %q: %w", zone, err)
	}
	cfg.StreakLocation = loc

	if cfg.StreakMaxAttempts, err = getInt("STREAK_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.StreakMaxAttempts <= 0 {
		return nil, fmt.Errorf("STREAK_MAX_ATTEMPTS must be positive, got %d", cfg.StreakMaxAttempts)
	}

	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 30); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", cfg.RateLimitBurst)
	}
	rps := getEnv("RATE_LIMIT_RPS", "5")
	if cfg.RateLimitRPS, err = strconv.ParseFloat(rps, 64); err != nil || cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS must be a positive number, got %q", rps)
	}

	if err := cfg.validateStore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateStore() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty")
		}
	case DriverFirestore:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID environment variable is not set")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return value, nil
}
