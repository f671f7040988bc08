// Package config loads application configuration from environment variables.
// An optional .env file in the working directory is read first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/parking-reservation/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string
	DBPass       string // empty allowed
	DBHost       string
	DBPort       string
	DBName       string
	JWTSecret    string        // secret used to verify bearer tokens
	AccessTTL    time.Duration // lifetime of tokens minted by `parkingd token`
	AutoMigrate  bool          // run migrations before serving
	Gateway      GatewayConfig
	Broker       BrokerConfig
	LogLevel     string
	ShutdownWait time.Duration
}

// GatewayConfig holds the hosted checkout merchant credentials.
type GatewayConfig struct {
	MerchantID     string
	MerchantSecret string
	Currency       string
}

// BrokerConfig points at RabbitMQ.  An empty URL disables notifications.
type BrokerConfig struct {
	URL   string
	Queue string
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") }

// LoadDotEnv reads .env when present; a missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads configuration values from environment variables.  Every
// missing required variable is reported in one error.
func Load() (Config, error) {
	r := &reader{}
	cfg := Config{
		Env:          r.must("APP_ENV"),
		Port:         envStr("APP_PORT", "8080"),
		DBUser:       r.must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       r.must("DB_HOST"),
		DBPort:       envStr("DB_PORT", "3306"),
		DBName:       r.must("DB_NAME"),
		JWTSecret:    r.must("JWT_SECRET"),
		AccessTTL:    time.Duration(r.mustInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		AutoMigrate:  envBool("AUTO_MIGRATE", false),
		LogLevel:     envStr("LOG_LEVEL", "info"),
		ShutdownWait: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
		Gateway: GatewayConfig{
			MerchantID:     r.must("PAYHERE_MERCHANT_ID"),
			MerchantSecret: r.must("PAYHERE_MERCHANT_SECRET"),
			Currency:       envStr("PAYHERE_CURRENCY", "LKR"),
		},
		Broker: LoadBroker(),
	}
	if len(r.missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(r.missing, ", "))
	}
	if len(r.invalid) > 0 {
		return Config{}, fmt.Errorf("invalid env vars: %s", strings.Join(r.invalid, ", "))
	}
	return cfg, nil
}

// LoadBroker reads RABBITMQ_URL and NOTIFY_QUEUE only.
func LoadBroker() BrokerConfig {
	return BrokerConfig{
		URL:   os.Getenv("RABBITMQ_URL"),
		Queue: envStr("NOTIFY_QUEUE", "parking.notifications"),
	}
}

// DSN returns the MySQL data source name.
func (c Config) DSN() string {
	return database.DSN(c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

// LoadDatabaseDSN reads only the DB_* variables, for commands that need
// nothing else.
func LoadDatabaseDSN() (string, error) {
	r := &reader{}
	user, host, name := r.must("DB_USER"), r.must("DB_HOST"), r.must("DB_NAME")
	if len(r.missing) > 0 {
		return "", fmt.Errorf("missing required env vars: %s", strings.Join(r.missing, ", "))
	}
	return database.DSN(user, os.Getenv("DB_PASS"), host, envStr("DB_PORT", "3306"), name), nil
}

// reader collects missing and malformed variables instead of exiting on the
// first one.
type reader struct {
	missing []string
	invalid []string
}

func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

// mustInt is like must but falls back to def when unset and records
// non-numeric values.
func (r *reader) mustInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		r.invalid = append(r.invalid, fmt.Sprintf("%s=%q", key, s))
		return def
	}
	return n
}
