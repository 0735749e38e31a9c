package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	Store    string
	LogLevel string

	JWTSecret         string
	CardEncryptionKey string
	CardHMACSecret    string

	TransferRejectBlocked bool

	AMQPURL      string
	AMQPExchange string

	SMTPHost       string
	SMTPPort       string
	SMTPUsername   string
	SMTPPassword   string
	SenderEmail    string
	AdminEmails    []string
	DigestSchedule string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// NewConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present; real variables win.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DBConn:            getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=bank sslmode=disable"),
		Store:             strings.ToLower(getEnv("STORE", StorePostgres)),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CardEncryptionKey: getEnv("CARD_ENCRYPTION_KEY", ""),
		CardHMACSecret:    getEnv("CARD_HMAC_SECRET", ""),
		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "card-ledger"),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SenderEmail:       getEnv("SENDER_EMAIL", "noreply@card-ledger.local"),
		AdminEmails:       splitList(getEnv("ADMIN_EMAILS", "")),
		DigestSchedule:    getEnv("DIGEST_SCHEDULE", "0 9 * * *"),
	}

	var err error
	if cfg.TransferRejectBlocked, err = getBool("TRANSFER_REJECT_BLOCKED", false); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = getDuration("READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DBConn == "" {
			return fmt.Errorf("DB_CONN is required")
		}
		if c.CardHMACSecret == "" {
			return fmt.Errorf("CARD_HMAC_SECRET is required")
		}
		key, err := hex.DecodeString(c.CardEncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("CARD_ENCRYPTION_KEY must be 64 hex characters")
		}
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if len(c.AdminEmails) > 0 {
		if _, err := cron.ParseStandard(c.DigestSchedule); err != nil {
			return fmt.Errorf("invalid DIGEST_SCHEDULE: %w", err)
		}
	}
	return nil
}

// DigestEnabled reports whether pending block requests are mailed to administrators
func (c *Config) DigestEnabled() bool {
	return len(c.AdminEmails) > 0
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) (bool, error) {
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

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
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

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
