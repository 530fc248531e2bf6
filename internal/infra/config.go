package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"egm"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"egm"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"egm_bonus"`

	// Cabinet identity
	DeviceID string `env:"DEVICE_ID"`

	// JWT
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTHostExpiry     time.Duration `env:"JWT_HOST_EXPIRY" envDefault:"24h"`
	JWTOperatorExpiry time.Duration `env:"JWT_OPERATOR_EXPIRY" envDefault:"8h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"egm.bonus.events"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Bonus limits
	MaxPendingTransactions int           `env:"BONUS_MAX_PENDING" envDefault:"32"`
	DisplayLimit           int64         `env:"BONUS_DISPLAY_LIMIT" envDefault:"0"`
	DisplayLimitText       string        `env:"BONUS_DISPLAY_LIMIT_TEXT"`
	DisplayLimitDuration   time.Duration `env:"BONUS_DISPLAY_LIMIT_DURATION" envDefault:"30s"`
	WagerMatchLimit        int64         `env:"BONUS_WAGER_MATCH_LIMIT" envDefault:"0"`
	EligibilityTimeout     time.Duration `env:"BONUS_ELIGIBILITY_TIMEOUT" envDefault:"0"`

	// Payout rails, amounts in cents
	MaxCreditMeterAmount int64 `env:"PAY_MAX_CREDIT_METER" envDefault:"99999"`
	LargeWinLimit        int64 `env:"PAY_LARGE_WIN_LIMIT" envDefault:"1000000"`
	VoucherEnabled       bool  `env:"PAY_VOUCHER_ENABLED" envDefault:"true"`
	WatEnabled           bool  `env:"PAY_WAT_ENABLED" envDefault:"false"`

	// Cabinet
	MaxBet         int64 `env:"EGM_MAX_BET" envDefault:"500"`
	OpeningCredits int64 `env:"EGM_OPENING_CREDITS" envDefault:"0"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
