package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"

	"github.com/tradeguard/escrow/internal/domain"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logger   LoggerConfig   `koanf:"logger"`
	Worker   WorkerConfig   `koanf:"worker"`
	Limits   LimitsConfig   `koanf:"limits"`
	Timeouts TimeoutsConfig `koanf:"timeouts"`
	Retry    RetryConfig    `koanf:"retry"`
	Auth     AuthConfig     `koanf:"auth"`
	Notifier NotifierConfig `koanf:"notifier"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
	RateLimit    int           `koanf:"rate_limit"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

type WorkerConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"required"`
	BatchSize     int           `koanf:"batch_size" validate:"required"`
}

type LimitsConfig struct {
	MinAmount         int64 `koanf:"min_amount" validate:"required"`
	MaxAmount         int64 `koanf:"max_amount" validate:"required"`
	MinDescriptionLen int   `koanf:"min_description_len" validate:"required"`
	MaxDescriptionLen int   `koanf:"max_description_len" validate:"required"`
	MaxActivePerUser  int   `koanf:"max_active_per_user" validate:"required"`
	MinCardDetailsLen int   `koanf:"min_card_details_len" validate:"required"`
	MinIssueLen       int   `koanf:"min_issue_len" validate:"required"`
	MinVideoSeconds   int   `koanf:"min_video_seconds" validate:"required"`
	MaxVideoSeconds   int   `koanf:"max_video_seconds" validate:"required"`
	MaxFileSize       int64 `koanf:"max_file_size" validate:"required"`
}

type TimeoutsConfig struct {
	Transaction         time.Duration `koanf:"transaction" validate:"required"`
	PaymentVerification time.Duration `koanf:"payment_verification" validate:"required"`
	Listing             time.Duration `koanf:"listing" validate:"required"`
	AccountTransfer     time.Duration `koanf:"account_transfer" validate:"required"`
	BuyerVerification   time.Duration `koanf:"buyer_verification" validate:"required"`
	FinalVerification   time.Duration `koanf:"final_verification" validate:"required"`
}

type RetryConfig struct {
	MaxAttempts int `koanf:"max_attempts" validate:"required"`
}

type AuthConfig struct {
	AccessSecret string        `koanf:"access_secret" validate:"required"`
	AccessTTL    time.Duration `koanf:"access_ttl" validate:"required"`
}

type NotifierConfig struct {
	WebhookURL  string        `koanf:"webhook_url"`
	SendTimeout time.Duration `koanf:"send_timeout"`
	AdminIDs    string        `koanf:"admin_ids"`
}

// AdminIDList splits the comma-separated admin recipient list.
func (c *NotifierConfig) AdminIDList() []string {
	var out []string
	for _, id := range strings.Split(c.AdminIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// defaults applied before the environment is read.
var defaults = map[string]any{
	"primary.env":                  "development",
	"server.port":                  "8080",
	"server.read_timeout":          "15s",
	"server.write_timeout":         "15s",
	"server.idle_timeout":          "60s",
	"server.rate_limit":            10,
	"database.ssl_mode":            "disable",
	"database.max_open_conns":      10,
	"database.max_idle_conns":      5,
	"database.conn_max_lifetime":   "1h",
	"database.conn_max_idle_time":  "30m",
	"logger.level":                 "info",
	"worker.sweep_interval":        "2m",
	"worker.batch_size":            100,
	"limits.min_amount":            50000,
	"limits.max_amount":            10000000,
	"limits.min_description_len":   10,
	"limits.max_description_len":   500,
	"limits.max_active_per_user":   3,
	"limits.min_card_details_len":  20,
	"limits.min_issue_len":         10,
	"limits.min_video_seconds":     10,
	"limits.max_video_seconds":     300,
	"limits.max_file_size":         50 * 1024 * 1024,
	"timeouts.transaction":         "30m",
	"timeouts.payment_verification": "24h",
	"timeouts.listing":             "72h",
	"timeouts.account_transfer":    "15m",
	"timeouts.buyer_verification":  "24h",
	"timeouts.final_verification":  "2h",
	"retry.max_attempts":           3,
	"auth.access_ttl":              "24h",
	"notifier.send_timeout":        "5s",
}

// LoadConfig reads defaults, then ESCROW_-prefixed environment variables
// (double underscore separates nesting levels), and validates the result.
func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		logger.Error("failed to load default configuration", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("ESCROW_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "ESCROW_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	if err := k.Unmarshal("", mainConfig); err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	if err := validate.Struct(mainConfig); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// DomainLimits converts the configured bounds to the domain type.
func (c *LimitsConfig) DomainLimits() domain.Limits {
	return domain.Limits{
		MinAmount:         c.MinAmount,
		MaxAmount:         c.MaxAmount,
		MinDescriptionLen: c.MinDescriptionLen,
		MaxDescriptionLen: c.MaxDescriptionLen,
		MaxActivePerUser:  c.MaxActivePerUser,
	}
}

// TimeoutPolicy converts the configured ceilings to the domain type.
func (c *TimeoutsConfig) TimeoutPolicy() domain.TimeoutPolicy {
	return domain.TimeoutPolicy{
		Transaction:         c.Transaction,
		PaymentVerification: c.PaymentVerification,
		Listing:             c.Listing,
		AccountTransfer:     c.AccountTransfer,
		BuyerVerification:   c.BuyerVerification,
		FinalVerification:   c.FinalVerification,
	}
}
