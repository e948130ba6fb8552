package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	ProviderMock   = "mock"
	ProviderXendit = "xendit"
)

type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	AppPort string `envconfig:"APP_PORT" default:"8080"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"postgres"`
	DBURL          string `envconfig:"DB_URL"`
	DBHost         string `envconfig:"DB_HOST"`
	DBUser         string `envconfig:"DB_USER"`
	DBPassword     string `envconfig:"DB_PASSWORD"`
	DBName         string `envconfig:"DB_NAME"`
	DBPort         string `envconfig:"DB_PORT" default:"5432"`

	PaymentProvider        string        `envconfig:"PAYMENT_PROVIDER"`
	XenditSecretKey        string        `envconfig:"XENDIT_APIKEY"`
	XenditCallbackToken    string        `envconfig:"XENDIT_CALLBACK_TOKEN"`
	XenditBaseURL          string        `envconfig:"XENDIT_BASE_URL" default:"https://api.xendit.co"`
	SuccessURL             string        `envconfig:"SUCCESS_URL"`
	FailureURL             string        `envconfig:"FAILURE_URL"`
	ProviderTimeout        time.Duration `envconfig:"PAYMENT_PROVIDER_TIMEOUT" default:"15s"`
	DefaultCurrency        string        `envconfig:"DEFAULT_CURRENCY" default:"IDR"`
	CancelOnPaymentFailure bool          `envconfig:"CANCEL_ORDER_ON_PAYMENT_FAILURE" default:"false"`

	JWTSecret         string `envconfig:"JWT_SECRET"`
	InternalSecretKey string `envconfig:"INTERNAL_SECRET_KEY"`

	RedisURL         string        `envconfig:"REDIS_URL"`
	WebhookDedupeTTL time.Duration `envconfig:"WEBHOOK_DEDUPE_TTL" default:"2m"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"gamekeys.events"`
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.PaymentProvider = strings.ToLower(strings.TrimSpace(cfg.PaymentProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendPostgres:
		if c.DBURL == "" && c.DBHost == "" {
			return errors.New("config: DB_URL or DB_HOST is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.PaymentProviderName() {
	case ProviderMock:
	case ProviderXendit:
		if c.XenditSecretKey == "" {
			return errors.New("config: XENDIT_APIKEY is required when PAYMENT_PROVIDER=xendit")
		}
	default:
		return fmt.Errorf("config: unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}

	if c.ProviderTimeout <= 0 {
		return errors.New("config: PAYMENT_PROVIDER_TIMEOUT must be positive")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required in production")
	}
	return nil
}

// PaymentProviderName falls back to xendit when a key is present and to the
// mock gateway otherwise.
func (c *Config) PaymentProviderName() string {
	if c.PaymentProvider != "" {
		return c.PaymentProvider
	}
	if c.XenditSecretKey != "" {
		return ProviderXendit
	}
	return ProviderMock
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) DSN() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}
