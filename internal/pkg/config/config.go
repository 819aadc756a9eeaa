// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string
	LogLevel string

	DatabaseURL    string
	SeedCatalog    bool
	RedisAddr      string
	PaymentLogPath string

	KafkaBrokers string
	KafkaTopic   string

	MockPayments          bool
	StripeSecretKey       string
	StripeWebhookSecret   string
	IdentityWebhookSecret string
	JWTSecret             string
	Currency              string

	SweepInterval      time.Duration
	PaymentTimeout     time.Duration
	CheckoutRateLimit  float64
	CheckoutRateBurst  int
	OutboxPollInterval time.Duration

	ServiceName  string
	OTLPEndpoint string
}

// Load reads the process environment.
func Load() (Config, error) {
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from getenv and reports every invalid or
// missing variable at once.
func FromLookup(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	var errs []error
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(get(key, fallback))
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, get(key, fallback)))
		}
		return d
	}
	required := func(key string) string {
		v := get(key, "")
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
		return v
	}

	cfg := Config{
		HTTPAddr:       get("HTTP_ADDR", ":8080"),
		GRPCAddr:       get("GRPC_ADDR", ":9090"),
		LogLevel:       get("LOG_LEVEL", "info"),
		DatabaseURL:    get("DATABASE_URL", ""),
		RedisAddr:      get("REDIS_ADDR", ""),
		PaymentLogPath: get("PAYMENT_LOG_PATH", ""),
		KafkaBrokers:   get("KAFKA_BROKERS", ""),
		KafkaTopic:     get("KAFKA_TOPIC", "storefront.events"),
		Currency:       strings.ToLower(get("CURRENCY", "usd")),
		ServiceName:    get("OTEL_SERVICE_NAME", "storefront"),
		OTLPEndpoint:   get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
	cfg.CheckoutRateBurst = 5

	cfg.MockPayments = truthy(get("MOCK_PAYMENTS", "false"))
	cfg.SeedCatalog = truthy(get("SEED_DEMO_CATALOG", "false"))
	if cfg.MockPayments {
		cfg.StripeSecretKey = get("STRIPE_SECRET_KEY", "")
	} else {
		cfg.StripeSecretKey = required("STRIPE_SECRET_KEY")
	}
	cfg.StripeWebhookSecret = required("STRIPE_WEBHOOK_SECRET")
	cfg.IdentityWebhookSecret = required("IDENTITY_WEBHOOK_SECRET")
	cfg.JWTSecret = required("AUTH_JWT_SECRET")

	cfg.SweepInterval = duration("ORDER_SWEEP_INTERVAL", "0s")
	cfg.PaymentTimeout = duration("ORDER_PAYMENT_TIMEOUT", "30m")
	cfg.OutboxPollInterval = duration("OUTBOX_POLL_INTERVAL", "1s")
	if cfg.PaymentTimeout == 0 {
		errs = append(errs, errors.New("ORDER_PAYMENT_TIMEOUT must be positive"))
	}

	rate, err := strconv.ParseFloat(get("CHECKOUT_RATE_LIMIT", "2"), 64)
	if err != nil || rate <= 0 {
		errs = append(errs, fmt.Errorf("CHECKOUT_RATE_LIMIT: invalid rate %q", get("CHECKOUT_RATE_LIMIT", "2")))
	}
	cfg.CheckoutRateLimit = rate

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func truthy(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true" || v == "yes"
}

// KafkaEnabled reports whether the outbox relay should run.
func (c Config) KafkaEnabled() bool { return c.KafkaBrokers != "" }
