// Package config provides application configuration loaded from environment
// variables with defaults and validation. Both binaries share it; the API adds
// its own checks through ValidateAPI.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TablesConfig names the DynamoDB tables.
type TablesConfig struct {
	Contests          string
	Payments          string
	Participations    string
	WebhookDeliveries string
}

// StripeConfig holds processor credentials.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	Secret      string
	Issuer      string   // optional; empty disables the issuer check
	AdminEmails []string // always treated as admins
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port     string // just the number
	RunLocal bool   // serve HTTP directly instead of running as a Lambda

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// AWS
	Region           string
	EndpointOverride string // e.g. http://localhost:4566 for localstack
	Tables           TablesConfig
	WebhookQueueURL  string
	MetricsNamespace string

	Stripe StripeConfig
	JWT    JWTConfig
	CORS   CORSConfig

	// DeliveryTTL is how long webhook event ids are remembered.
	DeliveryTTL time.Duration
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
// When RUN_LOCAL is true a .env file in the working directory is read first;
// variables already set in the environment win.
func Load() (Config, error) {
	if getbool("RUN_LOCAL", false) {
		_ = godotenv.Load()
	}

	cfg := Config{
		Port:     getenv("PORT", "4000"),
		RunLocal: getbool("RUN_LOCAL", false),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		Region:           getenv("AWS_REGION", "us-east-1"),
		EndpointOverride: getenv("AWS_ENDPOINT_OVERRIDE", ""),
		Tables: TablesConfig{
			Contests:          getenv("CONTESTS_TABLE", "contests"),
			Payments:          getenv("PAYMENTS_TABLE", "payments"),
			Participations:    getenv("PARTICIPATIONS_TABLE", "participations"),
			WebhookDeliveries: getenv("WEBHOOK_DELIVERIES_TABLE", "webhook_deliveries"),
		},
		WebhookQueueURL:  getenv("WEBHOOK_QUEUE_URL", ""),
		MetricsNamespace: getenv("METRICS_NAMESPACE", "PrizeArena/Payments"),

		Stripe: StripeConfig{
			SecretKey:     getenv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
		},
		JWT: JWTConfig{
			Secret:      getenv("JWT_SECRET", ""),
			Issuer:      getenv("JWT_ISSUER", ""),
			AdminEmails: splitCSV(getenv("ADMIN_EMAILS", "")),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		DeliveryTTL: getdur("DELIVERY_TTL", 72*time.Hour),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.Tables.Contests == "" || cfg.Tables.Payments == "" || cfg.Tables.Participations == "" {
		return cfg, errors.New("table names must not be empty")
	}
	if strings.TrimSpace(cfg.Stripe.SecretKey) == "" {
		return cfg, errors.New("STRIPE_SECRET_KEY is required")
	}
	if cfg.DeliveryTTL <= 0 {
		return cfg, errors.New("DELIVERY_TTL must be > 0")
	}

	return cfg, nil
}

// ValidateAPI checks the settings only the HTTP API needs.
func (c Config) ValidateAPI() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Stripe.WebhookSecret != "" && c.WebhookQueueURL == "" {
		return errors.New("WEBHOOK_QUEUE_URL is required when STRIPE_WEBHOOK_SECRET is set")
	}
	return nil
}

// WebhooksEnabled reports whether the webhook route should be mounted.
func (c Config) WebhooksEnabled() bool {
	return c.Stripe.WebhookSecret != "" && c.WebhookQueueURL != ""
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
