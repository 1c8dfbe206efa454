package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	TenantHeader       string
	TenantRootDomain   string
	DefaultTenant      string
	AutoMigrate        bool

	// Tax rates come from Postgres ("db"), the shop settings API ("remote")
	// or a fixed GST/PST pair ("static").
	TaxProvider      string
	TaxRemoteURL     string
	TaxRemoteTimeout time.Duration
	TaxStaticGST     float64
	TaxStaticPST     float64
	TaxCacheTTL      time.Duration
	TaxWarmSchedule  string
	TaxWarmTenants   []string

	PricingTaxableDelivery bool
	PricingRejectOverTotal bool
	PaymentPrecision       int

	DraftTTL           time.Duration
	DraftRestoreWindow time.Duration
	IdempotencyTTL     time.Duration
	RateLimitPerMinute int64
	MaxBodyBytes       int64
	QRBaseURL          string
	QRSize             int

	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		TenantHeader:       valueOrDefault(k.String("TENANT_HEADER"), "X-Tenant-ID"),
		TenantRootDomain:   strings.TrimSpace(k.String("TENANT_ROOT_DOMAIN")),
		DefaultTenant:      strings.TrimSpace(k.String("TENANT_DEFAULT")),
		AutoMigrate:        parseBoolDefault(k.String("DB_AUTO_MIGRATE"), true),

		TaxProvider:      strings.ToLower(valueOrDefault(k.String("TAX_PROVIDER"), "db")),
		TaxRemoteURL:     strings.TrimSpace(k.String("TAX_REMOTE_URL")),
		TaxRemoteTimeout: parseDuration(k.String("TAX_REMOTE_TIMEOUT"), "3s"),
		TaxStaticGST:     parseFloat(k.String("TAX_STATIC_GST_PERCENT"), 5),
		TaxStaticPST:     parseFloat(k.String("TAX_STATIC_PST_PERCENT"), 7),
		TaxCacheTTL:      parseDuration(k.String("TAX_CACHE_TTL"), "5m"),
		TaxWarmSchedule:  valueOrDefault(k.String("TAX_WARM_SCHEDULE"), "@every 5m"),
		TaxWarmTenants:   splitAndTrim(k.String("TAX_WARM_TENANTS")),

		PricingTaxableDelivery: parseBoolDefault(k.String("PRICING_TAXABLE_DELIVERY"), true),
		PricingRejectOverTotal: parseBool(k.String("PRICING_REJECT_DISCOUNT_OVER_TOTAL")),
		PaymentPrecision:       parseInt(k.String("PAYMENT_PRECISION"), 2),

		DraftTTL:           parseDuration(k.String("DRAFT_TTL"), "24h"),
		DraftRestoreWindow: parseDuration(k.String("DRAFT_RESTORE_WINDOW"), "5m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitPerMinute: int64(parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120)),
		MaxBodyBytes:       int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 1<<20)),
		QRBaseURL:          strings.TrimSpace(k.String("QR_BASE_URL")),
		QRSize:             parseInt(k.String("QR_SIZE"), 256),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	switch cfg.TaxProvider {
	case "db", "static":
	case "remote":
		if cfg.TaxRemoteURL == "" {
			return nil, errors.New("TAX_REMOTE_URL is required when TAX_PROVIDER=remote")
		}
	default:
		return nil, fmt.Errorf("unsupported TAX_PROVIDER %q", cfg.TaxProvider)
	}
	if cfg.PaymentPrecision < 0 || cfg.PaymentPrecision > 4 {
		return nil, fmt.Errorf("PAYMENT_PRECISION must be between 0 and 4, got %d", cfg.PaymentPrecision)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return fallback
	case "0", "false", "no", "off":
		return false
	default:
		return parseBool(value)
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
