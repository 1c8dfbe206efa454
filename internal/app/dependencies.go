// Package app wires the stores, caches and services shared by the API server
// and the background worker.
package app

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bloom/internal/cache"
	"github.com/noah-isme/backend-bloom/internal/config"
	"github.com/noah-isme/backend-bloom/internal/customer"
	"github.com/noah-isme/backend-bloom/internal/delivery"
	"github.com/noah-isme/backend-bloom/internal/discount"
	"github.com/noah-isme/backend-bloom/internal/draft"
	"github.com/noah-isme/backend-bloom/internal/migrations"
	"github.com/noah-isme/backend-bloom/internal/obs"
	"github.com/noah-isme/backend-bloom/internal/quote"
	"github.com/noah-isme/backend-bloom/internal/resilience"
	"github.com/noah-isme/backend-bloom/internal/tax"
)

// Dependencies holds the long lived clients and services of a process.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Validator *validator.Validate
	Tasks     *asynq.Client
	Taxes     tax.Provider
	// TaxCache is nil unless rates come from Postgres.
	TaxCache *tax.Cached
	Quotes   *quote.Service
	Drafts   *draft.Store
	QR       discount.QRGenerator
}

// Options tweaks Build for the calling binary.
type Options struct {
	AppName        string
	MetricsEnabled bool
	Registerer     prometheus.Registerer
}

// Build connects to Postgres and Redis, applies migrations when enabled and
// assembles the quote pipeline.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if opts.AppName == "" {
		opts.AppName = obs.DefaultServiceName
	}
	if opts.MetricsEnabled {
		obs.MustRegisterDomainMetrics("bloom", opts.Registerer)
		if err := resilience.RegisterMetrics(opts.Registerer); err != nil {
			return nil, fmt.Errorf("register breaker metrics: %w", err)
		}
	}
	if cfg.AutoMigrate {
		version, err := migrations.Up(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info().Uint("version", version).Msg("schema migrated")
	}

	pool, err := OpenPostgres(ctx, cfg.DatabaseURL, opts.AppName)
	if err != nil {
		return nil, err
	}
	rdb, err := OpenRedis(ctx, cfg.RedisURL, opts.MetricsEnabled, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("parse redis uri for tasks: %w", err)
	}

	d := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		DB:        pool,
		Redis:     rdb,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Tasks:     asynq.NewClient(redisOpt),
		Drafts:    draft.NewStore(rdb, cfg.DraftTTL, cfg.DraftRestoreWindow),
		QR:        discount.QRGenerator{BaseURL: cfg.QRBaseURL, Size: cfg.QRSize},
	}
	d.Taxes, d.TaxCache = NewTaxProvider(cfg, pool, rdb, logger)

	svc := quote.NewService(d.Taxes, discount.NewStore(pool), delivery.NewStore(pool), logger)
	svc.Guests = customer.NewGuests(customer.PGLookup(pool))
	svc.TaxableDelivery = cfg.PricingTaxableDelivery
	svc.RejectOverTotal = cfg.PricingRejectOverTotal
	svc.Precision = cfg.PaymentPrecision
	d.Quotes = svc
	return d, nil
}

// Close releases the connections held by d.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close task client")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// NewTaxProvider selects the rate source named by cfg.TaxProvider. Postgres
// rates are cached in Redis and the cache is returned so it can be warmed.
func NewTaxProvider(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, logger zerolog.Logger) (tax.Provider, *tax.Cached) {
	switch cfg.TaxProvider {
	case "remote":
		return tax.NewRemote(cfg.TaxRemoteURL, cfg.TaxRemoteTimeout, logger), nil
	case "static":
		return DefaultRates(cfg), nil
	default:
		cached := tax.NewCached(tax.NewStore(pool), cache.NewJSON(rdb, cfg.TaxCacheTTL), logger)
		return cached, cached
	}
}

// OpenPostgres creates a traced pgx pool and checks connectivity.
func OpenPostgres(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis creates an instrumented Redis client and checks connectivity.
// Instrumentation failures are logged, not fatal.
func OpenRedis(ctx context.Context, redisURL string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// DefaultRates is the configured GST/PST pair, served as is by the static
// provider and seeded for new tenants.
func DefaultRates(cfg *config.Config) tax.Static {
	return tax.Static{
		{ID: "gst", Name: "GST", Percent: cfg.TaxStaticGST, Active: true, SortOrder: 1, Description: "Goods and Services Tax"},
		{ID: "pst", Name: "PST", Percent: cfg.TaxStaticPST, Active: true, SortOrder: 2, Description: "Provincial Sales Tax"},
	}
}

// ErrNoTenants is returned by WarmAll when there is nothing to warm.
var ErrNoTenants = errors.New("app: no tenants configured for tax warm-up")

// WarmAll queues a rate refresh for every configured tenant.
func (d *Dependencies) WarmAll(ctx context.Context) error {
	if len(d.Config.TaxWarmTenants) == 0 {
		return ErrNoTenants
	}
	for _, id := range d.Config.TaxWarmTenants {
		if err := tax.EnqueueWarm(ctx, d.Tasks, id); err != nil {
			return err
		}
	}
	return nil
}
