package tax

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bloom/internal/cache"
	"github.com/noah-isme/backend-bloom/internal/obs"
	"github.com/noah-isme/backend-bloom/internal/pricing"
)

// DefaultCacheTTL bounds how long cached rates are served after an update.
const DefaultCacheTTL = 5 * time.Minute

// Cached serves rates from Redis and falls back to the wrapped provider on a
// miss. Cache errors are logged and never fail the lookup.
type Cached struct {
	Next   Provider
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// NewCached wraps next with a Redis JSON cache.
func NewCached(next Provider, c *cache.JSON, logger zerolog.Logger) *Cached {
	return &Cached{Next: next, Cache: c, Logger: logger}
}

// Rates implements Provider.
func (c *Cached) Rates(ctx context.Context, tenantID string) ([]pricing.Rate, error) {
	key := cache.KeyTaxRates(tenantID)
	var rates []pricing.Rate
	hit, err := c.Cache.Get(ctx, key, &rates)
	if err != nil {
		c.Logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tax rate cache read failed")
	}
	if hit {
		obs.IncCounter(obs.TaxProviderTotal, "cache", "hit")
		return rates, nil
	}
	obs.IncCounter(obs.TaxProviderTotal, "cache", "miss")
	return c.Warm(ctx, tenantID)
}

// Warm reloads the tenant's rates from the wrapped provider into the cache.
func (c *Cached) Warm(ctx context.Context, tenantID string) ([]pricing.Rate, error) {
	if c.Next == nil {
		return nil, ErrUnavailable
	}
	rates, err := c.Next.Rates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if rates == nil {
		rates = []pricing.Rate{}
	}
	if err := c.Cache.Set(ctx, cache.KeyTaxRates(tenantID), rates); err != nil {
		c.Logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tax rate cache write failed")
	}
	return rates, nil
}

// Invalidate drops the cached rates of a tenant.
func (c *Cached) Invalidate(ctx context.Context, tenantID string) error {
	return c.Cache.Delete(ctx, cache.KeyTaxRates(tenantID))
}
