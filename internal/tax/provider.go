// Package tax supplies the GST/PST rates consumed by the pricing pipeline.
package tax

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-bloom/internal/pricing"
)

// ErrUnavailable indicates the tax rate source is not configured.
var ErrUnavailable = errors.New("tax: provider unavailable")

// Provider lists the tax rates configured for a tenant.
type Provider interface {
	Rates(ctx context.Context, tenantID string) ([]pricing.Rate, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, tenantID string) ([]pricing.Rate, error)

// Rates implements Provider.
func (f ProviderFunc) Rates(ctx context.Context, tenantID string) ([]pricing.Rate, error) {
	return f(ctx, tenantID)
}

// Static serves a fixed rate list regardless of tenant.
type Static []pricing.Rate

// Rates implements Provider.
func (s Static) Rates(context.Context, string) ([]pricing.Rate, error) {
	out := make([]pricing.Rate, len(s))
	copy(out, s)
	return out, nil
}

// Resolved is the outcome of a rate lookup ready for the pricing engine.
type Resolved struct {
	Rates pricing.TaxRates
	List  []pricing.Rate
}

// Resolve fetches the tenant's rates and derives the GST/PST fractions. Only
// active rates are returned in List.
func Resolve(ctx context.Context, p Provider, tenantID string) (Resolved, error) {
	if p == nil {
		return Resolved{}, ErrUnavailable
	}
	list, err := p.Rates(ctx, tenantID)
	if err != nil {
		return Resolved{}, err
	}
	active := make([]pricing.Rate, 0, len(list))
	for _, r := range list {
		if r.Active {
			active = append(active, r)
		}
	}
	return Resolved{Rates: pricing.RatesFrom(active), List: active}, nil
}
