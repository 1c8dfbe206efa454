package tax

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-bloom/internal/obs"
	"github.com/noah-isme/backend-bloom/internal/pricing"
	"github.com/noah-isme/backend-bloom/internal/resilience"
)

const activeRatesPath = "/api/settings/tax-rates/active"

// Remote fetches rates from the shop settings API. Upstream failures degrade
// to an empty rate list so quotes are still produced, untaxed.
type Remote struct {
	BaseURL      string
	TenantHeader string
	Client       resilience.HTTPClient
	Logger       zerolog.Logger
}

// NewRemote builds a remote provider with retry, a circuit breaker and
// outbound tracing.
func NewRemote(baseURL string, timeout time.Duration, logger zerolog.Logger) *Remote {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Remote{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		TenantHeader: "X-Tenant-ID",
		Client: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("tax-rates").WithLogger(logger),
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		Logger: logger,
	}
}

type ratesResponse struct {
	Success  bool           `json:"success"`
	TaxRates []pricing.Rate `json:"taxRates"`
}

// Rates implements Provider.
func (r *Remote) Rates(ctx context.Context, tenantID string) ([]pricing.Rate, error) {
	if r == nil || r.BaseURL == "" {
		return nil, ErrUnavailable
	}
	rates, err := r.fetch(ctx, tenantID)
	if err != nil {
		obs.IncCounter(obs.TaxProviderTotal, "remote", "fallback")
		r.Logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tax rates unavailable, continuing without tax")
		return []pricing.Rate{}, nil
	}
	obs.IncCounter(obs.TaxProviderTotal, "remote", "ok")
	return rates, nil
}

func (r *Remote) fetch(ctx context.Context, tenantID string) ([]pricing.Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+activeRatesPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if tenantID != "" && r.TenantHeader != "" {
		req.Header.Set(r.TenantHeader, tenantID)
	}
	resp, err := r.Client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tax rates: unexpected status %d", resp.StatusCode)
	}
	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode tax rates: %w", err)
	}
	if body.TaxRates == nil {
		body.TaxRates = []pricing.Rate{}
	}
	return body.TaxRates, nil
}
