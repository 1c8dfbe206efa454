package obs_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bloom/internal/obs"
	"github.com/noah-isme/backend-bloom/internal/tenant"
)

func TestDomainMetricsRegisterOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("bloom", registry)
	obs.MustRegisterDomainMetrics("bloom", registry)

	obs.IncCounter(obs.TaxProviderTotal, "postgres", "ok")
	obs.IncCounter(obs.DiscountRejectedTotal, "coupon", "EXPIRED")
	obs.ObserveMillis(obs.QuoteDuration, 3, "ok")

	require.Equal(t, 1.0, testutil.ToFloat64(obs.TaxProviderTotal.WithLabelValues("postgres", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.DiscountRejectedTotal.WithLabelValues("coupon", "EXPIRED")))
	require.Equal(t, 1, testutil.CollectAndCount(obs.QuoteDuration))
}

func TestIncCounterToleratesNil(t *testing.T) {
	require.NotPanics(t, func() {
		obs.IncCounter(nil, "x")
		obs.ObserveMillis(nil, 1, "x")
	})
}

func TestRequestLoggerIncludesTenant(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), "rosebud"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	require.True(t, strings.Contains(line, `"tenant_id":"rosebud"`), line)
	require.True(t, strings.Contains(line, `"status":201`), line)
}
