package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bloom/internal/config"
	"github.com/noah-isme/backend-bloom/internal/tax"
)

func TestNewTaxProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{TaxProvider: "static", TaxStaticGST: 5, TaxStaticPST: 7, TaxCacheTTL: time.Minute}
	p, cached := NewTaxProvider(cfg, nil, rdb, zerolog.Nop())
	require.Nil(t, cached)
	res, err := tax.Resolve(context.Background(), p, "rosebud")
	require.NoError(t, err)
	require.InDelta(t, 0.05, res.Rates.GSTRate, 1e-12)
	require.InDelta(t, 0.07, res.Rates.PSTRate, 1e-12)

	cfg.TaxProvider = "remote"
	cfg.TaxRemoteURL = "http://settings.internal"
	p, cached = NewTaxProvider(cfg, nil, rdb, zerolog.Nop())
	require.Nil(t, cached)
	require.IsType(t, &tax.Remote{}, p)

	cfg.TaxProvider = "db"
	p, cached = NewTaxProvider(cfg, nil, rdb, zerolog.Nop())
	require.NotNil(t, cached)
	require.Same(t, cached, p)
}

func TestWarmAllRequiresTenants(t *testing.T) {
	d := &Dependencies{Config: &config.Config{}}
	require.ErrorIs(t, d.WarmAll(context.Background()), ErrNoTenants)
}

func TestCloseNil(t *testing.T) {
	var d *Dependencies
	require.NotPanics(t, d.Close)
}
