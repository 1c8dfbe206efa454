package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func km(v float64) *float64 { return &v }

var zones = []Zone{
	{Name: "Downtown", MinKm: 0, MaxKm: km(5), Fee: 1_000, Enabled: true},
	{Name: "Closed", MinKm: 5, MaxKm: km(10), Fee: 1_200, Enabled: false},
	{Name: "Suburbs", MinKm: 5, MaxKm: km(15), Fee: 1_500, Enabled: true},
	{Name: "Far", MinKm: 15, MaxKm: nil, Fee: 2_500, Enabled: true},
}

func TestFeeForDistance(t *testing.T) {
	settings := Settings{Enabled: true, MaxRadiusKm: 40}

	res := FeeForDistance(settings, zones, 4.9)
	require.True(t, res.InZone)
	require.Equal(t, int64(1_000), res.Fee)
	require.Equal(t, "Downtown", res.ZoneName)

	res = FeeForDistance(settings, zones, 5)
	require.Equal(t, "Suburbs", res.ZoneName)
	require.Equal(t, int64(1_500), res.Fee)

	res = FeeForDistance(settings, zones, 30)
	require.Equal(t, "Far", res.ZoneName)

	res = FeeForDistance(settings, zones, 41)
	require.False(t, res.InZone)
	require.Zero(t, res.Fee)
	require.NotNil(t, res.DistanceKm)
}

func TestFeeForDistanceEdgeCases(t *testing.T) {
	res := FeeForDistance(Settings{Enabled: false}, zones, 100)
	require.True(t, res.InZone)
	require.Zero(t, res.Fee)
	require.Nil(t, res.DistanceKm)

	res = FeeForDistance(Settings{Enabled: true}, zones[:1], 7)
	require.False(t, res.InZone)
	require.Zero(t, res.Fee)

	res = FeeForDistance(Settings{Enabled: true}, zones, -1)
	require.False(t, res.InZone)
}

func TestApplyFreeMinimum(t *testing.T) {
	settings := Settings{Enabled: true, FreeDeliveryMinimum: 10_000}
	require.Zero(t, ApplyFreeMinimum(settings, 10_000, 1_500))
	require.Equal(t, int64(1_500), ApplyFreeMinimum(settings, 9_999, 1_500))
	require.Equal(t, int64(1_500), ApplyFreeMinimum(Settings{}, 50_000, 1_500))
}

func TestStaticStore(t *testing.T) {
	s := Static{Settings: Settings{Enabled: true}, Zones: zones}
	settings, got, err := s.Load(context.Background(), "any")
	require.NoError(t, err)
	require.True(t, settings.Enabled)
	require.Len(t, got, len(zones))

	_, _, err = (*pgStore)(nil).Load(context.Background(), "t")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
