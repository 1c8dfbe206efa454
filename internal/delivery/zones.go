// Package delivery resolves delivery fees from distance-based zones.
package delivery

import (
	"math"

	"github.com/noah-isme/backend-bloom/internal/money"
)

// Zone charges Fee for distances in [MinKm, MaxKm). A nil MaxKm is unbounded.
type Zone struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	MinKm   float64     `json:"minDistance"`
	MaxKm   *float64    `json:"maxDistance"`
	Fee     money.Cents `json:"fee"`
	Enabled bool        `json:"enabled"`
}

// Settings holds the shop-wide delivery configuration.
type Settings struct {
	Enabled             bool        `json:"enabled"`
	MaxRadiusKm         float64     `json:"maxDeliveryRadius,omitempty"`
	FreeDeliveryMinimum money.Cents `json:"freeDeliveryMinimum,omitempty"`
}

// Result describes the fee chosen for a distance.
type Result struct {
	Fee        money.Cents `json:"fee"`
	InZone     bool        `json:"inZone"`
	DistanceKm *float64    `json:"distance"`
	ZoneName   string      `json:"zoneName,omitempty"`
}

// FeeForDistance picks the first enabled zone containing distanceKm. Disabled
// delivery is free and always in zone; distances past the maximum radius or
// outside every zone are out of zone with no fee.
func FeeForDistance(settings Settings, zones []Zone, distanceKm float64) Result {
	if !settings.Enabled {
		return Result{InZone: true}
	}
	if math.IsNaN(distanceKm) || distanceKm < 0 {
		return Result{}
	}
	d := distanceKm
	if settings.MaxRadiusKm > 0 && d > settings.MaxRadiusKm {
		return Result{DistanceKm: &d}
	}
	for _, z := range zones {
		if !z.Enabled {
			continue
		}
		if d >= z.MinKm && (z.MaxKm == nil || d < *z.MaxKm) {
			return Result{Fee: z.Fee, InZone: true, DistanceKm: &d, ZoneName: z.Name}
		}
	}
	return Result{DistanceKm: &d}
}

// ApplyFreeMinimum waives fee when itemTotal reaches the free delivery minimum.
func ApplyFreeMinimum(settings Settings, itemTotal, fee money.Cents) money.Cents {
	if settings.FreeDeliveryMinimum > 0 && itemTotal >= settings.FreeDeliveryMinimum {
		return 0
	}
	return fee
}
