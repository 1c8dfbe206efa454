package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the delivery store dependency is not configured.
var ErrStoreUnavailable = errors.New("delivery: store unavailable")

// Store loads a tenant's delivery configuration.
type Store interface {
	Load(ctx context.Context, tenantID string) (Settings, []Zone, error)
}

// Static serves the same configuration to every tenant.
type Static struct {
	Settings Settings
	Zones    []Zone
}

// Load implements Store.
func (s Static) Load(context.Context, string) (Settings, []Zone, error) {
	return s.Settings, append([]Zone(nil), s.Zones...), nil
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// Load implements Store. A tenant without a settings row has delivery disabled.
func (s *pgStore) Load(ctx context.Context, tenantID string) (Settings, []Zone, error) {
	if s == nil || s.pool == nil {
		return Settings{}, nil, ErrStoreUnavailable
	}
	var settings Settings
	err := s.pool.QueryRow(ctx, `SELECT enabled, COALESCE(max_radius_km, 0)::float8, COALESCE(free_delivery_minimum_cents, 0)
FROM delivery_settings WHERE tenant_id = $1`, tenantID).Scan(&settings.Enabled, &settings.MaxRadiusKm, &settings.FreeDeliveryMinimum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, nil, nil
		}
		return Settings{}, nil, fmt.Errorf("load delivery settings: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT id::text, name, min_distance_km::float8, max_distance_km::float8, fee_cents, enabled
FROM delivery_zones WHERE tenant_id = $1 ORDER BY min_distance_km ASC`, tenantID)
	if err != nil {
		return Settings{}, nil, fmt.Errorf("list delivery zones: %w", err)
	}
	defer rows.Close()
	var zones []Zone
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.MinKm, &z.MaxKm, &z.Fee, &z.Enabled); err != nil {
			return Settings{}, nil, fmt.Errorf("scan delivery zone: %w", err)
		}
		zones = append(zones, z)
	}
	return settings, zones, rows.Err()
}
