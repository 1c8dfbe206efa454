package tax

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-bloom/internal/pricing"
)

// PGStore reads tax rates from Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Provider backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Rates returns the tenant's tax rates ordered by sort order.
func (s *PGStore) Rates(ctx context.Context, tenantID string) ([]pricing.Rate, error) {
	if s == nil || s.pool == nil {
		return nil, ErrUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT id::text, name, rate::float8, is_active, sort_order, COALESCE(description, '')
FROM tax_rates WHERE tenant_id = $1 ORDER BY sort_order ASC, name ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tax rates: %w", err)
	}
	defer rows.Close()

	var rates []pricing.Rate
	for rows.Next() {
		var r pricing.Rate
		if err := rows.Scan(&r.ID, &r.Name, &r.Percent, &r.Active, &r.SortOrder, &r.Description); err != nil {
			return nil, fmt.Errorf("scan tax rate: %w", err)
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}
