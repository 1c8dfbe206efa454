package customer

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Guests hands out one GuestCache per tenant.
type Guests struct {
	mu     sync.Mutex
	lookup func(ctx context.Context, tenantID string) (string, error)
	caches map[string]*GuestCache
}

// NewGuests builds a registry resolving guests through lookup.
func NewGuests(lookup func(ctx context.Context, tenantID string) (string, error)) *Guests {
	return &Guests{lookup: lookup, caches: map[string]*GuestCache{}}
}

// For returns the cache of tenantID, creating it on first use.
func (g *Guests) For(tenantID string) *GuestCache {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.caches[tenantID]; ok {
		return c
	}
	var fn LookupFunc
	if g.lookup != nil {
		fn = func(ctx context.Context) (string, error) { return g.lookup(ctx, tenantID) }
	}
	c := NewGuestCache(fn)
	g.caches[tenantID] = c
	return c
}

// PGLookup finds the oldest customer flagged as the tenant's walk-in guest.
func PGLookup(pool *pgxpool.Pool) func(ctx context.Context, tenantID string) (string, error) {
	return func(ctx context.Context, tenantID string) (string, error) {
		if pool == nil {
			return "", ErrNoGuest
		}
		var id string
		err := pool.QueryRow(ctx, `
			SELECT id::text FROM customers
			WHERE tenant_id = $1 AND is_guest
			ORDER BY created_at
			LIMIT 1`, tenantID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoGuest
		}
		return id, err
	}
}
