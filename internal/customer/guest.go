// Package customer holds customer lookups shared by register sessions.
package customer

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoGuest is returned when the lookup finds no guest customer.
var ErrNoGuest = errors.New("customer: guest customer not configured")

// LookupFunc finds the id of the shop's walk-in guest customer.
type LookupFunc func(ctx context.Context) (string, error)

// GuestCache resolves the guest customer id once and serves it until
// invalidated. A failed lookup is not cached.
type GuestCache struct {
	mu     sync.Mutex
	lookup LookupFunc
	id     string
}

// NewGuestCache returns a cache backed by lookup.
func NewGuestCache(lookup LookupFunc) *GuestCache {
	return &GuestCache{lookup: lookup}
}

// Resolve returns the cached guest id, calling the lookup on first use.
// Concurrent callers share a single lookup.
func (c *GuestCache) Resolve(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != "" {
		return c.id, nil
	}
	if c.lookup == nil {
		return "", ErrNoGuest
	}
	id, err := c.lookup(ctx)
	if err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrNoGuest
	}
	c.id = id
	return id, nil
}

// Invalidate drops the cached id so the next Resolve looks it up again.
func (c *GuestCache) Invalidate() {
	c.mu.Lock()
	c.id = ""
	c.mu.Unlock()
}

// IsGuest reports whether customerID is empty or the cached guest.
func (c *GuestCache) IsGuest(ctx context.Context, customerID string) bool {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return true
	}
	id, err := c.Resolve(ctx)
	return err == nil && id == customerID
}
