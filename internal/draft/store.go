// Package draft persists in-progress register orders so they survive reloads.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-bloom/internal/cache"
	"github.com/noah-isme/backend-bloom/internal/discount"
	"github.com/noah-isme/backend-bloom/internal/lock"
	"github.com/noah-isme/backend-bloom/internal/money"
	"github.com/noah-isme/backend-bloom/internal/obs"
	"github.com/noah-isme/backend-bloom/internal/pricing"
	"github.com/noah-isme/backend-bloom/internal/tenant"
)

var (
	// ErrNotFound is returned when the draft does not exist or has expired.
	ErrNotFound = errors.New("draft not found")
	// ErrEmpty is returned when saving a draft without any items.
	ErrEmpty = errors.New("draft has no items")
)

// Defaults applied when the store is built with zero values.
const (
	DefaultTTL           = 24 * time.Hour
	DefaultRestoreWindow = 5 * time.Minute
)

// Draft is the saved state of an order being taken at the register.
type Draft struct {
	ID               string              `json:"id"`
	TenantID         string              `json:"tenantId,omitempty"`
	Orders           []pricing.Order     `json:"orders"`
	Customer         json.RawMessage     `json:"customer,omitempty"`
	Employee         string              `json:"employee,omitempty"`
	Source           string              `json:"orderSource,omitempty"`
	Discounts        []discount.Discount `json:"discounts,omitempty"`
	AppliedAutomatic []discount.Applied  `json:"appliedAutomaticDiscounts,omitempty"`
	ActiveTab        int                 `json:"activeTab"`
	SavedAt          time.Time           `json:"savedAt"`
	ItemCount        int64               `json:"itemCount"`
	TotalCents       money.Cents         `json:"totalCents"`
}

// Store keeps drafts in Redis, one JSON document per draft plus a per-tenant
// sorted set ordering drafts by save time.
type Store struct {
	R             *redis.Client
	Locker        lock.Locker
	TTL           time.Duration
	RestoreWindow time.Duration
	LockTTL       time.Duration

	now   func() time.Time
	newID func() string
}

// NewStore builds a draft store on client.
func NewStore(client *redis.Client, ttl, restoreWindow time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if restoreWindow <= 0 {
		restoreWindow = DefaultRestoreWindow
	}
	return &Store{
		R:             client,
		Locker:        lock.Locker{R: client, RetryBackoff: 20 * time.Millisecond, MaxWait: 2 * time.Second},
		TTL:           ttl,
		RestoreWindow: restoreWindow,
		LockTTL:       5 * time.Second,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// Save stores d under its ID, assigning one when missing, and refreshes its
// TTL. A draft without items is deleted instead and ErrEmpty returned.
func (s *Store) Save(ctx context.Context, d Draft) (Draft, error) {
	if strings.TrimSpace(d.ID) == "" {
		d.ID = s.newID()
	}
	d.ItemCount = pricing.Aggregate(d.Orders).ItemCount
	if d.ItemCount <= 0 {
		if err := s.Delete(ctx, d.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return Draft{}, err
		}
		return Draft{}, ErrEmpty
	}
	d.TenantID, _ = tenant.FromContext(ctx)
	d.SavedAt = s.now().UTC()

	key := cache.KeyDraft(ctx, d.ID)
	err := s.Locker.WithLock(ctx, lock.Key(key), s.LockTTL, func(ctx context.Context) error {
		payload, err := json.Marshal(d)
		if err != nil {
			return err
		}
		index := cache.KeyDraftIndex(ctx)
		cutoff := strconv.FormatInt(d.SavedAt.Add(-s.TTL).UnixMilli(), 10)
		_, err = s.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.TTL)
			pipe.ZAdd(ctx, index, redis.Z{Score: float64(d.SavedAt.UnixMilli()), Member: d.ID})
			pipe.ZRemRangeByScore(ctx, index, "-inf", "("+cutoff)
			pipe.Expire(ctx, index, s.TTL)
			return nil
		})
		return err
	})
	s.record("save", err)
	if err != nil {
		return Draft{}, fmt.Errorf("save draft %s: %w", d.ID, err)
	}
	return d, nil
}

// Get loads a single draft.
func (s *Store) Get(ctx context.Context, id string) (Draft, error) {
	data, err := s.R.Get(ctx, cache.KeyDraft(ctx, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Draft{}, ErrNotFound
		}
		return Draft{}, fmt.Errorf("get draft %s: %w", id, err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return d, nil
}

// List returns the tenant's drafts, newest first. Expired entries are pruned
// from the index.
func (s *Store) List(ctx context.Context) ([]Draft, error) {
	index := cache.KeyDraftIndex(ctx)
	ids, err := s.R.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	if len(ids) == 0 {
		return []Draft{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.KeyDraft(ctx, id)
	}
	values, err := s.R.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	drafts := make([]Draft, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var d Draft
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		drafts = append(drafts, d)
	}
	if len(stale) > 0 {
		_ = s.R.ZRem(ctx, index, stale...).Err()
	}
	return drafts, nil
}

// Delete removes a draft. Deleting a missing draft returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := s.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, cache.KeyDraft(ctx, id))
		pipe.ZRem(ctx, cache.KeyDraftIndex(ctx), id)
		return nil
	})
	s.record("delete", err)
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// AutoRestore hands back the only draft of the tenant when it was saved within
// the restore window, removing it from the store. Otherwise ok is false.
func (s *Store) AutoRestore(ctx context.Context) (d Draft, ok bool, err error) {
	drafts, err := s.List(ctx)
	if err != nil {
		return Draft{}, false, err
	}
	if len(drafts) != 1 {
		return Draft{}, false, nil
	}
	d = drafts[0]
	if d.SavedAt.IsZero() || s.now().Sub(d.SavedAt) > s.RestoreWindow {
		return Draft{}, false, nil
	}
	if err := s.Delete(ctx, d.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return Draft{}, false, err
	}
	s.record("restore", nil)
	return d, true, nil
}

func (s *Store) record(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.IncCounter(obs.DraftOperationsTotal, op, result)
}
