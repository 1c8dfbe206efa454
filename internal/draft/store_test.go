package draft

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bloom/internal/pricing"
	"github.com/noah-isme/backend-bloom/internal/tenant"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	s := NewStore(client, time.Hour, 0)
	s.now = func() time.Time { return now }
	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("d%d", seq)
	}
	return s, mr, &now
}

func roses(qty int64) []pricing.Order {
	return []pricing.Order{{Items: []pricing.LineItem{{Description: "Dozen roses", PriceCents: 4500, Quantity: qty, Taxable: true}}}}
}

func TestSaveAndGet(t *testing.T) {
	s, mr, _ := newTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "rosebud")

	saved, err := s.Save(ctx, Draft{Orders: roses(2), Employee: "sam", TotalCents: 9450})
	require.NoError(t, err)
	require.Equal(t, "d1", saved.ID)
	require.Equal(t, int64(2), saved.ItemCount)
	require.Equal(t, "rosebud", saved.TenantID)
	require.True(t, mr.Exists("rosebud:draft:d1"))
	require.Equal(t, time.Hour, mr.TTL("rosebud:draft:d1"))
	require.False(t, mr.Exists("lock:rosebud:draft:d1"))

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "sam", got.Employee)
	require.Len(t, got.Orders, 1)

	// other tenants do not see the draft
	_, err = s.Get(tenant.WithTenant(context.Background(), "tulip"), "d1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveEmptyDeletes(t *testing.T) {
	s, mr, _ := newTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "rosebud")

	saved, err := s.Save(ctx, Draft{Orders: roses(1)})
	require.NoError(t, err)

	_, err = s.Save(ctx, Draft{ID: saved.ID, Orders: []pricing.Order{{}}})
	require.ErrorIs(t, err, ErrEmpty)
	require.False(t, mr.Exists("rosebud:draft:"+saved.ID))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestListNewestFirstAndPrunes(t *testing.T) {
	s, mr, now := newTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "rosebud")

	_, err := s.Save(ctx, Draft{Orders: roses(1)})
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	_, err = s.Save(ctx, Draft{Orders: roses(3)})
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "d2", list[0].ID)
	require.Equal(t, "d1", list[1].ID)

	mr.Del("rosebud:draft:d1")
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	members, err := mr.ZMembers("rosebud:drafts")
	require.NoError(t, err)
	require.Equal(t, []string{"d2"}, members)
}

func TestDelete(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "rosebud")

	_, err := s.Save(ctx, Draft{Orders: roses(1)})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "d1"))
	require.ErrorIs(t, s.Delete(ctx, "d1"), ErrNotFound)
}

func TestAutoRestore(t *testing.T) {
	t.Run("single recent draft is restored and removed", func(t *testing.T) {
		s, mr, now := newTestStore(t)
		ctx := tenant.WithTenant(context.Background(), "rosebud")
		_, err := s.Save(ctx, Draft{Orders: roses(1)})
		require.NoError(t, err)

		*now = now.Add(4 * time.Minute)
		d, ok, err := s.AutoRestore(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "d1", d.ID)
		require.False(t, mr.Exists("rosebud:draft:d1"))
	})

	t.Run("stale draft is kept", func(t *testing.T) {
		s, _, now := newTestStore(t)
		ctx := tenant.WithTenant(context.Background(), "rosebud")
		_, err := s.Save(ctx, Draft{Orders: roses(1)})
		require.NoError(t, err)

		*now = now.Add(6 * time.Minute)
		_, ok, err := s.AutoRestore(ctx)
		require.NoError(t, err)
		require.False(t, ok)
		_, err = s.Get(ctx, "d1")
		require.NoError(t, err)
	})

	t.Run("several drafts need a manual pick", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		ctx := tenant.WithTenant(context.Background(), "rosebud")
		_, err := s.Save(ctx, Draft{Orders: roses(1)})
		require.NoError(t, err)
		_, err = s.Save(ctx, Draft{Orders: roses(2)})
		require.NoError(t, err)

		_, ok, err := s.AutoRestore(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})
}
