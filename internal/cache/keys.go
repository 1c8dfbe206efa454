package cache

import (
	"context"

	"github.com/noah-isme/backend-bloom/internal/tenant"
)

// KeyTaxRates returns the per-tenant cache key for the active tax rates.
func KeyTaxRates(tenantID string) string {
	return tenant.PrefixKey(tenantID, "tax:rates")
}

// KeyDraft returns the per-tenant key holding a single order draft.
func KeyDraft(ctx context.Context, id string) string {
	return tenant.PrefixKey(tenantOf(ctx), "draft:"+id)
}

// KeyDraftIndex returns the per-tenant sorted set indexing drafts by save time.
func KeyDraftIndex(ctx context.Context) string {
	return tenant.PrefixKey(tenantOf(ctx), "drafts")
}

func tenantOf(ctx context.Context) string {
	id, _ := tenant.FromContext(ctx)
	return id
}
