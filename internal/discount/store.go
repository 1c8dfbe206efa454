package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the discount store dependency is not configured.
var ErrStoreUnavailable = errors.New("discount: store unavailable")

// Store loads discount rules for a tenant.
type Store interface {
	FindByCode(ctx context.Context, tenantID, code string) (Rule, error)
	ListAutomatic(ctx context.Context, tenantID string) ([]Rule, error)
	CustomerUsage(ctx context.Context, discountID, customerID string) (int32, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const ruleColumns = `id::text, COALESCE(code, ''), name, kind, trigger, value_cents, percent_bps, minimum_order_cents,
usage_limit, usage_count, per_customer_limit, start_date, end_date,
applicable_products, applicable_categories, pos_only, web_only, enabled`

// FindByCode fetches a coupon rule by its code. Codes are matched upper-cased.
func (s *pgStore) FindByCode(ctx context.Context, tenantID, code string) (Rule, error) {
	if s == nil || s.pool == nil {
		return Rule{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM discounts
WHERE tenant_id = $1 AND code = $2 AND trigger = 'COUPON_CODE'`, tenantID, NormalizeCode(code))
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, fmt.Errorf("find discount %q: %w", code, err)
	}
	return rule, nil
}

// ListAutomatic returns the enabled automatic rules for a tenant ordered by priority.
func (s *pgStore) ListAutomatic(ctx context.Context, tenantID string) ([]Rule, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+ruleColumns+` FROM discounts
WHERE tenant_id = $1 AND enabled AND trigger IN ('AUTOMATIC_PRODUCT', 'AUTOMATIC_CATEGORY')
ORDER BY priority DESC, created_at ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list automatic discounts: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CustomerUsage counts how many times the customer has redeemed the discount.
func (s *pgStore) CustomerUsage(ctx context.Context, discountID, customerID string) (int32, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	if customerID == "" {
		return 0, nil
	}
	var count int32
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*)::int FROM discount_usages
WHERE discount_id = $1::uuid AND customer_id = $2`, discountID, customerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count discount usage: %w", err)
	}
	return count, nil
}

func scanRule(row pgx.Row) (Rule, error) {
	var (
		r          Rule
		kind       string
		trigger    string
		start, end *time.Time
	)
	err := row.Scan(
		&r.ID, &r.Code, &r.Name, &kind, &trigger, &r.Value, &r.PercentBps, &r.MinimumOrder,
		&r.UsageLimit, &r.UsageCount, &r.PerCustomerLimit, &start, &end,
		&r.ApplicableProducts, &r.ApplicableCategories, &r.POSOnly, &r.WebOnly, &r.Enabled,
	)
	if err != nil {
		return Rule{}, err
	}
	r.Kind = RuleKind(kind)
	r.Trigger = Trigger(trigger)
	r.StartDate, r.EndDate = start, end
	return r, nil
}

// Lookup resolves a coupon code for cart, filling in the customer usage count
// and validating the rule at now.
func Lookup(ctx context.Context, store Store, tenantID, code string, cart Cart, now time.Time) (Rule, error) {
	if NormalizeCode(code) == "" {
		return Rule{}, ErrNotFound
	}
	rule, err := store.FindByCode(ctx, tenantID, code)
	if err != nil {
		return Rule{}, err
	}
	if rule.PerCustomerLimit != nil && cart.CustomerID != "" {
		used, err := store.CustomerUsage(ctx, rule.ID, cart.CustomerID)
		if err != nil {
			return Rule{}, err
		}
		rule.CustomerUsage = used
	}
	if err := rule.Validate(now, cart); err != nil {
		return rule, err
	}
	return rule, nil
}
