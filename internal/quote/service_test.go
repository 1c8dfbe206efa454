package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bloom/internal/customer"
	"github.com/noah-isme/backend-bloom/internal/delivery"
	"github.com/noah-isme/backend-bloom/internal/discount"
	"github.com/noah-isme/backend-bloom/internal/money"
	"github.com/noah-isme/backend-bloom/internal/payment"
	"github.com/noah-isme/backend-bloom/internal/pricing"
	"github.com/noah-isme/backend-bloom/internal/tax"
	"github.com/noah-isme/backend-bloom/internal/tenant"
)

var bcTax = tax.Static{
	{ID: "1", Name: "GST", Percent: 5, Active: true, SortOrder: 1},
	{ID: "2", Name: "PST", Percent: 7, Active: true, SortOrder: 2},
}

type fakeRules struct {
	byCode    map[string]discount.Rule
	automatic []discount.Rule
	usage     int32
	err       error
}

func (f *fakeRules) FindByCode(_ context.Context, _ string, code string) (discount.Rule, error) {
	if f.err != nil {
		return discount.Rule{}, f.err
	}
	r, ok := f.byCode[discount.NormalizeCode(code)]
	if !ok {
		return discount.Rule{}, discount.ErrNotFound
	}
	return r, nil
}

func (f *fakeRules) ListAutomatic(context.Context, string) ([]discount.Rule, error) {
	return f.automatic, f.err
}

func (f *fakeRules) CustomerUsage(context.Context, string, string) (int32, error) {
	return f.usage, nil
}

func cents(v int64) *money.CentsInput {
	c := money.CentsInput(v)
	return &c
}

func ptr[T any](v T) *T { return &v }

func newService(rules discount.Store, zones delivery.Store) *Service {
	s := NewService(bcTax, rules, zones, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC) }
	return s
}

func ctxFor(id string) context.Context {
	return tenant.WithTenant(context.Background(), id)
}

func bouquet(priceCents int64, fee int64) []OrderInput {
	return []OrderInput{{
		Items:       []ItemInput{{ProductID: "p1", Description: "Spring bouquet", PriceCents: cents(priceCents), Qty: "1", Taxable: true}},
		DeliveryFee: cents(fee),
	}}
}

func TestQuoteWorkedExample(t *testing.T) {
	s := newService(nil, nil)
	res, err := s.Quote(ctxFor("rosebud"), Request{
		Orders:          bouquet(10000, 500),
		ManualDiscounts: []ManualDiscount{{Kind: discount.KindPercent, Value: "10"}},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.Summary{
		ItemTotal:         10000,
		DeliveryFee:       500,
		Taxable:           10500,
		Discount:          1050,
		DiscountOnTaxable: 1050,
		AdjustedTaxable:   9450,
		Subtotal:          9450,
		GST:               473,
		PST:               662,
		Total:             10585,
	}, res.Summary)
	require.Equal(t, "$105.85", res.FormattedTotal)
	require.Len(t, res.TaxLines, 2)
	require.Equal(t, res.Summary.GST+res.Summary.PST, res.TaxLinesTotal)
	require.True(t, res.Payments.HasBalance)
	require.Equal(t, "$105.85", res.FormattedBalance)
}

func TestQuoteLegacyPriceStrings(t *testing.T) {
	s := newService(nil, nil)
	res, err := s.Quote(ctxFor("rosebud"), Request{Orders: []OrderInput{{Items: []ItemInput{
		{Description: "Roses", Price: "45.00", Qty: "2", Taxable: true},
		{Description: "Card", Price: "1500", Qty: "1"},
		{Description: "Vase", Price: "12", Qty: "abc"},
	}}}})
	require.NoError(t, err)
	require.Equal(t, int64(10500), res.Summary.ItemTotal)
	require.Equal(t, int64(9000), res.Summary.Taxable)
	require.Equal(t, int64(4), res.ItemCount)
}

func TestQuoteInvalidManualDiscount(t *testing.T) {
	s := newService(nil, nil)
	res, err := s.Quote(ctxFor("rosebud"), Request{
		Orders:          bouquet(5000, 0),
		ManualDiscounts: []ManualDiscount{{Kind: discount.KindAmount, Value: "0"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{discount.MsgValueRequired}, res.DiscountErrors)
	require.Empty(t, res.Discounts)
}

func TestQuoteOverTotalDiscountClamps(t *testing.T) {
	s := newService(nil, nil)
	res, err := s.Quote(ctxFor("rosebud"), Request{
		Orders:          bouquet(5000, 0),
		ManualDiscounts: []ManualDiscount{{Kind: discount.KindPercent, Value: "150"}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), res.Summary.Subtotal)
	require.Equal(t, int64(0), res.Summary.Total)

	s.RejectOverTotal = true
	res, err = s.Quote(ctxFor("rosebud"), Request{
		Orders:          bouquet(5000, 0),
		ManualDiscounts: []ManualDiscount{{Kind: discount.KindPercent, Value: "150"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{discount.MsgExceedsTotal}, res.DiscountErrors)
	require.Equal(t, int64(5000), res.Summary.Subtotal)
}

func TestQuoteCoupon(t *testing.T) {
	rules := &fakeRules{byCode: map[string]discount.Rule{
		"SPRING5": {ID: "d1", Code: "SPRING5", Name: "Spring $5", Kind: discount.FixedAmount, Value: 500, Enabled: true},
		"FREESHIP": {ID: "d2", Code: "FREESHIP", Name: "Free delivery", Kind: discount.FreeShipping, Enabled: true},
		"BIGSPEND": {ID: "d3", Code: "BIGSPEND", Kind: discount.FixedAmount, Value: 1000, MinimumOrder: 50000, Enabled: true},
	}}
	s := newService(rules, nil)

	res, err := s.Quote(ctxFor("rosebud"), Request{Orders: bouquet(10000, 500), CouponCode: "spring5"})
	require.NoError(t, err)
	require.NotNil(t, res.Coupon)
	require.Equal(t, int64(500), res.Coupon.Amount)
	require.Equal(t, "Coupon Spring $5 applied: -$5.00", res.Coupon.Success)
	require.Equal(t, int64(500), res.Summary.Discount)

	res, err = s.Quote(ctxFor("rosebud"), Request{Orders: bouquet(10000, 500), CouponCode: "FREESHIP"})
	require.NoError(t, err)
	require.True(t, res.Coupon.FreeShipping)
	require.Equal(t, int64(0), res.Summary.DeliveryFee)

	res, err = s.Quote(ctxFor("rosebud"), Request{Orders: bouquet(10000, 500), CouponCode: "BIGSPEND"})
	require.NoError(t, err)
	require.Equal(t, "MINIMUM_ORDER", res.Coupon.ErrorCode)
	require.Equal(t, int64(0), res.Summary.Discount)

	res, err = s.Quote(ctxFor("rosebud"), Request{Orders: bouquet(10000, 500), CouponCode: "NOPE"})
	require.NoError(t, err)
	require.Equal(t, "NOT_FOUND", res.Coupon.ErrorCode)

	rules.err = errors.New("db down")
	_, err = s.Quote(ctxFor("rosebud"), Request{Orders: bouquet(10000, 500), CouponCode: "SPRING5"})
	require.Error(t, err)
}

func TestQuoteGuestSkipsCustomerLimit(t *testing.T) {
	rules := &fakeRules{usage: 1, byCode: map[string]discount.Rule{
		"ONCE": {ID: "d1", Code: "ONCE", Name: "Once", Kind: discount.FixedAmount, Value: 300, PerCustomerLimit: ptr(int32(1)), Enabled: true},
	}}
	s := newService(rules, nil)
	s.Guests = customer.NewGuests(func(context.Context, string) (string, error) { return "guest-1", nil })

	res, err := s.Quote(ctxFor("rosebud"), Request{Orders: bouquet(10000, 0), CouponCode: "ONCE", CustomerID: "guest-1"})
	require.NoError(t, err)
	require.Empty(t, res.Coupon.Error)

	res, err = s.Quote(ctxFor("rosebud"), Request{Orders: bouquet(10000, 0), CouponCode: "ONCE", CustomerID: "cust-7"})
	require.NoError(t, err)
	require.Equal(t, "CUSTOMER_LIMIT", res.Coupon.ErrorCode)
}

func TestQuoteAutomaticAndGiftCards(t *testing.T) {
	rules := &fakeRules{automatic: []discount.Rule{
		{ID: "a1", Name: "Rose week", Kind: discount.Percentage, PercentBps: 1000, Trigger: discount.TriggerAutomaticProduct, ApplicableProducts: []string{"p1"}, Enabled: true},
		{ID: "a2", Name: "Tulips", Kind: discount.FixedAmount, Value: 200, Trigger: discount.TriggerAutomaticProduct, ApplicableProducts: []string{"p9"}, Enabled: true},
	}}
	s := newService(rules, nil)
	res, err := s.Quote(ctxFor("rosebud"), Request{
		Orders:        bouquet(10000, 0),
		AutoDiscounts: true,
		GiftCards:     []discount.GiftCard{{CardNumber: "GC-1", Amount: 2500}, {CardNumber: "GC-2", Amount: 0}},
	})
	require.NoError(t, err)
	require.Len(t, res.Automatic, 1)
	require.Equal(t, int64(1000), res.Automatic[0].Amount)
	require.Equal(t, int64(2500), res.GiftCardTotal)
	require.Equal(t, int64(3500), res.Summary.Discount)
	require.Equal(t, []string{discount.MsgGiftCardAmount}, res.DiscountErrors)
}

func TestQuoteDeliveryZones(t *testing.T) {
	zones := delivery.Static{
		Settings: delivery.Settings{Enabled: true, MaxRadiusKm: 30, FreeDeliveryMinimum: 20000},
		Zones: []delivery.Zone{
			{Name: "Downtown", MinKm: 0, MaxKm: ptr(5.0), Fee: 800, Enabled: true},
			{Name: "Suburbs", MinKm: 5, MaxKm: nil, Fee: 1500, Enabled: true},
		},
	}
	s := newService(nil, zones)
	req := Request{Orders: []OrderInput{{
		Items:      []ItemInput{{Description: "Orchid", PriceCents: cents(6000), Qty: "1", Taxable: true}},
		DistanceKm: ptr(7.5),
	}}}
	res, err := s.Quote(ctxFor("rosebud"), req)
	require.NoError(t, err)
	require.Equal(t, int64(1500), res.Summary.DeliveryFee)
	require.Len(t, res.Delivery, 1)
	require.Equal(t, "Suburbs", res.Delivery[0].ZoneName)

	req.Orders[0].Items[0].PriceCents = cents(25000)
	res, err = s.Quote(ctxFor("rosebud"), req)
	require.NoError(t, err)
	require.Equal(t, int64(0), res.Summary.DeliveryFee)

	_, err = newService(nil, nil).Quote(ctxFor("rosebud"), req)
	require.ErrorIs(t, err, delivery.ErrStoreUnavailable)
}

func TestQuotePayments(t *testing.T) {
	s := newService(nil, nil)
	res, err := s.Quote(ctxFor("rosebud"), Request{
		Orders: bouquet(10000, 0),
		Payments: []payment.Entry{
			{Method: "credit", Amount: 5000},
			{Method: "cash", Amount: 6500, Metadata: map[string]any{"cashReceived": 6500}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(11200), res.Summary.Total)
	require.False(t, res.Payments.HasBalance)
	require.Equal(t, 0.0, res.Payments.Remaining)
	require.InDelta(t, 300, res.Payments.Overpaid, 1e-9)
	require.Equal(t, int64(300), res.Payments.Change)
	require.False(t, res.Payments.Exact)
	require.Equal(t, "$0.00", res.FormattedBalance)
}

func TestPlanSplit(t *testing.T) {
	s := newService(nil, nil)
	plan, err := s.PlanSplit(PlanRequest{Total: 10001})
	require.NoError(t, err)
	require.Len(t, plan.Rows, 2)
	require.Equal(t, payment.TenderCardSquare, plan.Rows[0].Tender)
	require.Equal(t, int64(10001), plan.Rows[0].Amount+plan.Rows[1].Amount)

	plan, err = s.PlanSplit(PlanRequest{Total: 10000, Rows: []PlanRow{{Tender: "gift_card", Amount: 3000}, {Tender: "card_square", Amount: 2000}}})
	require.NoError(t, err)
	require.Len(t, plan.Rows, 3)
	require.Equal(t, "gift_card", plan.Rows[0].Tender)
	require.Equal(t, int64(2000), plan.Rows[1].Amount)
	require.Equal(t, payment.TenderCash, plan.Rows[2].Tender)
	require.Equal(t, int64(5000), plan.Rows[2].Amount)
	require.Equal(t, int64(10000), plan.Remaining)

	_, err = s.PlanSplit(PlanRequest{})
	require.ErrorIs(t, err, ErrInvalidPlan)
}

func TestValidateCouponAndAutoApply(t *testing.T) {
	rules := &fakeRules{
		byCode: map[string]discount.Rule{
			"TENOFF": {ID: "d1", Code: "TENOFF", Name: "10% off", Kind: discount.Percentage, PercentBps: 1000, Enabled: true},
		},
		automatic: []discount.Rule{
			{ID: "a1", Name: "Lilies", Kind: discount.FixedAmount, Value: 250, Trigger: discount.TriggerAutomaticCategory, ApplicableCategories: []string{"lilies"}, Enabled: true},
		},
	}
	s := newService(rules, nil)
	cart := CartRequest{Code: "tenoff", Items: []discount.CartItem{{ProductID: "p1", CategoryIDs: []string{"lilies"}, Quantity: 2, PriceCents: 2500}}}

	v, err := s.ValidateCoupon(ctxFor("rosebud"), cart)
	require.NoError(t, err)
	require.True(t, v.Valid)
	require.Equal(t, "TENOFF", v.Code)
	require.Equal(t, int64(500), v.DiscountAmount)

	cart.Code = "missing"
	v, err = s.ValidateCoupon(ctxFor("rosebud"), cart)
	require.NoError(t, err)
	require.False(t, v.Valid)
	require.Equal(t, "NOT_FOUND", v.ErrorCode)

	applied, err := s.AutoApply(ctxFor("rosebud"), cart)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.Equal(t, int64(250), applied[0].Amount)

	_, err = newService(nil, nil).AutoApply(ctxFor("rosebud"), cart)
	require.ErrorIs(t, err, ErrDiscountsUnavailable)
}
