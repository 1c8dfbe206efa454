// Package quote prices register orders end to end: line items, delivery,
// discounts, tax and payments.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-bloom/internal/customer"
	"github.com/noah-isme/backend-bloom/internal/delivery"
	"github.com/noah-isme/backend-bloom/internal/discount"
	"github.com/noah-isme/backend-bloom/internal/money"
	"github.com/noah-isme/backend-bloom/internal/obs"
	"github.com/noah-isme/backend-bloom/internal/payment"
	"github.com/noah-isme/backend-bloom/internal/pricing"
	"github.com/noah-isme/backend-bloom/internal/tax"
	"github.com/noah-isme/backend-bloom/internal/tenant"
)

// ErrDiscountsUnavailable is returned when discount rules are requested but
// no rule store is configured.
var ErrDiscountsUnavailable = errors.New("quote: discount store not configured")

// ItemInput is one line of an order as sent by the register.
type ItemInput struct {
	ProductID   string            `json:"productId,omitempty"`
	CategoryIDs []string          `json:"categoryIds,omitempty"`
	Description string            `json:"description" validate:"max=500"`
	Category    string            `json:"category,omitempty"`
	Price       string            `json:"price,omitempty"`
	PriceCents  *money.CentsInput `json:"priceCents,omitempty" validate:"omitempty,gte=0"`
	Qty         string            `json:"qty,omitempty"`
	Taxable     bool              `json:"tax"`
}

// OrderInput groups the items delivered together. DistanceKm resolves the fee
// from the tenant's delivery zones when DeliveryFee is absent.
type OrderInput struct {
	Items       []ItemInput       `json:"items" validate:"dive"`
	DeliveryFee *money.CentsInput `json:"deliveryFee,omitempty" validate:"omitempty,gte=0"`
	DistanceKm  *float64          `json:"distanceKm,omitempty" validate:"omitempty,gte=0"`
}

// ManualDiscount is an operator-entered discount.
type ManualDiscount struct {
	Kind  discount.Kind `json:"kind" validate:"required,oneof=percent amount"`
	Value string        `json:"value" validate:"required"`
}

// Request describes an order to price.
type Request struct {
	Orders          []OrderInput        `json:"orders" validate:"required,min=1,dive"`
	ManualDiscounts []ManualDiscount    `json:"manualDiscounts,omitempty" validate:"dive"`
	CouponCode      string              `json:"couponCode,omitempty" validate:"max=64"`
	GiftCards       []discount.GiftCard `json:"giftCards,omitempty" validate:"dive"`
	AutoDiscounts   bool                `json:"autoDiscounts"`
	CustomerID      string              `json:"customerId,omitempty"`
	Channel         discount.Channel    `json:"channel,omitempty" validate:"omitempty,oneof=POS WEBSITE"`
	Payments        []payment.Entry     `json:"payments,omitempty" validate:"dive"`
}

// Coupon reports the outcome of the coupon on a quote.
type Coupon struct {
	Code         string      `json:"code"`
	Name         string      `json:"name,omitempty"`
	Amount       money.Cents `json:"amount"`
	FreeShipping bool        `json:"freeShipping,omitempty"`
	Success      string      `json:"success,omitempty"`
	Error        string      `json:"error,omitempty"`
	ErrorCode    string      `json:"errorCode,omitempty"`
}

// PaymentStatus summarises the payments applied against the grand total.
type PaymentStatus struct {
	Applied    float64     `json:"applied"`
	Remaining  float64     `json:"remaining"`
	HasBalance bool        `json:"hasBalance"`
	Overpaid   float64     `json:"overpaid"`
	Change     money.Cents `json:"change"`
	Exact      bool        `json:"exact"`
	Entries    []string    `json:"entries,omitempty"`
}

// Result is a priced order.
type Result struct {
	Summary          pricing.Summary     `json:"summary"`
	ItemCount        int64               `json:"itemCount"`
	Discounts        []discount.Discount `json:"discounts"`
	DiscountErrors   []string            `json:"discountErrors,omitempty"`
	Coupon           *Coupon             `json:"coupon,omitempty"`
	Automatic        []discount.Applied  `json:"automaticDiscounts,omitempty"`
	GiftCardTotal    money.Cents         `json:"giftCardTotal"`
	Delivery         []delivery.Result   `json:"delivery,omitempty"`
	TaxLines         []pricing.TaxLine   `json:"taxLines"`
	TaxLinesTotal    money.Cents         `json:"taxLinesTotal"`
	Payments         PaymentStatus       `json:"payments"`
	FormattedTotal   string              `json:"formattedTotal"`
	FormattedBalance string              `json:"formattedBalance"`
}

// Service prices orders using tenant-scoped tax, discount and delivery data.
type Service struct {
	Tax             tax.Provider
	Discounts       discount.Store
	Delivery        delivery.Store
	Guests          *customer.Guests
	TaxableDelivery bool
	RejectOverTotal bool
	Precision       int
	Logger          zerolog.Logger

	now func() time.Time
}

// NewService returns a service with the default payment precision.
func NewService(taxes tax.Provider, discounts discount.Store, zones delivery.Store, logger zerolog.Logger) *Service {
	return &Service{
		Tax:             taxes,
		Discounts:       discounts,
		Delivery:        zones,
		TaxableDelivery: true,
		Precision:       payment.DefaultPrecision,
		Logger:          logger,
		now:             time.Now,
	}
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Quote prices req for the tenant carried by ctx.
func (s *Service) Quote(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	tenantID, _ := tenant.FromContext(ctx)
	ctx, span := otel.Tracer("quote.Service").Start(ctx, "Service.Quote")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int("quote.orders", len(req.Orders)),
		attribute.Bool("quote.coupon", req.CouponCode != ""),
	)

	res, err := s.quote(ctx, tenantID, req)
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("quote.total_cents", res.Summary.Total))
	}
	obs.IncCounter(obs.QuoteComputedTotal, result)
	obs.ObserveMillis(obs.QuoteDuration, float64(time.Since(started).Milliseconds()), result)
	return res, err
}

func (s *Service) quote(ctx context.Context, tenantID string, req Request) (Result, error) {
	now := s.clock()
	orders, cart := buildOrders(req)
	cart.CustomerID = s.customerFor(ctx, tenantID, req.CustomerID)
	totals := pricing.Aggregate(orders)

	deliveries, err := s.resolveDelivery(ctx, tenantID, req.Orders, orders, totals.ItemTotal)
	if err != nil {
		return Result{}, err
	}

	resolved := tax.Resolved{}
	if s.Tax != nil {
		resolved, err = tax.Resolve(ctx, s.Tax, tenantID)
		if err != nil {
			return Result{}, fmt.Errorf("resolve tax rates: %w", err)
		}
	}

	res := Result{ItemCount: totals.ItemCount, Delivery: deliveries}
	var giftTotal money.Cents
	engine := discount.NewEngine(discount.Callbacks{
		OnGiftCardChange: func(total money.Cents, _ []discount.GiftCard) { giftTotal = total },
	})
	engine.RejectOverTotal = s.RejectOverTotal

	if code := discount.NormalizeCode(req.CouponCode); code != "" {
		coupon, err := s.applyCoupon(ctx, tenantID, code, cart, now, engine)
		if err != nil {
			return Result{}, err
		}
		if coupon.FreeShipping {
			for i := range orders {
				orders[i].DeliveryFee = 0
			}
		}
		res.Coupon = &coupon
	}

	deliveryFee := pricing.TotalDeliveryFee(orders)
	base := totals.ItemTotal + deliveryFee

	for _, md := range req.ManualDiscounts {
		if !engine.ApplyManualDiscount(md.Kind, md.Value, base) {
			res.DiscountErrors = append(res.DiscountErrors, engine.Error)
			obs.IncCounter(obs.DiscountRejectedTotal, string(md.Kind), "INVALID")
		}
	}

	if req.AutoDiscounts && s.Discounts != nil {
		rules, err := s.Discounts.ListAutomatic(ctx, tenantID)
		if err != nil {
			return Result{}, fmt.Errorf("list automatic discounts: %w", err)
		}
		res.Automatic = discount.AutoApply(rules, cart, now)
		engine.SetAutomatic(res.Automatic)
	}

	for _, gc := range req.GiftCards {
		if !engine.AddGiftCard(gc.CardNumber, gc.Amount) {
			res.DiscountErrors = append(res.DiscountErrors, engine.Error)
			obs.IncCounter(obs.DiscountRejectedTotal, string(discount.KindGiftCard), "INVALID")
		}
	}

	res.Summary = pricing.Compute(pricing.Input{
		ItemTotal:       totals.ItemTotal,
		Taxable:         totals.Taxable,
		DeliveryFee:     deliveryFee,
		TaxableDelivery: s.TaxableDelivery,
		Discount:        engine.TotalDiscount(base),
		Rates:           resolved.Rates,
	})
	res.Discounts = engine.Discounts()
	res.GiftCardTotal = giftTotal
	res.TaxLines, res.TaxLinesTotal = pricing.Breakdown(res.Summary.AdjustedTaxable, resolved.List)
	res.Payments = s.paymentStatus(res.Summary.Total, req.Payments)
	res.FormattedTotal = money.Format(res.Summary.Total)
	res.FormattedBalance = money.Format(money.Cents(math.Round(res.Payments.Remaining)))
	return res, nil
}

func (s *Service) applyCoupon(ctx context.Context, tenantID, code string, cart discount.Cart, now time.Time, engine *discount.Engine) (Coupon, error) {
	out := Coupon{Code: code}
	if s.Discounts == nil {
		out.Error, out.ErrorCode = discount.ErrNotFound.Error(), discount.Code(discount.ErrNotFound)
		return out, nil
	}
	rule, err := discount.Lookup(ctx, s.Discounts, tenantID, code, cart, now)
	if err != nil {
		if errors.Is(err, discount.ErrStoreUnavailable) {
			return Coupon{}, err
		}
		if !isRuleError(err) {
			return Coupon{}, fmt.Errorf("lookup coupon %s: %w", code, err)
		}
		out.Error, out.ErrorCode = err.Error(), discount.Code(err)
		engine.CouponError = out.Error
		obs.IncCounter(obs.DiscountRejectedTotal, string(discount.KindCoupon), out.ErrorCode)
		return out, nil
	}
	out.Name = rule.Name
	if rule.FreeShipping() {
		out.FreeShipping = true
		out.Success = fmt.Sprintf("Coupon %s applied: free delivery", code)
		engine.CouponSuccess = out.Success
		return out, nil
	}
	out.Amount = rule.Amount(cart.Total())
	label := rule.Name
	if label == "" {
		label = code
	}
	if !engine.ApplyCoupon(label, out.Amount) {
		out.Error, out.ErrorCode = engine.CouponError, discount.Code(discount.ErrNotApplicable)
		obs.IncCounter(obs.DiscountRejectedTotal, string(discount.KindCoupon), out.ErrorCode)
		return out, nil
	}
	out.Success = engine.CouponSuccess
	return out, nil
}

func (s *Service) resolveDelivery(ctx context.Context, tenantID string, inputs []OrderInput, orders []pricing.Order, itemTotal money.Cents) ([]delivery.Result, error) {
	var (
		settings delivery.Settings
		zones    []delivery.Zone
		loaded   bool
		results  []delivery.Result
	)
	for i, in := range inputs {
		if in.DeliveryFee != nil || in.DistanceKm == nil {
			continue
		}
		if !loaded {
			if s.Delivery == nil {
				return nil, delivery.ErrStoreUnavailable
			}
			var err error
			settings, zones, err = s.Delivery.Load(ctx, tenantID)
			if err != nil {
				return nil, fmt.Errorf("load delivery zones: %w", err)
			}
			loaded = true
		}
		r := delivery.FeeForDistance(settings, zones, *in.DistanceKm)
		r.Fee = delivery.ApplyFreeMinimum(settings, itemTotal, r.Fee)
		orders[i].DeliveryFee = r.Fee
		results = append(results, r)
	}
	return results, nil
}

func (s *Service) customerFor(ctx context.Context, tenantID, customerID string) string {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" || s.Guests == nil {
		return customerID
	}
	if s.Guests.For(tenantID).IsGuest(ctx, customerID) {
		return ""
	}
	return customerID
}

func (s *Service) paymentStatus(total money.Cents, entries []payment.Entry) PaymentStatus {
	c := payment.NewComposer(float64(total), s.Precision)
	c.ReplacePayments(entries)
	applied := c.TotalApplied()
	st := PaymentStatus{
		Applied:    applied,
		Remaining:  c.Remaining(),
		HasBalance: c.HasBalance(),
		Overpaid:   c.Overpaid(),
		Exact:      payment.CoverTotal(entries, float64(total), float64(payment.DefaultMinBalance)),
		Change:     payment.Change(money.Cents(math.Round(applied)), total),
	}
	for _, e := range c.Payments() {
		if line := payment.Summary(e); line != "" {
			st.Entries = append(st.Entries, line)
		}
	}
	return st
}

func buildOrders(req Request) ([]pricing.Order, discount.Cart) {
	orders := make([]pricing.Order, 0, len(req.Orders))
	cart := discount.Cart{Channel: req.Channel}
	if cart.Channel == "" {
		cart.Channel = discount.ChannelPOS
	}
	for _, o := range req.Orders {
		order := pricing.Order{Items: make([]pricing.LineItem, 0, len(o.Items))}
		if o.DeliveryFee != nil && *o.DeliveryFee > 0 {
			order.DeliveryFee = o.DeliveryFee.Cents()
		}
		for _, it := range o.Items {
			line := pricing.ItemFromRaw(it.Description, it.Category, it.Price, it.Qty, it.Taxable)
			if it.PriceCents != nil {
				line.PriceCents = it.PriceCents.Cents()
			}
			order.Items = append(order.Items, line)

			categories := it.CategoryIDs
			if it.Category != "" {
				categories = append(append([]string(nil), categories...), it.Category)
			}
			cart.Items = append(cart.Items, discount.CartItem{
				ProductID:   it.ProductID,
				CategoryIDs: categories,
				Quantity:    line.Quantity,
				PriceCents:  line.PriceCents,
			})
		}
		orders = append(orders, order)
	}
	return orders, cart
}

func isRuleError(err error) bool {
	for _, target := range []error{
		discount.ErrNotFound, discount.ErrDisabled, discount.ErrNotYetActive, discount.ErrExpired,
		discount.ErrInStoreOnly, discount.ErrOnlineOnly, discount.ErrUsageLimitReached,
		discount.ErrCustomerLimitReached, discount.ErrMinimumOrderUnmet, discount.ErrNotApplicable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
