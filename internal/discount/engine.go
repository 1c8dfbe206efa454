package discount

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-bloom/internal/money"
)

// Kind tags the variant of an applied discount.
type Kind string

const (
	KindPercent   Kind = "percent"
	KindAmount    Kind = "amount"
	KindCoupon    Kind = "coupon"
	KindGiftCard  Kind = "giftcard"
	KindAutomatic Kind = "automatic"
)

// Error messages surfaced to the register operator.
const (
	MsgValueRequired  = "Enter a discount value greater than zero."
	MsgExceedsTotal   = "Discount cannot exceed the order total."
	MsgCouponRequired = "Coupon amount must be greater than zero."
	MsgGiftCardAmount = "Gift card amount must be greater than zero."
)

// Discount is one applied discount. Which fields are meaningful depends on
// Kind: Percent for percent discounts, ValueCents for the rest, Label for
// coupons and automatic discounts, CardRef for gift cards.
type Discount struct {
	Kind       Kind        `json:"kind"`
	Percent    float64     `json:"percent,omitempty"`
	ValueCents money.Cents `json:"valueCents,omitempty"`
	Label      string      `json:"label,omitempty"`
	CardRef    string      `json:"cardRef,omitempty"`
}

// Amount resolves the discount against the pre-discount order total.
func (d Discount) Amount(total money.Cents) money.Cents {
	switch d.Kind {
	case KindPercent:
		if d.Percent <= 0 || total <= 0 {
			return 0
		}
		return money.ApplyRate(total, d.Percent/100)
	default:
		if d.ValueCents < 0 {
			return 0
		}
		return d.ValueCents
	}
}

// Total sums every discount in list against total. The result is not clamped;
// the pricing engine floors the subtotal at zero.
func Total(list []Discount, total money.Cents) money.Cents {
	var sum money.Cents
	for _, d := range list {
		sum += d.Amount(total)
	}
	return sum
}

// GiftCard is a redeemed gift card and the amount taken from it.
type GiftCard struct {
	CardNumber string      `json:"cardNumber"`
	Amount     money.Cents `json:"amount"`
}

// Callbacks notify the owner of the engine about state changes.
type Callbacks struct {
	OnDiscountsChange func([]Discount)
	OnGiftCardChange  func(total money.Cents, cards []GiftCard)
	OnCouponChange    func(amount money.Cents, name string)
}

// Engine tracks the discounts applied to one order draft. It is not safe for
// concurrent use; each draft owns its engine.
type Engine struct {
	cb        Callbacks
	discounts []Discount

	// RejectOverTotal makes ApplyManualDiscount refuse discounts larger than
	// the total instead of letting the subtotal clamp at zero.
	RejectOverTotal bool

	Error         string
	CouponSuccess string
	CouponError   string
}

// NewEngine returns an engine reporting changes through cb.
func NewEngine(cb Callbacks) *Engine {
	return &Engine{cb: cb}
}

// Discounts returns a copy of the applied discounts in insertion order.
func (e *Engine) Discounts() []Discount {
	out := make([]Discount, len(e.discounts))
	copy(out, e.discounts)
	return out
}

// TotalDiscount sums every applied discount against total.
func (e *Engine) TotalDiscount(total money.Cents) money.Cents {
	return Total(e.discounts, total)
}

// ApplyManualDiscount validates and applies an operator-entered discount. For
// KindPercent raw is a percentage; for KindAmount it is a currency string in
// dollars. It returns false and sets Error unless the value is a finite
// positive number.
func (e *Engine) ApplyManualDiscount(kind Kind, raw string, total money.Cents) bool {
	var d Discount
	switch kind {
	case KindPercent:
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%")), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			e.Error = MsgValueRequired
			return false
		}
		d = Discount{Kind: KindPercent, Percent: v}
	case KindAmount:
		cents, ok := money.ParseDollars(raw)
		if !ok || cents <= 0 {
			e.Error = MsgValueRequired
			return false
		}
		d = Discount{Kind: KindAmount, ValueCents: cents}
	default:
		e.Error = MsgValueRequired
		return false
	}
	if e.RejectOverTotal && e.TotalDiscount(total)+d.Amount(total) > total {
		e.Error = MsgExceedsTotal
		return false
	}
	e.Error = ""
	e.discounts = append(e.discounts, d)
	e.notifyDiscounts()
	return true
}

// RemoveDiscount drops the discount at index. Out of range is a no-op.
func (e *Engine) RemoveDiscount(index int) {
	if index < 0 || index >= len(e.discounts) {
		return
	}
	removed := e.discounts[index]
	e.discounts = append(e.discounts[:index:index], e.discounts[index+1:]...)
	e.notifyDiscounts()
	switch removed.Kind {
	case KindCoupon:
		e.CouponSuccess, e.CouponError = "", ""
		e.notifyCoupon(0, "")
	case KindGiftCard:
		e.notifyGiftCards()
	}
}

// ApplyCoupon records a coupon worth amount. Coupon validity is checked by the
// caller beforehand; only a zero amount is rejected here. A new coupon
// replaces any coupon already applied.
func (e *Engine) ApplyCoupon(name string, amount money.Cents) bool {
	if amount <= 0 {
		e.CouponSuccess = ""
		e.CouponError = MsgCouponRequired
		return false
	}
	e.dropKind(KindCoupon)
	e.discounts = append(e.discounts, Discount{Kind: KindCoupon, ValueCents: amount, Label: name})
	e.CouponError = ""
	e.CouponSuccess = fmt.Sprintf("Coupon %s applied: -%s", name, money.Format(amount))
	e.notifyDiscounts()
	e.notifyCoupon(amount, name)
	return true
}

// RemoveCoupon clears coupon state unconditionally.
func (e *Engine) RemoveCoupon() {
	if e.dropKind(KindCoupon) {
		e.notifyDiscounts()
	}
	e.CouponSuccess = ""
	e.CouponError = ""
	e.notifyCoupon(0, "")
}

// AddGiftCard redeems amount from the given card. Card balance is not checked.
func (e *Engine) AddGiftCard(cardNumber string, amount money.Cents) bool {
	if amount <= 0 {
		e.Error = MsgGiftCardAmount
		return false
	}
	e.Error = ""
	e.discounts = append(e.discounts, Discount{Kind: KindGiftCard, ValueCents: amount, CardRef: strings.TrimSpace(cardNumber)})
	e.notifyDiscounts()
	e.notifyGiftCards()
	return true
}

// ClearGiftCards removes every redeemed gift card.
func (e *Engine) ClearGiftCards() {
	if e.dropKind(KindGiftCard) {
		e.notifyDiscounts()
	}
	e.notifyGiftCards()
}

// GiftCards lists the redeemed gift cards in insertion order.
func (e *Engine) GiftCards() []GiftCard {
	var cards []GiftCard
	for _, d := range e.discounts {
		if d.Kind == KindGiftCard {
			cards = append(cards, GiftCard{CardNumber: d.CardRef, Amount: d.ValueCents})
		}
	}
	return cards
}

// SetAutomatic replaces the automatic discounts with the provided set.
func (e *Engine) SetAutomatic(applied []Applied) {
	changed := e.dropKind(KindAutomatic)
	for _, a := range applied {
		if a.Amount <= 0 {
			continue
		}
		e.discounts = append(e.discounts, Discount{Kind: KindAutomatic, ValueCents: a.Amount, Label: a.Name})
		changed = true
	}
	if changed {
		e.notifyDiscounts()
	}
}

// Replace overwrites the applied discounts, typically when a draft is restored.
func (e *Engine) Replace(list []Discount) {
	e.discounts = append([]Discount(nil), list...)
	e.Error, e.CouponError, e.CouponSuccess = "", "", ""
	e.notifyDiscounts()
	e.notifyGiftCards()
}

func (e *Engine) dropKind(kind Kind) bool {
	kept := e.discounts[:0]
	dropped := false
	for _, d := range e.discounts {
		if d.Kind == kind {
			dropped = true
			continue
		}
		kept = append(kept, d)
	}
	e.discounts = kept
	return dropped
}

func (e *Engine) notifyDiscounts() {
	if e.cb.OnDiscountsChange != nil {
		e.cb.OnDiscountsChange(e.Discounts())
	}
}

func (e *Engine) notifyCoupon(amount money.Cents, name string) {
	if e.cb.OnCouponChange != nil {
		e.cb.OnCouponChange(amount, name)
	}
}

func (e *Engine) notifyGiftCards() {
	if e.cb.OnGiftCardChange == nil {
		return
	}
	cards := e.GiftCards()
	var total money.Cents
	for _, c := range cards {
		total += c.Amount
	}
	e.cb.OnGiftCardChange(total, cards)
}
