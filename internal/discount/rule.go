package discount

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/backend-bloom/internal/money"
)

var (
	// ErrNotFound is returned when no enabled discount matches the code.
	ErrNotFound = errors.New("discount not found")
	// ErrDisabled indicates the discount has been switched off.
	ErrDisabled = errors.New("discount no longer available")
	// ErrNotYetActive is returned before the discount start date.
	ErrNotYetActive = errors.New("discount not yet active")
	// ErrExpired is returned after the discount end date.
	ErrExpired = errors.New("discount expired")
	// ErrInStoreOnly rejects POS-only discounts used online.
	ErrInStoreOnly = errors.New("discount can only be used in-store")
	// ErrOnlineOnly rejects web-only discounts used at the register.
	ErrOnlineOnly = errors.New("discount can only be used online")
	// ErrUsageLimitReached indicates the global usage quota is exhausted.
	ErrUsageLimitReached = errors.New("discount usage limit reached")
	// ErrCustomerLimitReached indicates the customer exhausted their allowance.
	ErrCustomerLimitReached = errors.New("discount per-customer limit reached")
	// ErrMinimumOrderUnmet indicates the cart total is below the minimum.
	ErrMinimumOrderUnmet = errors.New("discount minimum order not met")
	// ErrNotApplicable indicates no cart item matches the product or category scope.
	ErrNotApplicable = errors.New("discount does not apply to items in cart")
)

// RuleKind is how a discount rule computes its amount.
type RuleKind string

const (
	FixedAmount  RuleKind = "FIXED_AMOUNT"
	Percentage   RuleKind = "PERCENTAGE"
	FreeShipping RuleKind = "FREE_SHIPPING"
	SalePrice    RuleKind = "SALE_PRICE"
	BuyXGetYFree RuleKind = "BUY_X_GET_Y_FREE"
)

// Trigger is how a discount rule gets applied.
type Trigger string

const (
	TriggerCouponCode        Trigger = "COUPON_CODE"
	TriggerAutomaticProduct  Trigger = "AUTOMATIC_PRODUCT"
	TriggerAutomaticCategory Trigger = "AUTOMATIC_CATEGORY"
)

// Channel identifies where the order is being placed.
type Channel string

const (
	ChannelPOS     Channel = "POS"
	ChannelWebsite Channel = "WEBSITE"
)

// Rule captures the runtime constraints of a coupon or automatic discount.
type Rule struct {
	ID                   string
	Code                 string
	Name                 string
	Kind                 RuleKind
	Trigger              Trigger
	Value                money.Cents
	PercentBps           int32
	MinimumOrder         money.Cents
	UsageLimit           *int32
	UsageCount           int32
	PerCustomerLimit     *int32
	CustomerUsage        int32
	StartDate            *time.Time
	EndDate              *time.Time
	ApplicableProducts   []string
	ApplicableCategories []string
	POSOnly              bool
	WebOnly              bool
	Enabled              bool
}

// CartItem is a cart line as seen by discount rules.
type CartItem struct {
	ProductID   string      `json:"id"`
	CategoryIDs []string    `json:"categoryIds,omitempty"`
	Quantity    int64       `json:"quantity"`
	PriceCents  money.Cents `json:"price"`
}

// Cart is the context a rule is evaluated against.
type Cart struct {
	Items      []CartItem
	CustomerID string
	Channel    Channel
}

// Total returns the sum of price × quantity over the cart.
func (c Cart) Total() money.Cents {
	var total money.Cents
	for _, it := range c.Items {
		if it.Quantity <= 0 || it.PriceCents <= 0 {
			continue
		}
		total += it.PriceCents * it.Quantity
	}
	return total
}

// Applied is an automatic discount that matched a cart.
type Applied struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Kind   RuleKind    `json:"discountType"`
	Amount money.Cents `json:"discountAmount"`
}

// Validate ensures the rule can be applied at the provided instant to cart.
func (r Rule) Validate(now time.Time, cart Cart) error {
	if !r.Enabled {
		return ErrDisabled
	}
	if r.StartDate != nil && now.Before(*r.StartDate) {
		return ErrNotYetActive
	}
	if r.EndDate != nil && now.After(*r.EndDate) {
		return ErrExpired
	}
	if r.POSOnly && cart.Channel == ChannelWebsite {
		return ErrInStoreOnly
	}
	if r.WebOnly && cart.Channel == ChannelPOS {
		return ErrOnlineOnly
	}
	if err := r.checkLimits(cart); err != nil {
		return err
	}
	if r.MinimumOrder > 0 && cart.Total() < r.MinimumOrder {
		return ErrMinimumOrderUnmet
	}
	if len(r.ApplicableProducts) > 0 && !r.matchesProduct(cart) {
		return ErrNotApplicable
	}
	if len(r.ApplicableCategories) > 0 && !r.matchesCategory(cart) {
		return ErrNotApplicable
	}
	return nil
}

func (r Rule) checkLimits(cart Cart) error {
	if r.UsageLimit != nil && *r.UsageLimit > 0 && r.UsageCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if r.PerCustomerLimit != nil && *r.PerCustomerLimit > 0 && cart.CustomerID != "" && r.CustomerUsage >= *r.PerCustomerLimit {
		return ErrCustomerLimitReached
	}
	return nil
}

// Amount determines the discount for a cart total. Fixed amounts never exceed
// the total. Free shipping, sale price and buy-x-get-y rules carry no amount
// here.
func (r Rule) Amount(cartTotal money.Cents) money.Cents {
	if cartTotal <= 0 {
		return 0
	}
	var discount money.Cents
	switch r.Kind {
	case FixedAmount:
		discount = r.Value
		if discount > cartTotal {
			discount = cartTotal
		}
	case Percentage:
		if r.PercentBps <= 0 {
			return 0
		}
		discount = money.RoundRatio(cartTotal, money.Cents(r.PercentBps), 10000)
	default:
		return 0
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// FreeShipping reports whether the rule waives the delivery fee.
func (r Rule) FreeShipping() bool {
	return r.Kind == FreeShipping
}

// AutoApply returns the automatic rules that apply to cart, in rule order.
func AutoApply(rules []Rule, cart Cart, now time.Time) []Applied {
	total := cart.Total()
	var out []Applied
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if r.StartDate != nil && now.Before(*r.StartDate) {
			continue
		}
		if r.EndDate != nil && now.After(*r.EndDate) {
			continue
		}
		if !r.autoMatches(cart) {
			continue
		}
		if r.MinimumOrder > 0 && total < r.MinimumOrder {
			continue
		}
		if r.checkLimits(cart) != nil {
			continue
		}
		amount := r.Amount(total)
		if amount <= 0 {
			continue
		}
		out = append(out, Applied{ID: r.ID, Name: r.Name, Kind: r.Kind, Amount: amount})
	}
	return out
}

func (r Rule) autoMatches(cart Cart) bool {
	switch {
	case r.Trigger == TriggerAutomaticProduct && len(r.ApplicableProducts) > 0:
		return r.matchesProduct(cart)
	case r.Trigger == TriggerAutomaticCategory && len(r.ApplicableCategories) > 0:
		return r.matchesCategory(cart)
	case len(r.ApplicableProducts) == 0 && len(r.ApplicableCategories) == 0:
		return r.Trigger == TriggerAutomaticProduct || r.Trigger == TriggerAutomaticCategory
	default:
		return false
	}
}

func (r Rule) matchesProduct(cart Cart) bool {
	for _, it := range cart.Items {
		for _, id := range r.ApplicableProducts {
			if id == it.ProductID {
				return true
			}
		}
	}
	return false
}

func (r Rule) matchesCategory(cart Cart) bool {
	for _, it := range cart.Items {
		for _, cat := range it.CategoryIDs {
			for _, id := range r.ApplicableCategories {
				if id == cat {
					return true
				}
			}
		}
	}
	return false
}

// Code maps a rule error to the stable code reported to clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrNotYetActive), errors.Is(err, ErrExpired):
		return "EXPIRED"
	case errors.Is(err, ErrUsageLimitReached):
		return "USAGE_LIMIT"
	case errors.Is(err, ErrCustomerLimitReached):
		return "CUSTOMER_LIMIT"
	case errors.Is(err, ErrMinimumOrderUnmet):
		return "MINIMUM_ORDER"
	default:
		return "DISABLED"
	}
}

// NormalizeCode upper-cases and trims a coupon code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
