package pricing

import (
	"strings"

	"github.com/noah-isme/backend-bloom/internal/money"
)

// LineItem describes a single product line on an order draft.
type LineItem struct {
	Description string      `json:"description"`
	Category    string      `json:"category,omitempty"`
	PriceCents  money.Cents `json:"priceCents"`
	Quantity    int64       `json:"quantity"`
	Taxable     bool        `json:"taxable"`
}

// ItemFromRaw builds a line item from the loosely typed fields used by order
// entry forms. Price goes through money.Coerce and qty through money.ParseQty,
// so malformed values contribute zero.
func ItemFromRaw(description, category, price, qty string, taxable bool) LineItem {
	return LineItem{
		Description: description,
		Category:    category,
		PriceCents:  money.Coerce(price),
		Quantity:    money.ParseQty(qty),
		Taxable:     taxable,
	}
}

// Order groups line items that share a recipient and delivery fee.
type Order struct {
	Items       []LineItem  `json:"items"`
	DeliveryFee money.Cents `json:"deliveryFee"`
}

// Totals aggregates line items across one or more orders.
type Totals struct {
	ItemTotal money.Cents
	Taxable   money.Cents
	ItemCount int64
}

// Aggregate sums line items across orders.
func Aggregate(orders []Order) Totals {
	var t Totals
	for _, o := range orders {
		for _, it := range o.Items {
			line := it.PriceCents * it.Quantity
			t.ItemTotal += line
			if it.Taxable {
				t.Taxable += line
			}
			if strings.TrimSpace(it.Description) != "" || it.PriceCents > 0 {
				if it.Quantity > 0 {
					t.ItemCount += it.Quantity
				} else {
					t.ItemCount++
				}
			}
		}
	}
	return t
}

// TotalDeliveryFee sums the delivery fee of every order.
func TotalDeliveryFee(orders []Order) money.Cents {
	var fee money.Cents
	for _, o := range orders {
		if o.DeliveryFee > 0 {
			fee += o.DeliveryFee
		}
	}
	return fee
}

// Input carries everything needed to price an order after discounts have been
// resolved to a single amount.
type Input struct {
	ItemTotal       money.Cents
	Taxable         money.Cents
	DeliveryFee     money.Cents
	TaxableDelivery bool
	Discount        money.Cents
	Rates           TaxRates
}

// Summary aggregates computed pricing components.
type Summary struct {
	ItemTotal         money.Cents `json:"itemTotal"`
	DeliveryFee       money.Cents `json:"deliveryFee"`
	Taxable           money.Cents `json:"taxable"`
	Discount          money.Cents `json:"discount"`
	DiscountOnTaxable money.Cents `json:"discountOnTaxable"`
	AdjustedTaxable   money.Cents `json:"adjustedTaxable"`
	Subtotal          money.Cents `json:"subtotal"`
	GST               money.Cents `json:"gst"`
	PST               money.Cents `json:"pst"`
	Total             money.Cents `json:"total"`
}

// Compute calculates order totals given the provided inputs.
//
// The discount is split between the taxable and non-taxable parts of the
// pre-discount total in proportion to their share, so tax only shrinks by the
// taxable share of the discount.
func Compute(in Input) Summary {
	taxable := in.Taxable
	if in.TaxableDelivery && in.DeliveryFee > 0 {
		taxable += in.DeliveryFee
	}
	discount := in.Discount
	if discount < 0 {
		discount = 0
	}
	base := in.ItemTotal + in.DeliveryFee
	subtotal := base - discount
	if subtotal < 0 {
		subtotal = 0
	}
	onTaxable := Allocate(discount, taxable, base)
	adjusted := taxable - onTaxable
	if adjusted < 0 {
		adjusted = 0
	}
	gst, pst := ComputeTax(adjusted, in.Rates)
	total := subtotal + gst + pst
	if total < 0 {
		total = 0
	}
	return Summary{
		ItemTotal:         in.ItemTotal,
		DeliveryFee:       in.DeliveryFee,
		Taxable:           taxable,
		Discount:          discount,
		DiscountOnTaxable: onTaxable,
		AdjustedTaxable:   adjusted,
		Subtotal:          subtotal,
		GST:               gst,
		PST:               pst,
		Total:             total,
	}
}

// Allocate returns the part of discount that applies to the taxable amount,
// round(min(discount, base) × taxable / base), never more than taxable. It is
// zero when nothing is taxable or the base is empty.
func Allocate(discount, taxable, base money.Cents) money.Cents {
	if discount <= 0 || taxable <= 0 || base <= 0 {
		return 0
	}
	discount = min(discount, base)
	if taxable == base {
		return discount
	}
	return min(money.RoundRatio(discount, taxable, base), taxable)
}
