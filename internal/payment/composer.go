package payment

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimal digits of the currency unit kept
// by composer totals. Two digits means whole cents.
const DefaultPrecision = 2

// centDigits is the number of currency digits a cent already accounts for.
const centDigits = 2

// Entry is a single tender applied to an order. Amount is in cents; fractional
// cents from client input are tolerated and rounded by the composer.
type Entry struct {
	Method   string         `json:"method" validate:"required"`
	Amount   float64        `json:"amount" validate:"gte=0"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Composer tracks partial payments against a fixed total. It never rejects an
// over-payment; the caller decides what to do with it.
type Composer struct {
	total     float64
	precision int
	entries   []Entry
}

// NewComposer returns a composer for total, in cents. precision counts decimal
// digits of the currency unit, so 2 rounds to whole cents and 4 keeps
// hundredths of a cent. A negative precision falls back to DefaultPrecision.
func NewComposer(total float64, precision int) *Composer {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &Composer{total: total, precision: precision}
}

// Total is the amount the payments are composed against.
func (c *Composer) Total() float64 { return c.total }

// Payments returns a copy of the entries in insertion order.
func (c *Composer) Payments() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// AddPayment appends entry.
func (c *Composer) AddPayment(entry Entry) {
	c.entries = append(c.entries, entry)
}

// RemovePayment drops the entry at index. Out of range is a no-op.
func (c *Composer) RemovePayment(index int) {
	if index < 0 || index >= len(c.entries) {
		return
	}
	c.entries = append(c.entries[:index:index], c.entries[index+1:]...)
}

// ResetPayments clears every entry.
func (c *Composer) ResetPayments() {
	c.entries = nil
}

// ReplacePayments overwrites the entries with list.
func (c *Composer) ReplacePayments(list []Entry) {
	c.entries = append([]Entry(nil), list...)
}

// TotalApplied sums the entries, rounded to the composer precision.
func (c *Composer) TotalApplied() float64 {
	var sum float64
	for _, e := range c.entries {
		sum += e.Amount
	}
	return c.round(sum)
}

// Remaining is max(0, total − applied), rounded to the composer precision.
func (c *Composer) Remaining() float64 {
	return c.round(math.Max(0, c.total-c.TotalApplied()))
}

// HasBalance reports whether the remaining amount exceeds half a unit of the
// last precision digit, which is half a cent at DefaultPrecision.
func (c *Composer) HasBalance() bool {
	return c.Remaining() > c.epsilon()
}

// Overpaid returns how much the applied total exceeds the order total.
func (c *Composer) Overpaid() float64 {
	return c.round(math.Max(0, c.TotalApplied()-c.total))
}

func (c *Composer) round(cents float64) float64 {
	return decimal.NewFromFloat(cents).Round(int32(c.precision - centDigits)).InexactFloat64()
}

// epsilon is half a unit of the last precision digit, in cents.
func (c *Composer) epsilon() float64 {
	return 0.5 * math.Pow10(centDigits-c.precision)
}
