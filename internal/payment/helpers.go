package payment

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/backend-bloom/internal/money"
)

// Payment types understood by the order API.
const (
	TypeCash         = "CASH"
	TypeCard         = "CARD"
	TypeGiftCard     = "GIFT_CARD"
	TypeStoreCredit  = "STORE_CREDIT"
	TypeCheck        = "CHECK"
	TypeCOD          = "COD"
	TypeHouseAccount = "HOUSE_ACCOUNT"
	TypeOffline      = "OFFLINE"
)

// Providers recorded against a payment.
const (
	ProviderSquare   = "SQUARE"
	ProviderInternal = "INTERNAL"
)

// DefaultMinBalance is the largest difference, in cents, that Normalize and
// CoverTotal treat as rounding noise.
const DefaultMinBalance = 1

var methodTypes = map[string]string{
	"cash":          TypeCash,
	"credit":        TypeCard,
	"debit":         TypeCard,
	"gift_card":     TypeGiftCard,
	"store_credit":  TypeStoreCredit,
	"check":         TypeCheck,
	"cod":           TypeCOD,
	"house_account": TypeHouseAccount,
}

// MapMethodType maps a tender name to the payment type stored on the order.
// Unknown tenders are recorded as cash.
func MapMethodType(method string) string {
	if strings.HasPrefix(method, "offline:") || method == "wire" {
		return TypeOffline
	}
	if t, ok := methodTypes[method]; ok {
		return t
	}
	return TypeCash
}

// ProviderFor resolves the processor of a payment. An explicit provider from
// the payment metadata wins.
func ProviderFor(method, fromMetadata string) string {
	if p := strings.TrimSpace(fromMetadata); p != "" {
		return strings.ToUpper(p)
	}
	if method == "credit" || method == "debit" {
		return ProviderSquare
	}
	return ProviderInternal
}

// Normalize lets the last payment absorb a difference from expectedTotal of at
// most minBalance. Larger differences leave payments untouched.
func Normalize(payments []Entry, expectedTotal, minBalance float64) []Entry {
	if len(payments) == 0 {
		return payments
	}
	diff := expectedTotal - sum(payments)
	if math.Abs(diff) > minBalance {
		return payments
	}
	out := make([]Entry, len(payments))
	copy(out, payments)
	out[len(out)-1].Amount += diff
	return out
}

// CoverTotal reports whether payments add up to total within tolerance.
func CoverTotal(payments []Entry, total, tolerance float64) bool {
	return math.Abs(sum(payments)-total) <= tolerance
}

// Change is the cash owed back to the customer, never negative.
func Change(received, due money.Cents) money.Cents {
	if change := received - due; change > 0 {
		return change
	}
	return 0
}

// Summary renders a short human-readable description of a payment, or an
// empty string when the metadata carries nothing worth showing.
func Summary(p Entry) string {
	switch p.Method {
	case "cash":
		received, ok := centsValue(p.Metadata["cashReceived"])
		if !ok || received == 0 {
			return ""
		}
		out := "Cash received " + money.Format(received)
		if change, ok := centsValue(p.Metadata["changeDue"]); ok && change > 0 {
			out += " • Change " + money.Format(change)
		}
		return out
	case "credit":
		provider := "Card"
		if v := stringValue(p.Metadata["provider"]); v != "" {
			provider = strings.ToUpper(v[:1]) + v[1:]
		}
		if last4 := stringValue(p.Metadata["cardLast4"]); last4 != "" {
			return provider + " • **** " + last4
		}
		return provider
	case "check":
		if ref := stringValue(p.Metadata["reference"]); ref != "" {
			return "Check #" + ref
		}
	case "cod", "house_account":
		return stringValue(p.Metadata["reference"])
	}
	return ""
}

func sum(payments []Entry) float64 {
	var total float64
	for _, p := range payments {
		total += p.Amount
	}
	return total
}

func centsValue(v any) (money.Cents, bool) {
	switch n := v.(type) {
	case float64:
		return money.Cents(math.Round(n)), true
	case int:
		return money.Cents(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
