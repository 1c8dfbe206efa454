package pricing

import (
	"sort"
	"strings"

	"github.com/noah-isme/backend-bloom/internal/money"
)

// TaxRates holds jurisdictional rates as fractions (0.05 == 5%).
type TaxRates struct {
	GSTRate float64 `json:"gstRate"`
	PSTRate float64 `json:"pstRate"`
}

// Combined returns the sum of both rates.
func (r TaxRates) Combined() float64 { return r.GSTRate + r.PSTRate }

// ComputeTax applies each rate to amount independently. Rounding happens per
// tax, never on the combined rate.
func ComputeTax(amount money.Cents, rates TaxRates) (gst, pst money.Cents) {
	if amount <= 0 {
		return 0, 0
	}
	return money.ApplyRate(amount, rates.GSTRate), money.ApplyRate(amount, rates.PSTRate)
}

// Rate is a named tax rate expressed as a percentage (5.00 == 5%).
type Rate struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Percent     float64 `json:"rate"`
	Active      bool    `json:"isActive"`
	SortOrder   int     `json:"sortOrder"`
	Description string  `json:"description,omitempty"`
}

// TaxLine is one entry of a multi-rate tax breakdown.
type TaxLine struct {
	Name    string      `json:"name"`
	Percent float64     `json:"rate"`
	Amount  money.Cents `json:"amount"`
}

// RatesFrom derives GST and PST fractions from a rate list by matching active
// rates whose name contains "GST" or "PST". Missing rates are zero.
func RatesFrom(rates []Rate) TaxRates {
	var out TaxRates
	gstFound, pstFound := false, false
	for _, r := range rates {
		if !r.Active {
			continue
		}
		name := strings.ToUpper(r.Name)
		if !gstFound && strings.Contains(name, "GST") {
			out.GSTRate = r.Percent / 100
			gstFound = true
		}
		if !pstFound && strings.Contains(name, "PST") {
			out.PSTRate = r.Percent / 100
			pstFound = true
		}
	}
	return out
}

// Breakdown applies every active rate to amount, ordered by sort order.
func Breakdown(amount money.Cents, rates []Rate) ([]TaxLine, money.Cents) {
	active := make([]Rate, 0, len(rates))
	for _, r := range rates {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].SortOrder < active[j].SortOrder })
	lines := make([]TaxLine, 0, len(active))
	var total money.Cents
	for _, r := range active {
		amt := money.ApplyRate(amount, r.Percent/100)
		if amount <= 0 {
			amt = 0
		}
		lines = append(lines, TaxLine{Name: r.Name, Percent: r.Percent, Amount: amt})
		total += amt
	}
	return lines, total
}
