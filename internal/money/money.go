// Package money converts between decimal amounts and the integer micro-units
// stored in the database, and formats amounts for display.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MicrosPerUnit is the storage precision: one currency unit is 1,000,000 micros.
const MicrosPerUnit = 1_000_000

const microsExp = -6

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

// FromMicros converts stored micros to a decimal amount.
func FromMicros(m int64) decimal.Decimal {
	return decimal.New(m, microsExp)
}

// ToMicros converts an amount to micros, rounding anything finer than a micro.
func ToMicros(d decimal.Decimal) int64 {
	return d.Shift(6).Round(0).IntPart()
}

// Parse reads a decimal amount from user input.
func Parse(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// Format renders an amount with its currency symbol. Amounts are shown with
// two decimals unless they carry sub-cent precision, which is kept.
func Format(d decimal.Decimal, currency string) string {
	currency = strings.ToUpper(currency)
	neg := d.IsNegative()
	d = d.Abs().Round(6)

	var amount string
	if d.Equal(d.Round(2)) {
		amount = d.StringFixed(2)
	} else {
		amount = d.String()
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	if sym, ok := symbols[currency]; ok {
		b.WriteString(sym)
		b.WriteString(amount)
		return b.String()
	}
	b.WriteString(amount)
	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(currency)
	}
	return b.String()
}
