// Package money holds rupiah amounts as shopspring decimals.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the storefront sells in
const Currency = "idr"

// ParseIDR parses an amount like "35000", "35000.00" or "35.000" (Indonesian
// thousands separator). Negative amounts are rejected.
func ParseIDR(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp"), "rp")
	s = strings.TrimSpace(s)
	if strings.Count(s, ".") > 1 || (strings.Contains(s, ".") && !strings.Contains(s, ",") && len(s)-strings.LastIndex(s, ".") == 4) {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative")
	}
	return d, nil
}

// FormatIDR renders an amount the way the storefront prints prices: Rp35.000
func FormatIDR(d decimal.Decimal) string {
	whole := d.Round(0).StringFixed(0)
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")

	var sb strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-Rp" + sb.String()
	}
	return "Rp" + sb.String()
}

// ToMinorUnits converts rupiah to the smallest unit payment providers expect.
// Stripe treats IDR as a two-decimal currency.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Sum adds amounts
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
