package domain

import "github.com/shopspring/decimal"

// FormatAmount renders minor currency units as a fixed two-decimal string.
func FormatAmount(cents int64, currency string) string {
	s := decimal.New(cents, -2).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// FormatCredits renders a whole credit count. Credits have no minor unit.
func FormatCredits(n int64) string {
	if n == 1 || n == -1 {
		return decimal.NewFromInt(n).String() + " credit"
	}
	return decimal.NewFromInt(n).String() + " credits"
}
