package handler

import "github.com/shopspring/decimal"

// Request bodies carry prices as float64; the application layer wants
// decimals.
func toDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func toDecimalPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
