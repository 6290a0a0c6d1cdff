// Package pricing decides the unit price a customer pays for a product.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ResolvePrice returns the effective unit price.
//
// A positive user discount always wins and is applied to the base price, truncated
// to two decimals. Otherwise a sale price strictly between zero and base is used.
// Otherwise the base price is returned unchanged.
func ResolvePrice(base decimal.Decimal, sale decimal.NullDecimal, discountPercentage int) decimal.Decimal {
	discount := ClampDiscount(discountPercentage)
	if discount > 0 {
		factor := hundred.Sub(decimal.NewFromInt(int64(discount)))
		return base.Mul(factor).Div(hundred).RoundFloor(2)
	}
	if HasValidSale(base, sale) {
		return sale.Decimal
	}
	return base
}

// HasValidSale reports whether sale is present and 0 < sale < base.
func HasValidSale(base decimal.Decimal, sale decimal.NullDecimal) bool {
	return sale.Valid && sale.Decimal.IsPositive() && sale.Decimal.LessThan(base)
}

// ClampDiscount bounds a stored discount percentage to [0, 100].
func ClampDiscount(d int) int {
	switch {
	case d < 0:
		return 0
	case d > 100:
		return 100
	}
	return d
}

// LineTotal multiplies a unit price by quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}
