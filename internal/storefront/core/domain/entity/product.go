package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog row. Stock is the authoritative inventory count and
// is only ever decremented by the store itself (see ports.Queries.DecrementStock).
type Product struct {
	ID         string
	Title      string
	Slug       string
	Price      decimal.Decimal
	Stock      int
	IsActive   bool
	CategoryID string
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LineTotal returns price × quantity with exact decimal arithmetic.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// FormatAmount renders a monetary amount the way it is persisted and returned
// to clients: two fractional digits, no exponent.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// MinorUnits converts an amount to the processor's smallest currency unit (cents).
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
