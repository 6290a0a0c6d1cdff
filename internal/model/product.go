package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a spare part in the catalogue.
type Product struct {
	ID           string              `json:"id" db:"id"`
	Name         string              `json:"name" db:"name"`
	SKU          string              `json:"sku" db:"sku"`
	Artikul      string              `json:"artikul,omitempty" db:"artikul"`
	BasePrice    decimal.Decimal     `json:"basePrice" db:"base_price"`
	SalePrice    decimal.NullDecimal `json:"salePrice" db:"sale_price"`
	Stock        int                 `json:"stock" db:"stock"`
	CategoryID   *int64              `json:"categoryId,omitempty" db:"category_id"`
	CategoryName string              `json:"categoryName,omitempty" db:"category_name"`
	CreatedAt    time.Time           `json:"createdAt" db:"created_at"`
}

// ProductView is a catalogue entry with the price the caller would pay.
type ProductView struct {
	Product
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
}
