package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is a stored cart line. BasePrice is captured when the product is first added;
// the remaining price columns are derived and rewritten on every recomputation.
type CartItem struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	UserID         uuid.UUID           `json:"userId" db:"user_id"`
	ProductID      string              `json:"productId" db:"product_id"`
	Quantity       int                 `json:"quantity" db:"quantity"`
	BasePrice      decimal.Decimal     `json:"basePrice" db:"base_price"`
	SalePrice      decimal.NullDecimal `json:"salePrice" db:"sale_price"`
	TotalPrice     decimal.Decimal     `json:"totalPrice" db:"total_price"`
	TotalSalePrice decimal.Decimal     `json:"totalSalePrice" db:"total_sale_price"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time           `json:"updatedAt" db:"updated_at"`
}

// CartLine is a cart item joined with the product it references.
type CartLine struct {
	CartItem
	Product Product `json:"product"`
}

// CartLineView is a cart line priced for the current user.
type CartLineView struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	CategoryName   string          `json:"categoryName,omitempty"`
	Quantity       int             `json:"quantity"`
	BasePrice      decimal.Decimal `json:"basePrice"`
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	TotalSalePrice decimal.Decimal `json:"totalSalePrice"`
}

// CartView is the priced cart returned to callers.
type CartView struct {
	Items          []CartLineView  `json:"items"`
	TotalItems     int             `json:"totalItems"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	TotalSalePrice decimal.Decimal `json:"totalSalePrice"`
	Savings        decimal.Decimal `json:"savings"`
}

// EmptyCart returns a cart view with no items.
func EmptyCart() *CartView {
	return &CartView{
		Items:          []CartLineView{},
		TotalPrice:     decimal.Zero,
		TotalSalePrice: decimal.Zero,
		Savings:        decimal.Zero,
	}
}

// AddCartItemRequest adds a product to the cart by id or SKU.
type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required_without=SKU"`
	SKU       string `json:"sku" validate:"required_without=ProductID"`
	Quantity  *int   `json:"quantity,omitempty"`
}

// UpdateCartItemRequest sets a cart line quantity. Zero or less removes the line.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}
