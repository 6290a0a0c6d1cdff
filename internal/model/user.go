package model

import "github.com/google/uuid"

// User is the pricing-relevant slice of a customer account.
type User struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	DiscountPercentage int       `json:"discountPercentage" db:"discount_percentage"`
}
