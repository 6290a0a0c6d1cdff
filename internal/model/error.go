package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string            `json:"error"`
	Message       string            `json:"message"`
	Details       map[string]string `json:"details,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
}

// ErrorKind classifies failures so callers can decide how to react.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidInput      ErrorKind = "INVALID_INPUT"
	KindConflict          ErrorKind = "CONFLICT"
	KindResourceExhausted ErrorKind = "RESOURCE_EXHAUSTED"
	KindInternal          ErrorKind = "INTERNAL"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeMissingField         = "MISSING_FIELD"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeProductNotFound      = "PRODUCT_NOT_FOUND"
	ErrCodeCartItemNotFound     = "CART_ITEM_NOT_FOUND"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeItemNotFound         = "ITEM_NOT_FOUND"
	ErrCodeInvalidQuantity      = "INVALID_QUANTITY"
	ErrCodeInvalidStatus        = "INVALID_STATUS"
	ErrCodeIllegalTransition    = "ILLEGAL_STATUS_TRANSITION"
	ErrCodeEmptyOrder           = "EMPTY_ORDER"
	ErrCodeInvalidOrderPayload  = "INVALID_ORDER_PAYLOAD"
	ErrCodeDuplicateOrderNumber = "DUPLICATE_ORDER_NUMBER"
	ErrCodeResourceExhausted    = "RESOURCE_EXHAUSTED"
	ErrCodeUnauthorised         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// DomainError is a classified business error.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrProductNotFound         = NewDomainError(KindNotFound, ErrCodeProductNotFound, "Product not found")
	ErrCartItemNotFound        = NewDomainError(KindNotFound, ErrCodeCartItemNotFound, "Cart item not found")
	ErrOrderNotFound           = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrItemNotFound            = NewDomainError(KindNotFound, ErrCodeItemNotFound, "Order item not found in this order")
	ErrInvalidQuantity         = NewDomainError(KindInvalidInput, ErrCodeInvalidQuantity, "Quantity must be at least 1")
	ErrInvalidStatus           = NewDomainError(KindInvalidInput, ErrCodeInvalidStatus, "Unknown order status")
	ErrIllegalStatusTransition = NewDomainError(KindInvalidInput, ErrCodeIllegalTransition, "Order status transition is not allowed")
	ErrEmptyOrder              = NewDomainError(KindInvalidInput, ErrCodeEmptyOrder, "Order must contain at least one item")
	ErrInvalidOrderPayload     = NewDomainError(KindInvalidInput, ErrCodeInvalidOrderPayload, "Order totals do not match its items")
	ErrDuplicateOrderNumber    = NewDomainError(KindConflict, ErrCodeDuplicateOrderNumber, "Order number already exists")
	ErrResourceExhausted       = NewDomainError(KindResourceExhausted, ErrCodeResourceExhausted, "Database connection pool exhausted, retry later")
)

// InvalidInput builds an ad-hoc validation error.
func InvalidInput(message string) *DomainError {
	return NewDomainError(KindInvalidInput, ErrCodeValidation, message)
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the caller may retry the operation that produced err.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindResourceExhausted
}
