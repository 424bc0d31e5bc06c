package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidStatus      = errors.New("unknown order status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrOwnProduct         = errors.New("you cannot buy your own product")
	ErrEmptyCart          = errors.New("your cart is empty")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
)
