package domain

import "errors"

var (
	ErrUnauthenticated   = errors.New("no authenticated identity")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrProductNotFound   = errors.New("product not found")
	ErrCartLineNotFound  = errors.New("cart line not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrMissingField      = errors.New("missing required field")
)
