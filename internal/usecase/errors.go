package usecase

import "errors"

var (
	ErrNotFound     = errors.New("order not found")
	ErrInvalidState = errors.New("operation not valid for current order status")
	ErrDuplicate    = errors.New("duplicate checkout request")
)
