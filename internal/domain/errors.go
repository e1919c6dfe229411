package domain

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrConnectionNotFound    = errors.New("connection not found")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrStatusConflict        = errors.New("order status changed concurrently")
	ErrDuplicatePaymentEvent = errors.New("payment event already processed")
)
