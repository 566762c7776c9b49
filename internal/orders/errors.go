package orders

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrResolution           = errors.New("product or variant not found")
	ErrPaymentConfigMissing = errors.New("payment credentials missing")
	ErrCheckout             = errors.New("checkout link unavailable")
	ErrAuthenticity         = errors.New("webhook checksum mismatch")
	ErrUnknownOrder         = errors.New("unknown order reference")
	ErrNotFound             = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid status transition")

	// ErrUnknownCustomer is a caller error, not a lookup failure.
	ErrUnknownCustomer = fmt.Errorf("%w: unknown customer", ErrValidation)

	// ErrConcurrencyExhausted is reported to callers as insufficient stock.
	ErrConcurrencyExhausted = fmt.Errorf("%w: stock contention retries exhausted", ErrInsufficientStock)
)
