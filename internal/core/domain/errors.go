package domain

import "errors"

// Error categories. Every domain error unwraps to exactly one of them.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrOrderNotFound    = newError(ErrNotFound, "order not found")
	ErrMenuItemNotFound = newError(ErrNotFound, "menu item not found")
	ErrItemsNotFound    = newError(ErrNotFound, "some menu items were not found")

	ErrEmptyItems      = newError(ErrValidation, "items must not be empty")
	ErrInvalidQuantity = newError(ErrValidation, "quantity must be at least 1")
	ErrInvalidItemID   = newError(ErrValidation, "item id must be positive")
	ErrQRCodeRequired  = newError(ErrValidation, "qrCodeLink is required")
	ErrInvalidStatus   = newError(ErrValidation, "unknown order status")
	ErrInvalidMenuItem = newError(ErrValidation, "menu item requires a name and a non-negative price")

	ErrInsufficientQuantity = newError(ErrConflict, "cannot cancel more units than the order holds")
	ErrNothingToCancel      = newError(ErrConflict, "none of the requested items are in the order")
	ErrOptimisticLock       = newError(ErrConflict, "order has been modified concurrently")
	ErrOrderLocked          = newError(ErrConflict, "order is being modified by another request")
	ErrDuplicateRequest     = newError(ErrConflict, "request with this idempotency key is in progress")
)

type domainError struct {
	kind error
	msg  string
}

func newError(kind error, msg string) error {
	return &domainError{kind: kind, msg: msg}
}

func (e *domainError) Error() string { return e.msg }

func (e *domainError) Unwrap() error { return e.kind }
