package services

import (
	"errors"
	"fmt"

	"storefront/internal/validate"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("access denied")
	ErrNotFound          = errors.New("not found")
	ErrCheckoutFailed    = errors.New("checkout failed, please try again")
	ErrEmptyCart         = errors.New("your cart is empty")
	ErrProductHasOrders  = errors.New("product has existing orders")
	ErrNoAdminRecipient  = errors.New("no admin recipient configured")
	ErrBadCreds          = errors.New("invalid email or password")
)

// ValidationError wraps a field-level failure. errors.Is(err, ErrValidation) holds.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + " " + e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// fromFieldError lifts a validate.FieldError into the service taxonomy.
func fromFieldError(err error) error {
	var fe validate.FieldError
	if errors.As(err, &fe) {
		return invalid(fe.Field, fe.Message)
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// StockError names the product and what is left. errors.Is(err, ErrInsufficientStock) holds.
type StockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Only %d items available.", e.Name, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
