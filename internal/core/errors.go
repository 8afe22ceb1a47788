package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrEmptyDescription     = errors.New("empty description")
	ErrDescriptionTooLong   = errors.New("description too long")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidInstallments  = errors.New("invalid installment count")

	// ErrUnauthenticated is returned when an operation runs without a user.
	ErrUnauthenticated = errors.New("user not authenticated")
)

// ValidationError reports malformed user input. Field names the offending
// input using its wire name (e.g. "payment_method").
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a gateway failure (network, constraint violation).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PartialBatchError is returned when some inserts of an installment group
// failed. Rows in Inserted were stored and are not rolled back.
type PartialBatchError struct {
	Group     string
	Attempted int
	Failed    int
	Inserted  []Expense
	First     error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("installment group %s: %d of %d inserts failed: %v",
		e.Group, e.Failed, e.Attempted, e.First)
}

func (e *PartialBatchError) Unwrap() error {
	return e.First
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
