// Package domain defines the shared error taxonomy for the vaccination
// workflow services. Business-rule errors are sentinel values checked with
// errors.Is; validation failures carry the offending field.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is not legal for the entity's
	// current state, e.g. administering a non-pending prescription.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientStock indicates no center holds enough doses.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDuplicateName indicates a uniquely named entity already exists.
	ErrDuplicateName = errors.New("name already registered")

	// ErrDuplicateEmail indicates the email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrAlreadyManaged indicates the center already has an administrator.
	ErrAlreadyManaged = errors.New("center already managed")

	// ErrConflict indicates a uniqueness violation detected at write time.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports bad input shape or range. It is returned before any
// mutating write occurs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InfrastructureError wraps storage or broker failures. The wrapped operation
// guarantees the pre-operation state is intact.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Infra wraps err as an InfrastructureError for the named operation.
func Infra(op string, err error) error {
	return &InfrastructureError{Op: op, Err: err}
}

// IsInfrastructure reports whether err is an infrastructure failure.
func IsInfrastructure(err error) bool {
	var ie *InfrastructureError
	return errors.As(err, &ie)
}
