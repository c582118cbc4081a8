package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when the email is already registered.
	ErrConflict = errors.New("user already exists")
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
