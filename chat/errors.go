package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by stores when an insert violates a unique key.
	ErrDuplicate = errors.New("duplicate key")
	// ErrUnavailable wraps collaborator failures surfaced by read paths.
	ErrUnavailable = errors.New("collaborator unavailable")
)

// A ValidationError rejects caller input before any state is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
