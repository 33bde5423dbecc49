package bracket

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrInvalidWinner  = errors.New("winner is not part of this match")
	ErrInvalidRoster  = errors.New("invalid roster")
	ErrInvalidScore   = errors.New("scores must not be negative")
	ErrAlreadyExists  = errors.New("bracket already exists")
	ErrUnknownSeeding = errors.New("unknown seeding method")

	// ErrDependencyFailure marks failures of the data store or notification
	// sink. These are always safe to retry.
	ErrDependencyFailure = errors.New("dependency failure")
)

// Dependency wraps a store error with the step that failed.
func Dependency(step string, err error) error {
	return fmt.Errorf("%s: %w: %w", step, ErrDependencyFailure, err)
}

// Retryable reports whether the caller may retry the failed operation as is.
func Retryable(err error) bool {
	return errors.Is(err, ErrDependencyFailure)
}
