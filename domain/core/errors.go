package core

import (
	"errors"
	"fmt"
)

// Domain sentinel errors - centralized error definitions.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrCandidateNotFound = fmt.Errorf("%w: candidate", ErrNotFound)
	ErrRegionNotFound    = fmt.Errorf("%w: region", ErrNotFound)
	ErrRunNotFound       = fmt.Errorf("%w: run", ErrNotFound)

	ErrEmptyPolygon     = errors.New("boundary polygon is empty or malformed")
	ErrInvalidWeights   = errors.New("weights do not sum to 1 within tolerance")
	ErrUnknownMode      = errors.New("unknown scenario mode")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrSeedMismatch     = errors.New("seed mismatch")
	ErrHashMismatch     = errors.New("hash mismatch")
)

// NewNotFoundError wraps ErrNotFound with the resource kind and id.
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// NewValidationError formats a field-scoped validation failure.
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// IsNotFoundError reports whether err is (or wraps) ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDeterminismError reports whether err is one of the determinism-class sentinels.
func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrSeedMismatch) ||
		errors.Is(err, ErrHashMismatch)
}
