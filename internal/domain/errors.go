package domain

import "errors"

// Error kinds surfaced by the scoring core. Callers branch with errors.Is;
// context is attached at the call site via fmt.Errorf and %w.
var (
	ErrValidation      = errors.New("validation failed")
	ErrOutOfRange      = errors.New("round out of range")
	ErrStorage         = errors.New("storage failure")
	ErrMalformedRecord = errors.New("malformed game record")
)

// IsValidationError checks if an error is a rejected-input type error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrOutOfRange)
}

// IsStorageError checks if an error came from the persistence substrate
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}
