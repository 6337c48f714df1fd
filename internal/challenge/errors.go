package challenge

import (
	"errors"
	"fmt"
)

var (
	// ErrChallengeNotFound is returned when a referenced challenge id does
	// not exist. No state is mutated when it is returned.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrUserNotFound is returned when a referenced user id does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError reports malformed or out-of-range trade input. It is always
// surfaced before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
