package model

import "github.com/cockroachdb/errors"

// ErrValidation marks input that breaks a domain invariant.
var ErrValidation = errors.New("validation failed")

// IsValidation reports whether err was marked as a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
