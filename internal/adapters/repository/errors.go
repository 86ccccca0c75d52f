package repository

import "github.com/cockroachdb/errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidLimit       = errors.New("invalid limit")
)

// Unavailable wraps a backend failure so callers can match ErrStorageUnavailable.
func Unavailable(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrStorageUnavailable)
}
