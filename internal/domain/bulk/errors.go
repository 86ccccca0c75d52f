package bulk

import "github.com/cockroachdb/errors"

// Sentinel errors that abort a whole file rather than a single row.
var (
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrEmptyFile         = errors.New("file has no header row")
	ErrMissingColumn     = errors.New("required column missing")
	ErrTooManyRows       = errors.New("file exceeds the row limit")
)
