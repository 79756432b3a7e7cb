package numbers

import "errors"

var (
	// ErrInvalidInput means a typed-in value is not a well-formed integer.
	ErrInvalidInput = errors.New("invalid integer")
	// ErrEmptyBulkInput means bulk text produced no parsable numbers.
	ErrEmptyBulkInput = errors.New("no valid numbers found")
	// ErrRangeTooLarge means a bulk input would expand past the parser limit.
	ErrRangeTooLarge = errors.New("range too large")
	// ErrMalformedImport means an import payload is not a JSON array.
	ErrMalformedImport = errors.New("invalid JSON file")
)
