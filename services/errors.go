package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidComparisonSelection is returned by the comparison
	// aggregations when the selection is not exactly two retailers.
	ErrInvalidComparisonSelection = errors.New("comparison requires exactly two retailers")

	// ErrInvalidQuery wraps malformed query parameters.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrMissingColumn marks a header without one of the required columns.
	ErrMissingColumn = errors.New("required column missing")

	// ErrEmptyValue marks a required cell that is blank or absent.
	ErrEmptyValue = errors.New("empty value")
)

// SchemaError reports a raw row that could not be typed. Row is the zero-based
// index into the data rows (the header is not counted); it is -1 for header
// problems.
type SchemaError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("schema: header: column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("schema: data row %d: column %q: value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
