package acidbase

import (
	"errors"
	"fmt"
)

// ErrInvalidInputRange marks caller input that is malformed or out of range.
var ErrInvalidInputRange = errors.New("input out of range")

// ValidationError describes the offending field
type ValidationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInputRange
}
