package partogram

import (
	"errors"
	"fmt"
)

// ErrInvalidInputRange is wrapped by every observation validation failure.
var ErrInvalidInputRange = errors.New("invalid input range")

// ValidationError identifies the offending observation and field.
type ValidationError struct {
	Index  int
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("observation %d: %s=%v: %s", e.Index, e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInputRange }
