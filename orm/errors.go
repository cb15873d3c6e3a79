package orm

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a query expects exactly one row but finds none.
var ErrNotFound = errors.New("orm: not found")

// ErrNotNull is returned when a write would persist NULL into a
// non-nullable attribute without an explicit null allowance.
var ErrNotNull = errors.New("orm: null value in non-nullable attribute")

// NotNullError reports the entity and attribute that rejected a NULL.
type NotNullError struct {
	Entity    string
	Attribute string
}

func (e *NotNullError) Error() string {
	return fmt.Sprintf("orm: attribute %q on entity %q cannot be null", e.Attribute, e.Entity)
}

// Is allows errors.Is(err, ErrNotNull).
func (e *NotNullError) Is(err error) bool {
	return err == ErrNotNull
}

// IsNotNull reports whether err is a NotNullError.
func IsNotNull(err error) bool {
	if err == nil {
		return false
	}
	var e *NotNullError
	return errors.As(err, &e) || errors.Is(err, ErrNotNull)
}
