package schema

import (
	"errors"
	"fmt"
)

// Declaration-time sentinel errors.
var (
	// ErrUnknownAttribute is returned when a declaration names an
	// attribute that does not exist on the entity.
	ErrUnknownAttribute = errors.New("schema: unknown attribute")

	// ErrNamingCollision is returned when an injected attribute name
	// collides with an existing attribute of a different type.
	ErrNamingCollision = errors.New("schema: naming collision")
)

// UnknownAttributeError reports a reference to an attribute that is not
// declared on the entity.
type UnknownAttributeError struct {
	Entity    string
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("schema: entity %q has no attribute %q", e.Entity, e.Attribute)
}

// Is allows errors.Is(err, ErrUnknownAttribute).
func (e *UnknownAttributeError) Is(err error) bool {
	return err == ErrUnknownAttribute
}

// IsUnknownAttribute reports whether err is an UnknownAttributeError.
func IsUnknownAttribute(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownAttributeError
	return errors.As(err, &e) || errors.Is(err, ErrUnknownAttribute)
}

// NamingCollisionError reports an injected attribute colliding with an
// existing attribute of an incompatible type.
type NamingCollisionError struct {
	Entity    string
	Attribute string
	Existing  Type
	Proposed  Type
}

func (e *NamingCollisionError) Error() string {
	return fmt.Sprintf(
		"schema: attribute %q on entity %q already declared as %s, cannot redeclare as %s",
		e.Attribute, e.Entity, e.Existing, e.Proposed,
	)
}

// Is allows errors.Is(err, ErrNamingCollision).
func (e *NamingCollisionError) Is(err error) bool {
	return err == ErrNamingCollision
}

// IsNamingCollision reports whether err is a NamingCollisionError.
func IsNamingCollision(err error) bool {
	if err == nil {
		return false
	}
	var e *NamingCollisionError
	return errors.As(err, &e) || errors.Is(err, ErrNamingCollision)
}
