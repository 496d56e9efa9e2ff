package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateSchema is returned when a schema ID is registered twice
	ErrDuplicateSchema = errors.New("schema already registered")

	// ErrDuplicateEnum is returned when an enum ID is registered twice
	ErrDuplicateEnum = errors.New("enum already registered")

	// ErrUnknownSchema is returned when a schema ID cannot be resolved
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrUnknownEnum is returned when an enum ID cannot be resolved
	ErrUnknownEnum = errors.New("unknown enum")

	// ErrInheritanceCycle is returned when a schema (transitively) extends itself
	ErrInheritanceCycle = errors.New("schema inheritance cycle")

	// ErrInconsistentHierarchy is returned when parents cannot be put in one
	// order that keeps every schema ahead of its own parents
	ErrInconsistentHierarchy = errors.New("inconsistent schema hierarchy")
)

// FieldError is a single field level validation failure.
type FieldError struct {
	Loc  []string       `json:"loc"`
	Msg  string         `json:"msg"`
	Type string         `json:"type"`
	Ctx  map[string]any `json:"ctx,omitempty"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s (%s)", strings.Join(e.Loc, "."), e.Msg, e.Type)
}

// ValidationError collects every field error found while validating a payload.
type ValidationError struct {
	Schema ID
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return fmt.Sprintf("validation failed for %q: %s", e.Schema, strings.Join(parts, "; "))
}
