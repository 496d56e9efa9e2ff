package structure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/rewind/pkg/schema"
)

var (
	// ErrStructure is returned for a malformed VersionChange, Version or VersionBundle declaration
	ErrStructure = errors.New("structure error")

	// ErrInvalidInstruction is returned when an instruction cannot be applied:
	// its target is missing, already in the requested state or ambiguous
	ErrInvalidInstruction = errors.New("invalid instruction")

	// ErrGeneration is returned when an instruction references a route or schema
	// that does not exist anywhere or leaves the route graph inconsistent
	ErrGeneration = errors.New("generation error")

	// ErrRouterPathParamsModified is returned when an endpoint path change alters its path parameters
	ErrRouterPathParamsModified = fmt.Errorf("%w: router path params modified", ErrGeneration)

	// ErrRuntimeMigration is returned when a payload cannot be migrated at call time
	ErrRuntimeMigration = errors.New("runtime migration error")
)

// Error carries the context of a failed declaration or projection step.
// It unwraps to its Kind so callers can use errors.Is.
type Error struct {
	Kind          error
	VersionChange string
	Schema        schema.ID
	Target        string
	Message       string
}

// Errorf creates an Error of the given kind
func Errorf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// In records the version change the error was raised for
func (e *Error) In(versionChange string) *Error {
	e.VersionChange = versionChange
	return e
}

// For records the schema and the field, attribute or member the error is about
func (e *Error) For(id schema.ID, target string) *Error {
	e.Schema = id
	e.Target = target
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	if e.VersionChange != "" {
		fmt.Fprintf(&b, "in version change %q: ", e.VersionChange)
	}
	if e.Schema != "" {
		fmt.Fprintf(&b, "%q", e.Schema)
		if e.Target != "" {
			fmt.Fprintf(&b, ".%s", e.Target)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Kind
}
