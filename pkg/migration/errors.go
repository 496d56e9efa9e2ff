package migration

import (
	"fmt"

	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/structure"
)

var (
	// ErrHeadValidation is returned when a migrated request does not validate
	// against the head schema. It points at a version change authoring bug,
	// not at bad client input.
	ErrHeadValidation = fmt.Errorf("%w: migrated request failed head validation", structure.ErrRuntimeMigration)
)

// HeadRequestValidationError carries the head validation failures of a
// migrated request together with the body that failed and the version the
// client asked for.
type HeadRequestValidationError struct {
	Errors  []schema.FieldError
	Body    interface{}
	Version structure.Date
}

func (e *HeadRequestValidationError) Error() string {
	return fmt.Sprintf("%s (client version %s, %d errors)", ErrHeadValidation, e.Version, len(e.Errors))
}

func (e *HeadRequestValidationError) Unwrap() error {
	return ErrHeadValidation
}
