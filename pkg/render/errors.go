package render

import "errors"

var (
	// ErrDuplicateName is returned when two schemas or enums map to the same Go identifier
	ErrDuplicateName = errors.New("duplicate Go identifier")

	// ErrUnsupportedEnum is returned for enums whose members mix value kinds
	ErrUnsupportedEnum = errors.New("enum members must all be strings or all be integers")
)
