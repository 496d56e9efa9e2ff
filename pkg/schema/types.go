package schema

import (
	"fmt"
)

// ID identifies a schema or enum independently of any Go type.
type ID string

// Kind is the base kind of a field type
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
	KindSchema
	KindEnum
)

func (k Kind) String() string {
	return []string{"any", "str", "int", "float", "bool", "list", "dict", "schema", "enum"}[k]
}

// Type describes the value a field holds. Schema and enum references are by ID
// so that a type written against head resolves to the projected definition of
// whatever version it is validated in.
type Type struct {
	Kind     Kind
	Elem     *Type
	Ref      ID
	Nullable bool
}

// Any accepts every value
func Any() Type { return Type{Kind: KindAny} }

// String is a JSON string
func String() Type { return Type{Kind: KindString} }

// Int is a JSON number without a fractional part
func Int() Type { return Type{Kind: KindInt} }

// Float is any JSON number
func Float() Type { return Type{Kind: KindFloat} }

// Bool is a JSON boolean
func Bool() Type { return Type{Kind: KindBool} }

// ListOf is a JSON array whose items are elem
func ListOf(elem Type) Type { return Type{Kind: KindList, Elem: &elem} }

// MapOf is a JSON object with string keys and elem values
func MapOf(elem Type) Type { return Type{Kind: KindMap, Elem: &elem} }

// Ref is a nested object validated against the schema with the given ID
func Ref(id ID) Type { return Type{Kind: KindSchema, Ref: id} }

// EnumRef is a value that must be one of the enum's member values
func EnumRef(id ID) Type { return Type{Kind: KindEnum, Ref: id} }

// Optional returns t with null accepted
func Optional(t Type) Type {
	t.Nullable = true
	return t
}

// Equal reports whether two types are structurally identical
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind || t.Ref != other.Ref || t.Nullable != other.Nullable {
		return false
	}
	if (t.Elem == nil) != (other.Elem == nil) {
		return false
	}
	if t.Elem == nil {
		return true
	}
	return t.Elem.Equal(*other.Elem)
}

func (t Type) String() string {
	var s string
	switch t.Kind {
	case KindList:
		s = fmt.Sprintf("list[%s]", t.Elem)
	case KindMap:
		s = fmt.Sprintf("dict[str, %s]", t.Elem)
	case KindSchema, KindEnum:
		s = string(t.Ref)
	default:
		s = t.Kind.String()
	}
	if t.Nullable {
		s += " | None"
	}
	return s
}

// References returns every schema and enum ID reachable from t
func (t Type) References() []ID {
	var refs []ID
	for cur := &t; cur != nil; cur = cur.Elem {
		if cur.Ref != "" {
			refs = append(refs, cur.Ref)
		}
	}
	return refs
}
