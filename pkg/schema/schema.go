package schema

import (
	"reflect"
)

// Well known field attributes. Any other key is carried through untouched.
const (
	AttrDefault     = "default"
	AttrAlias       = "alias"
	AttrTitle       = "title"
	AttrDescription = "description"
	AttrExamples    = "examples"
	AttrDeprecated  = "deprecated"
	AttrValidate    = "validate"
)

// Field is one named, typed member of a schema. Attributes only holds the
// attributes that were explicitly set on the field.
type Field struct {
	Name       string
	Type       Type
	Attributes map[string]any
}

// FieldOption sets an attribute on a new field
type FieldOption func(*Field)

// Attr sets attribute name to value
func Attr(name string, value any) FieldOption {
	return func(f *Field) {
		f.Attributes[name] = value
	}
}

// Default marks the field optional with the given default value
func Default(value any) FieldOption {
	return Attr(AttrDefault, value)
}

// NewField creates a field with the given options applied
func NewField(name string, typ Type, opts ...FieldOption) *Field {
	f := &Field{Name: name, Type: typ, Attributes: make(map[string]any)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Has reports whether attr was explicitly set
func (f *Field) Has(attr string) bool {
	_, ok := f.Attributes[attr]
	return ok
}

// Get returns the value of an explicitly set attribute
func (f *Field) Get(attr string) (any, bool) {
	v, ok := f.Attributes[attr]
	return v, ok
}

// Required reports whether the field must be present in a payload
func (f *Field) Required() bool {
	return !f.Has(AttrDefault)
}

// JSONName is the key the field is read from and written to
func (f *Field) JSONName() string {
	if alias, ok := f.Attributes[AttrAlias].(string); ok && alias != "" {
		return alias
	}
	return f.Name
}

// Clone returns a copy that can be mutated without affecting f
func (f *Field) Clone() *Field {
	attrs := make(map[string]any, len(f.Attributes))
	for k, v := range f.Attributes {
		attrs[k] = v
	}
	return &Field{Name: f.Name, Type: f.Type, Attributes: attrs}
}

// Equal compares name, type and explicitly set attributes
func (f *Field) Equal(other *Field) bool {
	return f.Name == other.Name && f.Type.Equal(other.Type) && reflect.DeepEqual(f.Attributes, other.Attributes)
}

// ValidatorFunc checks the already type-checked values of a payload
type ValidatorFunc func(values map[string]any) error

// Validator is a named check bound to a set of fields. A validator with no
// fields applies to the whole payload.
type Validator struct {
	Name   string
	Fields []string
	Func   ValidatorFunc
}

// Clone returns a copy with its own field list
func (v *Validator) Clone() *Validator {
	var fields []string
	if v.Fields != nil {
		fields = append([]string{}, v.Fields...)
	}
	return &Validator{Name: v.Name, Fields: fields, Func: v.Func}
}

// Schema is a head definition as declared by the application.
type Schema struct {
	ID         ID
	Name       string
	Parents    []ID
	Fields     []*Field
	Validators []*Validator
}

// Member is one enum member
type Member struct {
	Name  string
	Value any
}

// Enum is an ordered set of named values.
type Enum struct {
	ID      ID
	Name    string
	Members []Member
}

// Member looks up a member by name
func (e *Enum) Member(name string) (Member, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// HasValue reports whether any member carries value
func (e *Enum) HasValue(value any) bool {
	for _, m := range e.Members {
		if valuesEqual(m.Value, value) {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own member list
func (e *Enum) Clone() *Enum {
	return &Enum{ID: e.ID, Name: e.Name, Members: append([]Member{}, e.Members...)}
}

// Model is a fully resolved schema: inherited fields merged in, deleted
// validators dropped. It is what payloads are validated against.
type Model struct {
	ID         ID
	Name       string
	Fields     []*Field
	Validators []*Validator
}

// Field looks up a field by name
func (m *Model) Field(name string) (*Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// FieldNames returns field names in declaration order
func (m *Model) FieldNames() []string {
	names := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Resolver resolves schema and enum IDs to concrete definitions for one
// version of the API.
type Resolver interface {
	Model(id ID) (*Model, bool)
	Enum(id ID) (*Enum, bool)
}

// valuesEqual compares JSON-ish values, treating all numeric kinds alike
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}
