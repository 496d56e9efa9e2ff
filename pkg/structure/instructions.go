package structure

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/platinummonkey/rewind/pkg/schema"
)

// Instruction is one atomic change between a version and the version right
// before it. Instructions are created through the factories in this package
// and are immutable once a VersionChange holds them.
type Instruction interface {
	// HiddenFromChangelog reports whether the changelog skips this instruction
	HiddenFromChangelog() bool

	constructorErr() error
	hide()
}

type meta struct {
	err    error
	hidden bool
}

func (m *meta) HiddenFromChangelog() bool { return m.hidden }
func (m *meta) constructorErr() error     { return m.err }
func (m *meta) hide()                     { m.hidden = true }

func (m *meta) fail(format string, args ...interface{}) {
	if m.err == nil {
		m.err = Errorf(ErrStructure, format, args...)
	}
}

// Hidden marks instruction as hidden from the changelog and returns it
func Hidden[T Instruction](instruction T) T {
	instruction.hide()
	return instruction
}

// Schema instructions

// FieldExistedAs adds a field that the newer version no longer has.
type FieldExistedAs struct {
	meta
	Schema schema.ID
	Field  *schema.Field
}

// FieldChanges describes how a field differed in the older version. The zero
// value of each member means "unchanged".
type FieldChanges struct {
	Type       *schema.Type
	NewName    string
	Attributes map[string]interface{}
}

func (c FieldChanges) empty() bool {
	return c.Type == nil && c.NewName == "" && len(c.Attributes) == 0
}

// FieldHad alters the type, name or attributes of a field.
type FieldHad struct {
	meta
	Schema  schema.ID
	Name    string
	Changes FieldChanges
}

// FieldDidntExist removes a field.
type FieldDidntExist struct {
	meta
	Schema schema.ID
	Name   string
}

// FieldDidntHave removes explicitly set attributes from a field.
type FieldDidntHave struct {
	meta
	Schema     schema.ID
	Name       string
	Attributes []string
}

// ValidatorExisted adds a validator.
type ValidatorExisted struct {
	meta
	Schema    schema.ID
	Validator *schema.Validator
}

// ValidatorDidntExist removes a validator by name.
type ValidatorDidntExist struct {
	meta
	Schema schema.ID
	Name   string
}

// SchemaHad renames a schema.
type SchemaHad struct {
	meta
	Schema schema.ID
	Name   string
}

// SchemaTarget builds instructions for one schema
type SchemaTarget struct {
	id schema.ID
}

// Schema starts an instruction against schema id
func Schema(id schema.ID) *SchemaTarget {
	return &SchemaTarget{id: id}
}

// Field starts a field instruction
func (s *SchemaTarget) Field(name string) *FieldTarget {
	return &FieldTarget{schema: s.id, name: name}
}

// Validator starts a validator instruction. DidntExist only uses the validator's name.
func (s *SchemaTarget) Validator(v *schema.Validator) *ValidatorTarget {
	return &ValidatorTarget{schema: s.id, validator: v}
}

// Had renames the schema in the older version
func (s *SchemaTarget) Had(name string) *SchemaHad {
	in := &SchemaHad{Schema: s.id, Name: name}
	if name == "" {
		in.fail("schema %q: new name is required", s.id)
	}
	return in
}

// FieldTarget builds instructions for one field
type FieldTarget struct {
	schema schema.ID
	name   string
}

// ExistedAs declares the field as it was in the older version
func (f *FieldTarget) ExistedAs(typ schema.Type, opts ...schema.FieldOption) *FieldExistedAs {
	in := &FieldExistedAs{Schema: f.schema, Field: schema.NewField(f.name, typ, opts...)}
	if f.name == "" {
		in.fail("schema %q: field name is required", f.schema)
	}
	return in
}

// Had declares how the field differed in the older version
func (f *FieldTarget) Had(changes FieldChanges) *FieldHad {
	in := &FieldHad{Schema: f.schema, Name: f.name, Changes: changes}
	if changes.empty() {
		in.fail("schema %q: field %q: had() requires at least one change", f.schema, f.name)
	}
	return in
}

// DidntExist removes the field in the older version
func (f *FieldTarget) DidntExist() *FieldDidntExist {
	return &FieldDidntExist{Schema: f.schema, Name: f.name}
}

// DidntHave removes the given attributes from the field in the older version
func (f *FieldTarget) DidntHave(attributes ...string) *FieldDidntHave {
	in := &FieldDidntHave{Schema: f.schema, Name: f.name, Attributes: attributes}
	if len(attributes) == 0 {
		in.fail("schema %q: field %q: didntHave() requires at least one attribute", f.schema, f.name)
	}
	return in
}

// ValidatorTarget builds instructions for one validator
type ValidatorTarget struct {
	schema    schema.ID
	validator *schema.Validator
}

// Existed adds the validator in the older version
func (v *ValidatorTarget) Existed() *ValidatorExisted {
	in := &ValidatorExisted{Schema: v.schema, Validator: v.validator}
	if v.validator == nil || v.validator.Name == "" || v.validator.Func == nil {
		in.fail("schema %q: validator requires a name and a function", v.schema)
	}
	return in
}

// DidntExist removes the validator in the older version
func (v *ValidatorTarget) DidntExist() *ValidatorDidntExist {
	in := &ValidatorDidntExist{Schema: v.schema}
	if v.validator == nil || v.validator.Name == "" {
		in.fail("schema %q: validator name is required", v.schema)
		return in
	}
	in.Name = v.validator.Name
	return in
}

// Enum instructions

// EnumHadMembers adds or overrides enum members.
type EnumHadMembers struct {
	meta
	Enum    schema.ID
	Members []schema.Member
}

// EnumDidntHaveMembers removes enum members by name.
type EnumDidntHaveMembers struct {
	meta
	Enum    schema.ID
	Members []string
}

// EnumTarget builds instructions for one enum
type EnumTarget struct {
	id schema.ID
}

// Enum starts an instruction against enum id
func Enum(id schema.ID) *EnumTarget {
	return &EnumTarget{id: id}
}

// HadMembers declares members the older version had
func (e *EnumTarget) HadMembers(members ...schema.Member) *EnumHadMembers {
	in := &EnumHadMembers{Enum: e.id, Members: members}
	if len(members) == 0 {
		in.fail("enum %q: hadMembers() requires at least one member", e.id)
	}
	return in
}

// DidntHaveMembers declares members the older version did not have
func (e *EnumTarget) DidntHaveMembers(names ...string) *EnumDidntHaveMembers {
	in := &EnumDidntHaveMembers{Enum: e.id, Members: names}
	if len(names) == 0 {
		in.fail("enum %q: didntHaveMembers() requires at least one member", e.id)
	}
	return in
}

// Endpoint instructions

// EndpointChanges describes how a route differed in the older version. Nil
// members are left unchanged.
type EndpointChanges struct {
	Path            *string
	Methods         []string
	StatusCode      *int
	Tags            []string
	Summary         *string
	Description     *string
	Deprecated      *bool
	IncludeInSchema *bool
	OperationID     *string
	ResponseSchema  *schema.ID
}

func (c EndpointChanges) empty() bool {
	return c.Path == nil && c.Methods == nil && c.StatusCode == nil && c.Tags == nil &&
		c.Summary == nil && c.Description == nil && c.Deprecated == nil &&
		c.IncludeInSchema == nil && c.OperationID == nil && c.ResponseSchema == nil
}

// EndpointMatch identifies the routes an endpoint instruction applies to.
type EndpointMatch struct {
	Path     string
	Methods  []string
	FuncName string
}

func (m EndpointMatch) String() string {
	s := fmt.Sprintf("%s %s", strings.Join(m.Methods, ","), m.Path)
	if m.FuncName != "" {
		s += fmt.Sprintf(" (%s)", m.FuncName)
	}
	return s
}

// EndpointExisted restores a route that the newer version deleted.
type EndpointExisted struct {
	meta
	EndpointMatch
}

// EndpointDidntExist deletes a route that the newer version added.
type EndpointDidntExist struct {
	meta
	EndpointMatch
}

// EndpointHad alters route attributes.
type EndpointHad struct {
	meta
	EndpointMatch
	Changes EndpointChanges
}

// EndpointTarget builds instructions for routes matching a path and methods
type EndpointTarget struct {
	match EndpointMatch
	err   string
}

// Endpoint starts an instruction against the routes at path serving methods
func Endpoint(path string, methods ...string) *EndpointTarget {
	t := &EndpointTarget{match: EndpointMatch{Path: path}}
	normalized, err := normalizeMethods(methods)
	if err != "" {
		t.err = fmt.Sprintf("endpoint %q: %s", path, err)
	}
	t.match.Methods = normalized
	return t
}

// Named narrows the match to routes whose handler has the given name
func (e *EndpointTarget) Named(funcName string) *EndpointTarget {
	e.match.FuncName = funcName
	return e
}

// Existed restores the route in the older version
func (e *EndpointTarget) Existed() *EndpointExisted {
	in := &EndpointExisted{EndpointMatch: e.match}
	if e.err != "" {
		in.fail("%s", e.err)
	}
	return in
}

// DidntExist deletes the route in the older version
func (e *EndpointTarget) DidntExist() *EndpointDidntExist {
	in := &EndpointDidntExist{EndpointMatch: e.match}
	if e.err != "" {
		in.fail("%s", e.err)
	}
	return in
}

// Had declares how the route differed in the older version
func (e *EndpointTarget) Had(changes EndpointChanges) *EndpointHad {
	in := &EndpointHad{EndpointMatch: e.match, Changes: changes}
	if e.err != "" {
		in.fail("%s", e.err)
	}
	if changes.empty() {
		in.fail("endpoint %s: had() requires at least one change", e.match)
	}
	if changes.Methods != nil {
		methods, err := normalizeMethods(changes.Methods)
		if err != "" {
			in.fail("endpoint %s: %s", e.match, err)
		}
		in.Changes.Methods = methods
	}
	return in
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodConnect: true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

func normalizeMethods(methods []string) ([]string, string) {
	if len(methods) == 0 {
		return nil, "at least one HTTP method is required"
	}
	seen := make(map[string]bool, len(methods))
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(m)
		if !knownMethods[m] {
			return nil, fmt.Sprintf("unknown HTTP method %q", m)
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out, ""
}

// Ptr returns a pointer to v, for use in EndpointChanges and FieldChanges
func Ptr[T any](v T) *T {
	return &v
}
