package changelog

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

// Generator builds a changelog from a bundle and its projected schemas
type Generator struct {
	bundle  *structure.VersionBundle
	schemas *schemagen.Result
	log     *logrus.Logger
}

// NewGenerator creates a changelog generator. schemas must be the projection
// of bundle.
func NewGenerator(bundle *structure.VersionBundle, schemas *schemagen.Result, log *logrus.Logger) *Generator {
	if log == nil {
		log = logrus.New()
	}
	return &Generator{bundle: bundle, schemas: schemas, log: log}
}

// Generate describes every version against the version right before it.
// Hidden version changes and hidden instructions are left out, as are
// validator instructions.
func (g *Generator) Generate() (*Changelog, error) {
	versions := g.bundle.Versions()
	out := &Changelog{Versions: make([]Version, 0, len(versions))}
	for i := 0; i+1 < len(versions); i++ {
		v := versions[i]
		newer, ok := g.schemas.Version(v.Date)
		if !ok {
			return nil, structure.Errorf(structure.ErrGeneration, "version %s has no projected schemas", v.Date)
		}
		older, ok := g.schemas.Version(versions[i+1].Date)
		if !ok {
			return nil, structure.Errorf(structure.ErrGeneration, "version %s has no projected schemas", versions[i+1].Date)
		}

		entry := Version{Value: v.Date.String(), Changes: []Change{}}
		for _, vc := range v.Changes {
			if vc.HiddenFromChangelog() {
				g.log.WithField("change", vc.Name()).Debug("Change hidden from changelog")
				continue
			}
			change := Change{
				Name:         vc.Name(),
				Description:  vc.Description(),
				SideEffects:  vc.HasSideEffects(),
				Instructions: []Entry{},
			}
			var instructions []structure.Instruction
			instructions = append(instructions, vc.EndpointInstructions()...)
			instructions = append(instructions, vc.EnumInstructions()...)
			instructions = append(instructions, vc.SchemaInstructions()...)
			for _, in := range instructions {
				if in.HiddenFromChangelog() {
					continue
				}
				e, ok, err := convert(in, newer, older)
				if err != nil {
					return nil, err.In(vc.Name())
				}
				if ok {
					change.Instructions = append(change.Instructions, e)
				}
			}
			entry.Changes = append(entry.Changes, change)
		}
		out.Versions = append(out.Versions, entry)
	}
	return out, nil
}

func convert(in structure.Instruction, newer, older *schemagen.VersionSchemas) (Entry, bool, *structure.Error) {
	switch in := in.(type) {
	case *structure.EndpointDidntExist:
		return Entry{Type: EndpointAdded, Path: in.Path, Methods: in.Methods}, true, nil

	case *structure.EndpointExisted:
		return Entry{Type: EndpointRemoved, Path: in.Path, Methods: in.Methods}, true, nil

	case *structure.EndpointHad:
		return Entry{
			Type:             EndpointChanged,
			Path:             in.Path,
			Methods:          in.Methods,
			AttributeChanges: endpointChanges(in.Changes),
		}, true, nil

	case *structure.FieldDidntExist:
		f, err := field(newer, in.Schema, in.Name)
		if err != nil {
			return Entry{}, false, err
		}
		return Entry{
			Type:      SchemaFieldAdded,
			Models:    affectedModels(newer, in.Schema, in.Name),
			Field:     in.Name,
			FieldInfo: fieldInfo(f),
		}, true, nil

	case *structure.FieldExistedAs:
		return Entry{
			Type:   SchemaFieldRemoved,
			Models: affectedModels(newer, in.Schema, in.Field.Name),
			Field:  in.Field.Name,
		}, true, nil

	case *structure.FieldHad:
		oldName := in.Name
		if in.Changes.NewName != "" {
			oldName = in.Changes.NewName
		}
		newField, err := field(newer, in.Schema, in.Name)
		if err != nil {
			return Entry{}, false, err
		}
		oldField, err := field(older, in.Schema, oldName)
		if err != nil {
			return Entry{}, false, err
		}
		var changes []AttributeChange
		if oldName != in.Name {
			changes = append(changes, AttributeChange{Name: "name", Status: AttributeChanged, OldValue: oldName, NewValue: in.Name})
		}
		changes = append(changes, diffInfo(fieldInfo(oldField), fieldInfo(newField))...)
		return Entry{
			Type:             FieldAttributesChanged,
			Models:           affectedModels(newer, in.Schema, in.Name),
			Field:            oldName,
			AttributeChanges: changes,
		}, true, nil

	case *structure.FieldDidntHave:
		f, err := field(newer, in.Schema, in.Name)
		if err != nil {
			return Entry{}, false, err
		}
		var changes []AttributeChange
		for _, attr := range in.Attributes {
			value, _ := f.Get(attr)
			changes = append(changes, AttributeChange{Name: attr, Status: AttributeAdded, NewValue: value})
		}
		return Entry{
			Type:             FieldAttributesAdded,
			Models:           affectedModels(newer, in.Schema, in.Name),
			Field:            in.Name,
			AttributeChanges: changes,
		}, true, nil

	case *structure.SchemaHad:
		return Entry{
			Type:      SchemaChanged,
			Models:    []string{newer.Name(in.Schema)},
			ModelInfo: &ModelInfo{Name: in.Name},
		}, true, nil

	case *structure.EnumDidntHaveMembers:
		e, ok := newer.Enum(in.Enum)
		if !ok {
			return Entry{}, false, structure.Errorf(structure.ErrGeneration, "enum %q is not registered", in.Enum)
		}
		entry := Entry{Type: EnumMembersAdded, Enum: e.Name}
		for _, name := range in.Members {
			if m, ok := e.Member(name); ok {
				entry.Members = append(entry.Members, Member{Name: m.Name, Value: m.Value})
			}
		}
		return entry, true, nil

	case *structure.EnumHadMembers:
		newEnum, ok := newer.Enum(in.Enum)
		if !ok {
			return Entry{}, false, structure.Errorf(structure.ErrGeneration, "enum %q is not registered", in.Enum)
		}
		entry := Entry{Type: EnumMembersRemoved, Enum: newEnum.Name}
		for _, m := range in.Members {
			change := AttributeChange{Name: m.Name, Status: AttributeRemoved, OldValue: m.Value}
			if current, ok := newEnum.Member(m.Name); ok {
				change.Status = AttributeChanged
				change.NewValue = current.Value
			}
			entry.MemberChanges = append(entry.MemberChanges, change)
		}
		return entry, true, nil

	case *structure.ValidatorExisted, *structure.ValidatorDidntExist:
		return Entry{}, false, nil
	}
	return Entry{}, false, structure.Errorf(structure.ErrGeneration, "unsupported instruction %T", in)
}

func field(v *schemagen.VersionSchemas, id schema.ID, name string) (*schema.Field, *structure.Error) {
	model, ok := v.Model(id)
	if !ok {
		return nil, structure.Errorf(structure.ErrGeneration, "schema is not registered in version %s", v.Version()).For(id, "")
	}
	f, ok := model.Field(name)
	if !ok {
		return nil, structure.Errorf(structure.ErrGeneration, "field does not exist in version %s", v.Version()).For(id, name)
	}
	return f, nil
}

// fieldInfo is the client-visible representation of a field
func fieldInfo(f *schema.Field) map[string]interface{} {
	info := map[string]interface{}{"type": f.Type.String()}
	for k, v := range f.Attributes {
		info[k] = v
	}
	return info
}

func diffInfo(older, newer map[string]interface{}) []AttributeChange {
	keys := make([]string, 0, len(older))
	for k := range older {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []AttributeChange
	for _, k := range keys {
		current, ok := newer[k]
		if ok && reflect.DeepEqual(current, older[k]) {
			continue
		}
		change := AttributeChange{Name: k, Status: AttributeRemoved, OldValue: older[k]}
		if ok {
			change.Status = AttributeChanged
			change.NewValue = current
		}
		out = append(out, change)
	}
	return out
}

func endpointChanges(c structure.EndpointChanges) []AttributeChange {
	var out []AttributeChange
	add := func(name string, old interface{}) {
		out = append(out, AttributeChange{Name: name, Status: AttributeChanged, OldValue: old})
	}
	if c.Path != nil {
		add("path", *c.Path)
	}
	if c.Methods != nil {
		add("methods", c.Methods)
	}
	if c.StatusCode != nil {
		add("status_code", *c.StatusCode)
	}
	if c.Tags != nil {
		add("tags", c.Tags)
	}
	if c.Summary != nil {
		add("summary", *c.Summary)
	}
	if c.Description != nil {
		add("description", *c.Description)
	}
	if c.Deprecated != nil {
		add("deprecated", *c.Deprecated)
	}
	if c.IncludeInSchema != nil {
		add("include_in_schema", *c.IncludeInSchema)
	}
	if c.OperationID != nil {
		add("operation_id", *c.OperationID)
	}
	if c.ResponseSchema != nil {
		add("response_schema", string(*c.ResponseSchema))
	}
	return out
}

// affectedModels returns the changed schema plus every schema that inherits
// the field from it without redefining it on the way
func affectedModels(v *schemagen.VersionSchemas, changed schema.ID, fieldName string) []string {
	parentsOf := func(id schema.ID) ([]schema.ID, bool) {
		s, ok := v.Schema(id)
		if !ok {
			return nil, false
		}
		return s.Parents, true
	}
	defines := func(id schema.ID) bool {
		s, ok := v.Schema(id)
		if !ok {
			return false
		}
		for _, f := range s.Fields {
			if f.Name == fieldName {
				return true
			}
		}
		return false
	}

	var names []string
	for _, id := range v.SchemaIDs() {
		if id == changed {
			names = append(names, v.Name(id))
			continue
		}
		ancestors, err := schema.Linearize(id, parentsOf)
		if err != nil {
			continue
		}
		idx := -1
		for i, a := range ancestors {
			if a == changed {
				idx = i
				break
			}
		}
		if idx < 0 || defines(id) {
			continue
		}
		shadowed := false
		for _, a := range ancestors[:idx] {
			if defines(a) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			names = append(names, v.Name(id))
		}
	}
	return names
}

// String renders an entry on one line
func (e Entry) String() string {
	switch e.Type {
	case EndpointAdded, EndpointRemoved, EndpointChanged:
		return fmt.Sprintf("%s %v %s", e.Type, e.Methods, e.Path)
	case EnumMembersAdded, EnumMembersRemoved:
		return fmt.Sprintf("%s %s", e.Type, e.Enum)
	case SchemaChanged:
		return fmt.Sprintf("%s %v", e.Type, e.Models)
	default:
		return fmt.Sprintf("%s %v.%s", e.Type, e.Models, e.Field)
	}
}
