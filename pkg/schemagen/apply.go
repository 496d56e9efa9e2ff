package schemagen

import (
	"reflect"
	"sort"

	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/structure"
)

// undoEntry restores the state a model or enum had before one instruction ran
type undoEntry struct {
	model *modelInfo
	enum  *schema.Enum
}

// applier replays the instructions of one version change onto a layer
type applier struct {
	layer  *layer
	change string
	undo   []undoEntry
}

func (a *applier) invalid(id schema.ID, target, format string, args ...interface{}) error {
	return structure.Errorf(structure.ErrInvalidInstruction, format, args...).In(a.change).For(id, target)
}

func (a *applier) editModel(id schema.ID) (*modelInfo, error) {
	before, ok := a.layer.model(id)
	if !ok {
		return nil, structure.Errorf(structure.ErrGeneration, "schema %q is not registered", id).In(a.change)
	}
	a.undo = append(a.undo, undoEntry{model: before.clone()})
	m, _ := a.layer.mutableModel(id)
	return m, nil
}

func (a *applier) editEnum(id schema.ID) (*schema.Enum, error) {
	before, ok := a.layer.enum(id)
	if !ok {
		return nil, structure.Errorf(structure.ErrGeneration, "enum %q is not registered", id).In(a.change)
	}
	a.undo = append(a.undo, undoEntry{enum: before.Clone()})
	e, _ := a.layer.mutableEnum(id)
	return e, nil
}

func (a *applier) apply(in structure.Instruction) error {
	switch in := in.(type) {
	case *structure.FieldExistedAs:
		return a.fieldExistedAs(in)
	case *structure.FieldHad:
		return a.fieldHad(in)
	case *structure.FieldDidntHave:
		return a.fieldDidntHave(in)
	case *structure.FieldDidntExist:
		return a.fieldDidntExist(in)
	case *structure.ValidatorExisted:
		m, err := a.editModel(in.Schema)
		if err != nil {
			return err
		}
		if v := m.validator(in.Validator.Name); v != nil {
			v.validator = in.Validator.Clone()
			v.deleted = false
			return nil
		}
		m.validators = append(m.validators, &validatorInfo{validator: in.Validator.Clone()})
		return nil
	case *structure.ValidatorDidntExist:
		m, err := a.editModel(in.Schema)
		if err != nil {
			return err
		}
		v := m.validator(in.Name)
		if v == nil {
			return a.invalid(in.Schema, in.Name, "you tried to delete a validator from %q but it doesn't have such a validator", m.name)
		}
		if v.deleted {
			return a.invalid(in.Schema, in.Name, "you tried to delete a validator from %q but it is already deleted", m.name)
		}
		v.deleted = true
		return nil
	case *structure.SchemaHad:
		m, err := a.editModel(in.Schema)
		if err != nil {
			return err
		}
		if m.name == in.Name {
			return a.invalid(in.Schema, "", "you tried to change the name of %q but it already has the name you tried to assign", m.name)
		}
		m.name = in.Name
		return nil
	case *structure.EnumHadMembers:
		e, err := a.editEnum(in.Enum)
		if err != nil {
			return err
		}
		for _, member := range in.Members {
			if existing, ok := e.Member(member.Name); ok {
				if reflect.DeepEqual(existing.Value, member.Value) {
					return a.invalid(in.Enum, member.Name, "you tried to add a member to %q but there is already a member with that name and value", e.Name)
				}
				for i := range e.Members {
					if e.Members[i].Name == member.Name {
						e.Members[i].Value = member.Value
					}
				}
				continue
			}
			e.Members = append(e.Members, member)
		}
		return nil
	case *structure.EnumDidntHaveMembers:
		e, err := a.editEnum(in.Enum)
		if err != nil {
			return err
		}
		for _, name := range in.Members {
			if _, ok := e.Member(name); !ok {
				return a.invalid(in.Enum, name, "you tried to delete a member from %q but it doesn't have such a member", e.Name)
			}
			kept := e.Members[:0]
			for _, member := range e.Members {
				if member.Name != name {
					kept = append(kept, member)
				}
			}
			e.Members = kept
		}
		return nil
	}
	return nil
}

func (a *applier) fieldExistedAs(in *structure.FieldExistedAs) error {
	resolved, ok := a.layer.resolve(in.Schema)
	if !ok {
		return structure.Errorf(structure.ErrGeneration, "schema %q is not registered", in.Schema).In(a.change)
	}
	if _, exists := resolved.Field(in.Field.Name); exists {
		return a.invalid(in.Schema, in.Field.Name, "you tried to add a field to %q but there is already a field with that name", resolved.Name)
	}
	m, err := a.editModel(in.Schema)
	if err != nil {
		return err
	}
	m.fields = append(m.fields, in.Field.Clone())
	return nil
}

// localField copies an inherited field into the model so it can be edited
// without touching the parent.
func (a *applier) localField(id schema.ID, name string) (*modelInfo, int, error) {
	resolved, ok := a.layer.resolve(id)
	if !ok {
		return nil, -1, structure.Errorf(structure.ErrGeneration, "schema %q is not registered", id).In(a.change)
	}
	field, exists := resolved.Field(name)
	if !exists {
		return nil, -1, a.invalid(id, name, "you tried to change the field of %q but it doesn't have such a field", resolved.Name)
	}
	m, err := a.editModel(id)
	if err != nil {
		return nil, -1, err
	}
	i := m.fieldIndex(name)
	if i < 0 {
		m.fields = append(m.fields, field.Clone())
		i = len(m.fields) - 1
	}
	return m, i, nil
}

func (a *applier) fieldHad(in *structure.FieldHad) error {
	m, i, err := a.localField(in.Schema, in.Name)
	if err != nil {
		return err
	}
	field := m.fields[i]
	changes := in.Changes

	if changes.Type != nil {
		if field.Type.Equal(*changes.Type) {
			return a.invalid(in.Schema, in.Name, "you tried to change the type of field to %q from %q but it already has type %q", changes.Type, m.name, field.Type)
		}
		field.Type = *changes.Type
	}

	if changes.NewName != "" {
		if changes.NewName == in.Name {
			return a.invalid(in.Schema, in.Name, "you tried to change the name of field from %q but it already has that name", m.name)
		}
		if resolved, ok := a.layer.resolve(in.Schema); ok {
			if _, taken := resolved.Field(changes.NewName); taken {
				return a.invalid(in.Schema, in.Name, "you tried to rename the field of %q to %q but there is already a field with that name", m.name, changes.NewName)
			}
		}
		field.Name = changes.NewName
	}

	attrs := make([]string, 0, len(changes.Attributes))
	for k := range changes.Attributes {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		value := changes.Attributes[attr]
		if current, ok := field.Get(attr); ok && reflect.DeepEqual(current, value) {
			return a.invalid(in.Schema, in.Name, "you tried to change the attribute %q of field from %q to %v but it already has that value", attr, m.name, value)
		}
		field.Attributes[attr] = value
	}
	return nil
}

func (a *applier) fieldDidntHave(in *structure.FieldDidntHave) error {
	m, i, err := a.localField(in.Schema, in.Name)
	if err != nil {
		return err
	}
	field := m.fields[i]
	for _, attr := range in.Attributes {
		if !field.Has(attr) {
			return a.invalid(in.Schema, in.Name, "you tried to delete the attribute %q of field from %q but it already doesn't have that attribute", attr, m.name)
		}
		delete(field.Attributes, attr)
	}
	return nil
}

func (a *applier) fieldDidntExist(in *structure.FieldDidntExist) error {
	current, ok := a.layer.model(in.Schema)
	if !ok {
		return structure.Errorf(structure.ErrGeneration, "schema %q is not registered", in.Schema).In(a.change)
	}
	if current.fieldIndex(in.Name) < 0 {
		return a.invalid(in.Schema, in.Name, "you tried to delete a field from %q but it doesn't have such a field", current.name)
	}
	m, err := a.editModel(in.Schema)
	if err != nil {
		return err
	}
	i := m.fieldIndex(in.Name)
	m.fields = append(m.fields[:i], m.fields[i+1:]...)

	for _, v := range m.validators {
		if v.validator.Fields == nil {
			continue
		}
		kept := v.validator.Fields[:0]
		removed := false
		for _, name := range v.validator.Fields {
			if name == in.Name {
				removed = true
				continue
			}
			kept = append(kept, name)
		}
		v.validator.Fields = kept
		if removed && len(kept) == 0 {
			v.deleted = true
		}
	}
	return nil
}
