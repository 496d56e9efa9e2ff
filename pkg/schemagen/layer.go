package schemagen

import (
	"github.com/platinummonkey/rewind/pkg/schema"
)

// modelInfo is the local definition of one schema at one point of the version walk.
type modelInfo struct {
	id         schema.ID
	name       string
	parents    []schema.ID
	fields     []*schema.Field
	validators []*validatorInfo
}

type validatorInfo struct {
	validator *schema.Validator
	deleted   bool
}

func newModelInfo(s *schema.Schema) *modelInfo {
	m := &modelInfo{
		id:      s.ID,
		name:    s.Name,
		parents: append([]schema.ID{}, s.Parents...),
	}
	for _, f := range s.Fields {
		m.fields = append(m.fields, f.Clone())
	}
	for _, v := range s.Validators {
		m.validators = append(m.validators, &validatorInfo{validator: v.Clone()})
	}
	return m
}

func (m *modelInfo) clone() *modelInfo {
	c := &modelInfo{
		id:      m.id,
		name:    m.name,
		parents: append([]schema.ID{}, m.parents...),
		fields:  make([]*schema.Field, len(m.fields)),
	}
	for i, f := range m.fields {
		c.fields[i] = f.Clone()
	}
	for _, v := range m.validators {
		c.validators = append(c.validators, &validatorInfo{validator: v.validator.Clone(), deleted: v.deleted})
	}
	return c
}

func (m *modelInfo) fieldIndex(name string) int {
	for i, f := range m.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (m *modelInfo) validator(name string) *validatorInfo {
	for _, v := range m.validators {
		if v.validator.Name == name {
			return v
		}
	}
	return nil
}

func (m *modelInfo) activeValidators() []*schema.Validator {
	var out []*schema.Validator
	for _, v := range m.validators {
		if !v.deleted {
			out = append(out, v.validator)
		}
	}
	return out
}

// layer is a sparse overlay over its parent. A model or enum is copied into
// a layer the first time an instruction mutates it there, so every earlier
// layer stays an immutable snapshot of its version.
type layer struct {
	parent *layer
	models map[schema.ID]*modelInfo
	enums  map[schema.ID]*schema.Enum
}

func newLayer(parent *layer) *layer {
	return &layer{
		parent: parent,
		models: make(map[schema.ID]*modelInfo),
		enums:  make(map[schema.ID]*schema.Enum),
	}
}

func (l *layer) model(id schema.ID) (*modelInfo, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if m, ok := cur.models[id]; ok {
			return m, true
		}
	}
	return nil, false
}

func (l *layer) enum(id schema.ID) (*schema.Enum, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if e, ok := cur.enums[id]; ok {
			return e, true
		}
	}
	return nil, false
}

func (l *layer) mutableModel(id schema.ID) (*modelInfo, bool) {
	if m, ok := l.models[id]; ok {
		return m, true
	}
	m, ok := l.model(id)
	if !ok {
		return nil, false
	}
	c := m.clone()
	l.models[id] = c
	return c, true
}

func (l *layer) mutableEnum(id schema.ID) (*schema.Enum, bool) {
	if e, ok := l.enums[id]; ok {
		return e, true
	}
	e, ok := l.enum(id)
	if !ok {
		return nil, false
	}
	c := e.Clone()
	l.enums[id] = c
	return c, true
}

// ancestors returns the parents of id in this layer, nearest first
func (l *layer) ancestors(id schema.ID) ([]schema.ID, error) {
	return schema.Linearize(id, func(id schema.ID) ([]schema.ID, bool) {
		m, ok := l.model(id)
		if !ok {
			return nil, false
		}
		return m.parents, true
	})
}

// resolve merges the model with its ancestors, farthest ancestor first
func (l *layer) resolve(id schema.ID) (*schema.Model, bool) {
	m, ok := l.model(id)
	if !ok {
		return nil, false
	}
	ancestors, err := l.ancestors(id)
	if err != nil {
		return nil, false
	}

	fieldLayers := make([][]*schema.Field, 0, len(ancestors)+1)
	validatorLayers := make([][]*schema.Validator, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		parent, _ := l.model(ancestors[i])
		fieldLayers = append(fieldLayers, parent.fields)
		validatorLayers = append(validatorLayers, parent.activeValidators())
	}
	fieldLayers = append(fieldLayers, m.fields)
	validatorLayers = append(validatorLayers, m.activeValidators())

	return &schema.Model{
		ID:         m.id,
		Name:       m.name,
		Fields:     schema.MergeFields(fieldLayers...),
		Validators: schema.MergeValidators(validatorLayers...),
	}, true
}
