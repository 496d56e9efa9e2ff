package schemagen

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/structure"
)

// Generator projects the head schemas of a registry onto every version of a bundle
type Generator struct {
	registry *schema.Registry
	bundle   *structure.VersionBundle
	log      *logrus.Logger
}

// NewGenerator creates a generator
func NewGenerator(registry *schema.Registry, bundle *structure.VersionBundle, log *logrus.Logger) *Generator {
	if log == nil {
		log = logrus.New()
	}
	return &Generator{registry: registry, bundle: bundle, log: log}
}

// Generate replays every version change, newest first, and returns one
// snapshot per version. Any inapplicable instruction aborts the whole run.
func (g *Generator) Generate() (*Result, error) {
	if err := g.registry.Check(); err != nil {
		return nil, structure.Errorf(structure.ErrGeneration, "head schemas are inconsistent: %v", err)
	}

	base := newLayer(nil)
	for _, id := range g.registry.SchemaIDs() {
		s, _ := g.registry.Schema(id)
		base.models[id] = newModelInfo(s)
	}
	for _, id := range g.registry.EnumIDs() {
		e, _ := g.registry.Enum(id)
		base.enums[id] = e.Clone()
	}

	res := &Result{
		schemaIDs: g.registry.SchemaIDs(),
		enumIDs:   g.registry.EnumIDs(),
		versions:  make(map[structure.Date]*VersionSchemas),
		undo:      make(map[structure.Date][]undoEntry),
	}
	res.head = res.snapshot(structure.Date{}, base)

	current := newLayer(base)
	headUndo, err := g.applyChanges(current, g.bundle.Head().Changes)
	if err != nil {
		return nil, err
	}
	res.headUndo = headUndo

	for _, v := range g.bundle.Versions() {
		res.versions[v.Date] = res.snapshot(v.Date, current)
		res.order = append(res.order, v.Date)

		next := newLayer(current)
		undo, err := g.applyChanges(next, v.Changes)
		if err != nil {
			return nil, err
		}
		res.undo[v.Date] = undo
		g.log.WithFields(logrus.Fields{
			"version": v.Date.String(),
			"changes": len(v.Changes),
			"schemas": len(next.models),
			"enums":   len(next.enums),
		}).Debug("Projected schemas for version")
		current = next
	}
	return res, nil
}

func (g *Generator) applyChanges(l *layer, changes []*structure.VersionChange) ([]undoEntry, error) {
	var undo []undoEntry
	for _, vc := range changes {
		a := &applier{layer: l, change: vc.Name()}
		for _, in := range vc.SchemaInstructions() {
			if err := a.apply(in); err != nil {
				return nil, err
			}
		}
		for _, in := range vc.EnumInstructions() {
			if err := a.apply(in); err != nil {
				return nil, err
			}
		}
		undo = append(undo, a.undo...)
	}
	return undo, nil
}

// Result holds the projected schemas of every version
type Result struct {
	schemaIDs []schema.ID
	enumIDs   []schema.ID

	head     *VersionSchemas
	versions map[structure.Date]*VersionSchemas
	order    []structure.Date

	headUndo []undoEntry
	undo     map[structure.Date][]undoEntry
}

func (r *Result) snapshot(d structure.Date, l *layer) *VersionSchemas {
	return &VersionSchemas{version: d, layer: l, schemaIDs: r.schemaIDs, enumIDs: r.enumIDs}
}

// Head returns the schemas exactly as registered
func (r *Result) Head() *VersionSchemas {
	return r.head
}

// Version returns the schemas of version d
func (r *Result) Version(d structure.Date) (*VersionSchemas, bool) {
	v, ok := r.versions[d]
	return v, ok
}

// Versions returns the projected version dates newest first
func (r *Result) Versions() []structure.Date {
	return r.order
}

// ReplayToHead starts from the snapshot of version d and reverses every
// instruction applied after it, newest version last and head changes at the
// very end. The result resolves exactly like Head.
func (r *Result) ReplayToHead(d structure.Date) (*VersionSchemas, error) {
	start, ok := r.versions[d]
	if !ok {
		return nil, fmt.Errorf("version %s was not generated", d)
	}
	idx := -1
	for i, date := range r.order {
		if date == d {
			idx = i
		}
	}

	l := newLayer(start.layer)
	for i := idx - 1; i >= 0; i-- {
		revert(l, r.undo[r.order[i]])
	}
	revert(l, r.headUndo)
	return r.snapshot(structure.Date{}, l), nil
}

func revert(l *layer, entries []undoEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.model != nil {
			l.models[e.model.id] = e.model.clone()
			continue
		}
		l.enums[e.enum.ID] = e.enum.Clone()
	}
}

// VersionSchemas resolves schema and enum IDs as they were in one version.
// It implements schema.Resolver.
type VersionSchemas struct {
	version   structure.Date
	layer     *layer
	schemaIDs []schema.ID
	enumIDs   []schema.ID
}

// Version returns the version date, zero for head
func (v *VersionSchemas) Version() structure.Date {
	return v.version
}

// Model resolves a schema with its inherited fields
func (v *VersionSchemas) Model(id schema.ID) (*schema.Model, bool) {
	return v.layer.resolve(id)
}

// Enum returns an enum as it was in this version
func (v *VersionSchemas) Enum(id schema.ID) (*schema.Enum, bool) {
	return v.layer.enum(id)
}

// Schema returns the local definition of a schema: its own fields, active
// validators and parents.
func (v *VersionSchemas) Schema(id schema.ID) (*schema.Schema, bool) {
	m, ok := v.layer.model(id)
	if !ok {
		return nil, false
	}
	s := &schema.Schema{ID: m.id, Name: m.name, Parents: append([]schema.ID{}, m.parents...)}
	for _, f := range m.fields {
		s.Fields = append(s.Fields, f.Clone())
	}
	for _, val := range m.activeValidators() {
		s.Validators = append(s.Validators, val.Clone())
	}
	return s, true
}

// Name returns the schema's name in this version
func (v *VersionSchemas) Name(id schema.ID) string {
	if m, ok := v.layer.model(id); ok {
		return m.name
	}
	return string(id)
}

// SchemaIDs returns every schema ID in registration order
func (v *VersionSchemas) SchemaIDs() []schema.ID {
	return v.schemaIDs
}

// EnumIDs returns every enum ID in registration order
func (v *VersionSchemas) EnumIDs() []schema.ID {
	return v.enumIDs
}

// Validate checks payload against schema id as it was in this version
func (v *VersionSchemas) Validate(id schema.ID, payload interface{}) (map[string]interface{}, error) {
	return schema.Validate(v, id, payload)
}
