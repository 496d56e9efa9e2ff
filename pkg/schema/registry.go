package schema

import (
	"fmt"
	"sync"
)

// Registry holds the head definitions of every schema and enum.
type Registry struct {
	mu        sync.RWMutex
	schemas   map[ID]*Schema
	schemaIDs []ID
	enums     map[ID]*Enum
	enumIDs   []ID
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[ID]*Schema),
		enums:   make(map[ID]*Enum),
	}
}

// Register adds a head schema
func (r *Registry) Register(s *Schema) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("schema ID is required")
	}
	if s.Name == "" {
		return fmt.Errorf("schema %q: name is required", s.ID)
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if seen[f.Name] {
			return fmt.Errorf("schema %q: field %q declared twice", s.ID, f.Name)
		}
		seen[f.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSchema, s.ID)
	}
	r.schemas[s.ID] = s
	r.schemaIDs = append(r.schemaIDs, s.ID)
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(schemas ...*Schema) {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// RegisterEnum adds a head enum
func (r *Registry) RegisterEnum(e *Enum) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("enum ID is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enums[e.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEnum, e.ID)
	}
	r.enums[e.ID] = e
	r.enumIDs = append(r.enumIDs, e.ID)
	return nil
}

// MustRegisterEnum is like RegisterEnum but panics on error
func (r *Registry) MustRegisterEnum(enums ...*Enum) {
	for _, e := range enums {
		if err := r.RegisterEnum(e); err != nil {
			panic(err)
		}
	}
}

// Schema returns the head definition of a schema
func (r *Registry) Schema(id ID) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[id]
	return s, ok
}

// SchemaIDs returns schema IDs in registration order
func (r *Registry) SchemaIDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ID{}, r.schemaIDs...)
}

// EnumIDs returns enum IDs in registration order
func (r *Registry) EnumIDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ID{}, r.enumIDs...)
}

// Enum returns the head definition of an enum
func (r *Registry) Enum(id ID) (*Enum, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enums[id]
	return e, ok
}

// Ancestors returns the ancestors of a schema in resolution order, nearest first.
func (r *Registry) Ancestors(id ID) ([]ID, error) {
	return Linearize(id, func(id ID) ([]ID, bool) {
		s, ok := r.Schema(id)
		if !ok {
			return nil, false
		}
		return s.Parents, true
	})
}

// Model resolves a head schema with its inherited fields
func (r *Registry) Model(id ID) (*Model, bool) {
	s, ok := r.Schema(id)
	if !ok {
		return nil, false
	}
	ancestors, err := r.Ancestors(id)
	if err != nil {
		return nil, false
	}

	fieldLayers := make([][]*Field, 0, len(ancestors)+1)
	validatorLayers := make([][]*Validator, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		parent, _ := r.Schema(ancestors[i])
		fieldLayers = append(fieldLayers, parent.Fields)
		validatorLayers = append(validatorLayers, parent.Validators)
	}
	fieldLayers = append(fieldLayers, s.Fields)
	validatorLayers = append(validatorLayers, s.Validators)

	return &Model{
		ID:         s.ID,
		Name:       s.Name,
		Fields:     MergeFields(fieldLayers...),
		Validators: MergeValidators(validatorLayers...),
	}, true
}

// Check verifies that every parent and type reference resolves and that no
// schema extends itself.
func (r *Registry) Check() error {
	for _, id := range r.SchemaIDs() {
		s, _ := r.Schema(id)
		if _, err := r.Ancestors(id); err != nil {
			return err
		}
		for _, f := range s.Fields {
			for _, ref := range f.Type.References() {
				_, isSchema := r.Schema(ref)
				_, isEnum := r.Enum(ref)
				if !isSchema && !isEnum {
					return fmt.Errorf("%w: %s referenced by %s.%s", ErrUnknownSchema, ref, id, f.Name)
				}
			}
		}
	}
	return nil
}

// Linearize returns the ancestors of id nearest first, each listed once.
// The order is the C3 linearization over parents in declaration order, so
// a shared ancestor always comes after every schema that extends it.
func Linearize(id ID, parentsOf func(ID) ([]ID, bool)) ([]ID, error) {
	var (
		memo     = map[ID][]ID{}
		visiting = map[ID]bool{}
		lin      func(ID) ([]ID, error)
	)
	lin = func(cur ID) ([]ID, error) {
		if l, ok := memo[cur]; ok {
			return l, nil
		}
		parents, ok := parentsOf(cur)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, cur)
		}
		visiting[cur] = true
		defer delete(visiting, cur)

		seqs := make([][]ID, 0, len(parents)+1)
		for _, p := range parents {
			if visiting[p] {
				return nil, fmt.Errorf("%w: %s extends %s", ErrInheritanceCycle, cur, p)
			}
			l, err := lin(p)
			if err != nil {
				return nil, err
			}
			seqs = append(seqs, append([]ID{}, l...))
		}
		seqs = append(seqs, append([]ID{}, parents...))

		merged, err := c3Merge(seqs)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInconsistentHierarchy, cur, err)
		}
		l := append([]ID{cur}, merged...)
		memo[cur] = l
		return l, nil
	}

	full, err := lin(id)
	if err != nil {
		return nil, err
	}
	return append([]ID{}, full[1:]...), nil
}

// c3Merge repeatedly takes the first head that does not appear in the tail
// of any remaining sequence.
func c3Merge(seqs [][]ID) ([]ID, error) {
	var out []ID
	for {
		live := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		seqs = live
		if len(seqs) == 0 {
			return out, nil
		}

		var next ID
		found := false
		for _, s := range seqs {
			if !inTail(seqs, s[0]) {
				next, found = s[0], true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("cannot order parents %v", heads(seqs))
		}
		out = append(out, next)
		for i, s := range seqs {
			if s[0] == next {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(seqs [][]ID, id ID) bool {
	for _, s := range seqs {
		for _, other := range s[1:] {
			if other == id {
				return true
			}
		}
	}
	return false
}

func heads(seqs [][]ID) []ID {
	out := make([]ID, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, s[0])
	}
	return out
}

// MergeFields merges field layers, oldest ancestor first. A later layer
// replaces a field of the same name in place.
func MergeFields(layers ...[]*Field) []*Field {
	var merged []*Field
	index := make(map[string]int)
	for _, layer := range layers {
		for _, f := range layer {
			if i, ok := index[f.Name]; ok {
				merged[i] = f
				continue
			}
			index[f.Name] = len(merged)
			merged = append(merged, f)
		}
	}
	return merged
}

// MergeValidators merges validator layers the same way MergeFields does
func MergeValidators(layers ...[]*Validator) []*Validator {
	var merged []*Validator
	index := make(map[string]int)
	for _, layer := range layers {
		for _, v := range layer {
			if i, ok := index[v.Name]; ok {
				merged[i] = v
				continue
			}
			index[v.Name] = len(merged)
			merged = append(merged, v)
		}
	}
	return merged
}
