package structure

import (
	"context"
	"fmt"
	"sync"

	"github.com/platinummonkey/rewind/pkg/schema"
)

// VersionChange is a named set of instructions describing how a version
// differs from the version right before it.
type VersionChange struct {
	name         string
	description  string
	instructions []Instruction
	sideEffects  bool
	hidden       bool

	schemaInstructions   []Instruction
	enumInstructions     []Instruction
	endpointInstructions []Instruction
	requestBySchema      map[schema.ID][]*AlterRequestBySchema
	requestByPath        map[string][]*AlterRequestByPath
	responseBySchema     map[schema.ID][]*AlterResponseBySchema
	responseByPath       map[string][]*AlterResponseByPath
	requestSchemaOrder   []*AlterRequestBySchema
	responseSchemaOrder  []*AlterResponseBySchema

	bindMu sync.Mutex
	bundle *VersionBundle
}

// NewVersionChange validates the instructions and builds their indices
func NewVersionChange(name, description string, instructions ...Instruction) (*VersionChange, error) {
	if name == "" {
		return nil, Errorf(ErrStructure, "version change name is required")
	}
	if description == "" {
		return nil, Errorf(ErrStructure, "version change description is not set but is required").In(name)
	}

	vc := &VersionChange{
		name:             name,
		description:      description,
		instructions:     append([]Instruction{}, instructions...),
		requestBySchema:  make(map[schema.ID][]*AlterRequestBySchema),
		requestByPath:    make(map[string][]*AlterRequestByPath),
		responseBySchema: make(map[schema.ID][]*AlterResponseBySchema),
		responseByPath:   make(map[string][]*AlterResponseByPath),
	}

	for i, in := range vc.instructions {
		if in == nil {
			return nil, Errorf(ErrStructure, "instruction %d is nil", i).In(name)
		}
		if err := in.constructorErr(); err != nil {
			if e, ok := err.(*Error); ok {
				return nil, e.In(name)
			}
			return nil, err
		}

		switch in := in.(type) {
		case *FieldExistedAs, *FieldHad, *FieldDidntExist, *FieldDidntHave,
			*ValidatorExisted, *ValidatorDidntExist, *SchemaHad:
			vc.schemaInstructions = append(vc.schemaInstructions, in)
		case *EnumHadMembers, *EnumDidntHaveMembers:
			vc.enumInstructions = append(vc.enumInstructions, in)
		case *EndpointExisted, *EndpointDidntExist, *EndpointHad:
			vc.endpointInstructions = append(vc.endpointInstructions, in)
		case *AlterRequestBySchema:
			for _, id := range in.Schemas {
				vc.requestBySchema[id] = append(vc.requestBySchema[id], in)
			}
			vc.requestSchemaOrder = append(vc.requestSchemaOrder, in)
		case *AlterRequestByPath:
			vc.requestByPath[in.Path] = append(vc.requestByPath[in.Path], in)
		case *AlterResponseBySchema:
			for _, id := range in.Schemas {
				vc.responseBySchema[id] = append(vc.responseBySchema[id], in)
			}
			vc.responseSchemaOrder = append(vc.responseSchemaOrder, in)
		case *AlterResponseByPath:
			vc.responseByPath[in.Path] = append(vc.responseByPath[in.Path], in)
		default:
			return nil, Errorf(ErrStructure, "instruction %T is not allowed", in).In(name)
		}
	}
	return vc, nil
}

// MustVersionChange is like NewVersionChange but panics on error
func MustVersionChange(name, description string, instructions ...Instruction) *VersionChange {
	vc, err := NewVersionChange(name, description, instructions...)
	if err != nil {
		panic(err)
	}
	return vc
}

// NewSideEffectVersionChange creates a change whose effect lives in business
// logic. Handlers consult IsApplied to decide which behavior to serve.
func NewSideEffectVersionChange(name, description string, instructions ...Instruction) (*VersionChange, error) {
	vc, err := NewVersionChange(name, description, instructions...)
	if err != nil {
		return nil, err
	}
	vc.sideEffects = true
	return vc, nil
}

// HideFromChangelog excludes the whole change from the changelog
func (vc *VersionChange) HideFromChangelog() *VersionChange {
	vc.hidden = true
	return vc
}

// Name identifies the change in errors and the changelog
func (vc *VersionChange) Name() string { return vc.name }

// Description is the human readable summary of the change
func (vc *VersionChange) Description() string { return vc.description }

// HiddenFromChangelog reports whether the changelog skips the whole change
func (vc *VersionChange) HiddenFromChangelog() bool { return vc.hidden }

// HasSideEffects reports whether the change was created as a side-effect change
func (vc *VersionChange) HasSideEffects() bool { return vc.sideEffects }

// Instructions returns every instruction in declaration order
func (vc *VersionChange) Instructions() []Instruction { return vc.instructions }

// SchemaInstructions returns field, validator and schema instructions in declaration order
func (vc *VersionChange) SchemaInstructions() []Instruction { return vc.schemaInstructions }

// EnumInstructions returns enum instructions in declaration order
func (vc *VersionChange) EnumInstructions() []Instruction { return vc.enumInstructions }

// EndpointInstructions returns endpoint instructions in declaration order
func (vc *VersionChange) EndpointInstructions() []Instruction { return vc.endpointInstructions }

// RequestConvertersForSchema returns the by-schema request converters for id in declaration order
func (vc *VersionChange) RequestConvertersForSchema(id schema.ID) []*AlterRequestBySchema {
	return vc.requestBySchema[id]
}

// RequestConvertersForPath returns the by-path request converters for path in declaration order
func (vc *VersionChange) RequestConvertersForPath(path string) []*AlterRequestByPath {
	return vc.requestByPath[path]
}

// ResponseConvertersForSchema returns the by-schema response converters for id in declaration order
func (vc *VersionChange) ResponseConvertersForSchema(id schema.ID) []*AlterResponseBySchema {
	return vc.responseBySchema[id]
}

// ResponseConvertersForPath returns the by-path response converters for path in declaration order
func (vc *VersionChange) ResponseConvertersForPath(path string) []*AlterResponseByPath {
	return vc.responseByPath[path]
}

// RequestSchemaConverters returns every by-schema request converter
func (vc *VersionChange) RequestSchemaConverters() []*AlterRequestBySchema {
	return vc.requestSchemaOrder
}

// ResponseSchemaConverters returns every by-schema response converter
func (vc *VersionChange) ResponseSchemaConverters() []*AlterResponseBySchema {
	return vc.responseSchemaOrder
}

// RequestPathConverters returns every by-path request converter keyed by path
func (vc *VersionChange) RequestPathConverters() map[string][]*AlterRequestByPath {
	return vc.requestByPath
}

// ResponsePathConverters returns every by-path response converter keyed by path
func (vc *VersionChange) ResponsePathConverters() map[string][]*AlterResponseByPath {
	return vc.responseByPath
}

func (vc *VersionChange) hasPayloadConverters() bool {
	return len(vc.requestBySchema) > 0 || len(vc.requestByPath) > 0 ||
		len(vc.responseBySchema) > 0 || len(vc.responseByPath) > 0
}

// Bundle returns the bundle the change is bound to, if any
func (vc *VersionChange) Bundle() *VersionBundle {
	vc.bindMu.Lock()
	defer vc.bindMu.Unlock()
	return vc.bundle
}

// IsApplied reports whether the behavior introduced by this change is active
// for the API version carried by ctx. A request without a version is
// served head, where every change is applied.
func (vc *VersionChange) IsApplied(ctx context.Context) (bool, error) {
	bundle := vc.Bundle()
	if bundle == nil {
		return false, Errorf(ErrStructure, "you tried to check whether %q is active but it was never bound to any version", vc.name)
	}
	date, ok := bundle.VersionOf(vc)
	if !ok {
		// bound to the head version
		return true, nil
	}
	requested, ok := APIVersionFromContext(ctx)
	if !ok {
		return true, nil
	}
	return !date.After(requested), nil
}

func (vc *VersionChange) String() string {
	return fmt.Sprintf("VersionChange(%s)", vc.name)
}
