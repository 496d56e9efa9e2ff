package structure

import (
	"context"
	"sync"

	"github.com/platinummonkey/rewind/pkg/contextkeys"
	"github.com/platinummonkey/rewind/pkg/schema"
)

var bindMu sync.Mutex

// Version is a dated boundary. Its changes describe how it differs from the
// version right before it.
type Version struct {
	Date    Date
	Changes []*VersionChange
}

// NewVersion creates a version carrying changes
func NewVersion(date Date, changes ...*VersionChange) *Version {
	return &Version{Date: date, Changes: changes}
}

// HeadVersion is the always-latest, undated version. Its changes are applied
// to the head schemas before any version is projected.
type HeadVersion struct {
	Changes []*VersionChange
}

// NewHeadVersion creates the head version
func NewHeadVersion(changes ...*VersionChange) *HeadVersion {
	return &HeadVersion{Changes: changes}
}

// VersionBundle is the validated, ordered set of versions of an API.
type VersionBundle struct {
	head     *HeadVersion
	versions []*Version

	versionOf map[*VersionChange]Date

	indexOnce sync.Once
	schemas   []schema.ID
	enums     []schema.ID
	paths     []string
}

// NewVersionBundle validates every structural rule and only then binds each
// version change to the bundle. On error nothing is bound.
func NewVersionBundle(head *HeadVersion, versions ...*Version) (*VersionBundle, error) {
	if head == nil {
		head = NewHeadVersion()
	}
	if len(versions) == 0 {
		return nil, Errorf(ErrStructure, "at least one version is required")
	}

	seenDates := make(map[Date]bool, len(versions))
	for i, v := range versions {
		if v == nil || v.Date.IsZero() {
			return nil, Errorf(ErrStructure, "version %d has no date", i)
		}
		if seenDates[v.Date] {
			return nil, Errorf(ErrStructure, "you tried to define two versions with the same value in the same bundle: %q", v.Date)
		}
		seenDates[v.Date] = true
		if i > 0 && !versions[i-1].Date.After(v.Date) {
			return nil, Errorf(ErrStructure, "versions are not sorted correctly: %q is listed before %q, please sort them in descending order", versions[i-1].Date, v.Date)
		}
	}

	oldest := versions[len(versions)-1]
	if len(oldest.Changes) > 0 {
		return nil, Errorf(ErrStructure, "the first version %q cannot have any version changes: "+
			"version changes migrate to and from a previous version and nothing precedes it", oldest.Date)
	}

	for _, vc := range head.Changes {
		if vc == nil {
			return nil, Errorf(ErrStructure, "head version contains a nil version change")
		}
		if vc.hasPayloadConverters() {
			return nil, Errorf(ErrStructure, "head version does not support request or response migrations but it contained one").In(vc.name)
		}
		if len(vc.endpointInstructions) > 0 {
			return nil, Errorf(ErrStructure, "head version does not support endpoint instructions but it contained one").In(vc.name)
		}
	}

	bindMu.Lock()
	defer bindMu.Unlock()

	b := &VersionBundle{
		head:      head,
		versions:  append([]*Version{}, versions...),
		versionOf: make(map[*VersionChange]Date),
	}

	all := append([]*VersionChange{}, head.Changes...)
	for _, v := range versions {
		for _, vc := range v.Changes {
			if vc == nil {
				return nil, Errorf(ErrStructure, "version %q contains a nil version change", v.Date)
			}
			all = append(all, vc)
		}
	}
	claimed := make(map[*VersionChange]bool, len(all))
	for _, vc := range all {
		if vc.bundle != nil || claimed[vc] {
			return nil, Errorf(ErrStructure, "you tried to bind version change %q to two different versions, it is prohibited", vc.name)
		}
		claimed[vc] = true
	}

	for _, v := range b.versions {
		for _, vc := range v.Changes {
			b.versionOf[vc] = v.Date
		}
	}
	for _, vc := range all {
		vc.bindMu.Lock()
		vc.bundle = b
		vc.bindMu.Unlock()
	}
	return b, nil
}

// MustVersionBundle is like NewVersionBundle but panics on error
func MustVersionBundle(head *HeadVersion, versions ...*Version) *VersionBundle {
	b, err := NewVersionBundle(head, versions...)
	if err != nil {
		panic(err)
	}
	return b
}

// Head returns the head version
func (b *VersionBundle) Head() *HeadVersion {
	return b.head
}

// Versions returns the versions newest first
func (b *VersionBundle) Versions() []*Version {
	return b.versions
}

// Dates returns the version dates newest first
func (b *VersionBundle) Dates() []Date {
	dates := make([]Date, len(b.versions))
	for i, v := range b.versions {
		dates[i] = v.Date
	}
	return dates
}

// Latest returns the newest dated version
func (b *VersionBundle) Latest() *Version {
	return b.versions[0]
}

// Oldest returns the first version of the API
func (b *VersionBundle) Oldest() *Version {
	return b.versions[len(b.versions)-1]
}

// VersionOf returns the date of the version a change belongs to. Changes on
// the head version have no date.
func (b *VersionBundle) VersionOf(vc *VersionChange) (Date, bool) {
	d, ok := b.versionOf[vc]
	return d, ok
}

// Has reports whether d is a declared version
func (b *VersionBundle) Has(d Date) bool {
	for _, v := range b.versions {
		if v.Date == d {
			return true
		}
	}
	return false
}

// ClosestVersion returns the newest declared version that is not after d
func (b *VersionBundle) ClosestVersion(d Date) (Date, error) {
	for _, v := range b.versions {
		if !v.Date.After(d) {
			return v.Date, nil
		}
	}
	return Date{}, Errorf(ErrRuntimeMigration, "version %q is earlier than the first version %q", d, b.Oldest().Date)
}

// VersionedSchemas returns every schema some instruction or converter alters
func (b *VersionBundle) VersionedSchemas() []schema.ID {
	b.buildIndex()
	return b.schemas
}

// VersionedEnums returns every enum some instruction alters
func (b *VersionBundle) VersionedEnums() []schema.ID {
	b.buildIndex()
	return b.enums
}

// VersionedPaths returns every path some endpoint instruction or converter alters
func (b *VersionBundle) VersionedPaths() []string {
	b.buildIndex()
	return b.paths
}

// AllChanges returns head changes followed by every version's changes, newest first
func (b *VersionBundle) AllChanges() []*VersionChange {
	all := append([]*VersionChange{}, b.head.Changes...)
	for _, v := range b.versions {
		all = append(all, v.Changes...)
	}
	return all
}

func (b *VersionBundle) buildIndex() {
	b.indexOnce.Do(func() {
		seenSchema := map[schema.ID]bool{}
		seenEnum := map[schema.ID]bool{}
		seenPath := map[string]bool{}
		addSchema := func(id schema.ID) {
			if !seenSchema[id] {
				seenSchema[id] = true
				b.schemas = append(b.schemas, id)
			}
		}
		addPath := func(p string) {
			if !seenPath[p] {
				seenPath[p] = true
				b.paths = append(b.paths, p)
			}
		}
		for _, vc := range b.AllChanges() {
			for _, in := range vc.instructions {
				switch in := in.(type) {
				case *FieldExistedAs:
					addSchema(in.Schema)
				case *FieldHad:
					addSchema(in.Schema)
				case *FieldDidntExist:
					addSchema(in.Schema)
				case *FieldDidntHave:
					addSchema(in.Schema)
				case *ValidatorExisted:
					addSchema(in.Schema)
				case *ValidatorDidntExist:
					addSchema(in.Schema)
				case *SchemaHad:
					addSchema(in.Schema)
				case *AlterRequestBySchema:
					for _, id := range in.Schemas {
						addSchema(id)
					}
				case *AlterResponseBySchema:
					for _, id := range in.Schemas {
						addSchema(id)
					}
				case *EnumHadMembers:
					if !seenEnum[in.Enum] {
						seenEnum[in.Enum] = true
						b.enums = append(b.enums, in.Enum)
					}
				case *EnumDidntHaveMembers:
					if !seenEnum[in.Enum] {
						seenEnum[in.Enum] = true
						b.enums = append(b.enums, in.Enum)
					}
				case *EndpointExisted:
					addPath(in.Path)
				case *EndpointDidntExist:
					addPath(in.Path)
				case *EndpointHad:
					addPath(in.Path)
				case *AlterRequestByPath:
					addPath(in.Path)
				case *AlterResponseByPath:
					addPath(in.Path)
				}
			}
		}
	})
}

// WithAPIVersion returns a context carrying the API version a request asked for
func WithAPIVersion(ctx context.Context, d Date) context.Context {
	return contextkeys.WithAPIVersion(ctx, d)
}

// APIVersionFromContext returns the API version carried by ctx
func APIVersionFromContext(ctx context.Context) (Date, bool) {
	d, ok := ctx.Value(contextkeys.APIVersionKey).(Date)
	return d, ok
}
