package changelog

// EntryType identifies what an instruction changed, as seen by a client
// moving from the older version to the newer one
type EntryType string

const (
	EndpointAdded          EntryType = "endpoint.added"
	EndpointRemoved        EntryType = "endpoint.removed"
	EndpointChanged        EntryType = "endpoint.changed"
	EnumMembersAdded       EntryType = "enum.members.added"
	EnumMembersRemoved     EntryType = "enum.members.removed"
	SchemaChanged          EntryType = "schema.changed"
	SchemaFieldAdded       EntryType = "schema.field.added"
	SchemaFieldRemoved     EntryType = "schema.field.removed"
	FieldAttributesChanged EntryType = "schema.field.attributes.changed"
	FieldAttributesAdded   EntryType = "schema.field.attributes.added"
)

// AttributeStatus says what happened to one attribute in the newer version
type AttributeStatus string

const (
	AttributeChanged AttributeStatus = "changed"
	AttributeRemoved AttributeStatus = "removed"
	AttributeAdded   AttributeStatus = "added"
)

// AttributeChange is one attribute of a field, endpoint or enum member
type AttributeChange struct {
	Name     string          `json:"name" yaml:"name"`
	Status   AttributeStatus `json:"status" yaml:"status"`
	OldValue interface{}     `json:"old_value,omitempty" yaml:"old_value,omitempty"`
	NewValue interface{}     `json:"new_value,omitempty" yaml:"new_value,omitempty"`
}

// Member is an enum member
type Member struct {
	Name  string      `json:"name" yaml:"name"`
	Value interface{} `json:"value" yaml:"value"`
}

// ModelInfo describes a schema as it was in the older version
type ModelInfo struct {
	Name string `json:"name" yaml:"name"`
}

// Entry is the client-facing description of one instruction. Only the
// members relevant to Type are set.
type Entry struct {
	Type             EntryType              `json:"type" yaml:"type"`
	Path             string                 `json:"path,omitempty" yaml:"path,omitempty"`
	Methods          []string               `json:"methods,omitempty" yaml:"methods,omitempty"`
	Models           []string               `json:"models,omitempty" yaml:"models,omitempty"`
	Field            string                 `json:"field,omitempty" yaml:"field,omitempty"`
	FieldInfo        map[string]interface{} `json:"field_info,omitempty" yaml:"field_info,omitempty"`
	ModelInfo        *ModelInfo             `json:"model_info,omitempty" yaml:"model_info,omitempty"`
	Enum             string                 `json:"enum,omitempty" yaml:"enum,omitempty"`
	Members          []Member               `json:"members,omitempty" yaml:"members,omitempty"`
	AttributeChanges []AttributeChange      `json:"attribute_changes,omitempty" yaml:"attribute_changes,omitempty"`
	MemberChanges    []AttributeChange      `json:"member_changes,omitempty" yaml:"member_changes,omitempty"`
}

// Change is one VersionChange
type Change struct {
	Name         string  `json:"name" yaml:"name"`
	Description  string  `json:"description" yaml:"description"`
	SideEffects  bool    `json:"side_effects" yaml:"side_effects"`
	Instructions []Entry `json:"instructions" yaml:"instructions"`
}

// Version lists the changes a version introduced
type Version struct {
	Value   string   `json:"value" yaml:"value"`
	Changes []Change `json:"changes" yaml:"changes"`
}

// Changelog lists every version except the oldest, newest first
type Changelog struct {
	Versions []Version `json:"versions" yaml:"versions"`
}
