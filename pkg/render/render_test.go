package render

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

func project(t *testing.T, reg *schema.Registry, versions ...*structure.Version) *schemagen.Result {
	t.Helper()
	bundle := structure.MustVersionBundle(nil, versions...)
	res, err := schemagen.NewGenerator(reg, bundle, nil).Generate()
	require.NoError(t, err)
	return res
}

func usersRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.MustRegisterEnum(&schema.Enum{ID: "users.Role", Name: "Role", Members: []schema.Member{
		{Name: "admin", Value: "admin"},
		{Name: "read_only", Value: "read-only"},
	}})
	reg.MustRegister(
		&schema.Schema{ID: "users.Base", Name: "Base", Fields: []*schema.Field{
			schema.NewField("id", schema.Int()),
		}},
		&schema.Schema{ID: "users.User", Name: "User", Parents: []schema.ID{"users.Base"}, Fields: []*schema.Field{
			schema.NewField("full_name", schema.String(), schema.Attr(schema.AttrDescription, "Display name")),
			schema.NewField("nickname", schema.Optional(schema.String()), schema.Default(nil)),
			schema.NewField("role", schema.EnumRef("users.Role")),
			schema.NewField("tags", schema.ListOf(schema.String()), schema.Attr(schema.AttrValidate, "max=3")),
			schema.NewField("manager", schema.Optional(schema.Ref("users.Base")), schema.Default(nil)),
		}},
	)
	return reg
}

func TestRender_Head(t *testing.T) {
	res := project(t, usersRegistry(), structure.NewVersion(structure.MustParseDate("2000-01-01")))
	f, err := NewRenderer(nil).Render(res.Head(), "head")
	require.NoError(t, err)

	assert.Equal(t, "head/schemas.go", f.Path)
	assert.Equal(t, int64(len(f.Content)), f.Size)
	src := string(f.Content)

	_, err = parser.ParseFile(token.NewFileSet(), f.Path, f.Content, parser.ParseComments)
	require.NoError(t, err, src)

	assert.Contains(t, src, "// Code generated by rewind. DO NOT EDIT.")
	assert.Contains(t, src, "package head")
	assert.Contains(t, src, "type Role string")
	assert.Regexp(t, `RoleReadOnly\s+Role = "read-only"`, src)
	assert.Regexp(t, "type User struct \\{\n\tBase\n", src)
	assert.Contains(t, src, "\t// Display name\n")
	assert.Regexp(t, "FullName\\s+string\\s+`json:\"full_name\"`", src)
	assert.Regexp(t, "Nickname\\s+\\*string\\s+`json:\"nickname,omitempty\"`", src)
	assert.Regexp(t, "Tags\\s+\\[\\]string\\s+`json:\"tags\" validate:\"max=3\"`", src)
	assert.Regexp(t, "Manager\\s+\\*Base\\s+`json:\"manager,omitempty\"`", src)
	assert.Regexp(t, "ID\\s+int64\\s+`json:\"id\"`", src)
}

func TestRenderAll_UsesVersionShapes(t *testing.T) {
	change := structure.MustVersionChange("rename", "full_name was name",
		structure.Schema("users.User").Field("full_name").Had(structure.FieldChanges{NewName: "name"}),
		structure.Schema("users.User").Had("Person"),
		structure.Enum("users.Role").DidntHaveMembers("read_only"),
	)
	res := project(t, usersRegistry(),
		structure.NewVersion(structure.MustParseDate("2001-01-01"), change),
		structure.NewVersion(structure.MustParseDate("2000-01-01")),
	)

	files, err := NewRenderer(nil).RenderAll(res)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "head/schemas.go", files[0].Path)
	assert.Equal(t, "v2001_01_01/schemas.go", files[1].Path)
	assert.Equal(t, "v2000_01_01/schemas.go", files[2].Path)

	latest := string(files[1].Content)
	assert.Contains(t, latest, "type User struct")
	assert.Contains(t, latest, "// API version: 2001-01-01")

	old := string(files[2].Content)
	assert.Contains(t, old, "package v2000_01_01")
	assert.Contains(t, old, "type Person struct")
	assert.Regexp(t, "Name\\s+string\\s+`json:\"name\"`", old)
	assert.NotContains(t, old, "RoleReadOnly")
}

func TestRender_Errors(t *testing.T) {
	t.Run("duplicate name", func(t *testing.T) {
		reg := schema.NewRegistry()
		reg.MustRegister(
			&schema.Schema{ID: "a.User", Name: "User"},
			&schema.Schema{ID: "b.User", Name: "user"},
		)
		res := project(t, reg, structure.NewVersion(structure.MustParseDate("2000-01-01")))
		_, err := NewRenderer(nil).Render(res.Head(), "head")
		assert.ErrorIs(t, err, ErrDuplicateName)
	})
	t.Run("mixed enum", func(t *testing.T) {
		reg := schema.NewRegistry()
		reg.MustRegisterEnum(&schema.Enum{ID: "Mixed", Name: "Mixed", Members: []schema.Member{
			{Name: "a", Value: "a"},
			{Name: "b", Value: 2},
		}})
		res := project(t, reg, structure.NewVersion(structure.MustParseDate("2000-01-01")))
		_, err := NewRenderer(nil).Render(res.Head(), "head")
		assert.ErrorIs(t, err, ErrUnsupportedEnum)
	})
}

func TestGoName(t *testing.T) {
	tests := map[string]string{
		"full_name": "FullName",
		"id":        "ID",
		"vat_ids":   "VatIds",
		"api-key":   "APIKey",
		"2fa":       "X2fa",
		"":          "X",
		"User":      "User",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, GoName(in))
		})
	}
}
