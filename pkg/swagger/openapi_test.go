package swagger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Head(t *testing.T) {
	versioned, schemas := fixture(t)

	doc, err := Generate(versioned.Head(), schemas.Head(), Info{Title: "Users", Version: "head"})
	require.NoError(t, err)

	assert.Equal(t, OpenAPIVersion, doc.OpenAPI)
	assert.Equal(t, "head", doc.Info.Version)
	assert.NotContains(t, doc.Paths, "/internal/stats")

	list := doc.Paths["/users"]["get"]
	require.NotNil(t, list)
	assert.Equal(t, "list_users", list.OperationID)
	assert.Equal(t, []string{"users"}, list.Tags)
	assert.Equal(t, "List users", list.Summary)
	assert.Equal(t, "#/components/schemas/User", list.Responses["200"].Content["application/json"].Schema.Ref)

	item := doc.Paths["/users/{id}"]
	require.Contains(t, item, "get")
	require.Contains(t, item, "delete")
	assert.Equal(t, "removeUser", item["delete"].OperationID)
	assert.Equal(t, []Parameter{{Name: "id", In: "path", Required: true, Schema: &Schema{Type: "string"}}}, item["get"].Parameters)

	userSchema := doc.Components.Schemas["User"]
	require.NotNil(t, userSchema)
	assert.Equal(t, "object", userSchema.Type)
	assert.Equal(t, []string{"id", "name", "role"}, userSchema.Required)
	assert.Equal(t, "Display name", userSchema.Properties["name"].Description)
	assert.Equal(t, &Schema{Type: "array", Items: &Schema{Type: "string"}, Default: []interface{}{}}, userSchema.Properties["tags"])
	assert.Equal(t, &Schema{Ref: "#/components/schemas/Role"}, userSchema.Properties["role"])
	assert.Equal(t, &Schema{Nullable: true, AllOf: []*Schema{{Ref: "#/components/schemas/User"}}}, userSchema.Properties["manager"])

	assert.Equal(t, &Schema{Title: "Role", Type: "string", Enum: []interface{}{"admin", "member"}}, doc.Components.Schemas["Role"])
}

func TestGenerate_OlderVersion(t *testing.T) {
	versioned, schemas := fixture(t)

	vr, ok := versioned.Version(v2000)
	require.True(t, ok)
	vs, ok := schemas.Version(v2000)
	require.True(t, ok)

	doc, err := Generate(vr, vs, Info{Title: "Users", Version: v2000.String()})
	require.NoError(t, err)

	assert.NotContains(t, doc.Paths["/users/{id}"], "delete")
	assert.Contains(t, doc.Components.Schemas, "Person")
	assert.NotContains(t, doc.Components.Schemas, "User")
	assert.Equal(t, "#/components/schemas/Person", doc.Paths["/users/{id}"]["get"].Responses["200"].Content["application/json"].Schema.Ref)
}
