package swagger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rewind/pkg/migration"
	"github.com/platinummonkey/rewind/pkg/routing"
	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

const (
	role schema.ID = "users.Role"
	user schema.ID = "users.User"
)

var (
	v2000 = structure.MustParseDate("2000-01-01")
	v2001 = structure.MustParseDate("2001-01-01")
)

func noop(context.Context, *routing.Request) (interface{}, error) { return nil, nil }

func fixture(t *testing.T) (*routing.Versioned, *schemagen.Result) {
	t.Helper()
	reg := schema.NewRegistry()
	reg.MustRegisterEnum(&schema.Enum{ID: role, Name: "Role", Members: []schema.Member{
		{Name: "admin", Value: "admin"},
		{Name: "member", Value: "member"},
	}})
	reg.MustRegister(&schema.Schema{ID: user, Name: "User", Fields: []*schema.Field{
		schema.NewField("id", schema.Int()),
		schema.NewField("name", schema.String(), schema.Attr(schema.AttrDescription, "Display name")),
		schema.NewField("role", schema.EnumRef(role)),
		schema.NewField("tags", schema.ListOf(schema.String()), schema.Default([]interface{}{})),
		schema.NewField("manager", schema.Optional(schema.Ref(user)), schema.Default(nil)),
	}})

	head := routing.NewRouter()
	head.Get("/users", "list_users", noop, routing.WithResponseSchema(user),
		routing.WithTags("users"), routing.WithSummary("List users"))
	head.Get("/users/{id}", "get_user", noop, routing.WithResponseSchema(user))
	head.Delete("/users/{id}", "delete_user", noop, routing.WithResponseSchema(user), routing.WithOperationID("removeUser"))
	head.Get("/internal/stats", "stats", noop, routing.ExcludeFromSchema())

	change, err := structure.NewVersionChange("Rename Person to User", "Person is now called User",
		structure.Schema(user).Had("Person"),
		structure.Endpoint("/users/{id}", "DELETE").DidntExist(),
	)
	require.NoError(t, err)
	bundle, err := structure.NewVersionBundle(nil, structure.NewVersion(v2001, change), structure.NewVersion(v2000))
	require.NoError(t, err)
	schemas, err := schemagen.NewGenerator(reg, bundle, nil).Generate()
	require.NoError(t, err)
	versioned, err := routing.NewGenerator(head, migration.NewMigrator(bundle, schemas), nil).Generate()
	require.NoError(t, err)
	return versioned, schemas
}
