package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rewind/pkg/migration"
	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
	"github.com/platinummonkey/rewind/pkg/structure"
)

var (
	v1999 = structure.MustParseDate("1999-01-01")
	v2000 = structure.MustParseDate("2000-01-01")
	v2001 = structure.MustParseDate("2001-01-01")
)

const (
	user       schema.ID = "users.User"
	userCreate schema.ID = "users.UserCreate"
)

func usersRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.MustRegister(
		&schema.Schema{ID: user, Name: "User", Fields: []*schema.Field{
			schema.NewField("id", schema.Int()),
			schema.NewField("name", schema.String()),
		}},
		&schema.Schema{ID: userCreate, Name: "UserCreate", Fields: []*schema.Field{
			schema.NewField("name", schema.String()),
		}},
	)
	return reg
}

func listUsers(context.Context, *Request) (interface{}, error) {
	return []map[string]interface{}{
		{"id": 1, "name": "Ada", "secret": "hidden"},
		{"id": 2, "name": "Grace"},
	}, nil
}

func createUser(_ context.Context, req *Request) (interface{}, error) {
	var in struct {
		Name string `json:"name"`
	}
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	if in.Name == "fail" {
		return nil, errors.New("database is down")
	}
	return map[string]interface{}{"id": 1, "name": in.Name}, nil
}

func getUser(_ context.Context, req *Request) (interface{}, error) {
	if req.PathParams["id"] != "1" {
		return nil, NewHTTPError(404, "user not found")
	}
	return map[string]interface{}{"id": 1, "name": "Ada"}, nil
}

func headRouter() *Router {
	r := NewRouter()
	r.Get("/users", "list_users", listUsers, WithResponseSchema(user))
	r.Post("/users", "create_user", createUser,
		WithRequestSchema(userCreate), WithResponseSchema(user), WithStatusCode(201))
	r.Get("/users/{id}", "get_user", getUser, WithResponseSchema(user))
	return r
}

func vc(t *testing.T, name string, instructions ...structure.Instruction) *structure.VersionChange {
	t.Helper()
	c, err := structure.NewVersionChange(name, "test change "+name, instructions...)
	require.NoError(t, err)
	return c
}

func generate(t *testing.T, router *Router, versions ...*structure.Version) (*Versioned, error) {
	t.Helper()
	bundle, err := structure.NewVersionBundle(nil, versions...)
	require.NoError(t, err)
	schemas, err := schemagen.NewGenerator(usersRegistry(), bundle, nil).Generate()
	require.NoError(t, err)
	return NewGenerator(router, migration.NewMigrator(bundle, schemas), nil).Generate()
}

func routeKeys(vr *VersionRouter) []string {
	var out []string
	for _, r := range vr.Routes() {
		out = append(out, r.String())
	}
	return out
}
