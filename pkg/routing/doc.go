// Package routing projects a head router onto every API version and serves
// each versioned route through the migration pipeline.
//
// # Overview
//
// Handlers are written once, against head:
//
//	router := routing.NewRouter()
//	router.Get("/users/{id}", "get_user", getUser, routing.WithResponseSchema("users.User"))
//	router.Post("/users", "create_user", createUser,
//		routing.WithRequestSchema("users.UserCreate"),
//		routing.WithResponseSchema("users.User"),
//		routing.WithStatusCode(http.StatusCreated),
//	)
//
// The generator walks the bundle newest to oldest. Each version starts as a
// copy of the next newer one and its endpoint instructions delete, restore
// or alter routes. Deleted routes are kept, tagged, until every version is
// built so an older version can restore them.
//
//	versioned, err := routing.NewGenerator(router, migrator, log).Generate()
//	v, _ := versioned.Version(structure.MustParseDate("2024-01-01"))
//	v.Mount(muxRouter)
//
// # Serving
//
// An Endpoint validates the body against its version's schemas (422 on
// failure), migrates it to head, calls the head handler, migrates the
// response back and filters it through the version's response schema.
// A *HTTPError returned by a handler becomes {"detail": ...} and is migrated
// by converters marked WithHTTPErrors.
//
// # Errors
//
// Generation errors match structure.ErrGeneration, structure.ErrInvalidInstruction
// or structure.ErrRouterPathParamsModified with errors.Is.
package routing
