// Package migration implements the call-time request and response migration pipeline.
//
// # Overview
//
// A client pinned to an old API version talks to handlers written against
// head. The Migrator moves each request forward through every version newer
// than the client's, validates the result against the head schema and, once
// the handler has answered, moves the response backward to the client's
// version.
//
// Within one version change by-schema converters always run before by-path
// converters. Each version change runs exactly once per call.
//
// # Usage
//
//	m := migration.NewMigrator(bundle, schemas,
//		migration.WithMetrics(metrics),
//		migration.WithLogger(logger),
//	)
//
//	target := migration.Target{Path: "/users/{id}", Method: "POST", Schema: "users.UserCreate"}
//	if err := m.MigrateRequest(ctx, clientVersion, target, req); err != nil { ... }
//	...
//	if err := m.MigrateResponse(ctx, clientVersion, target, resp); err != nil { ... }
//	body, err := migration.Encode(resp.Body, resp.Headers)
//
// # Plans
//
// The converter sequence for a (direction, version, path, method, schema)
// tuple only depends on the bundle, so it is computed once and kept in an
// LRU cache.
//
// # Errors
//
// Converter errors are returned untouched. A migrated request that fails head
// validation yields *HeadRequestValidationError, which matches
// ErrHeadValidation and structure.ErrRuntimeMigration with errors.Is.
package migration
