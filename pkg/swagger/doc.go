// Package swagger publishes an OpenAPI 3 document for head and for every API
// version, built from the version's routes and projected schemas.
//
// Schemas appear under the name they had in that version, so a schema renamed
// by a version change is listed under its old name in older documents. Routes
// registered with routing.ExcludeFromSchema are left out.
//
//	h, err := swagger.NewHandlers(versioned, schemas, swagger.Info{Title: "Users API"})
//	h.RegisterRoutes(router) // /openapi.json, /openapi.yaml, /docs
//
// Both document routes take ?version=YYYY-MM-DD and default to head.
package swagger
