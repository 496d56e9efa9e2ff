// Package schema describes the request and response payload shapes that the
// versioning engine projects across API versions.
//
// # Overview
//
// A Schema is an ordered list of fields plus named validators. Schemas may
// extend parent schemas; parents are resolved in declaration order, ancestors
// first and the most-derived schema last. Enums are ordered name/value lists.
//
// Every schema and enum is keyed by a stable ID (usually a dotted, fully
// qualified name) rather than by Go type identity.
//
// # Registry
//
//	reg := schema.NewRegistry()
//	reg.MustRegister(&schema.Schema{
//		ID:   "users.User",
//		Name: "User",
//		Fields: []*schema.Field{
//			schema.NewField("name", schema.String()),
//			schema.NewField("age", schema.Int(), schema.Attr(schema.AttrValidate, "gte=0")),
//		},
//	})
//
// # Validation
//
// Validate checks a decoded JSON payload against a model resolved from a
// Resolver (the head registry or one projected version):
//
//	body, err := schema.Validate(reg, "users.User", payload)
//	var verr *schema.ValidationError
//	if errors.As(err, &verr) {
//		// verr.Errors holds field level errors
//	}
//
// Field constraints stored in the "validate" attribute are evaluated with
// github.com/go-playground/validator/v10 tags.
package schema
