// Package structure declares how an API changes over time.
//
// # Overview
//
// An API is described by one head definition plus a VersionBundle: an
// ordered list of dated versions, newest first. Each Version carries the
// VersionChanges that turn it into the version right before it. A
// VersionChange is an immutable, named list of instructions:
//
//   - schema instructions: a field existed, had a different type or name, did
//     not exist or did not have an attribute; a validator existed or did not;
//     the schema had another name
//   - enum instructions: the enum had or did not have some members
//   - endpoint instructions: a route existed, did not exist or had other attributes
//   - converters: callables that migrate request bodies one version forward
//     or response bodies one version back, keyed by schema or by path
//
// # Usage
//
//	change := structure.MustVersionChange(
//		"remove-vat-ids",
//		"Companies expose vat_ids instead of a nested list",
//		structure.Schema("companies.Company").Field("vat_ids").DidntExist(),
//		structure.ConvertResponseToPreviousVersionFor(func(r *structure.ResponseInfo) error {
//			// reshape r.Body
//			return nil
//		}, "companies.Company"),
//	)
//
//	bundle, err := structure.NewVersionBundle(
//		structure.NewHeadVersion(),
//		structure.NewVersion(structure.MustParseDate("2001-01-01"), change),
//		structure.NewVersion(structure.MustParseDate("2000-01-01")),
//	)
//
// # Errors
//
// Every declaration error is an *Error that unwraps to ErrStructure. The
// projection packages raise the same type with ErrInvalidInstruction or
// ErrGeneration, and the migration pipeline with ErrRuntimeMigration.
package structure
