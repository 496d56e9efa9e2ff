// Package schemagen projects head schemas and enums onto every version of
// a VersionBundle.
//
// # Overview
//
// Versions are walked newest to oldest. The schemas of a version are the
// head schemas (after head version changes) with the instructions of every
// newer version replayed on top, in declaration order. Each version is a
// sparse overlay over the next newer one: a model is copied into an overlay
// only when an instruction touches it, so unchanged schemas are shared by
// every version.
//
// Inherited fields resolve through the declared parents of a schema,
// farthest ancestor first, so editing a parent affects every child that
// does not override the field.
//
// # Usage
//
//	result, err := schemagen.NewGenerator(registry, bundle, log).Generate()
//	v2000, _ := result.Version(structure.MustParseDate("2000-01-01"))
//	model, _ := v2000.Model("users.User")
//
// Every error is a *structure.Error carrying the version change, schema and
// field it was raised for.
package schemagen
