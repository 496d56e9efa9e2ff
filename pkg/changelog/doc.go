// Package changelog describes, for every version, what changed for clients
// compared to the version right before it.
//
// # Overview
//
// Entries are derived from the instructions of each VersionChange and read in
// the client's direction: a route deleted in older versions with
// Endpoint(...).DidntExist() is reported as "endpoint.added" in the version
// that declared it.
//
//	cl, err := changelog.NewGenerator(bundle, schemas, log).Generate()
//	err = cl.Write(os.Stdout, changelog.FormatYAML)
//
// Changes marked HideFromChangelog and instructions wrapped in
// structure.Hidden are left out. Validator instructions never appear.
package changelog
