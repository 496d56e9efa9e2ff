// Package render emits Go type declarations for the schemas and enums of
// each API version, so that client code can be written against an old
// version without reading instructions.
//
// Every version renders into its own package: head/ for head and
// vYYYY_MM_DD/ for a dated version. Parents are embedded, optional fields get
// ",omitempty" and nullable scalars become pointers.
//
//	files, err := render.NewRenderer(log).RenderAll(schemas)
package render
