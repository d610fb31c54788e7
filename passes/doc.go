// Package passes holds the built-in configuration passes.
//
// Each pass owns one top-level section, expands its shorthand forms into a
// single canonical shape, fills defaults and reports every malformed key in
// one *framework.ConfigValidationError. A tree without the section passes
// through unchanged. Running a pass on its own output changes nothing.
//
//	loader.WithPipeline(framework.NewPipeline(passes.Default()...))
package passes
