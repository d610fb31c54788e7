// Package document parses configuration documents into ordered trees.
//
// Format is auto-detected from extension (.yml, .yaml, .json, .jsonc, .toml, .hcl).
// YAML and JSON keep the key order of the source document; TOML tables and
// HCL objects carry no order, so their keys are sorted.
//
// Example:
//
//	t, err := document.ParseFile("app/Resources/config/config.dist.yml")
//	out, err := document.Serialize(t)
package document
