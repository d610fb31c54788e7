// Package tree implements the ordered configuration tree produced by the
// document parsers and consumed by the loaders.
//
// Example:
//
//	t := tree.New()
//	t.Set("name", "vgmdb")
//	t.Set("database", map[string]any{"host": "localhost"})
//	host, _ := t.Lookup("database.host")
package tree
