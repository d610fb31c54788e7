// Package sourceenv reads configuration parameters from environment variables.
//
// Key normalization: FOO__BAR → foo.bar, FOO_BAR → foo_bar
//
// Example:
//
//	source := sourceenv.New(sourceenv.Options{Prefix: "HOST_", Namespace: "env"})
//	params, err := source.Parameters(ctx) // HOST_DB__HOST=db → "env.db.host": "db"
package sourceenv
