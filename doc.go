// Package framework loads layered application configuration into a container.
//
// Quick Start:
//
//	c := framework.NewMapContainer()
//	loader := framework.NewLoader(c, framework.NewFileLocator("app/Resources/config"), framework.Options{
//	    Parameters: map[string]any{"app.env": "prod"},
//	}).WithPass(passes.Database())
//
//	t, err := loader.Load(ctx, "config.dist.yml")
//	err = loader.Apply(t)
//
// Documents may import others:
//
//	imports:
//	  - { resource: parameters.yml }
//	  - { resource: "config_%app.env%.yml", ignore_errors: true }
//
// Imports merge in order beneath the importing document's own keys; mappings
// merge deeply, anything else is replaced. %name% placeholders are replaced
// with parameters, "%%" is a literal percent sign.
//
// Wrap the loader with NewCachedLoader to keep the resolved tree in an
// artifact that is reused until a contributing file changes.
//
// See example_test.go for detailed usage.
package framework
