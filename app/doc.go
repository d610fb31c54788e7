// Package app bootstraps an application: it seeds a container with the
// application settings and framework defaults, then boots configuration
// loading into it.
//
//	a, err := app.New(ctx, app.OptionsFromEnv(baseDir), logger)
//	err = a.Boot(ctx)
//	dbname, _ := a.Container().Get("database")
//
// Configuration is read from <base_dir>/app/Resources/config/config.dist.yml
// and cached under <cache_dir>/configs.
package app
