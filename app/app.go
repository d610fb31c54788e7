package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	framework "github.com/vgmdb/framework"
	"github.com/vgmdb/framework/passes"
	"github.com/vgmdb/framework/sourceenv"
	"github.com/vgmdb/framework/tree"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvDebug = "HOST_DEBUG"
	EnvName  = "HOST_ENV"
	EnvApp   = "HOST_APP"

	// EnvParamPrefix selects variables exposed as env.* parameters.
	EnvParamPrefix = "HOST_"
)

// Defaults.
const (
	DefaultEnv        = "prod"
	DefaultName       = "vgmdb"
	DefaultConfigFile = "config.dist.yml"
)

// KeyLoadTime holds the configuration load duration in debug mode.
const KeyLoadTime = "framework.debug.load_time"

// Mode is how the application runs. It is fixed when the App is created.
type Mode int

const (
	Production Mode = iota
	Debug
)

func (m Mode) String() string {
	if m == Debug {
		return "debug"
	}
	return "production"
}

// Options are the application settings.
type Options struct {
	Debug    bool
	Cache    bool
	Env      string
	Name     string
	BaseDir  string
	CacheDir string
	LogDir   string

	// ResourceDir is searched after the application's config directory.
	ResourceDir string
}

// OptionsFromEnv returns the settings for an application rooted at baseDir,
// taking debug, environment and name from HOST_DEBUG, HOST_ENV and HOST_APP.
// Caching is enabled.
func OptionsFromEnv(baseDir string) Options {
	return Options{
		Debug:    sourceenv.Flag(EnvDebug),
		Cache:    true,
		Env:      sourceenv.String(EnvName, DefaultEnv),
		Name:     sourceenv.String(EnvApp, DefaultName),
		BaseDir:  baseDir,
		CacheDir: filepath.Join(baseDir, "app", "cache"),
		LogDir:   filepath.Join(baseDir, "app", "logs"),
	}
}

// App owns the container and boots configuration into it.
type App struct {
	mode      Mode
	opts      Options
	container *framework.MapContainer
	provider  *framework.Provider
	logger    zerolog.Logger
	config    *tree.Tree
}

// New creates an application and seeds its container with the settings,
// the framework defaults, the built-in passes and HOST_* environment
// parameters. The settings keys are protected from redefinition.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*App, error) {
	if opts.Env == "" {
		opts.Env = DefaultEnv
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}

	mode := Production
	if opts.Debug {
		mode = Debug
	}

	a := &App{
		mode:      mode,
		opts:      opts,
		container: framework.NewMapContainer(),
		provider:  framework.NewProvider(opts.ResourceDir).WithLogger(logger),
		logger:    logger,
	}

	env, err := sourceenv.New(sourceenv.Options{
		Prefix:    EnvParamPrefix,
		Namespace: "env",
		Exclude:   []string{EnvDebug, EnvName, EnvApp},
	}).Parameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	settings := []struct {
		key   string
		value any
	}{
		{framework.KeyDebug, opts.Debug},
		{framework.KeyCache, opts.Cache},
		{framework.KeyEnv, opts.Env},
		{framework.KeyName, opts.Name},
		{framework.KeyBaseDir, opts.BaseDir},
		{framework.KeyCacheDir, opts.CacheDir},
		{framework.KeyLogDir, opts.LogDir},
		{framework.KeyConfigCache, filepath.Join(opts.CacheDir, "configs")},
		{framework.KeyCacheID, opts.Name + "-" + opts.Env + "Config"},
		{framework.KeyConfigDirs, []string{filepath.Join(opts.BaseDir, "app", "Resources", "config")}},
		{framework.KeyConfigFile, DefaultConfigFile},
		{framework.KeyPasses, passes.Default()},
		{framework.KeyParameters, env},
	}
	for _, s := range settings {
		if err := a.container.Set(s.key, s.value); err != nil {
			return nil, err
		}
	}
	a.container.Protect(
		framework.KeyDebug, framework.KeyCache, framework.KeyEnv, framework.KeyName,
		framework.KeyBaseDir, framework.KeyCacheDir, framework.KeyLogDir,
	)

	if err := a.provider.Register(a.container); err != nil {
		return nil, err
	}
	return a, nil
}

// Mode returns the run mode.
func (a *App) Mode() Mode {
	return a.mode
}

// Options returns the settings the App was created with.
func (a *App) Options() Options {
	return a.opts
}

// Container returns the application container.
func (a *App) Container() *framework.MapContainer {
	return a.container
}

// Config returns the tree applied by Boot, or nil before Boot.
func (a *App) Config() *tree.Tree {
	return a.config
}

// Set overrides a container key before Boot.
func (a *App) Set(key string, value any) error {
	return a.container.Set(key, value)
}

// Boot loads the configuration and installs it into the container.
func (a *App) Boot(ctx context.Context) error {
	start := time.Now()

	t, err := a.provider.Boot(ctx, a.container)
	if err != nil {
		return fmt.Errorf("boot %s: %w", a.opts.Name, err)
	}
	a.config = t

	elapsed := time.Since(start)
	if a.mode == Debug {
		if err := a.container.Set(KeyLoadTime, elapsed); err != nil {
			return err
		}
	}
	a.logger.Info().
		Str("name", a.opts.Name).
		Str("env", a.opts.Env).
		Stringer("mode", a.mode).
		Bool("cache", a.opts.Cache).
		Dur("elapsed", elapsed).
		Msg("application booted")
	return nil
}

// CachedLoader builds the cached loader for the current settings without
// loading anything, for cache maintenance.
func (a *App) CachedLoader() (*framework.CachedLoader, error) {
	opts, err := a.provider.Options(a.container)
	if err != nil {
		return nil, err
	}
	passList, err := a.provider.Passes(a.container)
	if err != nil {
		return nil, err
	}
	loader := framework.NewLoader(a.container, nil, opts).
		WithPipeline(framework.NewPipeline(passList...)).
		WithLogger(a.logger)
	return framework.NewCachedLoader(loader), nil
}
