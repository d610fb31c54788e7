package framework

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vgmdb/framework/tree"
)

// Container keys read and written by Provider.
const (
	KeyDebug       = "debug"
	KeyCache       = "cache"
	KeyBaseDir     = "base_dir"
	KeyCacheDir    = "cache_dir"
	KeyLogDir      = "log_dir"
	KeyEnv         = "env"
	KeyName        = "name"
	KeyConfigCache = "framework.cache_dir"
	KeyCacheID     = "framework.cache_id"
	KeyConfigDirs  = "framework.config_dirs"
	KeyConfigFile  = "framework.config_file"
	KeyCompression = "framework.cache_compression"
	KeyParameters  = "framework.parameters"
	KeyPasses      = "framework.loader.passes"
	KeyLoader      = "framework.loader.default"
	KeyCacheLoader = "framework.loader.cache"
)

// Provider wires configuration loading into a container: it reads the
// application settings, builds both loaders, and installs the loaded tree.
type Provider struct {
	resourceDir string
	logger      zerolog.Logger
}

// NewProvider creates a provider. resourceDir, when set, is searched after
// the configured directories for bundled defaults.
func NewProvider(resourceDir string) *Provider {
	return &Provider{resourceDir: resourceDir, logger: zerolog.Nop()}
}

// WithLogger sets the logger handed to the loaders.
func (p *Provider) WithLogger(logger zerolog.Logger) *Provider {
	p.logger = logger
	return p
}

// Register seeds an empty pass list unless one is already bound.
func (p *Provider) Register(c Container) error {
	if _, ok := c.Get(KeyPasses); ok {
		return nil
	}
	return c.Set(KeyPasses, []Pass{})
}

// Options builds loader options from the container's settings.
func (p *Provider) Options(c Container) (Options, error) {
	var errs Checker
	get := func(key string) any {
		v, _ := c.Get(key)
		return v
	}

	opts := Options{}
	if v := get(KeyDebug); v != nil {
		opts.Debug, _ = errs.Bool(KeyDebug, v)
	}
	if v := get(KeyCache); v != nil {
		opts.Cache, _ = errs.Bool(KeyCache, v)
	}
	opts.CacheDir, _ = errs.String(KeyConfigCache, get(KeyConfigCache), opts.Cache)
	opts.CacheID, _ = errs.String(KeyCacheID, get(KeyCacheID), false)
	opts.ConfigFile, _ = errs.String(KeyConfigFile, get(KeyConfigFile), true)

	switch dirs := get(KeyConfigDirs).(type) {
	case []string:
		opts.ConfigDirs = append(opts.ConfigDirs, dirs...)
	case []any:
		for i, d := range dirs {
			if s, ok := errs.String(fmt.Sprintf("%s[%d]", KeyConfigDirs, i), d, true); ok {
				opts.ConfigDirs = append(opts.ConfigDirs, s)
			}
		}
	case nil:
		errs.Fail(KeyConfigDirs, ErrCodeRequired, "at least one config directory is required")
	default:
		errs.invalidType(KeyConfigDirs, "sequence", dirs)
	}
	if p.resourceDir != "" {
		opts.ConfigDirs = append(opts.ConfigDirs, p.resourceDir)
	}

	if v := get(KeyCompression); v != nil {
		s, _ := errs.String(KeyCompression, v, false)
		compression, err := ParseCompression(s)
		if err != nil {
			errs.Fail(KeyCompression, ErrCodeOneOf, err.Error())
		}
		opts.Compression = compression
	}

	opts.Parameters = map[string]any{
		"app.debug": opts.Debug,
	}
	for _, key := range []string{KeyBaseDir, KeyCacheDir, KeyLogDir, KeyEnv, KeyName} {
		s, _ := errs.String(key, get(key), false)
		opts.Parameters["app."+key] = s
	}
	switch extra := get(KeyParameters).(type) {
	case nil:
	case map[string]any:
		for k, v := range extra {
			opts.Parameters[k] = v
		}
	case *tree.Tree:
		for _, entry := range extra.Flatten() {
			opts.Parameters[entry.Path] = entry.Value
		}
	default:
		errs.invalidType(KeyParameters, "mapping", extra)
	}

	if err := errs.Err(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Passes returns the passes bound under KeyPasses.
func (p *Provider) Passes(c Container) ([]Pass, error) {
	v, ok := c.Get(KeyPasses)
	if !ok || v == nil {
		return nil, nil
	}
	switch passes := v.(type) {
	case []Pass:
		return passes, nil
	case []any:
		out := make([]Pass, 0, len(passes))
		for i, item := range passes {
			pass, ok := item.(Pass)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: %T is not a Pass", KeyPasses, i, item)
			}
			out = append(out, pass)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected a list of passes, got %T", KeyPasses, v)
	}
}

// Boot builds both loaders, binds them in the container, and loads and
// applies the configured entry document with the cached loader when caching
// is enabled. It returns the applied tree.
func (p *Provider) Boot(ctx context.Context, c Container) (*tree.Tree, error) {
	opts, err := p.Options(c)
	if err != nil {
		return nil, err
	}
	passes, err := p.Passes(c)
	if err != nil {
		return nil, err
	}

	pipeline := NewPipeline(passes...)
	locator := NewFileLocator(opts.ConfigDirs...)

	plain := NewLoader(c, locator, opts).WithPipeline(pipeline).WithLogger(p.logger)
	cached := NewCachedLoader(NewLoader(c, locator, opts).WithPipeline(pipeline).WithLogger(p.logger))
	if err := c.Set(KeyLoader, plain); err != nil {
		return nil, err
	}
	if err := c.Set(KeyCacheLoader, cached); err != nil {
		return nil, err
	}

	var loader TreeLoader = plain
	if opts.Cache {
		loader = cached
	}

	t, err := loader.Load(ctx, opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := loader.Apply(t); err != nil {
		return nil, err
	}
	return t, nil
}
