package framework

import (
	"context"
	"fmt"

	"github.com/vgmdb/framework/tree"
)

// Pass transforms a configuration tree after it has been loaded and merged.
// Passes must be deterministic and idempotent: applying a pass to its own
// output returns an equal tree.
type Pass interface {
	// Apply returns the transformed tree. It may modify and return its input.
	// Return *ConfigValidationError when a section has an invalid shape.
	Apply(ctx context.Context, t *tree.Tree) (*tree.Tree, error)
}

// PassFunc is a function adapter for the Pass interface.
type PassFunc func(ctx context.Context, t *tree.Tree) (*tree.Tree, error)

func (f PassFunc) Apply(ctx context.Context, t *tree.Tree) (*tree.Tree, error) {
	return f(ctx, t)
}

// PassName returns the pass's Name() when it has one, otherwise its type.
func PassName(p Pass) string {
	if named, ok := p.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", p)
}

// TreeLoader loads configuration trees and installs them into a container.
// Both Loader and CachedLoader implement it.
type TreeLoader interface {
	Load(ctx context.Context, name string) (*tree.Tree, error)
	Apply(t *tree.Tree) error
}

// Options configures configuration loading.
type Options struct {
	// Debug enables debug-only behavior such as load timings.
	Debug bool

	// Cache selects the cached loader when true.
	Cache bool

	// Parameters are substituted for %name% placeholders.
	Parameters map[string]any

	// CacheDir is where cache artifacts are written.
	CacheDir string

	// CacheID prefixes artifact file names (e.g. "vgmdb-prodConfig").
	CacheID string

	// ConfigDirs are searched in order for configuration files.
	ConfigDirs []string

	// ConfigFile is the entry document name.
	ConfigFile string

	// Compression applied to cache artifacts. Default: zstd.
	Compression Compression
}
