package framework

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/vgmdb/framework/tree"
)

// DefaultCacheID is used when Options.CacheID is empty.
const DefaultCacheID = "config"

const artifactExt = ".cache"

// CachedLoader wraps a Loader with an on-disk artifact per entry document.
// A valid artifact is returned without parsing anything; otherwise the inner
// loader runs and its result is written as the new artifact.
type CachedLoader struct {
	inner  *Loader
	logger zerolog.Logger
	now    func() time.Time
}

// NewCachedLoader creates a CachedLoader around inner, sharing its logger.
func NewCachedLoader(inner *Loader) *CachedLoader {
	return &CachedLoader{
		inner:  inner,
		logger: inner.logger,
		now:    time.Now,
	}
}

// WithLogger sets the logger. Default: the inner loader's logger.
func (c *CachedLoader) WithLogger(logger zerolog.Logger) *CachedLoader {
	c.logger = logger
	return c
}

// Inner returns the wrapped loader.
func (c *CachedLoader) Inner() *Loader {
	return c.inner
}

func (c *CachedLoader) cacheID() string {
	id := c.inner.opts.CacheID
	if id == "" {
		id = DefaultCacheID
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(id)
}

// ArtifactPath returns where the artifact for entry is stored.
func (c *CachedLoader) ArtifactPath(entry string) string {
	sum := blake3.Sum256([]byte(entry))
	return filepath.Join(c.inner.opts.CacheDir, fmt.Sprintf("%s-%x%s", c.cacheID(), sum[:8], artifactExt))
}

// Load returns the tree for entry, from the artifact when it is still valid.
// Unreadable artifacts are treated as a miss. A failed load writes nothing;
// a failed artifact write is logged and the loaded tree is still returned.
func (c *CachedLoader) Load(ctx context.Context, entry string) (*tree.Tree, error) {
	path := c.ArtifactPath(entry)

	fingerprint, err := c.fingerprint(entry)
	if err != nil {
		return nil, err
	}

	if a, ok := c.readValid(path, fingerprint); ok {
		storeProvenance(a.Tree, a.Provenance)
		c.logger.Debug().Str("entry", entry).Str("artifact", path).Msg("config cache hit")
		return a.Tree, nil
	}

	res, err := c.inner.load(ctx, entry)
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		Timestamp:   c.now(),
		Fingerprint: fingerprint,
		Sources:     res.sources,
		Tree:        res.tree,
		Provenance:  res.provenance,
	}
	if err := c.write(path, a); err != nil {
		c.logger.Warn().Err(err).Str("artifact", path).Msg("failed to write config cache")
	}
	return res.tree, nil
}

// Apply installs t through the inner loader.
func (c *CachedLoader) Apply(t *tree.Tree) error {
	return c.inner.Apply(t)
}

// Clear removes every artifact of this cache id and returns how many were
// removed.
func (c *CachedLoader) Clear() (int, error) {
	pattern := filepath.Join(c.inner.opts.CacheDir, c.cacheID()+"-*"+artifactExt)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("list cache artifacts: %w", err)
	}

	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove cache artifact: %w", err)
		}
		removed++
	}
	c.logger.Debug().Int("removed", removed).Str("dir", c.inner.opts.CacheDir).Msg("config cache cleared")
	return removed, nil
}

func (c *CachedLoader) write(path string, a *Artifact) error {
	data, err := EncodeArtifact(a, c.inner.opts.Compression)
	if err != nil {
		return err
	}
	return WriteArtifact(path, data)
}

func (c *CachedLoader) readValid(path string, fingerprint []byte) (*Artifact, bool) {
	a, err := ReadArtifact(path)
	if err != nil {
		var corrupt *CacheCorruptionError
		switch {
		case errors.As(err, &corrupt):
			c.logger.Warn().Err(err).Str("artifact", path).Msg("ignoring corrupt config cache")
		case !os.IsNotExist(err):
			c.logger.Warn().Err(err).Str("artifact", path).Msg("cannot read config cache")
		}
		return nil, false
	}

	if !bytes.Equal(a.Fingerprint, fingerprint) {
		c.logger.Debug().Str("artifact", path).Msg("config cache stale: parameters or passes changed")
		return nil, false
	}
	if reason := staleSource(a.Sources); reason != "" {
		c.logger.Debug().Str("artifact", path).Str("reason", reason).Msg("config cache stale")
		return nil, false
	}
	return a, true
}

// staleSource reports why the recorded sources no longer match the
// filesystem, or "" when they all do.
func staleSource(sources []SourceStamp) string {
	if len(sources) == 0 {
		return "no sources recorded"
	}
	for _, s := range sources {
		info, err := os.Stat(s.Path)
		if s.Missing {
			if err == nil {
				return "optional import appeared: " + s.Path
			}
			continue
		}
		if err != nil {
			return "source unavailable: " + s.Path
		}
		if info.ModTime().UnixNano() != s.ModTime {
			return "source modified: " + s.Path
		}
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return "source unreadable: " + s.Path
		}
		sum := blake3.Sum256(data)
		if !bytes.Equal(sum[:], s.Hash) {
			return "source content changed: " + s.Path
		}
	}
	return ""
}

type fingerprintInput struct {
	Entry      string              `cbor:"1,keyasint"`
	Parameters map[string]wireNode `cbor:"2,keyasint"`
	Passes     []string            `cbor:"3,keyasint"`
	Dirs       []string            `cbor:"4,keyasint"`
}

// fingerprint hashes everything besides the sources that shapes the loaded
// tree. Deterministic CBOR makes parameter map order irrelevant.
func (c *CachedLoader) fingerprint(entry string) ([]byte, error) {
	in := fingerprintInput{
		Entry:      entry,
		Parameters: make(map[string]wireNode, len(c.inner.opts.Parameters)),
		Passes:     c.inner.pipeline.Names(),
		Dirs:       c.inner.locator.Dirs(),
	}
	for k, v := range c.inner.opts.Parameters {
		in.Parameters[k] = toWire(v)
	}

	data, err := cborEncMode.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("fingerprint parameters: %w", err)
	}
	sum := blake3.Sum256(data)
	return sum[:], nil
}
