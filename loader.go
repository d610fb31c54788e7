package framework

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/vgmdb/framework/document"
	"github.com/vgmdb/framework/internal/normalize"
	"github.com/vgmdb/framework/tree"
)

// importsKey names the directive that merges other documents first.
const importsKey = "imports"

// Loader locates, parses, and merges configuration documents, substitutes
// parameters and runs the pass pipeline over the result.
// A Loader may be used for several loads; each load builds its own tree.
type Loader struct {
	container Container
	locator   *FileLocator
	opts      Options
	pipeline  *Pipeline
	logger    zerolog.Logger
}

// NewLoader creates a Loader installing into c. A nil locator searches
// opts.ConfigDirs.
func NewLoader(c Container, locator *FileLocator, opts Options) *Loader {
	if locator == nil {
		locator = NewFileLocator(opts.ConfigDirs...)
	}
	return &Loader{
		container: c,
		locator:   locator,
		opts:      opts,
		pipeline:  NewPipeline(),
		logger:    zerolog.Nop(),
	}
}

// WithPipeline replaces the pass pipeline.
func (l *Loader) WithPipeline(p *Pipeline) *Loader {
	if p == nil {
		p = NewPipeline()
	}
	l.pipeline = p
	return l
}

// WithPass appends a pass to the pipeline.
func (l *Loader) WithPass(p Pass) *Loader {
	l.pipeline = l.pipeline.With(p)
	return l
}

// WithLogger sets the logger. Default: zerolog.Nop().
func (l *Loader) WithLogger(logger zerolog.Logger) *Loader {
	l.logger = logger
	return l
}

// Options returns the loader's options.
func (l *Loader) Options() Options {
	return l.opts
}

// Pipeline returns the pass pipeline.
func (l *Loader) Pipeline() *Pipeline {
	return l.pipeline
}

// Locator returns the file locator.
func (l *Loader) Locator() *FileLocator {
	return l.locator
}

// Load builds the configuration tree for the entry document name.
//
// Errors: *NotFoundError, *ParseError, *UnresolvedParameterError,
// *ConfigValidationError, or ErrCircularImport (wrapped).
func (l *Loader) Load(ctx context.Context, name string) (*tree.Tree, error) {
	res, err := l.load(ctx, name)
	if err != nil {
		return nil, err
	}
	return res.tree, nil
}

// Apply installs every top-level key of t into the container, in order.
func (l *Loader) Apply(t *tree.Tree) error {
	if l.container == nil {
		return errors.New("framework: loader has no container")
	}
	if t == nil {
		return nil
	}
	for _, key := range t.Keys() {
		v, _ := t.Get(key)
		if err := l.container.Set(key, v); err != nil {
			return fmt.Errorf("install %q: %w", key, err)
		}
	}
	return nil
}

// loadResult carries what a cache artifact needs besides the tree.
type loadResult struct {
	tree       *tree.Tree
	provenance *Provenance
	sources    []SourceStamp
}

// loadState is the per-load bookkeeping shared across recursive imports.
type loadState struct {
	resolver resolver
	index    sourceIndex
	sources  []SourceStamp
	seen     map[string]bool
}

func (s *loadState) addSource(stamp SourceStamp) {
	if s.seen[stamp.Path] {
		return
	}
	s.seen[stamp.Path] = true
	s.sources = append(s.sources, stamp)
}

// addProbes remembers paths probed for a missing optional import, so a cached
// tree goes stale once one of them appears.
func (s *loadState) addProbes(paths []string) {
	for _, p := range paths {
		s.addSource(SourceStamp{Path: p, Missing: true})
	}
}

func (l *Loader) load(ctx context.Context, name string) (*loadResult, error) {
	start := time.Now()

	entry, err := l.locator.Locate(name)
	if err != nil {
		return nil, err
	}

	st := &loadState{
		resolver: newResolver(l.opts.Parameters),
		index:    sourceIndex{},
		seen:     make(map[string]bool),
	}

	merged, err := l.loadFile(ctx, entry, st, nil)
	if err != nil {
		return nil, err
	}

	resolved, err := st.resolver.resolveTree(merged, "")
	if err != nil {
		return nil, err
	}

	final, err := l.pipeline.Apply(ctx, resolved)
	if err != nil {
		return nil, err
	}

	prov := st.index.provenanceFor(final)
	storeProvenance(final, prov)

	l.logger.Debug().
		Str("entry", entry).
		Int("sources", len(st.sources)).
		Int("keys", final.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("config loaded")

	return &loadResult{tree: final, provenance: prov, sources: st.sources}, nil
}

// loadFile parses path and merges its imports, in listed order, underneath
// the document's own keys. stack holds the files currently being imported.
func (l *Loader) loadFile(ctx context.Context, path string, st *loadState, stack []string) (*tree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, p := range stack {
		if p == path {
			chain := append(append([]string(nil), stack...), path)
			return nil, fmt.Errorf("%w: %s", ErrCircularImport, strings.Join(chain, " -> "))
		}
	}
	stack = append(stack, path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: path, Paths: []string{path}}
		}
		return nil, fmt.Errorf("stat config file %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: path, Paths: []string{path}}
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	sum := blake3.Sum256(data)
	st.addSource(SourceStamp{Path: path, ModTime: info.ModTime().UnixNano(), Hash: sum[:]})

	doc, err := document.ParseBytes(path, data)
	if err != nil {
		return nil, err
	}

	imports, err := parseImports(doc)
	if err != nil {
		return nil, err
	}

	acc := tree.New()
	for _, imp := range imports {
		resource, err := st.resolver.resolveString(imp.resource, imp.keyPath)
		if err != nil {
			return nil, err
		}

		target, err := l.locator.LocateFrom(resource, filepath.Dir(path))
		if err != nil {
			var nf *NotFoundError
			if imp.ignoreMissing && errors.As(err, &nf) {
				l.logger.Debug().Str("file", path).Str("import", resource).Msg("optional import not found")
				st.addProbes(nf.Paths)
				continue
			}
			return nil, err
		}

		l.logger.Debug().Str("file", path).Str("import", target).Msg("importing config")
		imported, err := l.loadFile(ctx, target, st, stack)
		if err != nil {
			return nil, err
		}
		acc.Merge(imported)
	}

	st.index.record(doc, path)
	acc.Merge(doc)
	return acc, nil
}

type importSpec struct {
	resource      string
	ignoreMissing bool
	keyPath       string
}

// parseImports removes the imports directive from doc and returns its
// entries. Each entry is a resource string or a mapping
// {resource, ignore_errors}; ignore_errors accepts true or "not_found".
func parseImports(doc *tree.Tree) ([]importSpec, error) {
	raw, ok := doc.Get(importsKey)
	if !ok {
		return nil, nil
	}
	doc.Delete(importsKey)
	if raw == nil {
		return nil, nil
	}

	var c Checker
	list, ok := c.Sequence(importsKey, raw)
	if !ok {
		return nil, c.Err()
	}

	specs := make([]importSpec, 0, len(list))
	for i, item := range list {
		keyPath := normalize.IndexPath(importsKey, i)
		switch v := item.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				c.Fail(keyPath, ErrCodeRequired, "resource is required")
				continue
			}
			specs = append(specs, importSpec{resource: v, keyPath: keyPath})
		case *tree.Tree:
			res, _ := v.Get("resource")
			resource, ok := c.String(keyPath+".resource", res, true)
			if !ok {
				continue
			}
			spec := importSpec{resource: resource, keyPath: keyPath + ".resource"}
			if ignore, present := v.Get("ignore_errors"); present && ignore != nil {
				switch iv := ignore.(type) {
				case bool:
					spec.ignoreMissing = iv
				case string:
					if c.OneOf(keyPath+".ignore_errors", iv, "not_found", "true", "false") {
						spec.ignoreMissing = iv != "false"
					}
				default:
					c.invalidType(keyPath+".ignore_errors", "boolean or \"not_found\"", ignore)
				}
			}
			specs = append(specs, spec)
		default:
			c.invalidType(keyPath, "string or mapping", item)
		}
	}

	if err := c.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}
