package framework

import (
	"strings"
	"sync"

	"github.com/vgmdb/framework/tree"
)

// SourceGenerated marks keys that no document defined; a pass created them.
const SourceGenerated = "generated"

// Provenance contains source information for the leaves of a loaded tree.
type Provenance struct {
	Keys []KeyProvenance
}

// KeyProvenance describes which document a leaf's value came from.
type KeyProvenance struct {
	KeyPath string // Dot notation (e.g., "database.connections.default.host")
	Source  string // Absolute path of the defining document, or SourceGenerated
}

// Source returns the source recorded for keyPath.
func (p *Provenance) Source(keyPath string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, k := range p.Keys {
		if k.KeyPath == keyPath {
			return k.Source, true
		}
	}
	return "", false
}

var provenanceStore sync.Map

// GetProvenance returns provenance metadata for a loaded tree.
// Thread-safe.
func GetProvenance(t *tree.Tree) (*Provenance, bool) {
	if t == nil {
		return nil, false
	}

	value, ok := provenanceStore.Load(t)
	if !ok {
		return nil, false
	}

	prov, ok := value.(*Provenance)
	return prov, ok
}

func storeProvenance(t *tree.Tree, prov *Provenance) {
	if t != nil && prov != nil {
		provenanceStore.Store(t, prov)
	}
}

// ForgetProvenance drops the provenance kept for t. Long-running processes
// that reload configuration call it for trees they no longer use.
func ForgetProvenance(t *tree.Tree) {
	if t != nil {
		provenanceStore.Delete(t)
	}
}

// sourceIndex maps leaf paths to the document that last set them while
// documents are merged.
type sourceIndex map[string]string

// record marks every leaf of doc as coming from source. Leaves of earlier
// documents underneath a replaced non-mapping value are dropped.
func (s sourceIndex) record(doc *tree.Tree, source string) {
	for _, entry := range doc.Flatten() {
		prefix := entry.Path + "."
		for path := range s {
			if strings.HasPrefix(path, prefix) {
				delete(s, path)
			}
		}
		s[entry.Path] = source
	}
}

// provenanceFor resolves the source of every leaf of the final tree. A path
// missing from the index inherits the source of its closest recorded
// ancestor; otherwise it is SourceGenerated.
func (s sourceIndex) provenanceFor(t *tree.Tree) *Provenance {
	entries := t.Flatten()
	prov := &Provenance{Keys: make([]KeyProvenance, 0, len(entries))}
	for _, entry := range entries {
		prov.Keys = append(prov.Keys, KeyProvenance{KeyPath: entry.Path, Source: s.lookup(entry.Path)})
	}
	return prov
}

func (s sourceIndex) lookup(path string) string {
	for {
		if src, ok := s[path]; ok {
			return src
		}
		i := strings.LastIndexByte(path, '.')
		if i < 0 {
			return SourceGenerated
		}
		path = path[:i]
	}
}
