package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vgmdb/framework/internal/normalize"
)

// Tree is an ordered mapping from string keys to configuration values.
//
// Values are one of: nil, bool, int64, float64, string, []any (ordered
// sequence of values) or *Tree (nested mapping). Set normalizes other Go
// values into these kinds.
//
// A Tree is not safe for concurrent mutation.
type Tree struct {
	keys   []string
	values map[string]any
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{values: make(map[string]any)}
}

// FromMap builds a tree from a Go map. Map iteration order is undefined, so
// keys are sorted at every level.
func FromMap(m map[string]any) *Tree {
	t := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.Set(k, m[k])
	}
	return t
}

// Len returns the number of keys at this level.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns the keys at this level in insertion order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Get returns the value stored under key at this level.
func (t *Tree) Get(key string) (any, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.values[key]
	return v, ok
}

// Has reports whether key exists at this level.
func (t *Tree) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position and its value is replaced.
func (t *Tree) Set(key string, value any) {
	if t.values == nil {
		t.values = make(map[string]any)
	}
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = Normalize(value)
}

// Delete removes key. It is a no-op when the key is absent.
func (t *Tree) Delete(key string) {
	if t == nil {
		return
	}
	if _, ok := t.values[key]; !ok {
		return
	}
	delete(t.values, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Lookup resolves a dot-separated path through nested mappings,
// e.g. "database.connections.default.host".
func (t *Tree) Lookup(path string) (any, bool) {
	if path == "" {
		return t, t != nil
	}
	var current any = t
	for _, segment := range normalize.SplitPath(path) {
		sub, ok := current.(*Tree)
		if !ok {
			return nil, false
		}
		current, ok = sub.Get(segment)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Subtree returns the nested mapping stored under key, if any.
func (t *Tree) Subtree(key string) (*Tree, bool) {
	v, ok := t.Get(key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Tree)
	return sub, ok
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	out := &Tree{
		keys:   make([]string, len(t.keys)),
		values: make(map[string]any, len(t.values)),
	}
	copy(out.keys, t.keys)
	for k, v := range t.values {
		out.values[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a tree value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case *Tree:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Merge folds src into t. Nested mappings present on both sides are merged
// recursively; any other value from src replaces the one in t. Keys new to t
// are appended in src order. src is not modified and shares no memory with t
// afterwards.
func (t *Tree) Merge(src *Tree) {
	if src == nil {
		return
	}
	for _, key := range src.keys {
		incoming := src.values[key]
		if existing, ok := t.values[key]; ok {
			dst, dstIsTree := existing.(*Tree)
			in, inIsTree := incoming.(*Tree)
			if dstIsTree && inIsTree {
				dst.Merge(in)
				continue
			}
		}
		t.Set(key, CloneValue(incoming))
	}
}

// Walk visits every entry depth-first in document order. path is the
// dot-separated key path of the entry. Returning false from fn skips the
// children of a nested mapping.
func (t *Tree) Walk(fn func(path string, value any) bool) {
	t.walk("", fn)
}

func (t *Tree) walk(prefix string, fn func(path string, value any) bool) {
	if t == nil {
		return
	}
	for _, key := range t.keys {
		path := normalize.ApplyPrefix(prefix, key)
		value := t.values[key]
		if !fn(path, value) {
			continue
		}
		if sub, ok := value.(*Tree); ok {
			sub.walk(path, fn)
		}
	}
}

// Entry is one flattened leaf of a tree.
type Entry struct {
	Path  string
	Value any
}

// Flatten returns the leaves of the tree as dot-separated paths in document
// order. Sequences are leaves; empty mappings are reported as leaves holding
// an empty tree.
func (t *Tree) Flatten() []Entry {
	var out []Entry
	t.Walk(func(path string, value any) bool {
		if sub, ok := value.(*Tree); ok && sub.Len() > 0 {
			return true
		}
		out = append(out, Entry{Path: path, Value: value})
		return true
	})
	return out
}

// ToMap converts the tree into plain Go maps and slices.
func (t *Tree) ToMap() map[string]any {
	if t == nil {
		return nil
	}
	out := make(map[string]any, len(t.keys))
	for _, k := range t.keys {
		out[k] = toPlain(t.values[k])
	}
	return out
}

func toPlain(v any) any {
	switch val := v.(type) {
	case *Tree:
		return val.ToMap()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toPlain(item)
		}
		return out
	default:
		return val
	}
}

// MarshalJSON encodes the tree as a JSON object preserving key order.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := marshalJSONValue(t.values[key])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalJSONValue(v any) ([]byte, error) {
	if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		// JSON has no representation for these.
		return json.Marshal(fmt.Sprint(f))
	}
	return json.Marshal(v)
}

// String renders the tree as compact JSON, mainly for test failure output.
func (t *Tree) String() string {
	data, err := t.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<tree: %v>", err)
	}
	return string(data)
}

// Equal reports whether two tree values are deeply equal. Mapping key order
// is significant.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case *Tree:
		bv, ok := b.(*Tree)
		if !ok {
			return false
		}
		if av.Len() != bv.Len() {
			return false
		}
		for i, key := range av.keys {
			if bv.keys[i] != key {
				return false
			}
			if !Equal(av.values[key], bv.values[key]) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(av) && math.IsNaN(bv) {
			return true
		}
		return av == bv
	default:
		return a == b
	}
}

// IsScalar reports whether v is a scalar tree value (including nil).
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, bool, int64, float64, string:
		return true
	default:
		return false
	}
}

// Kind names the kind of a tree value for error messages.
func Kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "sequence"
	case *Tree:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// FormatScalar renders a scalar the way it would appear inside a string.
func FormatScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatFloat(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
