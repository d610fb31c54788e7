package framework

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vgmdb/framework/document"
	"github.com/vgmdb/framework/internal/normalize"
	"github.com/vgmdb/framework/tree"
)

// RedactedValue replaces secret values in dumps.
const RedactedValue = "***redacted***"

// defaultSecretNames mark a key as secret when its last segment contains one
// of them (case-insensitive).
var defaultSecretNames = []string{"password", "secret", "token"}

// DumpOption configures dump behavior using the functional options pattern.
type DumpOption func(*dumpConfig)

type dumpConfig struct {
	withSources  bool     // Include source attribution for each key
	asJSON       bool     // Output as JSON instead of text format
	asYAML       bool     // Output as YAML instead of text format
	indent       string   // Indentation for JSON output (default: "  ")
	redactedKeys []string // Extra key paths or key names to redact
}

// WithSources includes source attribution for each key in text output.
func WithSources() DumpOption {
	return func(cfg *dumpConfig) {
		cfg.withSources = true
	}
}

// AsJSON outputs the tree as JSON instead of text format.
func AsJSON() DumpOption {
	return func(cfg *dumpConfig) {
		cfg.asJSON = true
	}
}

// AsYAML outputs the tree as a YAML document instead of text format.
func AsYAML() DumpOption {
	return func(cfg *dumpConfig) {
		cfg.asYAML = true
	}
}

// WithIndent sets the indentation for JSON output.
// Default is two spaces ("  ").
func WithIndent(indent string) DumpOption {
	return func(cfg *dumpConfig) {
		cfg.indent = indent
	}
}

// WithRedactedKeys redacts additional keys, given as full key paths
// ("mailer.dsn") or bare key names ("api_key").
func WithRedactedKeys(keys ...string) DumpOption {
	return func(cfg *dumpConfig) {
		cfg.redactedKeys = append(cfg.redactedKeys, keys...)
	}
}

// DumpTree writes a human-readable representation of t. Secret keys are
// redacted as "***redacted***". Returns an error if writing fails.
func DumpTree(w io.Writer, t *tree.Tree, opts ...DumpOption) error {
	if t == nil {
		return fmt.Errorf("tree is nil")
	}

	config := dumpConfig{
		indent: "  ",
	}
	for _, opt := range opts {
		opt(&config)
	}

	prov, _ := GetProvenance(t)
	redacted := config.redact(t, "")

	switch {
	case config.asJSON:
		return dumpAsJSON(w, redacted, config)
	case config.asYAML:
		return dumpAsYAML(w, redacted)
	default:
		return dumpAsText(w, redacted, prov, config)
	}
}

// dumpAsText outputs one "key.path: value" line per leaf.
func dumpAsText(w io.Writer, t *tree.Tree, prov *Provenance, config dumpConfig) error {
	for _, entry := range t.Flatten() {
		line := fmt.Sprintf("%s: %s", entry.Path, displayValue(entry.Value))
		if config.withSources {
			if src := sourceOf(prov, entry.Path); src != "" {
				line += fmt.Sprintf(" (source: %s)", src)
			}
		}
		line += "\n"

		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("write error: %w", err)
		}
	}
	return nil
}

func dumpAsJSON(w io.Writer, t *tree.Tree, config dumpConfig) error {
	data, err := t.MarshalJSON()
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}

	if config.indent != "" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", config.indent); err != nil {
			return fmt.Errorf("json indent error: %w", err)
		}
		data = buf.Bytes()
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

func dumpAsYAML(w io.Writer, t *tree.Tree) error {
	data, err := document.Serialize(t)
	if err != nil {
		return fmt.Errorf("yaml marshal error: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

// redact returns a copy of t with secret keys replaced by RedactedValue.
func (c dumpConfig) redact(t *tree.Tree, prefix string) *tree.Tree {
	out := tree.New()
	for _, key := range t.Keys() {
		v, _ := t.Get(key)
		path := normalize.ApplyPrefix(prefix, key)
		switch {
		case c.isSecret(path, key):
			out.Set(key, RedactedValue)
		default:
			out.Set(key, c.redactValue(v, path))
		}
	}
	return out
}

// redactValue redacts mappings at any depth, including inside sequences.
func (c dumpConfig) redactValue(v any, path string) any {
	switch val := v.(type) {
	case *tree.Tree:
		return c.redact(val, path)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = c.redactValue(item, normalize.IndexPath(path, i))
		}
		return out
	default:
		return tree.CloneValue(v)
	}
}

func (c dumpConfig) isSecret(path, key string) bool {
	lower := strings.ToLower(key)
	for _, name := range defaultSecretNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	for _, k := range c.redactedKeys {
		if strings.EqualFold(k, path) || strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// sourceOf returns the source of path, or of the first leaf beneath it when
// path is a redacted mapping.
func sourceOf(prov *Provenance, path string) string {
	if prov == nil {
		return ""
	}
	if src, ok := prov.Source(path); ok {
		return src
	}
	prefix := path + "."
	for _, k := range prov.Keys {
		if strings.HasPrefix(k.KeyPath, prefix) {
			return k.Source
		}
	}
	return ""
}

func displayValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any, *tree.Tree:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return tree.FormatScalar(val)
	}
}
