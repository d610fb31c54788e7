package sourceenv

import (
	"context"
	"os"
	"strings"

	"github.com/vgmdb/framework/internal/normalize"
)

// Options configures environment variable scanning.
type Options struct {
	// Prefix selects the variables to read and is stripped from their names.
	// Empty reads every variable.
	Prefix string

	// CaseSensitive makes Prefix match exactly. By default APP_ also matches
	// app_ and App_. Keys are lowercased either way.
	CaseSensitive bool

	// Namespace is prepended to every key returned by Parameters
	// (e.g. "env" turns HOST_DB__HOST into "env.db.host").
	Namespace string

	// Exclude lists variable names (with prefix) that are never returned,
	// such as the variables the application reads for itself.
	Exclude []string
}

// Source reads configuration parameters from the process environment.
type Source struct {
	opts Options
}

// New creates an environment variable source.
func New(opts Options) *Source {
	return &Source{opts: opts}
}

// Load returns the selected variables keyed by normalized dot path:
// HOST_DB__MAX_CONNECTIONS with prefix HOST_ becomes "db.max_connections".
func (e *Source) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make(map[string]any)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || e.excluded(name) {
			continue
		}
		if key, ok := e.key(name); ok {
			values[key] = value
		}
	}
	return values, nil
}

// key strips the prefix from name and normalizes the rest.
func (e *Source) key(name string) (string, bool) {
	prefix := e.opts.Prefix
	if len(name) < len(prefix) {
		return "", false
	}
	head, rest := name[:len(prefix)], name[len(prefix):]
	if e.opts.CaseSensitive && head != prefix {
		return "", false
	}
	if !e.opts.CaseSensitive && !strings.EqualFold(head, prefix) {
		return "", false
	}
	if rest == "" {
		return "", false
	}
	return normalize.ToLowerDotPath(rest), true
}

func (e *Source) excluded(name string) bool {
	for _, x := range e.opts.Exclude {
		if x == name {
			return true
		}
	}
	return false
}

// Parameters is Load with Namespace prepended to every key, ready to be
// used as %placeholder% parameters.
func (e *Source) Parameters(ctx context.Context) (map[string]any, error) {
	values, err := e.Load(ctx)
	if err != nil {
		return nil, err
	}
	if e.opts.Namespace == "" {
		return values, nil
	}

	out := make(map[string]any, len(values))
	for k, v := range values {
		out[normalize.ApplyPrefix(e.opts.Namespace, k)] = v
	}
	return out, nil
}

// String returns the value of the environment variable name, or fallback
// when it is unset or empty.
func String(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// Flag reports whether the environment variable name is set to a true
// value. Unset, empty, "0", "false", "no" and "off" are false.
func Flag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
