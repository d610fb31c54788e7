package framework

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vgmdb/framework/internal/normalize"
	"github.com/vgmdb/framework/tree"
)

// placeholderPattern matches an escaped percent sign or a %name% placeholder.
var placeholderPattern = regexp.MustCompile(`%%|%([^%\s]+)%`)

// resolver substitutes %name% placeholders with parameter values.
//
// A string that is exactly one placeholder takes the parameter's value and
// type. Placeholders embedded in longer strings require scalar parameters
// and are rendered as text. "%%" yields a literal "%". Parameter values are
// used literally; placeholders inside them are not expanded.
type resolver struct {
	params map[string]any
}

func newResolver(params map[string]any) resolver {
	return resolver{params: params}
}

func (r resolver) resolveTree(t *tree.Tree, prefix string) (*tree.Tree, error) {
	out := tree.New()
	for _, key := range t.Keys() {
		v, _ := t.Get(key)
		keyPath := normalize.ApplyPrefix(prefix, key)

		resolvedKey, err := r.resolveString(key, keyPath)
		if err != nil {
			return nil, err
		}
		resolved, err := r.resolveValue(v, normalize.ApplyPrefix(prefix, resolvedKey))
		if err != nil {
			return nil, err
		}
		out.Set(resolvedKey, resolved)
	}
	return out, nil
}

func (r resolver) resolveValue(v any, keyPath string) (any, error) {
	switch val := v.(type) {
	case string:
		return r.resolveScalar(val, keyPath)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := r.resolveValue(item, normalize.IndexPath(keyPath, i))
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case *tree.Tree:
		return r.resolveTree(val, keyPath)
	default:
		return v, nil
	}
}

func (r resolver) resolveScalar(s, keyPath string) (any, error) {
	if m := placeholderPattern.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) && m[2] >= 0 {
		name := s[m[2]:m[3]]
		v, ok := r.params[name]
		if !ok {
			return nil, &UnresolvedParameterError{Name: name, KeyPath: keyPath}
		}
		return tree.CloneValue(tree.Normalize(v)), nil
	}
	return r.resolveString(s, keyPath)
}

func (r resolver) resolveString(s, keyPath string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}

	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		if match == "%%" {
			return "%"
		}
		name := match[1 : len(match)-1]
		v, ok := r.params[name]
		if !ok {
			firstErr = &UnresolvedParameterError{Name: name, KeyPath: keyPath}
			return match
		}
		v = tree.Normalize(v)
		if !tree.IsScalar(v) {
			firstErr = &ConfigValidationError{KeyErrors: []KeyError{{
				KeyPath: keyPath,
				Code:    ErrCodeInvalidType,
				Message: fmt.Sprintf("parameter %q is a %s and cannot be embedded in a string", name, tree.Kind(v)),
			}}}
			return match
		}
		return tree.FormatScalar(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
