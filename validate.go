package framework

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vgmdb/framework/tree"
)

// Checker accumulates shape errors while a pass walks its section, so one
// run reports every offending key instead of only the first.
type Checker struct {
	errs []KeyError
}

// Fail records an error for keyPath.
func (c *Checker) Fail(keyPath, code, message string) {
	c.errs = append(c.errs, KeyError{KeyPath: keyPath, Code: code, Message: message})
}

// Err returns nil when no errors were recorded, otherwise a
// *ConfigValidationError holding all of them.
func (c *Checker) Err() error {
	if len(c.errs) == 0 {
		return nil
	}
	out := make([]KeyError, len(c.errs))
	copy(out, c.errs)
	return &ConfigValidationError{KeyErrors: out}
}

// Mapping expects v to be a nested mapping.
func (c *Checker) Mapping(keyPath string, v any) (*tree.Tree, bool) {
	t, ok := v.(*tree.Tree)
	if !ok {
		c.invalidType(keyPath, "mapping", v)
		return nil, false
	}
	return t, true
}

// Sequence expects v to be a sequence.
func (c *Checker) Sequence(keyPath string, v any) ([]any, bool) {
	s, ok := v.([]any)
	if !ok {
		c.invalidType(keyPath, "sequence", v)
		return nil, false
	}
	return s, true
}

// String expects v to be a string. Numbers and booleans are accepted and
// rendered as strings, since YAML types unquoted values implicitly.
// A required string must be non-empty.
func (c *Checker) String(keyPath string, v any, required bool) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
	case string:
		s = val
	case int64, float64, bool:
		s = tree.FormatScalar(val)
	default:
		c.invalidType(keyPath, "string", v)
		return "", false
	}
	if required && strings.TrimSpace(s) == "" {
		c.Fail(keyPath, ErrCodeRequired, "value is required")
		return "", false
	}
	return s, true
}

// Int expects v to be an integer within [min, max]. Numeric strings are
// accepted so that values substituted from parameters still validate.
func (c *Checker) Int(keyPath string, v any, min, max int64) (int64, bool) {
	var i int64
	switch val := v.(type) {
	case int64:
		i = val
	case float64:
		if val != float64(int64(val)) {
			c.invalidType(keyPath, "integer", v)
			return 0, false
		}
		i = int64(val)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			c.invalidType(keyPath, "integer", v)
			return 0, false
		}
		i = parsed
	default:
		c.invalidType(keyPath, "integer", v)
		return 0, false
	}

	if i < min {
		c.Fail(keyPath, ErrCodeMin, fmt.Sprintf("value must be at least %d, got %d", min, i))
		return 0, false
	}
	if i > max {
		c.Fail(keyPath, ErrCodeMax, fmt.Sprintf("value must be at most %d, got %d", max, i))
		return 0, false
	}
	return i, true
}

// Bool expects v to be a boolean; "true"/"false" strings are accepted.
func (c *Checker) Bool(keyPath string, v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err == nil {
			return b, true
		}
	}
	c.invalidType(keyPath, "boolean", v)
	return false, false
}

// OneOf checks that s is one of allowed.
func (c *Checker) OneOf(keyPath, s string, allowed ...string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	c.Fail(keyPath, ErrCodeOneOf, fmt.Sprintf("must be one of: %s, got %q", strings.Join(allowed, ", "), s))
	return false
}

func (c *Checker) invalidType(keyPath, want string, got any) {
	c.Fail(keyPath, ErrCodeInvalidType, fmt.Sprintf("expected %s, got %s", want, tree.Kind(got)))
}
