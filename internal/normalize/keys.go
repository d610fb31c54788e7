package normalize

import (
	"strconv"
	"strings"
)

// ToLowerDotPath normalizes an environment-style key to a lowercase dot-separated path.
// Double underscores (__) are treated as level separators and converted to dots.
// Single underscores within a level are preserved.
// Examples:
//   - "FOO__BAR" → "foo.bar"
//   - "DB_MAX_CONNECTIONS" → "db_max_connections"
//   - "DATABASE__HOST" → "database.host"
func ToLowerDotPath(key string) string {
	normalized := strings.ReplaceAll(key, "__", ".")
	return strings.ToLower(normalized)
}

// ApplyPrefix combines a prefix with a key to create a nested configuration path.
// If prefix is empty, returns the key unchanged.
// Examples:
//   - ApplyPrefix("database", "host") → "database.host"
//   - ApplyPrefix("", "host") → "host"
func ApplyPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

// SplitPath splits a dot-separated path into its segments.
// An empty path has no segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// IndexPath appends a sequence index to a path: IndexPath("imports", 2) → "imports[2]".
func IndexPath(path string, index int) string {
	return path + "[" + strconv.Itoa(index) + "]"
}

// LastSegment returns the final segment of a dot-separated path, ignoring
// a trailing sequence index.
func LastSegment(path string) string {
	if strings.HasSuffix(path, "]") {
		if i := strings.LastIndexByte(path, '['); i >= 0 {
			path = path[:i]
		}
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}
