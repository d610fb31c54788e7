package framework

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vgmdb/framework/document"
)

// Error codes for configuration validation failures.
const (
	ErrCodeRequired    = "required"
	ErrCodeMin         = "min"
	ErrCodeMax         = "max"
	ErrCodeOneOf       = "oneof"
	ErrCodeInvalidType = "invalid_type"
	ErrCodeReference   = "reference"
)

// ErrCircularImport is returned when a document imports itself, directly or
// through other imports.
var ErrCircularImport = errors.New("framework: circular import")

// ParseError reports a malformed configuration document, with position.
type ParseError = document.ParseError

// NotFoundError reports a configuration file that exists in none of the
// searched locations.
type NotFoundError struct {
	Name  string   // Requested file name
	Paths []string // Every path that was probed
}

func (e *NotFoundError) Error() string {
	if len(e.Paths) == 0 {
		return fmt.Sprintf("config file %q not found", e.Name)
	}
	return fmt.Sprintf("config file %q not found (searched: %s)", e.Name, strings.Join(e.Paths, ", "))
}

// UnresolvedParameterError reports a %placeholder% naming an unknown parameter.
type UnresolvedParameterError struct {
	Name    string // Parameter name without the surrounding %
	KeyPath string // Where the placeholder was found
}

func (e *UnresolvedParameterError) Error() string {
	if e.KeyPath == "" {
		return fmt.Sprintf("unresolved parameter %q", e.Name)
	}
	return fmt.Sprintf("unresolved parameter %q at %s", e.Name, e.KeyPath)
}

// ConfigValidationError aggregates key-level failures found by a pass or by
// the loader while checking a section's shape.
type ConfigValidationError struct {
	KeyErrors []KeyError
}

// Error formats validation errors as a multi-line message.
func (e *ConfigValidationError) Error() string {
	if len(e.KeyErrors) == 0 {
		return "config validation failed: no errors"
	}

	var b strings.Builder
	if len(e.KeyErrors) == 1 {
		b.WriteString("config validation failed: 1 error\n")
	} else {
		fmt.Fprintf(&b, "config validation failed: %d errors\n", len(e.KeyErrors))
	}

	for _, ke := range e.KeyErrors {
		fmt.Fprintf(&b, "  - %s: %s (%s)\n", ke.KeyPath, ke.Code, ke.Message)
	}

	return strings.TrimRight(b.String(), "\n")
}

// KeyError represents a single invalid configuration key.
type KeyError struct {
	KeyPath string // Dot notation (e.g., "database.connections.default.port")
	Code    string // Error code (e.g., "required", "oneof")
	Message string // Human-readable description
}

// CacheCorruptionError reports an unreadable cache artifact. The cached
// loader treats it as a miss; it never reaches callers of Load.
type CacheCorruptionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CacheCorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt cache artifact %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt cache artifact %s: %s", e.Path, e.Reason)
}

func (e *CacheCorruptionError) Unwrap() error {
	return e.Err
}

// DuplicateBindingError is returned by a container that refuses to redefine
// a protected key.
type DuplicateBindingError struct {
	Key string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("binding %q is protected and cannot be redefined", e.Key)
}
