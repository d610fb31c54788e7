package framework

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestConfigValidationError_Error_SingleError(t *testing.T) {
	ve := &ConfigValidationError{
		KeyErrors: []KeyError{
			{
				KeyPath: "database.host",
				Code:    ErrCodeRequired,
				Message: "value is required",
			},
		},
	}

	got := ve.Error()
	want := "config validation failed: 1 error\n  - database.host: required (value is required)"

	if got != want {
		t.Errorf("ConfigValidationError.Error() with single error\ngot:  %q\nwant: %q", got, want)
	}
}

func TestConfigValidationError_Error_MultipleErrors(t *testing.T) {
	ve := &ConfigValidationError{
		KeyErrors: []KeyError{
			{KeyPath: "database.connections.main.port", Code: ErrCodeMax, Message: "value must be at most 65535, got 70000"},
			{KeyPath: "routing.routes[1].name", Code: ErrCodeRequired, Message: "value is required"},
		},
	}

	got := ve.Error()
	want := "config validation failed: 2 errors\n" +
		"  - database.connections.main.port: max (value must be at most 65535, got 70000)\n" +
		"  - routing.routes[1].name: required (value is required)"

	if got != want {
		t.Errorf("ConfigValidationError.Error() with multiple errors\ngot:  %q\nwant: %q", got, want)
	}
}

func TestConfigValidationError_Error_Empty(t *testing.T) {
	ve := &ConfigValidationError{}
	if got := ve.Error(); got != "config validation failed: no errors" {
		t.Errorf("got %q", got)
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &NotFoundError{Name: "config.yml", Paths: []string{"/a/config.yml", "/b/config.yml"}}
	want := `config file "config.yml" not found (searched: /a/config.yml, /b/config.yml)`
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	bare := &NotFoundError{Name: "config.yml"}
	if got := bare.Error(); got != `config file "config.yml" not found` {
		t.Errorf("got %q", got)
	}
}

func TestUnresolvedParameterError_Error(t *testing.T) {
	err := &UnresolvedParameterError{Name: "app.env", KeyPath: "imports[0].resource"}
	if got := err.Error(); got != `unresolved parameter "app.env" at imports[0].resource` {
		t.Errorf("got %q", got)
	}
}

func TestCacheCorruptionError_Unwrap(t *testing.T) {
	cause := errors.New("checksum mismatch")
	err := &CacheCorruptionError{Path: "/tmp/x.cache", Reason: "decode", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "/tmp/x.cache") {
		t.Errorf("error should name the artifact: %q", err.Error())
	}
}

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("boot vgmdb: %w", fmt.Errorf("install %q: %w", "debug", &DuplicateBindingError{Key: "debug"}))

	var dup *DuplicateBindingError
	if !errors.As(wrapped, &dup) {
		t.Fatal("expected errors.As to find DuplicateBindingError")
	}
	if dup.Key != "debug" {
		t.Errorf("Key = %q, want debug", dup.Key)
	}

	var perr *ParseError
	parse := fmt.Errorf("load: %w", &ParseError{File: "a.yml", Line: 3, Msg: "bad", Err: os.ErrInvalid})
	if !errors.As(parse, &perr) || perr.Line != 3 {
		t.Errorf("expected ParseError at line 3, got %v", parse)
	}
}
