package sourceenv

import (
	"context"
	"testing"
)

func TestEnvSource_Load(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		env  map[string]string
		want map[string]any
		skip []string
	}{
		{
			name: "prefix stripped and lowercased",
			opts: Options{Prefix: "HOST_"},
			env:  map[string]string{"HOST_LOCALE": "en", "HOST_SECRET": "s3cr3t"},
			want: map[string]any{"locale": "en", "secret": "s3cr3t"},
		},
		{
			name: "double underscore nests",
			opts: Options{Prefix: "HOST_"},
			env: map[string]string{
				"HOST_DATABASE__CONNECTIONS__DEFAULT__HOST": "db.internal",
				"HOST_QUEUE__DEFAULT":                       "redis",
			},
			want: map[string]any{
				"database.connections.default.host": "db.internal",
				"queue.default":                     "redis",
			},
		},
		{
			name: "single underscore kept",
			opts: Options{Prefix: "HOST_"},
			env:  map[string]string{"HOST_MAILER__MAX_RETRIES": "3"},
			want: map[string]any{"mailer.max_retries": "3"},
		},
		{
			name: "other prefixes ignored",
			opts: Options{Prefix: "HOST_"},
			env:  map[string]string{"HOST_CDN__URL": "https://cdn.vgmdb.net", "HOSTNAME_X": "box"},
			want: map[string]any{"cdn.url": "https://cdn.vgmdb.net"},
			skip: []string{"name_x", "hostname_x"},
		},
		{
			name: "prefix matches any case",
			opts: Options{Prefix: "host_"},
			env:  map[string]string{"HOST_A": "1", "Host_B": "2"},
			want: map[string]any{"a": "1", "b": "2"},
		},
		{
			name: "case sensitive prefix",
			opts: Options{Prefix: "HOST_", CaseSensitive: true},
			env:  map[string]string{"HOST_A": "1", "host_B": "2"},
			want: map[string]any{"a": "1"},
			skip: []string{"b"},
		},
		{
			name: "empty values kept",
			opts: Options{Prefix: "HOST_"},
			env:  map[string]string{"HOST_BLANK": ""},
			want: map[string]any{"blank": ""},
		},
		{
			name: "no prefix reads everything",
			env:  map[string]string{"VGMDB_TEST_FLAG": "on"},
			want: map[string]any{"vgmdb_test_flag": "on"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := New(tt.opts).Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			for key, want := range tt.want {
				if v, ok := got[key]; !ok || v != want {
					t.Errorf("%s = %v (present %v), want %v", key, v, ok, want)
				}
			}
			for _, key := range tt.skip {
				if _, ok := got[key]; ok {
					t.Errorf("%s should not be loaded", key)
				}
			}
		})
	}
}

func TestEnvSource_Parameters(t *testing.T) {
	t.Setenv("HOST_DB__HOST", "db.internal")
	t.Setenv("HOST_MAILER_DSN", "smtp://localhost")

	source := New(Options{Prefix: "HOST_", Namespace: "env"})
	params, err := source.Parameters(context.Background())
	if err != nil {
		t.Fatalf("Parameters() error = %v", err)
	}

	expected := map[string]any{
		"env.db.host":    "db.internal",
		"env.mailer_dsn": "smtp://localhost",
	}
	for key, want := range expected {
		if got, ok := params[key]; !ok || got != want {
			t.Errorf("params[%q] = %v (present %v), want %v", key, got, ok, want)
		}
	}
	if _, ok := params["db.host"]; ok {
		t.Error("expected keys to be namespaced")
	}
}

func TestEnvSource_Exclude(t *testing.T) {
	t.Setenv("HOST_ENV", "dev")
	t.Setenv("HOST_DB__HOST", "db.internal")

	values, err := New(Options{Prefix: "HOST_", Exclude: []string{"HOST_ENV"}}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := values["env"]; ok {
		t.Error("excluded variable should not be returned")
	}
	if values["db.host"] != "db.internal" {
		t.Errorf("db.host = %v, want db.internal", values["db.host"])
	}
}

func TestEnvSource_PrefixOnlyNameSkipped(t *testing.T) {
	t.Setenv("HOST_", "bare")

	values, err := New(Options{Prefix: "HOST_"}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := values[""]; ok {
		t.Error("a variable named exactly like the prefix should be skipped")
	}
}

func TestEnvSource_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(Options{}).Load(ctx); err != context.Canceled {
		t.Errorf("Load() error = %v, want %v", err, context.Canceled)
	}
}

func TestString(t *testing.T) {
	t.Setenv("HOST_ENV", "")
	if got := String("HOST_ENV", "prod"); got != "prod" {
		t.Errorf("String() = %q, want fallback", got)
	}

	t.Setenv("HOST_ENV", "dev")
	if got := String("HOST_ENV", "prod"); got != "dev" {
		t.Errorf("String() = %q, want dev", got)
	}
}

func TestFlag(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"false", false},
		{"Off", false},
		{"1", true},
		{"true", true},
		{"yes", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("HOST_DEBUG", tt.value)
			if got := Flag("HOST_DEBUG"); got != tt.want {
				t.Errorf("Flag(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
