package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vgmdb/framework/tree"
)

func TestParse_YAML(t *testing.T) {
	yamlContent := `
name: vgmdb
database:
  host: localhost
  port: 5432
  ratio: 0.5
  enabled: true
  password: ~
  credentials:
    user: admin
features:
  - feature1
  - feature2
`
	doc, err := Parse([]byte(yamlContent), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "database", "features"}, doc.Keys())

	host, _ := doc.Lookup("database.host")
	port, _ := doc.Lookup("database.port")
	ratio, _ := doc.Lookup("database.ratio")
	enabled, _ := doc.Lookup("database.enabled")
	password, ok := doc.Lookup("database.password")
	user, _ := doc.Lookup("database.credentials.user")

	assert.Equal(t, "localhost", host)
	assert.Equal(t, int64(5432), port)
	assert.Equal(t, 0.5, ratio)
	assert.Equal(t, true, enabled)
	assert.True(t, ok)
	assert.Nil(t, password)
	assert.Equal(t, "admin", user)

	features, _ := doc.Get("features")
	assert.Equal(t, []any{"feature1", "feature2"}, features)
}

func TestParse_YAMLKeepsKeyOrder(t *testing.T) {
	doc, err := Parse([]byte("zeta: 1\nalpha: 2\nmid: 3\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, doc.Keys())
}

func TestParse_YAMLImplicitTyping(t *testing.T) {
	yamlContent := `
quoted_int: "42"
hex: 0x1F
float_int: 1.0
timestamp: 2001-12-14
null_word: null
bool_word: false
version: 1.2.3
`
	doc, err := Parse([]byte(yamlContent), FormatYAML)
	require.NoError(t, err)

	tests := []struct {
		key  string
		want any
	}{
		{"quoted_int", "42"},
		{"hex", int64(31)},
		{"float_int", float64(1)},
		{"timestamp", "2001-12-14"},
		{"null_word", nil},
		{"bool_word", false},
		{"version", "1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := doc.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestParse_YAMLDuplicateKeyLastWins(t *testing.T) {
	doc, err := Parse([]byte("a: 1\nb: 2\na: 3\n"), FormatYAML)
	require.NoError(t, err)

	v, _ := doc.Get("a")
	assert.Equal(t, int64(3), v)
	assert.Equal(t, []string{"a", "b"}, doc.Keys())
}

func TestParse_YAMLAnchorsAndMergeKeys(t *testing.T) {
	yamlContent := `
defaults: &defaults
  driver: mysql
  port: 3306
primary:
  <<: *defaults
  host: db1
replica:
  <<: *defaults
  port: 3307
hosts: &hosts [a, b]
copy: *hosts
`
	doc, err := Parse([]byte(yamlContent), FormatYAML)
	require.NoError(t, err)

	driver, _ := doc.Lookup("primary.driver")
	host, _ := doc.Lookup("primary.host")
	replicaPort, _ := doc.Lookup("replica.port")
	copied, _ := doc.Get("copy")

	assert.Equal(t, "mysql", driver)
	assert.Equal(t, "db1", host)
	assert.Equal(t, int64(3307), replicaPort, "explicit keys override merged ones")
	assert.Equal(t, []any{"a", "b"}, copied)
}

func TestParse_YAMLEmptyDocument(t *testing.T) {
	for _, content := range []string{"", "# only a comment\n", "---\n", "~\n"} {
		doc, err := Parse([]byte(content), FormatYAML)
		require.NoError(t, err, "content %q", content)
		assert.Equal(t, 0, doc.Len())
	}
}

func TestParse_YAMLRootMustBeMapping(t *testing.T) {
	_, err := Parse([]byte("- a\n- b\n"), FormatYAML)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Line)
	assert.Contains(t, parseErr.Msg, "document root must be a mapping")
}

func TestParse_YAMLSyntaxErrorHasLine(t *testing.T) {
	invalidContent := "key: value\nother: [unclosed\nthird: x\n"
	_, err := Parse([]byte(invalidContent), FormatYAML)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Greater(t, parseErr.Line, 0)
	assert.Contains(t, err.Error(), "parse <input>:")
}

func TestParse_YAMLNonScalarKey(t *testing.T) {
	_, err := Parse([]byte("? [a, b]\n: value\n"), FormatYAML)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "mapping key must be a scalar", parseErr.Msg)
	assert.Equal(t, 1, parseErr.Line)
}

func TestParse_JSON(t *testing.T) {
	jsonContent := `{
  "zeta": {"host": "db.example.com", "port": 3306},
  "alpha": [1, 2.5, "x", null, true],
  "big": 1e3
}`
	doc, err := Parse([]byte(jsonContent), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "big"}, doc.Keys(), "JSON object order is kept")
	port, _ := doc.Lookup("zeta.port")
	assert.Equal(t, int64(3306), port)
	alpha, _ := doc.Get("alpha")
	assert.Equal(t, []any{int64(1), 2.5, "x", nil, true}, alpha)
	big, _ := doc.Get("big")
	assert.Equal(t, float64(1000), big)
}

func TestParse_JSONC(t *testing.T) {
	jsoncContent := `{
  // connection settings
  "host": "localhost", /* inline */
  "ports": [80, 443,],
}`
	doc, err := Parse([]byte(jsoncContent), FormatJSON)
	require.NoError(t, err)

	host, _ := doc.Get("host")
	ports, _ := doc.Get("ports")
	assert.Equal(t, "localhost", host)
	assert.Equal(t, []any{int64(80), int64(443)}, ports)
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{\n  \"key\": \"value\"\n"), FormatJSON)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Greater(t, parseErr.Line, 0)
}

func TestParse_JSONRootMustBeObject(t *testing.T) {
	_, err := Parse([]byte(`[1, 2]`), FormatJSON)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Msg, "document root must be an object")
}

func TestParse_TOML(t *testing.T) {
	tomlContent := `
name = "vgmdb"

[database]
host = "localhost"
port = 5432

[database.pool]
max_connections = 100

[[servers]]
addr = "a"
`
	doc, err := Parse([]byte(tomlContent), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, []string{"database", "name", "servers"}, doc.Keys(), "TOML keys are sorted")
	port, _ := doc.Lookup("database.port")
	maxConns, _ := doc.Lookup("database.pool.max_connections")
	assert.Equal(t, int64(5432), port)
	assert.Equal(t, int64(100), maxConns)

	servers, _ := doc.Get("servers")
	list, ok := servers.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	first, ok := list[0].(*tree.Tree)
	require.True(t, ok)
	addr, _ := first.Get("addr")
	assert.Equal(t, "a", addr)
}

func TestParse_InvalidTOML(t *testing.T) {
	_, err := Parse([]byte("[section\nkey = \"value\""), FormatTOML)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Line)
}

func TestParse_HCL(t *testing.T) {
	hclContent := `
name     = "vgmdb"
debug    = false
database = { driver = "mysql", port = 3306, ratio = 0.25 }
hosts    = ["a", "b"]
`
	doc, err := Parse([]byte(hclContent), FormatHCL)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "debug", "database", "hosts"}, doc.Keys())
	port, _ := doc.Lookup("database.port")
	ratio, _ := doc.Lookup("database.ratio")
	hosts, _ := doc.Get("hosts")
	assert.Equal(t, int64(3306), port)
	assert.Equal(t, 0.25, ratio)
	assert.Equal(t, []any{"a", "b"}, hosts)
}

func TestParse_HCLRejectsBlocks(t *testing.T) {
	_, err := Parse([]byte("database {\n  host = \"x\"\n}\n"), FormatHCL)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Line)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("x"), Format("ini"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestInferFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"config.yaml", FormatYAML},
		{"config.dist.yml", FormatYAML},
		{"CONFIG.YML", FormatYAML},
		{"config.json", FormatJSON},
		{"config.jsonc", FormatJSON},
		{"config.toml", FormatTOML},
		{"config.hcl", FormatHCL},
		{"config.txt", ""},
		{"config", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferFormat(tt.filename))
		})
	}
}

func TestParseFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("key: value\n"), 0644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	v, _ := doc.Get("key")
	assert.Equal(t, "value", v)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestParseFile_ErrorNamesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "broken.yml")
	require.NoError(t, os.WriteFile(path, []byte("a: [\n"), 0644))

	_, err := ParseFile(path)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, path, parseErr.File)
	assert.Contains(t, err.Error(), path)
}

func TestParseBytes_UnsupportedExtension(t *testing.T) {
	_, err := ParseBytes("config.txt", []byte("some content"))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Msg, "unsupported file format")
}

func TestParseError_Format(t *testing.T) {
	assert.Equal(t, "parse a.yml:3:7: bad", (&ParseError{File: "a.yml", Line: 3, Column: 7, Msg: "bad"}).Error())
	assert.Equal(t, "parse a.yml:3: bad", (&ParseError{File: "a.yml", Line: 3, Msg: "bad"}).Error())
	assert.Equal(t, "parse <input>: bad", (&ParseError{Msg: "bad"}).Error())
}

func TestSerialize_RoundTrip(t *testing.T) {
	sources := []string{
		"name: vgmdb\nport: 8080\nratio: 0.5\nwhole: 2.0\nenabled: false\nnothing: ~\n",
		"quoted: { yes: \"yes\", num: \"123\", null_word: \"null\", empty: \"\", colon: \"a: b\" }\n",
		"list: [1, two, [3], { four: 4 }]\nempty_list: []\nempty_map: {}\n",
		"multiline: |\n  line one\n  line two\nkey with spaces: v\n\"%placeholder%\": \"%value%\"\n",
		"\"<<\": { x: 1 }\nnested: { \"<<\": plain, y: 2 }\n",
	}

	for _, src := range sources {
		first, err := Parse([]byte(src), FormatYAML)
		require.NoError(t, err)

		out, err := Serialize(first)
		require.NoError(t, err)

		second, err := Parse(out, FormatYAML)
		require.NoError(t, err, "re-parse of:\n%s", out)
		assert.True(t, tree.Equal(first, second), "round trip changed the tree:\n%s\n%s\nyaml:\n%s", first, second, out)
	}
}

func TestSerialize_LiteralMergeKey(t *testing.T) {
	first, err := Parse([]byte("\"<<\": { x: 1 }\n"), FormatYAML)
	require.NoError(t, err)
	require.True(t, first.Has("<<"))

	out, err := Serialize(first)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"<<":`)

	second, err := Parse(out, FormatYAML)
	require.NoError(t, err)
	assert.True(t, second.Has("<<"), "quoted key must not become a merge:\n%s", out)
	assert.False(t, second.Has("x"))
}

func TestSerialize_Nil(t *testing.T) {
	out, err := Serialize(nil)
	require.NoError(t, err)

	parsed, err := Parse(out, FormatYAML)
	require.NoError(t, err)
	assert.Zero(t, parsed.Len())
}

func TestParse_ExtensionIsNotAFormat(t *testing.T) {
	_, err := Parse([]byte("a: 1\n"), Format("yml"))
	assert.Error(t, err, "extensions go through InferFormat")

	tr, err := Parse([]byte("a: 1\n"), InferFormat("config.yml"))
	require.NoError(t, err)
	assert.True(t, tr.Has("a"))
}
