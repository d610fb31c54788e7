package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "app", "Resources", "config")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.dist.yml"), []byte(`
site:
  title: VGMdb
  env: "%app.env%"
mailer:
  password: hunter2
`), 0644))
	return base
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_DumpText(t *testing.T) {
	base := setupApp(t)

	out, err := runCLI(t, "--base-dir", base, "--env", "dev", "--no-cache", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "site.title: VGMdb\n")
	assert.Contains(t, out, "site.env: dev\n")
	assert.Contains(t, out, "mailer.password: ***redacted***\n")
	assert.NoDirExists(t, filepath.Join(base, "app", "cache", "configs"))
}

func TestRun_DumpJSON(t *testing.T) {
	base := setupApp(t)

	out, err := runCLI(t, "--base-dir", base, "--format", "json", "--color", "never", "dump")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "VGMdb", decoded["site"].(map[string]any)["title"])
}

func TestRun_CacheWarmupAndClear(t *testing.T) {
	base := setupApp(t)
	pattern := filepath.Join(base, "app", "cache", "configs", "*.cache")

	out, err := runCLI(t, "--base-dir", base, "--env", "test", "cache:warmup")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration cache warmed")
	matches, _ := filepath.Glob(pattern)
	assert.Len(t, matches, 1)

	out, err = runCLI(t, "--base-dir", base, "--env", "test", "cache:clear")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "removed 1 "), out)
	matches, _ = filepath.Glob(pattern)
	assert.Empty(t, matches)
}

func TestRun_Errors(t *testing.T) {
	base := setupApp(t)

	_, err := runCLI(t, "--base-dir", base)
	assert.Error(t, err)

	_, err = runCLI(t, "--base-dir", base, "deploy")
	assert.ErrorContains(t, err, `unknown command "deploy"`)

	_, err = runCLI(t, "--base-dir", base, "--format", "xml", "--no-cache", "dump")
	assert.ErrorContains(t, err, `unknown format "xml"`)
}
