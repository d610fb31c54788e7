package framework

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLocator_Locate(t *testing.T) {
	app := writeFiles(t, t.TempDir(), map[string]string{"config.yml": "a: 1\n"})
	bundle := writeFiles(t, t.TempDir(), map[string]string{
		"config.yml":  "a: 2\n",
		"routing.yml": "r: 1\n",
	})
	l := NewFileLocator(app, bundle)

	path, err := l.Locate("config.yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(app, "config.yml"), path, "first directory wins")

	path, err = l.Locate("routing.yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(bundle, "routing.yml"), path)

	abs := filepath.Join(bundle, "config.yml")
	path, err = l.Locate(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, path, "absolute names are used as they are")
}

func TestFileLocator_NotFound(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(a, "config.yml"), 0755))

	_, err := NewFileLocator(a, b, a).Locate("config.yml")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "config.yml", nf.Name)
	assert.Equal(t, []string{filepath.Join(a, "config.yml"), filepath.Join(b, "config.yml")}, nf.Paths,
		"directories are not files and each path is probed once")
}

func TestFileLocator_LocateFrom(t *testing.T) {
	root := writeFiles(t, t.TempDir(), map[string]string{
		"shared.yml":          "root: true\n",
		"packages/shared.yml": "local: true\n",
	})
	l := NewFileLocator(root)

	path, err := l.LocateFrom("shared.yml", filepath.Join(root, "packages"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "packages", "shared.yml"), path)

	path, err = l.LocateFrom("shared.yml", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "shared.yml"), path)
}

func TestFileLocator_DirsIsACopy(t *testing.T) {
	dirs := []string{"/a", "/b"}
	l := NewFileLocator(dirs...)
	dirs[0] = "/changed"

	got := l.Dirs()
	assert.Equal(t, []string{"/a", "/b"}, got)
	got[1] = "/changed"
	assert.Equal(t, []string{"/a", "/b"}, l.Dirs())
}
