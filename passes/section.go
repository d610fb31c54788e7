package passes

import (
	"strings"

	framework "github.com/vgmdb/framework"
	"github.com/vgmdb/framework/internal/normalize"
	"github.com/vgmdb/framework/tree"
)

// Default returns the built-in passes in the order the application
// registers them.
func Default() []framework.Pass {
	return []framework.Pass{&DatabasePass{}, &QueuePass{}, &RoutingPass{}}
}

// ByName returns the built-in pass with the given name.
func ByName(name string) (framework.Pass, bool) {
	for _, p := range Default() {
		if framework.PassName(p) == name {
			return p, true
		}
	}
	return nil, false
}

// copyExtras copies the keys of src that are not in known to dst, in order.
func copyExtras(dst, src *tree.Tree, known ...string) {
	for _, key := range src.Keys() {
		if contains(known, key) {
			continue
		}
		v, _ := src.Get(key)
		dst.Set(key, tree.CloneValue(v))
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func path(prefix string, segments ...string) string {
	return normalize.ApplyPrefix(prefix, strings.Join(segments, "."))
}

// setIf sets key only when v is non-empty.
func setIf(t *tree.Tree, key, v string) {
	if v != "" {
		t.Set(key, v)
	}
}

func indexPath(p string, i int) string {
	return normalize.IndexPath(p, i)
}
