package passes

import (
	"context"
	"fmt"
	"strings"

	framework "github.com/vgmdb/framework"
	"github.com/vgmdb/framework/tree"
)

const routingSection = "routing"

var httpMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// RoutingPass normalizes routing.routes into a mapping of route name to
// {path, controller, methods}. Routes may be given as a list of mappings
// with a name key or as a mapping keyed by name. Paths get a leading slash;
// methods are upper-cased, de-duplicated and default to [GET].
type RoutingPass struct{}

func (p *RoutingPass) Name() string { return "routing" }

func (p *RoutingPass) Apply(_ context.Context, t *tree.Tree) (*tree.Tree, error) {
	raw, ok := t.Get(routingSection)
	if !ok {
		return t, nil
	}

	var c framework.Checker
	section, ok := c.Mapping(routingSection, raw)
	if !ok {
		return nil, c.Err()
	}

	keyPath := path(routingSection, "routes")
	routes := tree.New()

	switch list := mustGet(section, "routes").(type) {
	case nil:
	case []any:
		for i, item := range list {
			itemPath := indexPath(keyPath, i)
			route, ok := c.Mapping(itemPath, item)
			if !ok {
				continue
			}
			name, ok := c.String(path(itemPath, "name"), mustGet(route, "name"), true)
			if !ok {
				continue
			}
			if routes.Has(name) {
				c.Fail(path(itemPath, "name"), framework.ErrCodeOneOf, fmt.Sprintf("duplicate route %q", name))
				continue
			}
			routes.Set(name, normalizeRoute(&c, itemPath, route))
		}
	case *tree.Tree:
		for _, name := range list.Keys() {
			v, _ := list.Get(name)
			routePath := path(keyPath, name)
			if route, ok := c.Mapping(routePath, v); ok {
				routes.Set(name, normalizeRoute(&c, routePath, route))
			}
		}
	default:
		c.Fail(keyPath, framework.ErrCodeInvalidType, "expected sequence or mapping, got "+tree.Kind(list))
	}

	if err := c.Err(); err != nil {
		return nil, err
	}

	out := tree.New()
	copyExtras(out, section, "routes")
	out.Set("routes", routes)
	t.Set(routingSection, out)
	return t, nil
}

func normalizeRoute(c *framework.Checker, keyPath string, route *tree.Tree) *tree.Tree {
	out := tree.New()

	p, ok := c.String(path(keyPath, "path"), mustGet(route, "path"), true)
	if ok {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		out.Set("path", p)
	}

	if controller, ok := c.String(path(keyPath, "controller"), mustGet(route, "controller"), true); ok {
		out.Set("controller", controller)
	}

	out.Set("methods", normalizeMethods(c, path(keyPath, "methods"), mustGet(route, "methods")))
	copyExtras(out, route, "name", "path", "controller", "methods")
	return out
}

func normalizeMethods(c *framework.Checker, keyPath string, raw any) []any {
	var names []string
	switch v := raw.(type) {
	case nil:
		return []any{"GET"}
	case string:
		// "GET|POST" is accepted as well as a list.
		names = strings.Split(v, "|")
	case []any:
		for i, item := range v {
			if s, ok := c.String(indexPath(keyPath, i), item, true); ok {
				names = append(names, s)
			}
		}
	default:
		c.Fail(keyPath, framework.ErrCodeInvalidType, "expected string or sequence, got "+tree.Kind(raw))
		return nil
	}

	var out []any
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		m := strings.ToUpper(strings.TrimSpace(name))
		if m == "" || seen[m] {
			continue
		}
		if !c.OneOf(keyPath, m, httpMethods...) {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return []any{"GET"}
	}
	return out
}
