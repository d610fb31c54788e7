package document

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vgmdb/framework/tree"
	"gopkg.in/yaml.v3"
)

func parseYAML(data []byte) (*tree.Tree, *ParseError) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, yamlError(err)
	}

	// Empty input leaves the node zeroed; a comment-only document has no content.
	if doc.Kind == 0 || (doc.Kind == yaml.DocumentNode && len(doc.Content) == 0) {
		return tree.New(), nil
	}

	c := &yamlConverter{expanding: make(map[*yaml.Node]bool)}
	root, err := c.value(&doc)
	if err != nil {
		return nil, err
	}

	switch v := root.(type) {
	case nil:
		return tree.New(), nil
	case *tree.Tree:
		return v, nil
	default:
		n := rootNode(&doc)
		return nil, &ParseError{
			Line:   n.Line,
			Column: n.Column,
			Msg:    fmt.Sprintf("document root must be a mapping, got %s", tree.Kind(v)),
		}
	}
}

func rootNode(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

// yamlConverter turns a yaml.v3 node graph into tree values. expanding holds
// the alias targets currently being expanded so self-referencing anchors fail
// instead of recursing forever.
type yamlConverter struct {
	expanding map[*yaml.Node]bool
}

func (c *yamlConverter) value(n *yaml.Node) (any, *ParseError) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return c.value(n.Content[0])
	case yaml.AliasNode:
		if c.expanding[n.Alias] {
			return nil, nodeError(n, fmt.Sprintf("anchor %q refers to itself", n.Value))
		}
		c.expanding[n.Alias] = true
		defer delete(c.expanding, n.Alias)
		return c.value(n.Alias)
	case yaml.ScalarNode:
		return scalar(n)
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := c.value(item)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.MappingNode:
		return c.mapping(n)
	default:
		return nil, nodeError(n, fmt.Sprintf("unsupported YAML node kind %d", n.Kind))
	}
}

func (c *yamlConverter) mapping(n *yaml.Node) (*tree.Tree, *ParseError) {
	var merged []*tree.Tree
	own := tree.New()

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valueNode := n.Content[i], n.Content[i+1]
		if keyNode.Kind == yaml.AliasNode {
			keyNode = keyNode.Alias
		}
		if keyNode.Kind != yaml.ScalarNode {
			return nil, nodeError(keyNode, "mapping key must be a scalar")
		}

		if keyNode.ShortTag() == "!!merge" {
			sources, err := c.mergeSources(valueNode)
			if err != nil {
				return nil, err
			}
			merged = append(merged, sources...)
			continue
		}

		v, err := c.value(valueNode)
		if err != nil {
			return nil, err
		}
		// Duplicate keys: the last occurrence wins.
		own.Set(keyNode.Value, v)
	}

	if len(merged) == 0 {
		return own, nil
	}

	// Merge keys are shallow and the earliest source wins; explicit keys
	// override all of them.
	out := tree.New()
	for i := len(merged) - 1; i >= 0; i-- {
		for _, key := range merged[i].Keys() {
			v, _ := merged[i].Get(key)
			out.Set(key, tree.CloneValue(v))
		}
	}
	for _, key := range own.Keys() {
		v, _ := own.Get(key)
		out.Set(key, v)
	}
	return out, nil
}

func (c *yamlConverter) mergeSources(n *yaml.Node) ([]*tree.Tree, *ParseError) {
	target := n
	if target.Kind == yaml.AliasNode {
		target = target.Alias
	}

	var nodes []*yaml.Node
	if target.Kind == yaml.SequenceNode {
		nodes = target.Content
	} else {
		nodes = []*yaml.Node{n}
	}

	out := make([]*tree.Tree, 0, len(nodes))
	for _, node := range nodes {
		v, err := c.value(node)
		if err != nil {
			return nil, err
		}
		t, ok := v.(*tree.Tree)
		if !ok {
			return nil, nodeError(node, "merge key value must be a mapping or a sequence of mappings")
		}
		out = append(out, t)
	}
	return out, nil
}

func scalar(n *yaml.Node) (any, *ParseError) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, nodeError(n, err.Error())
		}
		return b, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return i, nil
		}
		// Out of int64 range.
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, nodeError(n, fmt.Sprintf("invalid integer %q", n.Value))
		}
		return f, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, nodeError(n, fmt.Sprintf("invalid float %q", n.Value))
		}
		return f, nil
	default:
		// !!str, !!timestamp, !!binary and custom tags keep their source text.
		return n.Value, nil
	}
}

func nodeError(n *yaml.Node, msg string) *ParseError {
	return &ParseError{Line: n.Line, Column: n.Column, Msg: msg}
}

// Serialize renders a tree as a YAML document. Parsing the output yields a
// tree equal to the input.
func Serialize(t *tree.Tree) ([]byte, error) {
	if t == nil {
		t = tree.New()
	}
	node, err := encodeValue(t)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeValue(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(val)}, nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(val, 10)}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: yamlFloat(val)}, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val}, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			child, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	case *tree.Tree:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range val.Keys() {
			child, _ := val.Get(key)
			valueNode, err := encodeValue(child)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			n.Content = append(n.Content, mappingKey(key), valueNode)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot serialize value of type %T", v)
	}
}

// mappingKey renders a mapping key. A plain "<<" would come back as a merge
// key, so it is quoted.
func mappingKey(key string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	if key == "<<" {
		n.Style = yaml.DoubleQuotedStyle
	}
	return n
}

// yamlFloat formats f so that it resolves back to a float: yaml.v3 would
// render 1.0 as "1", which re-parses as an integer.
func yamlFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
