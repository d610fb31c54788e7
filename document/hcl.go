package document

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vgmdb/framework/tree"
	"github.com/zclconf/go-cty/cty"
)

// parseHCL accepts attribute-only HCL files:
//
//	name     = "vgmdb"
//	database = { driver = "mysql", port = 3306 }
//
// Blocks are rejected. Top-level attributes keep source order; object keys
// are sorted because cty objects are unordered. Expressions are evaluated
// without variables or functions.
func parseHCL(data []byte, filename string) (*tree.Tree, *ParseError) {
	if filename == "" {
		filename = "<input>"
	}
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, hclError(diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, hclError(diags)
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	t := tree.New()
	for _, attr := range ordered {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, hclError(diags)
		}
		v, err := fromCty(val)
		if err != nil {
			return nil, &ParseError{
				Line:   attr.Range.Start.Line,
				Column: attr.Range.Start.Column,
				Msg:    fmt.Sprintf("attribute %q: %v", attr.Name, err),
			}
		}
		t.Set(attr.Name, v)
	}
	return t, nil
}

func hclError(diags hcl.Diagnostics) *ParseError {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		pe := &ParseError{Msg: d.Summary, Err: diags}
		if d.Detail != "" {
			pe.Msg = d.Summary + "; " + d.Detail
		}
		if d.Subject != nil {
			pe.Line = d.Subject.Start.Line
			pe.Column = d.Subject.Start.Column
		}
		return pe
	}
	return &ParseError{Msg: diags.Error(), Err: diags}
}

func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	v, _ = v.Unmark()

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsObjectType() || ty.IsMapType():
		t := tree.New()
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			converted, err := fromCty(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key.AsString(), err)
			}
			t.Set(key.AsString(), converted)
		}
		return t, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		items := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			converted, err := fromCty(elem)
			if err != nil {
				return nil, err
			}
			items = append(items, converted)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
