package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vgmdb/framework/tree"
)

// Format identifies a document syntax.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatHCL  Format = "hcl"
)

// InferFormat returns the format implied by the file extension, or "" when
// the extension is not recognized.
func InferFormat(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json", ".jsonc":
		return FormatJSON
	case ".toml":
		return FormatTOML
	case ".hcl":
		return FormatHCL
	default:
		return ""
	}
}

// Parse parses data in the given format. The returned tree is never nil on
// success; an empty document yields an empty tree. Malformed input fails
// with *ParseError.
func Parse(data []byte, format Format) (*tree.Tree, error) {
	return parse(data, format, "")
}

// ParseFile reads path and parses it in the format implied by its extension.
// Read failures are returned as-is so callers can test them with os.IsNotExist.
func ParseFile(path string) (*tree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(path, data)
}

// ParseBytes parses data that was read from path. The path selects the
// format and is recorded in any *ParseError.
func ParseBytes(path string, data []byte) (*tree.Tree, error) {
	format := InferFormat(path)
	if format == "" {
		return nil, &ParseError{
			File: path,
			Msg:  fmt.Sprintf("unsupported file format %q (supported: yaml, json, toml, hcl)", filepath.Ext(path)),
		}
	}
	return parse(data, format, path)
}

func parse(data []byte, format Format, file string) (*tree.Tree, error) {
	var (
		t   *tree.Tree
		err *ParseError
	)
	switch format {
	case FormatYAML:
		t, err = parseYAML(data)
	case FormatJSON:
		t, err = parseJSON(data)
	case FormatTOML:
		t, err = parseTOML(data)
	case FormatHCL:
		t, err = parseHCL(data, file)
	default:
		err = &ParseError{Msg: fmt.Sprintf("unsupported file format %q (supported: yaml, json, toml, hcl)", format)}
	}
	if err != nil {
		err.File = file
		return nil, err
	}
	return t, nil
}
