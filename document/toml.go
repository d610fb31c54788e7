package document

import (
	"errors"

	"github.com/pelletier/go-toml/v2"
	"github.com/vgmdb/framework/tree"
)

// parseTOML decodes a TOML document. Tables are unordered in TOML, so keys
// come out sorted; local dates and times keep their TOML text form.
func parseTOML(data []byte) (*tree.Tree, *ParseError) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, column := decodeErr.Position()
			return nil, &ParseError{Line: row, Column: column, Msg: decodeErr.Error(), Err: err}
		}
		return nil, &ParseError{Msg: err.Error(), Err: err}
	}
	if raw == nil {
		return tree.New(), nil
	}
	return tree.FromMap(raw), nil
}
