package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/vgmdb/framework/tree"
)

// parseJSON accepts JSON and JSONC (comments, trailing commas). jsonc.ToJSON
// blanks comments out in place, so byte offsets still map onto the source.
func parseJSON(data []byte) (*tree.Tree, *ParseError) {
	stripped := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(stripped)) == 0 {
		return tree.New(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.UseNumber()

	p := &jsonParser{dec: dec, data: stripped}
	root, err := p.value()
	if err != nil {
		return nil, err
	}
	if _, tokErr := dec.Token(); tokErr != io.EOF {
		return nil, p.errorAt(dec.InputOffset(), "unexpected data after top-level value")
	}

	switch v := root.(type) {
	case nil:
		return tree.New(), nil
	case *tree.Tree:
		return v, nil
	default:
		return nil, &ParseError{Line: 1, Column: 1, Msg: fmt.Sprintf("document root must be an object, got %s", tree.Kind(v))}
	}
}

// jsonParser walks the token stream so that object keys keep their order;
// decoding into map[string]any would lose it.
type jsonParser struct {
	dec  *json.Decoder
	data []byte
}

func (p *jsonParser) value() (any, *ParseError) {
	offset := p.dec.InputOffset()
	tok, err := p.dec.Token()
	if err != nil {
		return nil, p.wrap(err, offset)
	}
	return p.fromToken(tok, offset)
}

func (p *jsonParser) fromToken(tok json.Token, offset int64) (any, *ParseError) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.object()
		case '[':
			return p.array()
		default:
			return nil, p.errorAt(offset, fmt.Sprintf("unexpected %q", string(t)))
		}
	case json.Number:
		return jsonNumber(t), nil
	case string, bool, nil:
		return t, nil
	default:
		return nil, p.errorAt(offset, fmt.Sprintf("unexpected token %v", tok))
	}
}

func (p *jsonParser) object() (*tree.Tree, *ParseError) {
	t := tree.New()
	for p.dec.More() {
		offset := p.dec.InputOffset()
		tok, err := p.dec.Token()
		if err != nil {
			return nil, p.wrap(err, offset)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, p.errorAt(offset, "object key must be a string")
		}
		v, perr := p.value()
		if perr != nil {
			return nil, perr
		}
		t.Set(key, v)
	}
	if err := p.closing(); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *jsonParser) array() ([]any, *ParseError) {
	items := make([]any, 0)
	for p.dec.More() {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := p.closing(); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *jsonParser) closing() *ParseError {
	offset := p.dec.InputOffset()
	if _, err := p.dec.Token(); err != nil {
		return p.wrap(err, offset)
	}
	return nil
}

func (p *jsonParser) wrap(err error, offset int64) *ParseError {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		offset = syntaxErr.Offset
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
		offset = int64(len(p.data))
	}
	line, column := positionOf(p.data, offset)
	return &ParseError{Line: line, Column: column, Msg: err.Error(), Err: err}
}

func (p *jsonParser) errorAt(offset int64, msg string) *ParseError {
	line, column := positionOf(p.data, offset)
	return &ParseError{Line: line, Column: column, Msg: msg}
}

func jsonNumber(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return f
}
