package document

import (
	"fmt"
	"regexp"
	"strconv"
)

// ParseError reports a malformed document. Line and Column are 1-based and
// zero when the underlying parser gave no position.
type ParseError struct {
	File   string
	Line   int
	Column int
	Msg    string
	Err    error
}

// Error formats the error as "parse <file>:<line>:<column>: <msg>".
func (e *ParseError) Error() string {
	file := e.File
	if file == "" {
		file = "<input>"
	}
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("parse %s:%d:%d: %s", file, e.Line, e.Column, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("parse %s:%d: %s", file, e.Line, e.Msg)
	default:
		return fmt.Sprintf("parse %s: %s", file, e.Msg)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var yamlLinePattern = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

// yamlError converts a yaml.v3 syntax error. yaml.v3 reports the line inside
// the message text only.
func yamlError(err error) *ParseError {
	msg := err.Error()
	if m := yamlLinePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return &ParseError{Line: line, Msg: m[2], Err: err}
	}
	return &ParseError{Msg: msg, Err: err}
}

// positionOf converts a byte offset into a 1-based line and column.
func positionOf(data []byte, offset int64) (line, column int) {
	line, column = 1, 1
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	for i := int64(0); i < offset; i++ {
		if data[i] == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return line, column
}
