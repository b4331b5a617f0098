package document

import (
	"errors"
	"fmt"

	"github.com/zeusync/enginekit/pkg/encoding"
)

var (
	ErrEmptyPath        = errors.New("empty path")
	ErrNotArray         = errors.New("node is not an array")
	ErrIndexOutOfRange  = errors.New("array index out of range")
	ErrInvalidIndex     = errors.New("invalid array index")
	ErrUnsupportedValue = errors.New("unsupported value type")
	ErrNonFinite        = errors.New("non-finite float")
	ErrTrailingData     = errors.New("trailing data after document")
	ErrFileNotFound     = errors.New("file not found")
)

// ParseError locates a decoding failure inside a serialized buffer.
// Line and Column are 1-based and zero when the decoder cannot tell.
// Offset is -1 when unknown.
type ParseError struct {
	Format encoding.Format
	Path   string
	Offset int64
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	where := e.Format.String()
	if e.Path != "" {
		where = e.Path
	}
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d, column %d: %v", where, e.Line, e.Column, e.Err)
	case e.Offset >= 0:
		return fmt.Sprintf("%s: offset %d: %v", where, e.Offset, e.Err)
	default:
		return fmt.Sprintf("%s: %v", where, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(format encoding.Format, data []byte, offset int64, err error) *ParseError {
	pe := &ParseError{Format: format, Offset: offset, Err: err}
	if offset >= 0 && data != nil {
		pe.Line, pe.Column = lineColumn(data, offset)
	}
	return pe
}

func lineColumn(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, c := range data[:offset] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
