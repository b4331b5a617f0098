package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/zeusync/enginekit/pkg/encoding"
	"github.com/zeusync/enginekit/pkg/generic"
)

var bufferPool = generic.NewPool(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) { b.Reset() },
)

// ParseJSON decodes a JSON document keeping object key order. Numbers
// written without a fraction or exponent become integers.
func ParseJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := decodeJSONValue(dec)
	if err != nil {
		return nil, jsonParseError(data, dec, err)
	}
	if _, err = dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = ErrTrailingData
		}
		return nil, jsonParseError(data, dec, err)
	}
	return n, nil
}

func jsonParseError(data []byte, dec *json.Decoder, err error) error {
	offset := dec.InputOffset()
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		offset = syntaxErr.Offset
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return newParseError(encoding.FormatJSON, data, offset, err)
}

func decodeJSONValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (*Node, error) {
	switch v := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return NewBool(v), nil
	case string:
		return NewString(v), nil
	case json.Number:
		return parseJSONNumber(v)
	case json.Delim:
		switch v {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}
				child, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := NewArray()
			for dec.More() {
				child, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Append(child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseJSONNumber(num json.Number) (*Node, error) {
	text := num.String()
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return NewInt(i), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("number %s: %w", text, err)
	}
	return NewFloat(f), nil
}

// DumpJSON encodes n as compact JSON.
func DumpJSON(n *Node) ([]byte, error) {
	return dumpJSON(n, "")
}

// DumpJSONIndent encodes n as JSON with one indent per nesting level.
func DumpJSONIndent(n *Node, indent string) ([]byte, error) {
	return dumpJSON(n, indent)
}

func dumpJSON(n *Node, indent string) ([]byte, error) {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	w := jsonWriter{buf: buf, indent: indent}
	if err := w.write(n, 0); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

type jsonWriter struct {
	buf    *bytes.Buffer
	indent string
}

func (w *jsonWriter) newline(depth int) {
	if w.indent == "" {
		return
	}
	w.buf.WriteByte('\n')
	for range depth {
		w.buf.WriteString(w.indent)
	}
}

func (w *jsonWriter) write(n *Node, depth int) error {
	switch n.Kind() {
	case KindNull:
		w.buf.WriteString("null")
	case KindBool:
		w.buf.WriteString(strconv.FormatBool(n.b))
	case KindInt:
		w.buf.WriteString(strconv.FormatInt(n.i, 10))
	case KindFloat:
		text, err := formatFloat(n.f)
		if err != nil {
			return err
		}
		w.buf.WriteString(text)
	case KindString:
		w.writeString(n.s)
	case KindArray:
		if len(n.values) == 0 {
			w.buf.WriteString("[]")
			return nil
		}
		w.buf.WriteByte('[')
		for i, child := range n.values {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			if err := w.write(child, depth+1); err != nil {
				return err
			}
		}
		w.newline(depth)
		w.buf.WriteByte(']')
	case KindObject:
		if len(n.keys) == 0 {
			w.buf.WriteString("{}")
			return nil
		}
		w.buf.WriteByte('{')
		for i, key := range n.keys {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			w.writeString(key)
			w.buf.WriteByte(':')
			if w.indent != "" {
				w.buf.WriteByte(' ')
			}
			if err := w.write(n.values[i], depth+1); err != nil {
				return err
			}
		}
		w.newline(depth)
		w.buf.WriteByte('}')
	}
	return nil
}

func (w *jsonWriter) writeString(s string) {
	enc := json.NewEncoder(w.buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	w.buf.Truncate(w.buf.Len() - 1)
}

// formatFloat renders f so that it always reads back as a float.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrNonFinite, f)
	}
	text := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return text, nil
}
