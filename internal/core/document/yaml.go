package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/zeusync/enginekit/pkg/encoding"
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes the first YAML document in data. Mapping order is
// kept and tags decide between integers and floats.
func ParseYAML(data []byte) (*Node, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return Null(), nil
		}
		return nil, &ParseError{Format: encoding.FormatYAML, Offset: -1, Err: err}
	}
	n, err := fromYAML(&root)
	if err != nil {
		return nil, &ParseError{Format: encoding.FormatYAML, Offset: -1, Line: root.Line, Column: root.Column, Err: err}
	}
	return n, nil
}

func fromYAML(y *yaml.Node) (*Node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return Null(), nil
		}
		return fromYAML(y.Content[0])
	case yaml.AliasNode:
		return fromYAML(y.Alias)
	case yaml.SequenceNode:
		arr := NewArray()
		for _, item := range y.Content {
			child, err := fromYAML(item)
			if err != nil {
				return nil, err
			}
			arr.Append(child)
		}
		return arr, nil
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(y.Content); i += 2 {
			key, value := y.Content[i], y.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: non-scalar mapping key", key.Line)
			}
			child, err := fromYAML(value)
			if err != nil {
				return nil, err
			}
			obj.Set(key.Value, child)
		}
		return obj, nil
	case yaml.ScalarNode:
		return fromYAMLScalar(y)
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", y.Line, y.Kind)
}

func fromYAMLScalar(y *yaml.Node) (*Node, error) {
	switch y.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := y.Decode(&b); err != nil {
			return nil, err
		}
		return NewBool(b), nil
	case "!!int":
		var i int64
		if err := y.Decode(&i); err != nil {
			return nil, err
		}
		return NewInt(i), nil
	case "!!float":
		var f float64
		if err := y.Decode(&f); err != nil {
			return nil, err
		}
		return NewFloat(f), nil
	default:
		return NewString(y.Value), nil
	}
}

// DumpYAML encodes n as a YAML document.
func DumpYAML(n *Node) ([]byte, error) {
	y, err := toYAML(n)
	if err != nil {
		return nil, err
	}

	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err = enc.Encode(y); err != nil {
		return nil, err
	}
	if err = enc.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func toYAML(n *Node) (*yaml.Node, error) {
	switch n.Kind() {
	case KindBool:
		return scalar("!!bool", strconv.FormatBool(n.b)), nil
	case KindInt:
		return scalar("!!int", strconv.FormatInt(n.i, 10)), nil
	case KindFloat:
		return scalar("!!float", yamlFloat(n.f)), nil
	case KindString:
		return scalar("!!str", n.s), nil
	case KindArray:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, child := range n.values {
			y, err := toYAML(child)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, y)
		}
		return seq, nil
	case KindObject:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for i, key := range n.keys {
			y, err := toYAML(n.values[i])
			if err != nil {
				return nil, err
			}
			m.Content = append(m.Content, scalar("!!str", key), y)
		}
		return m, nil
	}
	return scalar("!!null", "null"), nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	text, _ := formatFloat(f)
	return text
}
