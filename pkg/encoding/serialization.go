package encoding

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Serializable provides a clean, simple interface for serializing and deserializing values.
type Serializable[T any] interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}

// Format names a wire representation of a document.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatMsgPack
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgPack:
		return "msgpack"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// ParseFormat maps a user supplied name ("json", "msgpack", "mp", "yaml", "yml").
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "json":
		return FormatJSON, nil
	case "msgpack", "mp", "mpk":
		return FormatMsgPack, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatUnknown, fmt.Errorf("unknown document format %q", name)
	}
}

// FormatOf resolves the format from the file extension of path.
func FormatOf(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return FormatUnknown, fmt.Errorf("no extension on %q", path)
	}
	return ParseFormat(ext)
}
