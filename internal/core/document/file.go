package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeusync/enginekit/pkg/encoding"
)

// Parse decodes data in the given format.
func Parse(data []byte, format encoding.Format) (*Node, error) {
	switch format {
	case encoding.FormatJSON:
		return ParseJSON(data)
	case encoding.FormatMsgPack:
		return ParseMsgPack(data)
	case encoding.FormatYAML:
		return ParseYAML(data)
	}
	return nil, fmt.Errorf("parse: unsupported format %s", format)
}

// Dump encodes n in the given format.
func Dump(n *Node, format encoding.Format) ([]byte, error) {
	switch format {
	case encoding.FormatJSON:
		return DumpJSONIndent(n, "  ")
	case encoding.FormatMsgPack:
		return DumpMsgPack(n)
	case encoding.FormatYAML:
		return DumpYAML(n)
	}
	return nil, fmt.Errorf("dump: unsupported format %s", format)
}

// Load reads and decodes a file, choosing the format from its extension.
// Parse failures carry the path.
func Load(path string) (*Node, error) {
	format, err := encoding.FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	n, err := Parse(data, format)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return n, nil
}

// Save encodes n into path, choosing the format from its extension.
// Missing parent directories are created.
func Save(path string, n *Node) error {
	format, err := encoding.FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Dump(n, format)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
