package document

import (
	"fmt"
	"strings"
)

const (
	// DefaultSeparator splits path segments.
	DefaultSeparator = "."
	// InsertMarker prefixed to the last path segment makes Put keep an
	// existing value instead of merging into or replacing it.
	InsertMarker = "_"
)

// Find returns the node addressed by a dot separated path, or nil.
// An empty path addresses n itself.
func (n *Node) Find(path string) *Node {
	return n.FindWith(path, DefaultSeparator)
}

// FindWith is Find with a custom separator.
func (n *Node) FindWith(path, sep string) *Node {
	if n == nil {
		return nil
	}
	if path == "" {
		return n
	}
	cur := n
	for _, seg := range strings.Split(path, sep) {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Get reads the value at path as T. It fails on a missing path, an out
// of range index or a value that cannot be coerced to T.
func Get[T Scalar](n *Node, path string) (T, bool) {
	child := n.Find(path)
	if child == nil {
		var zero T
		return zero, false
	}
	return As[T](child)
}

// GetOr is Get returning def instead of failing.
func GetOr[T Scalar](n *Node, path string, def T) T {
	if v, ok := Get[T](n, path); ok {
		return v
	}
	return def
}

// Put writes value at path, creating intermediate objects. When both the
// existing and the new value are objects they are deep-merged, otherwise
// the new value replaces the old one. A last segment starting with
// InsertMarker only writes when nothing is stored there yet.
func (n *Node) Put(path string, value any) error {
	return n.PutWith(path, DefaultSeparator, value)
}

// PutIfMissing writes value at path only when the path is not set.
func (n *Node) PutIfMissing(path string, value any) error {
	return n.put(path, DefaultSeparator, value, putIfMissing)
}

// Replace writes value at path without merging into an existing object.
func (n *Node) Replace(path string, value any) error {
	return n.put(path, DefaultSeparator, value, putReplace)
}

// PutWith is Put with a custom separator.
func (n *Node) PutWith(path, sep string, value any) error {
	return n.put(path, sep, value, putMerge)
}

type putMode uint8

const (
	putMerge putMode = iota
	putIfMissing
	putReplace
)

func (n *Node) put(path, sep string, value any, mode putMode) error {
	if path == "" {
		return ErrEmptyPath
	}
	v, err := From(value)
	if err != nil {
		return err
	}

	segs := strings.Split(path, sep)
	last := segs[len(segs)-1]
	if mode == putMerge && len(last) > len(InsertMarker) && strings.HasPrefix(last, InsertMarker) {
		mode = putIfMissing
		last = last[len(InsertMarker):]
	}

	if !n.IsContainer() {
		n.reset(KindObject)
	}
	parent := n
	for _, seg := range segs[:len(segs)-1] {
		parent, err = parent.descend(seg)
		if err != nil {
			return fmt.Errorf("put %q: %w", path, err)
		}
	}
	if err = parent.store(last, v, mode); err != nil {
		return fmt.Errorf("put %q: %w", path, err)
	}
	return nil
}

// descend returns the container child for seg, creating an Object when
// it is missing or holds a scalar.
func (n *Node) descend(seg string) (*Node, error) {
	child := n.Child(seg)
	if child != nil && child.IsContainer() {
		return child, nil
	}
	created := NewObject()
	if err := n.store(seg, created, putReplace); err != nil {
		return nil, err
	}
	return created, nil
}

func (n *Node) store(key string, v *Node, mode putMode) error {
	existing := n.Child(key)
	if existing != nil {
		if mode == putIfMissing {
			return nil
		}
		if mode == putMerge && existing.IsObject() && v.IsObject() {
			MergeInto(existing, v)
			return nil
		}
	}

	switch n.kind {
	case KindObject:
		n.Set(key, v)
	case KindArray:
		idx, ok := parseIndex(key)
		switch {
		case !ok:
			return fmt.Errorf("%w: %q", ErrInvalidIndex, key)
		case idx < len(n.values):
			n.values[idx] = v
		case idx == len(n.values):
			n.values = append(n.values, v)
		default:
			return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(n.values))
		}
	}
	return nil
}

// Delete removes the node addressed by path.
func (n *Node) Delete(path string) bool {
	if path == "" {
		return false
	}
	parentPath, key := "", path
	if pos := strings.LastIndex(path, DefaultSeparator); pos >= 0 {
		parentPath, key = path[:pos], path[pos+len(DefaultSeparator):]
	}
	return n.Find(parentPath).Remove(key)
}
