// Package document implements the dynamic, ordered document tree that
// configuration, entity descriptors and component state are read from
// and dumped into.
package document

import (
	"iter"
	"strconv"

	"github.com/zeusync/enginekit/pkg/encoding"
	"github.com/zeusync/enginekit/pkg/sequence"
)

// Kind is the tag of a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

var _ encoding.Serializable[*Node] = (*Node)(nil)

// Node is a tagged value. Objects keep their keys in insertion order,
// arrays are addressed by decimal index strings.
// The zero value is a Null node.
type Node struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string

	keys   []string
	index  map[string]int
	values []*Node
}

func Null() *Node { return &Node{} }
func NewBool(v bool) *Node { return &Node{kind: KindBool, b: v} }
func NewInt(v int64) *Node { return &Node{kind: KindInt, i: v} }
func NewFloat(v float64) *Node { return &Node{kind: KindFloat, f: v} }
func NewString(v string) *Node { return &Node{kind: KindString, s: v} }
func NewObject() *Node { return &Node{kind: KindObject, index: map[string]int{}} }
func NewArray(items ...*Node) *Node {
	n := &Node{kind: KindArray}
	for _, item := range items {
		n.Append(item)
	}
	return n
}

// Kind returns the tag of n. A nil node reports KindNull.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func (n *Node) IsNull() bool   { return n.Kind() == KindNull }
func (n *Node) IsObject() bool { return n.Kind() == KindObject }
func (n *Node) IsArray() bool  { return n.Kind() == KindArray }

// IsContainer reports whether n is an Object or an Array.
func (n *Node) IsContainer() bool {
	k := n.Kind()
	return k == KindObject || k == KindArray
}

// Len returns the number of children of a container, 0 otherwise.
func (n *Node) Len() int {
	if !n.IsContainer() {
		return 0
	}
	return len(n.values)
}

// Child returns the direct child addressed by key. Arrays accept
// decimal indices. Missing children yield nil.
func (n *Node) Child(key string) *Node {
	switch n.Kind() {
	case KindObject:
		if pos, ok := n.index[key]; ok {
			return n.values[pos]
		}
	case KindArray:
		if idx, ok := parseIndex(key); ok && idx < len(n.values) {
			return n.values[idx]
		}
	}
	return nil
}

// Has reports whether key addresses a direct child.
func (n *Node) Has(key string) bool {
	return n.Child(key) != nil
}

// Index returns the i-th child of a container in iteration order.
func (n *Node) Index(i int) *Node {
	if !n.IsContainer() || i < 0 || i >= len(n.values) {
		return nil
	}
	return n.values[i]
}

// Set stores child under key, turning a Null node into an Object.
// An existing key keeps its position. The node takes ownership of child.
//
// Set is the unchecked primitive used by builders that already know the
// kind of n: calling it on a scalar or an Array is a programming error
// and panics. Put and Replace never panic; they turn a scalar receiver
// into an Object.
func (n *Node) Set(key string, child *Node) {
	if n.kind == KindNull {
		n.reset(KindObject)
	}
	if n.kind != KindObject {
		panic("document: Set on " + n.kind.String() + " node")
	}
	if child == nil {
		child = Null()
	}
	if pos, ok := n.index[key]; ok {
		n.values[pos] = child
		return
	}
	n.index[key] = len(n.keys)
	n.keys = append(n.keys, key)
	n.values = append(n.values, child)
}

// Append adds child to the end of an Array, turning a Null node into one.
// Like Set it panics on any other kind; Push is the checked variant.
func (n *Node) Append(child *Node) {
	if n.kind == KindNull {
		n.reset(KindArray)
	}
	if n.kind != KindArray {
		panic("document: Append on " + n.kind.String() + " node")
	}
	if child == nil {
		child = Null()
	}
	n.values = append(n.values, child)
}

// Push converts v and appends it, turning a Null node into an Array.
func (n *Node) Push(v any) error {
	if n.kind != KindNull && n.kind != KindArray {
		return ErrNotArray
	}
	child, err := From(v)
	if err != nil {
		return err
	}
	n.Append(child)
	return nil
}

// Remove deletes a direct child. Array elements after it shift down.
func (n *Node) Remove(key string) bool {
	switch n.Kind() {
	case KindObject:
		pos, ok := n.index[key]
		if !ok {
			return false
		}
		n.keys = append(n.keys[:pos], n.keys[pos+1:]...)
		n.values = append(n.values[:pos], n.values[pos+1:]...)
		delete(n.index, key)
		for i := pos; i < len(n.keys); i++ {
			n.index[n.keys[i]] = i
		}
		return true
	case KindArray:
		idx, ok := parseIndex(key)
		if !ok || idx >= len(n.values) {
			return false
		}
		n.values = append(n.values[:idx], n.values[idx+1:]...)
		return true
	}
	return false
}

// Items yields (key, child) pairs in insertion order for Objects and
// (index, child) for Arrays. The sequence is lazy and can be ranged over
// any number of times.
func (n *Node) Items() iter.Seq2[string, *Node] {
	return func(yield func(string, *Node) bool) {
		switch n.Kind() {
		case KindObject:
			for i, key := range n.keys {
				if !yield(key, n.values[i]) {
					return
				}
			}
		case KindArray:
			for i, child := range n.values {
				if !yield(strconv.Itoa(i), child) {
					return
				}
			}
		}
	}
}

// Keys returns an iterator over the child keys.
func (n *Node) Keys() *sequence.Iterator[string] {
	return sequence.Keys(n.Items())
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return Null()
	}
	out := &Node{kind: n.kind, b: n.b, i: n.i, f: n.f, s: n.s}
	switch n.kind {
	case KindObject:
		out.keys = append([]string(nil), n.keys...)
		out.index = make(map[string]int, len(n.keys))
		out.values = make([]*Node, len(n.values))
		for i, key := range n.keys {
			out.index[key] = i
			out.values[i] = n.values[i].Clone()
		}
	case KindArray:
		out.values = make([]*Node, len(n.values))
		for i, child := range n.values {
			out.values[i] = child.Clone()
		}
	}
	return out
}

// ShallowCopy returns a copy of n whose children are shared with n.
func (n *Node) ShallowCopy() *Node {
	if n == nil {
		return Null()
	}
	out := &Node{kind: n.kind, b: n.b, i: n.i, f: n.f, s: n.s}
	if n.kind == KindObject {
		out.keys = append([]string(nil), n.keys...)
		out.index = make(map[string]int, len(n.keys))
		for i, key := range n.keys {
			out.index[key] = i
		}
	}
	out.values = append([]*Node(nil), n.values...)
	return out
}

// Equal compares two nodes by value. Object key order is significant.
func Equal(a, b *Node) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindObject:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for i, key := range a.keys {
			if b.keys[i] != key || !Equal(a.values[i], b.values[i]) {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.values) != len(b.values) {
			return false
		}
		for i := range a.values {
			if !Equal(a.values[i], b.values[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal is the method form of the package level Equal.
func (n *Node) Equal(other *Node) bool {
	return Equal(n, other)
}

// Serialize dumps n as compact JSON.
func (n *Node) Serialize() ([]byte, error) {
	return DumpJSON(n)
}

// Deserialize replaces n with the JSON document in data.
func (n *Node) Deserialize(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	n.replace(parsed)
	return nil
}

func (n *Node) MarshalJSON() ([]byte, error) {
	return DumpJSON(n)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	return n.Deserialize(data)
}

func (n *Node) reset(kind Kind) {
	*n = Node{kind: kind}
	if kind == KindObject {
		n.index = map[string]int{}
	}
}

func (n *Node) replace(other *Node) {
	if other == nil {
		n.reset(KindNull)
		return
	}
	*n = *other
}

func parseIndex(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
