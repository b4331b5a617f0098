package fields

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/zeusync/enginekit/internal/core/document"
)

// Source lists the document representations a caster can convert from.
type Source interface {
	string | int64 | float64 | bool | *document.Node
}

// CasterFuncs adapts a pair of functions to the Caster interface.
type CasterFuncs[S Source, T any] struct {
	ToFunc   func(S) (T, bool)
	FromFunc func(T) S
}

func (c CasterFuncs[S, T]) To(src S) (T, bool) { return c.ToFunc(src) }
func (c CasterFuncs[S, T]) From(value T) S     { return c.FromFunc(value) }

type erasedCaster struct {
	source reflect.Type
	to     func(*document.Node) (any, bool)
	from   func(any) (*document.Node, error)
}

type casterKey struct {
	source reflect.Type
	target reflect.Type
}

var casters = struct {
	mu       sync.RWMutex
	byKey    map[casterKey]*erasedCaster
	byTarget map[reflect.Type][]*erasedCaster
}{
	byKey:    map[casterKey]*erasedCaster{},
	byTarget: map[reflect.Type][]*erasedCaster{},
}

var nodeType = reflect.TypeFor[*document.Node]()

// RegisterCaster adds c for the (S, T) pair, replacing an earlier caster
// for the same pair. When several sources exist for T, reads try them in
// registration order and dumps use the first one registered.
func RegisterCaster[S Source, T any](c Caster[S, T]) {
	key := casterKey{source: reflect.TypeFor[S](), target: reflect.TypeFor[T]()}
	erased := &erasedCaster{
		source: key.source,
		to: func(n *document.Node) (any, bool) {
			src, ok := sourceOf[S](n)
			if !ok {
				return nil, false
			}
			v, ok := c.To(src)
			if !ok {
				return nil, false
			}
			return v, true
		},
		from: func(v any) (*document.Node, error) {
			typed, ok := v.(T)
			if !ok {
				return nil, fmt.Errorf("%w: %T is not %s", ErrCast, v, key.target)
			}
			return document.From(c.From(typed))
		},
	}

	casters.mu.Lock()
	defer casters.mu.Unlock()
	if prev, ok := casters.byKey[key]; ok {
		list := casters.byTarget[key.target]
		for i, e := range list {
			if e == prev {
				list[i] = erased
			}
		}
	} else {
		casters.byTarget[key.target] = append(casters.byTarget[key.target], erased)
	}
	casters.byKey[key] = erased
}

// HasCaster reports whether a caster from S to T is registered.
func HasCaster[S Source, T any]() bool {
	casters.mu.RLock()
	defer casters.mu.RUnlock()
	_, ok := casters.byKey[casterKey{source: reflect.TypeFor[S](), target: reflect.TypeFor[T]()}]
	return ok
}

// Cast converts n to T using the same rules as property reads.
func Cast[T any](n *document.Node) (T, bool) {
	var zero T
	v, err := decode(n, reflect.TypeFor[T]())
	if err != nil {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Uncast converts v to a document node using the same rules as dumps.
func Uncast[T any](v T) (*document.Node, error) {
	return encode(v, reflect.TypeFor[T]())
}

func castersFor(typ reflect.Type) []*erasedCaster {
	casters.mu.RLock()
	defer casters.mu.RUnlock()
	return casters.byTarget[typ]
}

// sourceOf extracts S from n without cross-kind coercion, so each caster
// only sees the representation it was registered for.
func sourceOf[S Source](n *document.Node) (S, bool) {
	var out S
	switch p := any(&out).(type) {
	case *string:
		if n.Kind() != document.KindString {
			return out, false
		}
		*p, _ = n.AsString()
	case *int64:
		if n.Kind() != document.KindInt {
			return out, false
		}
		*p, _ = n.AsInt()
	case *float64:
		if k := n.Kind(); k != document.KindInt && k != document.KindFloat {
			return out, false
		}
		*p, _ = n.AsFloat()
	case *bool:
		if n.Kind() != document.KindBool {
			return out, false
		}
		*p, _ = n.AsBool()
	case **document.Node:
		*p = n.Clone()
	}
	return out, true
}

func decode(n *document.Node, typ reflect.Type) (any, error) {
	if typ == nodeType {
		return n.Clone(), nil
	}
	if list := castersFor(typ); len(list) > 0 {
		for _, c := range list {
			if v, ok := c.to(n); ok {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%w: %s to %s", ErrCast, n.Kind(), typ)
	}

	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Slice:
		if !n.IsArray() {
			return nil, fmt.Errorf("%w: %s to %s", ErrCast, n.Kind(), typ)
		}
		out = reflect.MakeSlice(typ, n.Len(), n.Len())
		for i := range n.Len() {
			elem, err := decode(n.Index(i), typ.Elem())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(elem))
		}
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
		}
		if !n.IsObject() {
			return nil, fmt.Errorf("%w: %s to %s", ErrCast, n.Kind(), typ)
		}
		out = reflect.MakeMapWithSize(typ, n.Len())
		for key, child := range n.Items() {
			elem, err := decode(child, typ.Elem())
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			out.SetMapIndex(reflect.ValueOf(key).Convert(typ.Key()), reflect.ValueOf(elem))
		}
	default:
		if !isScalar(typ) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
		}
		if !document.Assign(n, out) {
			return nil, fmt.Errorf("%w: %s to %s", ErrCast, n.Kind(), typ)
		}
	}
	return out.Interface(), nil
}

func encode(v any, typ reflect.Type) (*document.Node, error) {
	if typ == nodeType {
		n, _ := v.(*document.Node)
		return n.Clone(), nil
	}
	if list := castersFor(typ); len(list) > 0 {
		return list[0].from(v)
	}

	rv := reflect.ValueOf(v)
	switch typ.Kind() {
	case reflect.Slice:
		arr := document.NewArray()
		for i := range rv.Len() {
			elem, err := encode(rv.Index(i).Interface(), typ.Elem())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr.Append(elem)
		}
		return arr, nil
	case reflect.Map:
		plain := make(map[string]*document.Node, rv.Len())
		for _, key := range rv.MapKeys() {
			elem, err := encode(rv.MapIndex(key).Interface(), typ.Elem())
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key.String(), err)
			}
			plain[key.String()] = elem
		}
		return document.From(plain)
	}
	return document.From(v)
}

// supported reports whether typ can be converted in both directions.
func supported(typ reflect.Type) bool {
	if typ == nodeType || len(castersFor(typ)) > 0 || isScalar(typ) {
		return true
	}
	switch typ.Kind() {
	case reflect.Slice:
		return supported(typ.Elem())
	case reflect.Map:
		return typ.Key().Kind() == reflect.String && supported(typ.Elem())
	}
	return false
}

func isScalar(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
