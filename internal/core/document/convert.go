package document

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Scalar lists the Go types a node can be read as.
type Scalar interface {
	~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 |
		~string
}

// From converts a Go value into a new node. Nodes are deep-copied, map
// keys are sorted so the result is deterministic.
func From(v any) (*Node, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case *Node:
		return x.Clone(), nil
	case Node:
		return x.Clone(), nil
	case bool:
		return NewBool(x), nil
	case int:
		return NewInt(int64(x)), nil
	case int64:
		return NewInt(x), nil
	case int32:
		return NewInt(int64(x)), nil
	case float64:
		return NewFloat(x), nil
	case float32:
		return NewFloat(float64(x)), nil
	case string:
		return NewString(x), nil
	case []byte:
		return NewString(string(x)), nil
	case []any:
		out := NewArray()
		for _, item := range x {
			child, err := From(item)
			if err != nil {
				return nil, err
			}
			out.Append(child)
		}
		return out, nil
	}
	return fromReflect(reflect.ValueOf(v))
}

// MustFrom is From for literals known to be convertible.
func MustFrom(v any) *Node {
	n, err := From(v)
	if err != nil {
		panic(err)
	}
	return n
}

func fromReflect(rv reflect.Value) (*Node, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return From(rv.Elem().Interface())
	case reflect.Bool:
		return NewBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
		}
		return NewInt(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return NewFloat(rv.Float()), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Slice, reflect.Array:
		out := NewArray()
		for i := range rv.Len() {
			child, err := From(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out.Append(child)
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedValue, rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		slices.Sort(keys)
		out := NewObject()
		for _, key := range keys {
			child, err := From(rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return nil, err
			}
			out.Set(key, child)
		}
		return out, nil
	}
	if !rv.IsValid() {
		return Null(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, rv.Type())
}

// Value converts n to plain Go values: nil, bool, int64, float64,
// string, []any and map[string]any.
func (n *Node) Value() any {
	switch n.Kind() {
	case KindBool:
		return n.b
	case KindInt:
		return n.i
	case KindFloat:
		return n.f
	case KindString:
		return n.s
	case KindArray:
		out := make([]any, len(n.values))
		for i, child := range n.values {
			out[i] = child.Value()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(n.keys))
		for i, key := range n.keys {
			out[key] = n.values[i].Value()
		}
		return out
	}
	return nil
}

// AsInt reads n as an integer. Floats are truncated, numeric strings parsed.
func (n *Node) AsInt() (int64, bool) {
	switch n.Kind() {
	case KindInt:
		return n.i, true
	case KindFloat:
		return floatToInt(n.f)
	case KindString:
		s := strings.TrimSpace(n.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

// AsFloat reads n as a float. Integers widen, numeric strings are parsed.
func (n *Node) AsFloat() (float64, bool) {
	switch n.Kind() {
	case KindInt:
		return float64(n.i), true
	case KindFloat:
		return n.f, true
	case KindString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n.s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// AsBool reads n as a bool. Strings "true" and "false" are accepted.
func (n *Node) AsBool() (bool, bool) {
	switch n.Kind() {
	case KindBool:
		return n.b, true
	case KindString:
		switch strings.ToLower(strings.TrimSpace(n.s)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// AsString reads n as a string. Scalars are formatted.
func (n *Node) AsString() (string, bool) {
	switch n.Kind() {
	case KindString:
		return n.s, true
	case KindInt:
		return strconv.FormatInt(n.i, 10), true
	case KindFloat:
		return strconv.FormatFloat(n.f, 'g', -1, 64), true
	case KindBool:
		return strconv.FormatBool(n.b), true
	}
	return "", false
}

// As reads n as T, applying the same coercions as AsInt, AsFloat,
// AsBool and AsString. Values overflowing T are rejected.
func As[T Scalar](n *Node) (T, bool) {
	var out T
	ok := Assign(n, reflect.ValueOf(&out).Elem())
	return out, ok
}

// Assign coerces n into dst, which must be a settable bool, number or
// string value. It reports false and leaves dst unchanged on failure.
func Assign(n *Node, dst reflect.Value) bool {
	switch dst.Kind() {
	case reflect.Bool:
		b, ok := n.AsBool()
		if !ok {
			return false
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := n.AsInt()
		if !ok || dst.OverflowInt(i) {
			return false
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, ok := n.AsInt()
		if !ok || i < 0 || dst.OverflowUint(uint64(i)) {
			return false
		}
		dst.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		f, ok := n.AsFloat()
		if !ok || (dst.Kind() == reflect.Float32 && dst.OverflowFloat(f)) {
			return false
		}
		dst.SetFloat(f)
	case reflect.String:
		s, ok := n.AsString()
		if !ok {
			return false
		}
		dst.SetString(s)
	default:
		return false
	}
	return true
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
