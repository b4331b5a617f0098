package access

import (
	"fmt"
	"math"
	"reflect"
	"sync/atomic"
)

var liveOwned atomic.Int64

// Live returns the number of owned payloads currently held by slots.
func Live() int64 {
	return liveOwned.Load()
}

func newPolicy(typ reflect.Type) Policy {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return &scalarPolicy{basePolicy{typ: typ}}
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return &pointerPolicy{basePolicy{typ: typ}}
	default:
		return &ownedPolicy{basePolicy{typ: typ}}
	}
}

type basePolicy struct {
	typ reflect.Type
}

func (p *basePolicy) Type() reflect.Type { return p.typ }

func (p *basePolicy) check(value any) error {
	if value == nil {
		switch p.typ.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface, reflect.Slice, reflect.UnsafePointer:
			return nil
		}
		return fmt.Errorf("%w: nil for %s", ErrTypeMismatch, p.typ)
	}
	if vt := reflect.TypeOf(value); vt != p.typ && !(p.typ.Kind() == reflect.Interface && vt.Implements(p.typ)) {
		return fmt.Errorf("%w: %s for %s", ErrTypeMismatch, vt, p.typ)
	}
	return nil
}

type scalarPolicy struct{ basePolicy }

func (p *scalarPolicy) Kind() Kind { return KindScalar }

func (p *scalarPolicy) CopyFromValue(value any, dest *Slot) error {
	if err := p.check(value); err != nil {
		return err
	}
	dest.Reset()
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			dest.word = 1
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dest.word = uint64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		dest.word = rv.Uint()
	case reflect.Float32, reflect.Float64:
		dest.word = math.Float64bits(rv.Float())
	}
	dest.policy = p
	return nil
}

func (p *scalarPolicy) GetValue(src *Slot) any {
	out := reflect.New(p.typ).Elem()
	switch p.typ.Kind() {
	case reflect.Bool:
		out.SetBool(src.word != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(int64(src.word))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		out.SetUint(src.word)
	case reflect.Float32, reflect.Float64:
		out.SetFloat(math.Float64frombits(src.word))
	}
	return out.Interface()
}

func (p *scalarPolicy) Clone(src, dest *Slot) {
	dest.Reset()
	dest.word = src.word
	dest.policy = p
}

func (p *scalarPolicy) Release(slot *Slot) {
	*slot = Slot{}
}

type pointerPolicy struct{ basePolicy }

func (p *pointerPolicy) Kind() Kind { return KindPointer }

func (p *pointerPolicy) CopyFromValue(value any, dest *Slot) error {
	if err := p.check(value); err != nil {
		return err
	}
	dest.Reset()
	dest.ref = value
	dest.policy = p
	return nil
}

func (p *pointerPolicy) GetValue(src *Slot) any { return src.ref }

func (p *pointerPolicy) Clone(src, dest *Slot) {
	ref := src.ref
	dest.Reset()
	dest.ref = ref
	dest.policy = p
}

func (p *pointerPolicy) Release(slot *Slot) {
	*slot = Slot{}
}

// box is the heap allocation owned by a slot.
type box struct {
	value any
}

type ownedPolicy struct{ basePolicy }

func (p *ownedPolicy) Kind() Kind { return KindOwned }

func (p *ownedPolicy) CopyFromValue(value any, dest *Slot) error {
	if err := p.check(value); err != nil {
		return err
	}
	dest.Reset()
	p.attach(dest, copyValue(value))
	return nil
}

func (p *ownedPolicy) attach(dest *Slot, value any) {
	dest.ref = &box{value: value}
	dest.policy = p
	liveOwned.Add(1)
}

func (p *ownedPolicy) GetValue(src *Slot) any {
	b, _ := src.ref.(*box)
	if b == nil {
		return nil
	}
	return copyValue(b.value)
}

func (p *ownedPolicy) Clone(src, dest *Slot) {
	value := p.GetValue(src)
	dest.Reset()
	p.attach(dest, value)
}

func (p *ownedPolicy) Release(slot *Slot) {
	if b, ok := slot.ref.(*box); ok && b != nil {
		b.value = nil
		liveOwned.Add(-1)
	}
	*slot = Slot{}
}

// copyValue detaches slices from the caller's backing array. Other
// owned kinds are already copied by boxing them into an interface.
func copyValue(value any) any {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return value
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)
	return out.Interface()
}
