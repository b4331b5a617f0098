package fields

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/zeusync/enginekit/internal/core/access"
	"github.com/zeusync/enginekit/internal/core/document"
)

var _ Serializable = (*Properties)(nil)

// Flag modifies how a binding takes part in Read and Dump.
type Flag uint8

const (
	// FlagOptional bindings may be absent from the node being read.
	FlagOptional Flag = 1 << iota
	// FlagReadonly bindings are dumped but never read.
	FlagReadonly
	// FlagWriteonly bindings are read but never dumped.
	FlagWriteonly
)

// Option configures a single binding.
type Option func(*binding)

var (
	Optional  Option = func(b *binding) { b.flags |= FlagOptional }
	Readonly  Option = func(b *binding) { b.flags |= FlagReadonly }
	Writeonly Option = func(b *binding) { b.flags |= FlagWriteonly }
)

// Priority orders bindings; lower values are read and dumped first.
// Bindings of equal priority keep declaration order.
func Priority(p int) Option {
	return func(b *binding) { b.priority = p }
}

type binding struct {
	name     string
	priority int
	seq      int
	flags    Flag

	typ    reflect.Type
	policy access.Policy
	slot   access.Slot

	set    func(any)
	get    func() any
	nested Serializable
}

func (b *binding) readable() bool {
	return b.flags&FlagReadonly == 0 && (b.set != nil || b.nested != nil)
}

func (b *binding) dumpable() bool {
	return b.flags&FlagWriteonly == 0 && (b.get != nil || b.nested != nil)
}

// Properties holds the bindings of one object. It is not safe for
// concurrent use; the owning object is only touched from one goroutine.
type Properties struct {
	bindings []*binding
	byName   map[string]*binding
	seq      int
	bindErrs []error
}

// Bind registers a direct field binding.
func Bind[T any](p *Properties, name string, target *T, opts ...Option) {
	if target == nil {
		p.fail(name, errors.New("nil target"))
		return
	}
	BindAccessor(p, name, func(v T) { *target = v }, func() T { return *target }, opts...)
}

// BindAccessor registers a binding through a setter and a getter. A nil
// setter makes the binding dump-only, a nil getter makes it read-only.
func BindAccessor[T any](p *Properties, name string, set func(T), get func() T, opts ...Option) {
	typ := reflect.TypeFor[T]()
	if !supported(typ) {
		p.fail(name, fmt.Errorf("%w: %s", ErrUnsupportedType, typ))
		return
	}

	b := &binding{
		name:   name,
		typ:    typ,
		policy: access.For[T](),
	}
	if set != nil {
		b.set = func(v any) {
			typed, _ := v.(T)
			set(typed)
		}
	}
	if get != nil {
		b.get = func() any { return get() }
	}
	p.add(b, opts)
}

// BindSetter registers a binding that is read but never dumped.
func BindSetter[T any](p *Properties, name string, set func(T), opts ...Option) {
	BindAccessor[T](p, name, set, nil, opts...)
}

// BindGetter registers a binding that is dumped but never read.
func BindGetter[T any](p *Properties, name string, get func() T, opts ...Option) {
	BindAccessor[T](p, name, nil, get, opts...)
}

// BindValue binds a reactive field, so reads notify its subscribers.
func BindValue[T any](p *Properties, name string, fa FieldAccessor[T], opts ...Option) {
	BindAccessor(p, name, fa.Set, fa.Get, opts...)
}

// BindNested delegates the sub-node name to child.
func BindNested(p *Properties, name string, child Serializable, opts ...Option) {
	if child == nil {
		p.fail(name, errors.New("nil nested object"))
		return
	}
	p.add(&binding{name: name, nested: child}, opts)
}

func (p *Properties) fail(name string, err error) {
	p.bindErrs = append(p.bindErrs, fmt.Errorf("bind %q: %w", name, err))
}

func (p *Properties) add(b *binding, opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
	if p.byName == nil {
		p.byName = make(map[string]*binding)
	}
	if prev, ok := p.byName[b.name]; ok {
		prev.slot.Reset()
		for i, existing := range p.bindings {
			if existing == prev {
				p.bindings = append(p.bindings[:i], p.bindings[i+1:]...)
				break
			}
		}
	}

	p.seq++
	b.seq = p.seq
	p.byName[b.name] = b

	pos := sort.Search(len(p.bindings), func(i int) bool {
		other := p.bindings[i]
		return other.priority > b.priority || (other.priority == b.priority && other.seq > b.seq)
	})
	p.bindings = append(p.bindings, nil)
	copy(p.bindings[pos+1:], p.bindings[pos:])
	p.bindings[pos] = b
}

// Err returns the errors collected while binding, such as a type without
// a caster. Such bindings are not registered.
func (p *Properties) Err() error {
	return errors.Join(p.bindErrs...)
}

// Props returns the bound names in read order.
func (p *Properties) Props() []string {
	names := make([]string, len(p.bindings))
	for i, b := range p.bindings {
		names[i] = b.name
	}
	return names
}

// Read implements Serializable.
func (p *Properties) Read(node *document.Node) error {
	errs := append([]error(nil), p.bindErrs...)
	for _, b := range p.bindings {
		if err := p.read(b, node, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadProperty reads a single binding from node.
func (p *Properties) ReadProperty(node *document.Node, name string) error {
	b, ok := p.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return p.read(b, node, false)
}

// SetProps reads the bindings named in values and ignores every other
// binding, so no property counts as required.
func (p *Properties) SetProps(values *document.Node) error {
	var errs []error
	for _, b := range p.bindings {
		if err := p.read(b, values, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Properties) read(b *binding, node *document.Node, allOptional bool) error {
	if !b.readable() {
		return nil
	}
	child := node.Find(b.name)
	if child.IsNull() {
		if allOptional || b.flags&FlagOptional != 0 {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrMissingProperty, b.name)
	}

	if b.nested != nil {
		if err := b.nested.Read(child); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
		return nil
	}

	v, err := decode(child, b.typ)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	if err = b.policy.CopyFromValue(v, &b.slot); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	b.set(b.slot.Value())
	return nil
}

// Dump implements Serializable. Existing keys of node are overwritten,
// other keys are left alone.
func (p *Properties) Dump(node *document.Node) error {
	var errs []error
	for _, b := range p.bindings {
		if !b.dumpable() {
			continue
		}
		if err := p.dump(b, node); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Properties) dump(b *binding, node *document.Node) error {
	if b.nested != nil {
		sub := document.NewObject()
		if err := b.nested.Dump(sub); err != nil {
			return err
		}
		return node.Replace(b.name, sub)
	}

	if err := b.policy.CopyFromValue(b.get(), &b.slot); err != nil {
		return err
	}
	value, err := encode(b.slot.Value(), b.typ)
	if err != nil {
		return err
	}
	return node.Replace(b.name, value)
}

// Release frees the payload of every binding and releases nested
// objects that implement Releaser. The bindings stay registered, so the
// object can be read again.
func (p *Properties) Release() {
	for _, b := range p.bindings {
		b.slot.Reset()
		if r, ok := b.nested.(Releaser); ok {
			r.Release()
		}
	}
}

// Snapshot returns the value last moved through the named binding by a
// read or a dump.
func (p *Properties) Snapshot(name string) (any, bool) {
	b, ok := p.byName[name]
	if !ok || b.slot.Empty() {
		return nil, false
	}
	return b.slot.Value(), true
}
