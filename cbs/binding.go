package cbs

import (
	"sort"
	"unicode/utf8"
)

// Object is a host value exposed to scripts. Every property read, write and
// call on it is routed through these methods; scripts never see the host
// type itself.
type Object interface {
	TypeName() string
	Get(key Value) (Value, error)
	Set(key Value, value Value) error
	Call(call *CallContext, args []Value) (Value, error)
	// BinaryOp implements op with other. reversed is true when the object
	// was the right operand.
	BinaryOp(op Operator, other Value, reversed bool) (Value, error)
	UnaryOp(op Operator) (Value, error)
	Enumerate() ([]Value, error)
}

// BaseObject supplies the default behaviour for Object: no members, not
// callable, no operators, not iterable. Embed it and override what the host
// type supports.
type BaseObject struct {
	Name string
}

func (b BaseObject) TypeName() string { return b.Name }

func (b BaseObject) Get(key Value) (Value, error) {
	return Value{}, newError(MissingMember, Position{}, "%s has no member %s", b.Name, key)
}

func (b BaseObject) Set(key Value, _ Value) error {
	return newError(MissingMember, Position{}, "%s has no member %s", b.Name, key)
}

func (b BaseObject) Call(call *CallContext, _ []Value) (Value, error) {
	return Value{}, newError(NotCallable, call.Pos, "%s is not callable", b.Name)
}

func (b BaseObject) BinaryOp(op Operator, other Value, _ bool) (Value, error) {
	return Value{}, newError(NotSupported, Position{}, "operator %s is not supported by %s", op, b.Name)
}

func (b BaseObject) UnaryOp(op Operator) (Value, error) {
	return Value{}, newError(NotSupported, Position{}, "operator %s is not supported by %s", op, b.Name)
}

func (b BaseObject) Enumerate() ([]Value, error) {
	return nil, newError(NotIterable, Position{}, "%s is not iterable", b.Name)
}

type memberKind uint8

const (
	memberConstant memberKind = iota
	memberGetter
	memberProperty
	memberMethod
)

type member struct {
	kind   memberKind
	value  Value
	get    func() (Value, error)
	set    func(Value) error
	method NativeFn
}

// ObjectBuilder declares the members of a host type.
type ObjectBuilder struct {
	name     string
	members  map[string]member
	fallback func(key Value) (Value, error)
}

func NewObjectBuilder(typeName string) *ObjectBuilder {
	return &ObjectBuilder{name: typeName, members: make(map[string]member)}
}

// Constant declares a fixed value.
func (b *ObjectBuilder) Constant(name string, v Value) *ObjectBuilder {
	b.members[name] = member{kind: memberConstant, value: v}
	return b
}

// Getter declares a read-only computed property.
func (b *ObjectBuilder) Getter(name string, get func() (Value, error)) *ObjectBuilder {
	b.members[name] = member{kind: memberGetter, get: get}
	return b
}

// Property declares a read/write property.
func (b *ObjectBuilder) Property(name string, get func() (Value, error), set func(Value) error) *ObjectBuilder {
	b.members[name] = member{kind: memberProperty, get: get, set: set}
	return b
}

func (b *ObjectBuilder) Method(name string, fn NativeFn) *ObjectBuilder {
	b.members[name] = member{kind: memberMethod, method: fn}
	return b
}

// Fallback resolves keys that match no declared member, for example a
// time-keyed lookup. It should return a MissingMember error for unknown keys.
func (b *ObjectBuilder) Fallback(resolve func(key Value) (Value, error)) *ObjectBuilder {
	b.fallback = resolve
	return b
}

// Build wraps host. The object borrows host; it does not manage its
// lifetime.
func (b *ObjectBuilder) Build(host any) *NativeObject {
	members := make(map[string]member, len(b.members))
	for name, m := range b.members {
		members[name] = m
	}
	return &NativeObject{
		BaseObject: BaseObject{Name: b.name},
		host:       host,
		members:    members,
		fallback:   b.fallback,
	}
}

// NativeObject is an Object assembled by ObjectBuilder.
type NativeObject struct {
	BaseObject
	host     any
	members  map[string]member
	fallback func(key Value) (Value, error)
}

func (o *NativeObject) Host() any { return o.host }

// Keys lists the declared member names in sorted order.
func (o *NativeObject) Keys() []string {
	keys := make([]string, 0, len(o.members))
	for name := range o.members {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

func (o *NativeObject) Get(key Value) (Value, error) {
	v, err := o.lookup(key)
	if err != nil {
		return Value{}, err
	}
	return v.WithOrigin(NewObject(o), key), nil
}

func (o *NativeObject) lookup(key Value) (Value, error) {
	if key.Kind() == KindString {
		if m, ok := o.members[key.Str()]; ok {
			switch m.kind {
			case memberConstant:
				return m.value, nil
			case memberGetter, memberProperty:
				return m.get()
			case memberMethod:
				return NewNative(o.Name+"."+key.Str(), false, m.method), nil
			}
		}
	}
	if o.fallback != nil {
		return o.fallback(key)
	}
	return o.BaseObject.Get(key)
}

func (o *NativeObject) Set(key Value, value Value) error {
	if key.Kind() == KindString {
		if m, ok := o.members[key.Str()]; ok {
			if m.kind != memberProperty {
				return newError(AssignToConstant, Position{}, "%s.%s is read-only", o.Name, key.Str())
			}
			return m.set(value.withoutOrigin())
		}
	}
	return o.BaseObject.Set(key, value)
}

// GetMember reads target[key] for every kind of value. Results remember
// where they were read from.
func GetMember(target, key Value) (Value, error) {
	if obj := target.Object(); obj != nil {
		return obj.Get(key)
	}

	switch target.Kind() {
	case KindNull:
		return Value{}, newError(NullReference, Position{}, "cannot read %s of unset", key)
	case KindArray:
		arr := target.Array()
		if key.Kind() == KindString {
			switch key.Str() {
			case "length":
				return NewI32(int32(len(arr.Items))), nil
			case "push":
				return NewNative("array.push", false, func(_ *CallContext, args []Value) (Value, error) {
					for _, arg := range args {
						item, err := Convert(arg, arr.Elem)
						if err != nil {
							return Value{}, err
						}
						arr.Items = append(arr.Items, item)
					}
					if err := WriteBack(target); err != nil {
						return Value{}, err
					}
					return NewI32(int32(len(arr.Items))), nil
				}), nil
			}
		}
		idx, err := indexOf(key, len(arr.Items))
		if err != nil {
			return Value{}, err
		}
		return arr.Items[idx].WithOrigin(target, key), nil
	case KindString:
		s := target.Str()
		if key.Kind() == KindString && key.Str() == "length" {
			return NewI32(int32(utf8.RuneCountInString(s))), nil
		}
		runes := []rune(s)
		idx, err := indexOf(key, len(runes))
		if err != nil {
			return Value{}, err
		}
		return NewString(string(runes[idx])), nil
	case KindEnumerable:
		r := target.Range()
		if key.Kind() == KindString {
			switch key.Str() {
			case "start":
				return NewI32(r.Start), nil
			case "end":
				return NewI32(r.End), nil
			case "length":
				return NewI32(int32(r.Len())), nil
			}
		}
		idx, err := indexOf(key, r.Len())
		if err != nil {
			return Value{}, err
		}
		return NewI32(r.At(idx)), nil
	}
	return Value{}, newError(MissingMember, Position{}, "%s has no member %s", target.Type().Name(), key)
}

func indexOf(key Value, length int) (int, error) {
	if key.Kind() != KindI32 {
		return 0, newError(MissingMember, Position{}, "no member %s", key)
	}
	idx := int(key.I32())
	if idx < 0 || idx >= length {
		return 0, newError(IndexOutOfRange, Position{}, "index %d out of range [0, %d)", idx, length)
	}
	return idx, nil
}

// SetMember writes target[key] = value and routes the change back to the
// owner of target when target was itself read from a host object.
func SetMember(target, key, value Value) error {
	if obj := target.Object(); obj != nil {
		return obj.Set(key, value)
	}

	switch target.Kind() {
	case KindNull:
		return newError(NullReference, Position{}, "cannot assign %s of unset", key)
	case KindArray:
		arr := target.Array()
		idx, err := indexOf(key, len(arr.Items))
		if err != nil {
			return err
		}
		item, err := Convert(value, arr.Elem)
		if err != nil {
			return err
		}
		arr.Items[idx] = item.withoutOrigin()
		return WriteBack(target)
	}
	return newError(InvalidAssignment, Position{}, "cannot assign members of %s", target.Type().Name())
}

// WriteBack stores v into the place it was read from, walking up the chain
// of origins. Objects are references and need no write back.
func WriteBack(v Value) error {
	origin := v.Origin()
	if origin == nil || v.Object() != nil {
		return nil
	}
	return SetMember(origin.Parent, origin.Key, v.withoutOrigin())
}

// Iterable reports whether a foreach loop can visit v without listing any
// element. Host objects are only asked when the loop runs.
func Iterable(v Value) error {
	if v.Object() != nil {
		return nil
	}
	switch v.Kind() {
	case KindArray, KindEnumerable, KindString:
		return nil
	case KindNull:
		return newError(NullReference, Position{}, "cannot iterate over unset")
	}
	return newError(NotIterable, Position{}, "%s is not iterable", v.Type().Name())
}

// Enumerate lists the elements a foreach loop visits.
func Enumerate(v Value) ([]Value, error) {
	if obj := v.Object(); obj != nil {
		return obj.Enumerate()
	}
	switch v.Kind() {
	case KindArray:
		return append([]Value(nil), v.Array().Items...), nil
	case KindEnumerable:
		r := v.Range()
		out := make([]Value, r.Len())
		for i := range out {
			out[i] = NewI32(r.At(i))
		}
		return out, nil
	case KindString:
		var out []Value
		for _, r := range v.Str() {
			out = append(out, NewString(string(r)))
		}
		return out, nil
	case KindNull:
		return nil, newError(NullReference, Position{}, "cannot iterate over unset")
	}
	return nil, newError(NotIterable, Position{}, "%s is not iterable", v.Type().Name())
}
