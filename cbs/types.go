package cbs

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// TypeKind is the closed set of type families.
type TypeKind uint8

const (
	KindAny TypeKind = iota
	KindBool
	KindI32
	KindF32
	KindString
	KindArray
	KindEnumerable
	KindFunction
	KindType
	KindNull
	KindInvalid
	KindObject
)

// Type describes a script type. Identity is the type name.
type Type interface {
	Name() string
	Kind() TypeKind
	// CanCoerceInto reports whether values of this type convert implicitly
	// into other.
	CanCoerceInto(other Type) bool
	// Construct builds a value of this type from call arguments. It is used
	// for explicit casts such as i32("12") and for array construction.
	Construct(args []Value) (Value, error)
	// Ancestor returns the structural parent type, or nil.
	Ancestor() Type
}

type basicType struct {
	name      string
	kind      TypeKind
	coercions []TypeKind
}

var (
	TypeAny     Type = &basicType{name: "any", kind: KindAny}
	TypeBool    Type = &basicType{name: "bool", kind: KindBool, coercions: []TypeKind{KindString, KindI32}}
	TypeI32     Type = &basicType{name: "i32", kind: KindI32, coercions: []TypeKind{KindString, KindF32, KindBool}}
	TypeF32     Type = &basicType{name: "f32", kind: KindF32, coercions: []TypeKind{KindString}}
	TypeString  Type = &basicType{name: "string", kind: KindString}
	TypeType    Type = &basicType{name: "type", kind: KindType}
	TypeNull    Type = &basicType{name: "null", kind: KindNull}
	TypeInvalid Type = &basicType{name: "invalid", kind: KindInvalid}

	// TypeFunction matches any callable.
	TypeFunction Type = &FunctionType{}
)

func (t *basicType) Name() string   { return t.name }
func (t *basicType) Kind() TypeKind { return t.kind }
func (t *basicType) Ancestor() Type { return nil }

func (t *basicType) CanCoerceInto(other Type) bool {
	for _, kind := range t.coercions {
		if other.Kind() == kind {
			return true
		}
	}
	return false
}

func (t *basicType) Construct(args []Value) (Value, error) {
	switch t.kind {
	case KindNull:
		if len(args) != 0 {
			return Value{}, arityError(t, 0, len(args))
		}
		return NewNull(), nil
	case KindInvalid:
		return Value{}, newError(InvalidType, Position{}, "cannot construct a value of type invalid")
	}

	if len(args) != 1 {
		return Value{}, arityError(t, 1, len(args))
	}
	arg := args[0]

	switch t.kind {
	case KindAny:
		return arg, nil
	case KindType:
		return NewTypeValue(arg.Type()), nil
	case KindString:
		return NewString(arg.String()), nil
	case KindBool:
		switch arg.Kind() {
		case KindBool:
			return arg, nil
		case KindI32:
			return NewBool(arg.I32() != 0), nil
		case KindF32:
			return NewBool(arg.F32() != 0), nil
		case KindString:
			b, err := strconv.ParseBool(strings.TrimSpace(arg.Str()))
			if err != nil {
				return Value{}, newError(InvalidArgument, Position{}, "cannot parse %q as bool", arg.Str())
			}
			return NewBool(b), nil
		}
	case KindI32:
		switch arg.Kind() {
		case KindI32:
			return arg, nil
		case KindF32:
			f := float64(arg.F32())
			if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
				return Value{}, newError(InvalidArgument, Position{}, "%s is out of range for i32", arg)
			}
			return NewI32(int32(f)), nil
		case KindBool:
			if arg.Bool() {
				return NewI32(1), nil
			}
			return NewI32(0), nil
		case KindString:
			n, err := strconv.ParseInt(strings.TrimSpace(arg.Str()), 0, 32)
			if err != nil {
				return Value{}, newError(InvalidArgument, Position{}, "cannot parse %q as i32", arg.Str())
			}
			return NewI32(int32(n)), nil
		}
	case KindF32:
		switch arg.Kind() {
		case KindF32:
			return arg, nil
		case KindI32:
			return NewF32(float32(arg.I32())), nil
		case KindBool:
			if arg.Bool() {
				return NewF32(1), nil
			}
			return NewF32(0), nil
		case KindString:
			f, err := strconv.ParseFloat(strings.TrimSpace(arg.Str()), 32)
			if err != nil {
				return Value{}, newError(InvalidArgument, Position{}, "cannot parse %q as f32", arg.Str())
			}
			return NewF32(float32(f)), nil
		}
	}
	return Value{}, newError(InvalidType, Position{}, "cannot construct %s from %s", t.name, arg.Type().Name())
}

func arityError(t Type, want, got int) *Error {
	return newError(InvalidArgument, Position{}, "%s expects %d argument(s), got %d", t.Name(), want, got)
}

// ArrayType is array<T>; its ancestor is enumerable<T>.
type ArrayType struct {
	Elem Type
}

// ArrayOf returns array<elem>.
func ArrayOf(elem Type) *ArrayType {
	if elem == nil {
		elem = TypeAny
	}
	return &ArrayType{Elem: elem}
}

func (t *ArrayType) Name() string            { return "array<" + t.Elem.Name() + ">" }
func (t *ArrayType) Kind() TypeKind          { return KindArray }
func (t *ArrayType) Ancestor() Type          { return EnumerableOf(t.Elem) }
func (t *ArrayType) CanCoerceInto(Type) bool { return false }
func (t *ArrayType) Construct(args []Value) (Value, error) {
	items := make([]Value, len(args))
	for i, arg := range args {
		item, err := Convert(arg, t.Elem)
		if err != nil {
			return Value{}, err
		}
		items[i] = item
	}
	return NewArray(t.Elem, items), nil
}

// EnumerableType is the abstract parent of arrays and ranges.
type EnumerableType struct {
	Elem Type
}

// EnumerableOf returns enumerable<elem>.
func EnumerableOf(elem Type) *EnumerableType {
	if elem == nil {
		elem = TypeAny
	}
	return &EnumerableType{Elem: elem}
}

func (t *EnumerableType) Name() string            { return "enumerable<" + t.Elem.Name() + ">" }
func (t *EnumerableType) Kind() TypeKind          { return KindEnumerable }
func (t *EnumerableType) Ancestor() Type          { return nil }
func (t *EnumerableType) CanCoerceInto(Type) bool { return false }
func (t *EnumerableType) Construct([]Value) (Value, error) {
	return Value{}, newError(InvalidType, Position{}, "cannot construct abstract type %s", t.Name())
}

// FunctionType describes a callable. The zero value is the generic
// function type that accepts any callable.
type FunctionType struct {
	Params   []Type
	Return   Type
	Variadic bool
}

func (t *FunctionType) generic() bool { return t.Return == nil && len(t.Params) == 0 }

func (t *FunctionType) Name() string {
	if t.generic() {
		return "function"
	}
	var b strings.Builder
	b.WriteString("fn(")
	for i, param := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if t.Variadic && i == len(t.Params)-1 {
			b.WriteString("..")
		}
		b.WriteString(param.Name())
	}
	b.WriteString(")")
	if t.Return != nil {
		b.WriteString(" -> ")
		b.WriteString(t.Return.Name())
	}
	return b.String()
}

func (t *FunctionType) Kind() TypeKind          { return KindFunction }
func (t *FunctionType) Ancestor() Type          { return nil }
func (t *FunctionType) CanCoerceInto(Type) bool { return false }
func (t *FunctionType) Construct([]Value) (Value, error) {
	return Value{}, newError(InvalidType, Position{}, "cannot construct a function value")
}

// ObjectType names a host object type exposed through the binding bridge.
type ObjectType struct {
	TypeName string
}

func (t *ObjectType) Name() string            { return t.TypeName }
func (t *ObjectType) Kind() TypeKind          { return KindObject }
func (t *ObjectType) Ancestor() Type          { return nil }
func (t *ObjectType) CanCoerceInto(Type) bool { return false }
func (t *ObjectType) Construct([]Value) (Value, error) {
	return Value{}, newError(InvalidType, Position{}, "cannot construct host object %s", t.TypeName)
}

func isAncestor(ancestor, t Type) bool {
	for cur := t.Ancestor(); cur != nil; cur = cur.Ancestor() {
		if cur.Name() == ancestor.Name() {
			return true
		}
	}
	return false
}

// CanBeAssignedTo reports whether a value of type src may be stored where
// dst is expected: equal types, any, an ancestor relation in either
// direction, or a declared coercion from src.
func CanBeAssignedTo(src, dst Type) bool {
	if src == nil || dst == nil {
		return false
	}
	if src.Name() == dst.Name() || dst.Kind() == KindAny {
		return true
	}
	if fn, ok := dst.(*FunctionType); ok && fn.generic() && src.Kind() == KindFunction {
		return true
	}
	if isAncestor(dst, src) || isAncestor(src, dst) {
		return true
	}
	if elem := elementType(dst); elem != nil && elem.Kind() == KindAny && elementType(src) != nil {
		return true
	}
	return src.CanCoerceInto(dst)
}

func elementType(t Type) Type {
	switch t := t.(type) {
	case *ArrayType:
		return t.Elem
	case *EnumerableType:
		return t.Elem
	}
	return nil
}

// Convert adapts v to dst using CanBeAssignedTo; coercions go through the
// target's constructor.
func Convert(v Value, dst Type) (Value, error) {
	src := v.Type()
	if !CanBeAssignedTo(src, dst) {
		return Value{}, newError(InvalidType, Position{}, "cannot use %s as %s", src.Name(), dst.Name())
	}
	if src.CanCoerceInto(dst) && src.Name() != dst.Name() {
		return dst.Construct([]Value{v})
	}
	return v, nil
}

var namedTypes = map[string]Type{
	"any":      TypeAny,
	"bool":     TypeBool,
	"i32":      TypeI32,
	"f32":      TypeF32,
	"string":   TypeString,
	"type":     TypeType,
	"null":     TypeNull,
	"function": TypeFunction,
}

// TypeNames lists the names usable in type annotations, sorted.
func TypeNames() []string {
	names := make([]string, 0, len(namedTypes)+2)
	for name := range namedTypes {
		names = append(names, name)
	}
	names = append(names, "array", "enumerable")
	sort.Strings(names)
	return names
}

// LookupType resolves a bare type name. `array` alone means array<any>.
func LookupType(name string) (Type, bool) {
	if t, ok := namedTypes[name]; ok {
		return t, true
	}
	switch name {
	case "array":
		return ArrayOf(TypeAny), true
	case "enumerable":
		return EnumerableOf(TypeAny), true
	}
	return nil, false
}

// ResolveType turns a parsed type annotation into a Type.
func ResolveType(expr *TypeExpr) (Type, error) {
	switch expr.Name {
	case "array", "enumerable":
		elem := TypeAny
		switch len(expr.Args) {
		case 0:
		case 1:
			arg, err := ResolveType(expr.Args[0])
			if err != nil {
				return nil, err
			}
			elem = arg
		default:
			return nil, newError(InvalidType, expr.Pos(), "%s takes one type argument, got %d", expr.Name, len(expr.Args))
		}
		if expr.Name == "array" {
			return ArrayOf(elem), nil
		}
		return EnumerableOf(elem), nil
	}

	t, ok := namedTypes[expr.Name]
	if !ok {
		return nil, newError(InvalidType, expr.Pos(), "unknown type %s", expr.Name)
	}
	if len(expr.Args) > 0 {
		return nil, newError(InvalidType, expr.Pos(), "type %s does not take type arguments", expr.Name)
	}
	return t, nil
}
