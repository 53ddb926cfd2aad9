package cbs

import "fmt"

func NewNull() Value {
	return Value{typ: TypeNull}
}

func NewBool(b bool) Value {
	return Value{typ: TypeBool, data: b}
}

func NewI32(n int32) Value {
	return Value{typ: TypeI32, data: n}
}

func NewF32(f float32) Value {
	return Value{typ: TypeF32, data: f}
}

func NewString(s string) Value {
	return Value{typ: TypeString, data: s}
}

// NewArray wraps items without copying them.
func NewArray(elem Type, items []Value) Value {
	if elem == nil {
		elem = TypeAny
	}
	if items == nil {
		items = []Value{}
	}
	return Value{typ: ArrayOf(elem), data: &Array{Elem: elem, Items: items}}
}

// NewArrayOf infers the element type: the common type of all items, or any.
func NewArrayOf(items []Value) Value {
	var elem Type
	for _, item := range items {
		if elem == nil {
			elem = item.Type()
			continue
		}
		if elem.Name() != item.Type().Name() {
			elem = TypeAny
			break
		}
	}
	return NewArray(elem, items)
}

func NewRange(start, end int32, inclusive bool) Value {
	return Value{typ: EnumerableOf(TypeI32), data: Range{Start: start, End: end, Inclusive: inclusive}}
}

func NewTypeValue(t Type) Value {
	return Value{typ: TypeType, data: t}
}

func NewFunction(fn *DeclaredFunction) Value {
	return Value{typ: fn.Type(), data: fn}
}

func NewNative(name string, pure bool, fn NativeFn) Value {
	return Value{typ: TypeFunction, data: &NativeFunc{Name: name, Pure: pure, Fn: fn}}
}

func NewObject(obj Object) Value {
	return Value{typ: &ObjectType{TypeName: obj.TypeName()}, data: obj}
}

// ValueOf converts common Go values into script values.
func ValueOf(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return NewNull(), nil
	case Value:
		return v, nil
	case bool:
		return NewBool(v), nil
	case int:
		return NewI32(int32(v)), nil
	case int32:
		return NewI32(v), nil
	case int64:
		return NewI32(int32(v)), nil
	case float32:
		return NewF32(v), nil
	case float64:
		return NewF32(float32(v)), nil
	case string:
		return NewString(v), nil
	case []Value:
		return NewArrayOf(v), nil
	case Object:
		return NewObject(v), nil
	case NativeFn:
		return NewNative("native", false, v), nil
	case Type:
		return NewTypeValue(v), nil
	default:
		return Value{}, fmt.Errorf("cbs: unsupported Go value of type %T", v)
	}
}

// MustValueOf is ValueOf for values known to convert.
func MustValueOf(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}
