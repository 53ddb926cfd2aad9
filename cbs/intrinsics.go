package cbs

// intrinsics are the helpers compiled code reaches through OpCallNative for
// everything that is not a slot copy or an operator.
var intrinsics = map[string]NativeFn{
	"__get": func(_ *CallContext, args []Value) (Value, error) {
		return GetMember(args[0], args[1])
	},
	"__set": func(_ *CallContext, args []Value) (Value, error) {
		if err := SetMember(args[0], args[1], args[2]); err != nil {
			return Value{}, err
		}
		return args[2], nil
	},
	"__array": func(_ *CallContext, args []Value) (Value, error) {
		items := make([]Value, len(args))
		for i, arg := range args {
			items[i] = arg.withoutOrigin()
		}
		return NewArrayOf(items), nil
	},
	"__variadic": func(_ *CallContext, args []Value) (Value, error) {
		return variadicArray(args[0].TypeValue(), args[1:])
	},
	"__range": func(_ *CallContext, args []Value) (Value, error) {
		return makeRange(args[0], args[1], args[2].Bool())
	},
	"__coerce": func(_ *CallContext, args []Value) (Value, error) {
		return Convert(args[0], args[1].TypeValue())
	},
	"__iter": func(_ *CallContext, args []Value) (Value, error) {
		it, err := newIterator(args[0])
		if err != nil {
			return Value{}, err
		}
		return NewObject(it), nil
	},
	"__next": func(_ *CallContext, args []Value) (Value, error) {
		it := args[0].Object().(*iterator)
		it.pos++
		return NewBool(it.pos < it.n), nil
	},
	"__current": func(_ *CallContext, args []Value) (Value, error) {
		return args[0].Object().(*iterator).current(), nil
	},
	"__closure": func(_ *CallContext, args []Value) (Value, error) {
		return newClosure(args[0].Function(), args[1:]), nil
	},
	"__frame": func(_ *CallContext, _ []Value) (Value, error) {
		return NewObject(&scopeFrame{BaseObject: BaseObject{Name: "frame"}}), nil
	},
}

// iterator is the cursor a foreach loop keeps in a temporary slot. Ranges
// are walked by position; everything else is listed up front.
type iterator struct {
	BaseObject
	items []Value
	span  Range
	lazy  bool
	n     int
	pos   int
}

func newIterator(v Value) (*iterator, error) {
	it := &iterator{BaseObject: BaseObject{Name: "iterator"}, pos: -1}
	if span, ok := v.data.(Range); ok {
		it.span, it.lazy, it.n = span, true, span.Len()
		return it, nil
	}
	items, err := Enumerate(v)
	if err != nil {
		return nil, err
	}
	it.items, it.n = items, len(items)
	return it, nil
}

func (it *iterator) current() Value {
	if it.lazy {
		return NewI32(it.span.At(it.pos))
	}
	return it.items[it.pos]
}

// scopeFrame marks one activation of a scope whose variables closures capture.
// Each entry into the scope stores a new frame in the scope's frame slot.
type scopeFrame struct {
	BaseObject
}
