package cbs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a tagged script value. The zero Value is null.
type Value struct {
	typ    Type
	data   any
	origin *Origin
}

// Origin records where a value was read from so that writes into it can be
// routed back to the owner.
type Origin struct {
	Parent Value
	Key    Value
}

// Array is a mutable, reference-typed sequence.
type Array struct {
	Elem  Type
	Items []Value
}

// Range is the half-open (or inclusive) integer interval start..end.
type Range struct {
	Start     int32
	End       int32
	Inclusive bool
}

func (r Range) Len() int {
	n := int64(r.End) - int64(r.Start)
	if r.Inclusive {
		n++
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

func (r Range) At(i int) int32 {
	return r.Start + int32(i)
}

func (r Range) String() string {
	if r.Inclusive {
		return fmt.Sprintf("%d..=%d", r.Start, r.End)
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

func (v Value) Type() Type {
	if v.typ == nil {
		return TypeNull
	}
	return v.typ
}

func (v Value) Kind() TypeKind {
	return v.Type().Kind()
}

func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

func (v Value) Bool() bool {
	b, _ := v.data.(bool)
	return b
}

func (v Value) I32() int32 {
	n, _ := v.data.(int32)
	return n
}

func (v Value) F32() float32 {
	f, _ := v.data.(float32)
	return f
}

// Str returns the payload of a string value.
func (v Value) Str() string {
	s, _ := v.data.(string)
	return s
}

// Number widens i32 and f32 values. ok is false for other kinds.
func (v Value) Number() (float64, bool) {
	switch v.Kind() {
	case KindI32:
		return float64(v.I32()), true
	case KindF32:
		return float64(v.F32()), true
	}
	return 0, false
}

func (v Value) Array() *Array {
	arr, _ := v.data.(*Array)
	return arr
}

func (v Value) Range() Range {
	r, _ := v.data.(Range)
	return r
}

func (v Value) TypeValue() Type {
	t, _ := v.data.(Type)
	return t
}

// Function returns the script function behind a function or closure value.
func (v Value) Function() *DeclaredFunction {
	switch fn := v.data.(type) {
	case *DeclaredFunction:
		return fn
	case *Closure:
		return fn.Function
	}
	return nil
}

func (v Value) Closure() *Closure {
	cl, _ := v.data.(*Closure)
	return cl
}

func (v Value) Native() *NativeFunc {
	fn, _ := v.data.(*NativeFunc)
	return fn
}

func (v Value) Object() Object {
	obj, _ := v.data.(Object)
	return obj
}

func (v Value) Origin() *Origin {
	return v.origin
}

// WithOrigin returns a copy of v that remembers it was read as parent[key].
func (v Value) WithOrigin(parent, key Value) Value {
	v.origin = &Origin{Parent: parent, Key: key}
	return v
}

func (v Value) withoutOrigin() Value {
	v.origin = nil
	return v
}

// Callable reports whether v can be the callee of a call expression.
func (v Value) Callable() bool {
	switch v.data.(type) {
	case *DeclaredFunction, *Closure, *NativeFunc, Object:
		return true
	}
	return v.Kind() == KindType
}

// isScalar reports whether v is immutable and may be inlined as a literal.
func (v Value) isScalar() bool {
	switch v.Kind() {
	case KindNull, KindBool, KindI32, KindF32, KindString, KindType:
		return true
	case KindEnumerable:
		_, ok := v.data.(Range)
		return ok
	}
	return false
}

func (v Value) String() string {
	switch data := v.data.(type) {
	case nil:
		return "unset"
	case bool:
		return strconv.FormatBool(data)
	case int32:
		return strconv.FormatInt(int64(data), 10)
	case float32:
		return formatF32(data)
	case string:
		return data
	case *Array:
		parts := make([]string, len(data.Items))
		for i, item := range data.Items {
			if item.Kind() == KindString {
				parts[i] = strconv.Quote(item.Str())
				continue
			}
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Range:
		return data.String()
	case Type:
		return data.Name()
	case *DeclaredFunction:
		return "fn " + data.Name
	case *Closure:
		return "fn " + data.Function.Name
	case *NativeFunc:
		return "native " + data.Name
	case fmt.Stringer:
		return data.String()
	case Object:
		return "<" + data.TypeName() + ">"
	default:
		return fmt.Sprintf("%v", data)
	}
}

func formatF32(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if math.IsInf(float64(f), 0) || math.IsNaN(float64(f)) {
		return s
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Equal compares by value; i32 and f32 compare numerically, arrays element
// by element, and functions and objects by identity.
func (v Value) Equal(other Value) bool {
	if a, ok := v.Number(); ok {
		if v.Kind() == KindI32 && other.Kind() == KindI32 {
			return v.I32() == other.I32()
		}
		b, ok := other.Number()
		return ok && a == b
	}
	if v.Kind() != other.Kind() {
		return false
	}

	switch data := v.data.(type) {
	case nil:
		return other.data == nil
	case bool, string, Range:
		return data == other.data
	case *Array:
		od := other.Array()
		if data == od {
			return true
		}
		if od == nil || len(data.Items) != len(od.Items) {
			return false
		}
		for i := range data.Items {
			if !data.Items[i].Equal(od.Items[i]) {
				return false
			}
		}
		return true
	case Type:
		ot := other.TypeValue()
		return ot != nil && data.Name() == ot.Name()
	case *DeclaredFunction:
		return other.Closure() == nil && data == other.Function()
	case *Closure:
		return data == other.Closure()
	case *NativeFunc:
		return data == other.Native()
	case Object:
		return data == other.Object()
	}
	return false
}

// clone copies arrays deeply so that a fresh run does not observe the
// mutations of a previous one.
func (v Value) clone() Value {
	arr := v.Array()
	if arr == nil {
		return v
	}
	items := make([]Value, len(arr.Items))
	for i, item := range arr.Items {
		items[i] = item.clone()
	}
	v.data = &Array{Elem: arr.Elem, Items: items}
	return v
}
