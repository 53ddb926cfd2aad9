package cbs

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

type sprite struct {
	x     float32
	items Value
	sets  int
}

func newSpriteObject(s *sprite) *NativeObject {
	return NewObjectBuilder("sprite").
		Constant("kind", NewString("sprite")).
		Getter("double", func() (Value, error) { return NewF32(s.x * 2), nil }).
		Property("x",
			func() (Value, error) { return NewF32(s.x), nil },
			func(v Value) error {
				f, err := Convert(v, TypeF32)
				if err != nil {
					return err
				}
				s.x = f.F32()
				return nil
			}).
		Property("items",
			func() (Value, error) { return s.items, nil },
			func(v Value) error {
				s.items = v
				s.sets++
				return nil
			}).
		Method("move", func(_ *CallContext, args []Value) (Value, error) {
			if err := ExpectArgs("move", args, 1); err != nil {
				return Value{}, err
			}
			n, err := NumberArg("move", args[0])
			if err != nil {
				return Value{}, err
			}
			s.x += float32(n)
			return NewF32(s.x), nil
		}).
		Fallback(func(key Value) (Value, error) {
			if key.Kind() == KindI32 {
				return NewI32(key.I32() * 10), nil
			}
			return Value{}, newError(MissingMember, Position{}, "sprite has no member %s", key)
		}).
		Build(s)
}

func TestObjectBuilderMembers(t *testing.T) {
	s := &sprite{x: 1.5}
	obj := NewObject(newSpriteObject(s))

	kind, err := GetMember(obj, NewString("kind"))
	if err != nil || kind.Str() != "sprite" {
		t.Fatalf("kind = %v, %v", kind, err)
	}
	double, err := GetMember(obj, NewString("double"))
	if err != nil || double.F32() != 3 {
		t.Fatalf("double = %v, %v", double, err)
	}
	if err := SetMember(obj, NewString("x"), NewI32(4)); err != nil {
		t.Fatalf("set x: %v", err)
	}
	if s.x != 4 {
		t.Fatalf("expected x = 4, got %v", s.x)
	}

	move, err := GetMember(obj, NewString("move"))
	if err != nil || !move.Callable() {
		t.Fatalf("move = %v, %v", move, err)
	}
	got, err := move.Native().Fn(&CallContext{}, []Value{NewF32(0.5)})
	if err != nil || got.F32() != 4.5 {
		t.Fatalf("move() = %v, %v", got, err)
	}

	byIndex, err := GetMember(obj, NewI32(3))
	if err != nil || byIndex.I32() != 30 {
		t.Fatalf("fallback = %v, %v", byIndex, err)
	}
	if _, err := GetMember(obj, NewString("nope")); !errors.Is(err, &Error{Kind: MissingMember}) {
		t.Fatalf("expected MissingMember, got %v", err)
	}
}

func TestObjectReadOnlyMembers(t *testing.T) {
	obj := NewObject(newSpriteObject(&sprite{}))
	for _, name := range []string{"kind", "double", "move"} {
		err := SetMember(obj, NewString(name), NewI32(1))
		if !errors.Is(err, &Error{Kind: AssignToConstant}) {
			t.Fatalf("%s: expected AssignToConstant, got %v", name, err)
		}
	}
	if err := SetMember(obj, NewString("other"), NewI32(1)); !errors.Is(err, &Error{Kind: MissingMember}) {
		t.Fatalf("expected MissingMember, got %v", err)
	}
}

func TestNativeObjectKeys(t *testing.T) {
	obj := newSpriteObject(&sprite{})
	want := []string{"double", "items", "kind", "move", "x"}
	got := obj.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
	if _, ok := obj.Host().(*sprite); !ok {
		t.Fatalf("host not preserved")
	}
}

func TestBaseObjectDefaults(t *testing.T) {
	obj := NewObject(BaseObject{Name: "thing"})
	if _, err := Enumerate(obj); !errors.Is(err, &Error{Kind: NotIterable}) {
		t.Fatalf("expected NotIterable, got %v", err)
	}
	if _, err := BinaryOp(OpAdd, obj, NewI32(1)); !errors.Is(err, &Error{Kind: NotSupported}) {
		t.Fatalf("expected NotSupported, got %v", err)
	}
	if _, err := UnaryOp(OpNeg, obj); !errors.Is(err, &Error{Kind: NotSupported}) {
		t.Fatalf("expected NotSupported, got %v", err)
	}
	if _, err := callValue(&CallContext{}, obj, nil); !errors.Is(err, &Error{Kind: NotCallable}) {
		t.Fatalf("expected NotCallable, got %v", err)
	}
	eq, err := BinaryOp(OpEq, obj, obj)
	if err != nil || !eq.Bool() {
		t.Fatalf("objects should equal themselves: %v, %v", eq, err)
	}
}

func TestArrayPushWritesBackThroughOrigin(t *testing.T) {
	s := &sprite{items: NewArray(TypeI32, []Value{NewI32(1), NewI32(2)})}
	obj := NewObject(newSpriteObject(s))

	items, err := GetMember(obj, NewString("items"))
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if items.Origin() == nil {
		t.Fatalf("member read should remember its origin")
	}
	push, err := GetMember(items, NewString("push"))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	n, err := push.Native().Fn(&CallContext{}, []Value{NewI32(3)})
	if err != nil || n.I32() != 3 {
		t.Fatalf("push() = %v, %v", n, err)
	}
	if s.sets != 1 {
		t.Fatalf("expected one write back, got %d", s.sets)
	}
	if got := s.items.String(); got != "[1, 2, 3]" {
		t.Fatalf("items = %s", got)
	}
	if s.items.Origin() != nil {
		t.Fatalf("written-back value should not carry an origin")
	}

	if _, err := push.Native().Fn(&CallContext{}, []Value{NewString("x")}); !errors.Is(err, &Error{Kind: InvalidType}) {
		t.Fatalf("expected InvalidType for mistyped push, got %v", err)
	}
}

func TestArrayIndexing(t *testing.T) {
	arr := NewArrayOf([]Value{NewI32(5), NewI32(6)})
	if v, err := GetMember(arr, NewI32(1)); err != nil || v.I32() != 6 {
		t.Fatalf("arr[1] = %v, %v", v, err)
	}
	if _, err := GetMember(arr, NewI32(2)); !errors.Is(err, &Error{Kind: IndexOutOfRange}) {
		t.Fatalf("expected IndexOutOfRange, got %v", err)
	}
	if err := SetMember(arr, NewI32(0), NewI32(9)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if arr.String() != "[9, 6]" {
		t.Fatalf("arr = %s", arr)
	}
	if length, _ := GetMember(arr, NewString("length")); length.I32() != 2 {
		t.Fatalf("length = %v", length)
	}
}

func TestRangeAndStringMembers(t *testing.T) {
	r := NewRange(2, 5, false)
	for key, want := range map[string]int32{"start": 2, "end": 5, "length": 3} {
		v, err := GetMember(r, NewString(key))
		if err != nil || v.I32() != want {
			t.Fatalf("range.%s = %v, %v", key, v, err)
		}
	}
	if v, _ := GetMember(r, NewI32(1)); v.I32() != 3 {
		t.Fatalf("range[1] = %v", v)
	}

	s := NewString("héllo")
	if v, _ := GetMember(s, NewString("length")); v.I32() != 5 {
		t.Fatalf("length = %v", v)
	}
	if v, _ := GetMember(s, NewI32(1)); v.Str() != "é" {
		t.Fatalf("s[1] = %v", v)
	}
	if err := SetMember(s, NewI32(0), NewString("x")); !errors.Is(err, &Error{Kind: InvalidAssignment}) {
		t.Fatalf("expected InvalidAssignment, got %v", err)
	}
}

func TestNullMembers(t *testing.T) {
	if _, err := GetMember(NewNull(), NewString("x")); !errors.Is(err, &Error{Kind: NullReference}) {
		t.Fatalf("expected NullReference, got %v", err)
	}
	if err := SetMember(NewNull(), NewString("x"), NewI32(1)); !errors.Is(err, &Error{Kind: NullReference}) {
		t.Fatalf("expected NullReference, got %v", err)
	}
	if _, err := Enumerate(NewNull()); !errors.Is(err, &Error{Kind: NullReference}) {
		t.Fatalf("expected NullReference, got %v", err)
	}
	if _, err := Enumerate(NewI32(3)); !errors.Is(err, &Error{Kind: NotIterable}) {
		t.Fatalf("expected NotIterable, got %v", err)
	}
}

func TestEnumerate(t *testing.T) {
	items, err := Enumerate(NewRange(1, 3, true))
	if err != nil || len(items) != 3 || items[2].I32() != 3 {
		t.Fatalf("range items = %v, %v", items, err)
	}
	items, err = Enumerate(NewString("ab"))
	if err != nil || len(items) != 2 || items[1].Str() != "b" {
		t.Fatalf("string items = %v, %v", items, err)
	}
}

type recordingInvoker struct {
	calls []Value
}

func (r *recordingInvoker) Invoke(fn Value, args ...Value) (Value, error) {
	r.calls = append(r.calls, fn)
	return callValue(&CallContext{}, fn, args)
}

func TestCallbackRegistry(t *testing.T) {
	reg := NewCallbackRegistry()
	if _, err := reg.Register(NewI32(0), NewI32(1)); !errors.Is(err, &Error{Kind: NotCallable}) {
		t.Fatalf("expected NotCallable, got %v", err)
	}

	double := NewNative("double", true, func(_ *CallContext, args []Value) (Value, error) {
		return NewI32(args[0].I32() * 2), nil
	})
	first, err := reg.Register(NewF32(1), double)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, _ := reg.Register(NewF32(2), double)
	third, _ := reg.Register(NewF32(0.5), double)
	if first == second || first == uuid.Nil {
		t.Fatalf("expected distinct ids")
	}

	due := reg.Select(func(key Value) bool { return key.F32() <= 1 })
	if len(due) != 2 || due[0].ID != first || due[1].ID != third {
		t.Fatalf("unexpected selection %+v", due)
	}

	inv := &recordingInvoker{}
	v, err := reg.Invoke(inv, second, NewI32(21))
	if err != nil || v.I32() != 42 || len(inv.calls) != 1 {
		t.Fatalf("invoke = %v, %v", v, err)
	}

	if !reg.Remove(second) || reg.Remove(second) {
		t.Fatalf("remove should succeed exactly once")
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 callbacks, got %d", reg.Len())
	}
	if _, err := reg.Invoke(inv, second); !errors.Is(err, &Error{Kind: MissingMember}) {
		t.Fatalf("expected MissingMember, got %v", err)
	}
	if all := reg.Select(nil); len(all) != 2 {
		t.Fatalf("expected 2 callbacks, got %d", len(all))
	}
}
