package cbs

import (
	"errors"
	"testing"
)

func callBuiltin(t *testing.T, name string, args ...Value) (Value, error) {
	t.Helper()
	b, ok := builtins[name]
	if !ok {
		t.Fatalf("no builtin %s", name)
	}
	return b.fn(&CallContext{}, args)
}

func TestBuiltinResults(t *testing.T) {
	cases := []struct {
		name string
		args []Value
		want Value
	}{
		{"len", []Value{NewString("héllo")}, NewI32(5)},
		{"len", []Value{NewArrayOf([]Value{NewI32(1), NewI32(2)})}, NewI32(2)},
		{"len", []Value{NewRange(0, 10, false)}, NewI32(10)},
		{"len", []Value{NewRange(0, 2147483647, false)}, NewI32(2147483647)},
		{"abs", []Value{NewI32(-2147483647)}, NewI32(2147483647)},
		{"abs", []Value{NewI32(-3)}, NewI32(3)},
		{"abs", []Value{NewF32(-0.5)}, NewF32(0.5)},
		{"min", []Value{NewI32(3), NewI32(1), NewI32(2)}, NewI32(1)},
		{"max", []Value{NewI32(1), NewF32(2.5)}, NewF32(2.5)},
		{"clamp", []Value{NewI32(5), NewI32(0), NewI32(3)}, NewI32(3)},
		{"clamp", []Value{NewF32(-1), NewI32(0), NewI32(3)}, NewF32(0)},
		{"lerp", []Value{NewI32(0), NewI32(10), NewF32(0.5)}, NewF32(5)},
		{"lerp", []Value{NewI32(0), NewI32(10), NewI32(1)}, NewF32(10)},
	}
	for _, tc := range cases {
		got, err := callBuiltin(t, tc.name, tc.args...)
		if err != nil {
			t.Fatalf("%s%v: %v", tc.name, tc.args, err)
		}
		if got.Kind() != tc.want.Kind() || !got.Equal(tc.want) {
			t.Fatalf("%s%v = %s (%s), want %s (%s)", tc.name, tc.args, got, got.Type().Name(), tc.want, tc.want.Type().Name())
		}
	}
}

func TestBuiltinErrors(t *testing.T) {
	cases := []struct {
		name string
		args []Value
		kind ErrorType
	}{
		{"len", nil, ArgumentCount},
		{"len", []Value{NewI32(1)}, NotIterable},
		{"abs", []Value{NewString("x")}, InvalidType},
		{"min", nil, ArgumentCount},
		{"max", []Value{NewI32(1), NewBool(true)}, InvalidType},
		{"clamp", []Value{NewI32(1), NewI32(3), NewI32(0)}, InvalidArgument},
		{"lerp", []Value{NewI32(1)}, ArgumentCount},
		{"abs", []Value{NewI32(-2147483648)}, InvalidArgument},
	}
	for _, tc := range cases {
		_, err := callBuiltin(t, tc.name, tc.args...)
		if !errors.Is(err, &Error{Kind: tc.kind}) {
			t.Fatalf("%s%v: expected %s, got %v", tc.name, tc.args, tc.kind, err)
		}
	}
}

func TestBuiltinsArePure(t *testing.T) {
	for name, b := range builtins {
		if !b.pure {
			t.Fatalf("builtin %s should be pure", name)
		}
	}
}
