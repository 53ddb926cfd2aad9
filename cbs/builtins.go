package cbs

import "math"

type builtin struct {
	fn   NativeFn
	pure bool
}

// builtins are registered on every engine. Hosts add their own vocabulary
// through RegisterNative and RegisterObject.
var builtins = map[string]builtin{
	"len":   {fn: builtinLen, pure: true},
	"abs":   {fn: builtinAbs, pure: true},
	"min":   {fn: builtinMin, pure: true},
	"max":   {fn: builtinMax, pure: true},
	"clamp": {fn: builtinClamp, pure: true},
	"lerp":  {fn: builtinLerp, pure: true},
}

// ExpectArgs checks the argument count of a native.
func ExpectArgs(name string, args []Value, n int) error {
	if len(args) != n {
		return newError(ArgumentCount, Position{}, "%s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

// NumberArg reads a numeric argument of either number type.
func NumberArg(name string, v Value) (float64, error) {
	n, ok := v.Number()
	if !ok {
		return 0, newError(InvalidType, Position{}, "%s expects a number, got %s", name, v.Type().Name())
	}
	return n, nil
}

// numberResult keeps integer arithmetic integral. An integral result that
// does not fit i32 is an error.
func numberResult(f float64, integral bool) (Value, error) {
	if integral {
		if f < math.MinInt32 || f > math.MaxInt32 {
			return Value{}, newError(InvalidArgument, Position{}, "result %.0f does not fit i32", f)
		}
		return NewI32(int32(f)), nil
	}
	return NewF32(float32(f)), nil
}

func allI32(args []Value) bool {
	for _, arg := range args {
		if arg.Kind() != KindI32 {
			return false
		}
	}
	return true
}

func builtinLen(_ *CallContext, args []Value) (Value, error) {
	if err := ExpectArgs("len", args, 1); err != nil {
		return Value{}, err
	}
	switch v := args[0]; v.Kind() {
	case KindString:
		return NewI32(int32(len([]rune(v.Str())))), nil
	case KindArray:
		return NewI32(int32(len(v.Array().Items))), nil
	case KindEnumerable:
		if v.Object() == nil {
			return numberResult(float64(v.Range().Len()), true)
		}
	}
	items, err := Enumerate(args[0])
	if err != nil {
		return Value{}, err
	}
	return NewI32(int32(len(items))), nil
}

func builtinAbs(_ *CallContext, args []Value) (Value, error) {
	if err := ExpectArgs("abs", args, 1); err != nil {
		return Value{}, err
	}
	n, err := NumberArg("abs", args[0])
	if err != nil {
		return Value{}, err
	}
	return numberResult(math.Abs(n), allI32(args))
}

func extremum(name string, args []Value, better func(a, b float64) bool) (Value, error) {
	if len(args) == 0 {
		return Value{}, newError(ArgumentCount, Position{}, "%s expects at least 1 argument", name)
	}
	best, err := NumberArg(name, args[0])
	if err != nil {
		return Value{}, err
	}
	for _, arg := range args[1:] {
		n, err := NumberArg(name, arg)
		if err != nil {
			return Value{}, err
		}
		if better(n, best) {
			best = n
		}
	}
	return numberResult(best, allI32(args))
}

func builtinMin(_ *CallContext, args []Value) (Value, error) {
	return extremum("min", args, func(a, b float64) bool { return a < b })
}

func builtinMax(_ *CallContext, args []Value) (Value, error) {
	return extremum("max", args, func(a, b float64) bool { return a > b })
}

func builtinClamp(_ *CallContext, args []Value) (Value, error) {
	if err := ExpectArgs("clamp", args, 3); err != nil {
		return Value{}, err
	}
	var n [3]float64
	for i, arg := range args {
		f, err := NumberArg("clamp", arg)
		if err != nil {
			return Value{}, err
		}
		n[i] = f
	}
	if n[1] > n[2] {
		return Value{}, newError(InvalidArgument, Position{}, "clamp: lower bound %g exceeds upper bound %g", n[1], n[2])
	}
	return numberResult(math.Min(math.Max(n[0], n[1]), n[2]), allI32(args))
}

// lerp(a, b, t) interpolates linearly and always yields f32.
func builtinLerp(_ *CallContext, args []Value) (Value, error) {
	if err := ExpectArgs("lerp", args, 3); err != nil {
		return Value{}, err
	}
	var n [3]float64
	for i, arg := range args {
		f, err := NumberArg("lerp", arg)
		if err != nil {
			return Value{}, err
		}
		n[i] = f
	}
	return NewF32(float32(n[0] + (n[1]-n[0])*n[2])), nil
}
