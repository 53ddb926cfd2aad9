package cbs

// DeclaredFunction is a script function or closure. The analyzer creates one
// per declaration and computes Pure; the compiler assigns its entry.
type DeclaredFunction struct {
	Name          string
	ReturnType    Type
	ArgumentTypes []Type
	ArgumentNames []string
	IsVariadic    bool
	Pure          bool
	Body          *BlockStmt
	Scope         ScopeID
	Params        []*Symbol
	Pos           Position

	closure bool
}

// Type returns the function's signature type.
func (f *DeclaredFunction) Type() Type {
	ret := f.ReturnType
	if ret == nil {
		ret = TypeAny
	}
	return &FunctionType{Params: f.ArgumentTypes, Return: ret, Variadic: f.IsVariadic}
}

// Arity reports the number of required arguments.
func (f *DeclaredFunction) Arity() int {
	if f.IsVariadic {
		return len(f.ArgumentNames) - 1
	}
	return len(f.ArgumentNames)
}

func (f *DeclaredFunction) acceptsArgs(n int) bool {
	if f.IsVariadic {
		return n >= f.Arity()
	}
	return n == f.Arity()
}

// Closure is a function value created at run time together with the
// variables it captured from enclosing scopes. frames[i] identifies the
// scope activation env[i] was taken from.
type Closure struct {
	Function *DeclaredFunction
	env      []Value
	frames   []Value
}

// newClosure builds a closure from (value, frame) pairs laid out in the
// order of the function's captures.
func newClosure(fn *DeclaredFunction, pairs []Value) Value {
	cl := &Closure{Function: fn}
	for i := 0; i+1 < len(pairs); i += 2 {
		cl.env = append(cl.env, pairs[i].withoutOrigin())
		cl.frames = append(cl.frames, pairs[i+1])
	}
	return Value{typ: fn.Type(), data: cl}
}

// NativeFn is the Go side of a host callable.
type NativeFn func(call *CallContext, args []Value) (Value, error)

// NativeFunc is a host callable. Pure natives may be evaluated at compile
// time when every argument is constant.
type NativeFunc struct {
	Name string
	Pure bool
	Fn   NativeFn
}

// Invoker runs script callables on behalf of host code.
type Invoker interface {
	Invoke(fn Value, args ...Value) (Value, error)
}

// CallContext is handed to every native call.
type CallContext struct {
	Pos     Position
	invoker Invoker
}

// Invoke calls fn, which may be a script function, from host code. It is
// unavailable while the analyzer evaluates constant expressions.
func (c *CallContext) Invoke(fn Value, args ...Value) (Value, error) {
	if c == nil || c.invoker == nil {
		return Value{}, errNotConstant
	}
	return c.invoker.Invoke(fn, args...)
}

// callValue dispatches a call on anything but a script function.
func callValue(call *CallContext, callee Value, args []Value) (Value, error) {
	switch {
	case callee.Native() != nil:
		return callee.Native().Fn(call, args)
	case callee.Kind() == KindType:
		return callee.TypeValue().Construct(args)
	case callee.Object() != nil:
		return callee.Object().Call(call, args)
	case callee.Function() != nil:
		return call.Invoke(callee, args...)
	case callee.IsNull():
		return Value{}, newError(NullReference, call.Pos, "cannot call unset")
	}
	return Value{}, newError(NotCallable, call.Pos, "%s is not callable", callee.Type().Name())
}
