package cbs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func compileScript(t testing.TB, engine *Engine, source string) *Script {
	t.Helper()
	script, err := engine.Compile(source)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return script
}

func runScript(t *testing.T, source string) *Script {
	t.Helper()
	script := compileScript(t, MustNewEngine(Config{}), source)
	if err := script.Run(context.Background()); err != nil {
		t.Fatalf("run error: %v", err)
	}
	return script
}

func globalValue(t *testing.T, script *Script, name string) Value {
	t.Helper()
	v, ok := script.Global(name)
	if !ok {
		t.Fatalf("global %s not found", name)
	}
	return v
}

func expectI32(t *testing.T, script *Script, name string, want int32) {
	t.Helper()
	v := globalValue(t, script, name)
	if v.Kind() != KindI32 || v.I32() != want {
		t.Fatalf("%s = %s (%s), want %d", name, v, v.Type().Name(), want)
	}
}

func TestRecursion(t *testing.T) {
	script := runScript(t, `#version v0;
fn fib(n) { if (n < 2) { return n; } return fib(n - 1) + fib(n - 2); }
fn even(n) { if (n == 0) { return true; } return odd(n - 1); }
fn odd(n) { if (n == 0) { return false; } return even(n - 1); }
let out = 0;
out = 7;
out = fib(out);
`)
	expectI32(t, script, "out", 13)

	v, err := script.Call(context.Background(), "fib", NewI32(10))
	if err != nil || v.I32() != 55 {
		t.Fatalf("fib(10) = %v, %v", v, err)
	}
	v, err = script.Call(context.Background(), "even", NewI32(10))
	if err != nil || !v.Bool() {
		t.Fatalf("even(10) = %v, %v", v, err)
	}
	v, err = script.Call(context.Background(), "odd", NewI32(10))
	if err != nil || v.Bool() {
		t.Fatalf("odd(10) = %v, %v", v, err)
	}
}

func TestLoops(t *testing.T) {
	script := runScript(t, `#version v0;
let odd = 0;
odd = 0;
for (let i = 0; i < 10; i++) {
	if (i % 2 == 0) { continue; }
	if (i > 4) { break; }
	odd += i;
}
let pairs = 0;
pairs = 0;
for (a in 0..3) {
	for (b in 0..3) {
		if (b > a) { break; }
		pairs++;
	}
}
let inclusive = 0;
inclusive = 0;
for (k in 0..=4) { inclusive += k; }
let items = 0;
items = 0;
for (v in [1, 2, 3]) { items += v; }
let countdown = 0;
countdown = 5;
while (countdown > 0) { countdown -= 2; }
`)
	expectI32(t, script, "odd", 4)
	expectI32(t, script, "pairs", 6)
	expectI32(t, script, "inclusive", 10)
	expectI32(t, script, "items", 6)
	expectI32(t, script, "countdown", -1)
}

func TestReturnFromInsideLoops(t *testing.T) {
	script := runScript(t, `#version v0;
fn firstOver(limit) {
	let i = 0;
	while (true) {
		i++;
		if (i * i > limit) { return i; }
	}
}
fn find(xs, target) {
	for (x in xs) {
		for (y in xs) {
			if (x + y == target) { return x * y; }
		}
	}
	return -1;
}
`)
	v, err := script.Call(context.Background(), "firstOver", NewI32(10))
	if err != nil || v.I32() != 4 {
		t.Fatalf("firstOver(10) = %v, %v", v, err)
	}
	xs := NewArrayOf([]Value{NewI32(1), NewI32(2), NewI32(5)})
	v, err = script.Call(context.Background(), "find", xs, NewI32(7))
	if err != nil || v.I32() != 10 {
		t.Fatalf("find = %v, %v", v, err)
	}
	v, err = script.Call(context.Background(), "find", xs, NewI32(100))
	if err != nil || v.I32() != -1 {
		t.Fatalf("find miss = %v, %v", v, err)
	}
	// Both calls must leave the machine balanced.
	if script.vm.GotoDepth() != 0 || script.vm.StackDepth() != 0 {
		t.Fatalf("unbalanced machine: gotos %d, stack %d", script.vm.GotoDepth(), script.vm.StackDepth())
	}
}

func TestIncrementOperators(t *testing.T) {
	script := runScript(t, `#version v0;
let a = 1;
a = 1;
let b = 0;
b = a++;
let c = 0;
c = ++a;
let d = 0;
d = a--;
`)
	expectI32(t, script, "b", 1)
	expectI32(t, script, "c", 3)
	expectI32(t, script, "d", 3)
	expectI32(t, script, "a", 2)
}

func TestTypedCoercion(t *testing.T) {
	script := runScript(t, `#version v0;
let f: f32 = 0;
f = 2;
fn half(x: f32) -> f32 { return x / 2; }
`)
	if f := globalValue(t, script, "f"); f.Kind() != KindF32 || f.F32() != 2 {
		t.Fatalf("f = %s (%s)", f, f.Type().Name())
	}
	v, err := script.Call(context.Background(), "half", NewI32(3))
	if err != nil || v.Kind() != KindF32 || v.F32() != 1.5 {
		t.Fatalf("half(3) = %v, %v", v, err)
	}
	if _, err := script.Call(context.Background(), "half", NewString("x")); !errors.Is(err, &Error{Kind: InvalidType}) {
		t.Fatalf("expected InvalidType, got %v", err)
	}
}

func TestVariadicFunctions(t *testing.T) {
	script := runScript(t, `#version v0;
fn count(first, ..rest) { return first + len(rest); }
let out = 0;
out = 1;
out = count(out, 2, 3, 4);
`)
	expectI32(t, script, "out", 4)
	v, err := script.Call(context.Background(), "count", NewI32(10))
	if err != nil || v.I32() != 10 {
		t.Fatalf("count(10) = %v, %v", v, err)
	}
}

func TestClosures(t *testing.T) {
	script := runScript(t, `#version v0;
let base = 10;
let addBase = |x| x + base;
let out = 0;
out = addBase(5);
base = 20;
let later = 0;
later = addBase(5);
let triple = |x| x * 3;
`)
	expectI32(t, script, "out", 15)
	expectI32(t, script, "later", 25)

	triple := globalValue(t, script, "triple")
	v, err := script.Invoke(context.Background(), triple, NewI32(2))
	if err != nil || v.I32() != 6 {
		t.Fatalf("triple(2) = %v, %v", v, err)
	}
}

func TestReturnedFunctionsKeepTheirArguments(t *testing.T) {
	script := runScript(t, `#version v0;
fn outer(n) { fn inner() { return n * 2; } return inner; }
fn adder(k) { return |x| x + k; }
fn counter() {
	let n = 0;
	return |step| { n += step; return n; };
}
let r = 0;
r = outer(21)();
let add3 = adder(3);
let add10 = adder(10);
let sum = 0;
sum = add3(1) + add10(1);
let next = counter();
next(1);
let second = 0;
second = next(1);
`)
	expectI32(t, script, "r", 42)
	expectI32(t, script, "sum", 15)
	expectI32(t, script, "second", 2)

	add3 := globalValue(t, script, "add3")
	v, err := script.Invoke(context.Background(), add3, NewI32(4))
	if err != nil || v.I32() != 7 {
		t.Fatalf("add3(4) = %v, %v", v, err)
	}

	captures := 0
	for _, fn := range script.Bytecode().Functions {
		captures += len(fn.Captures)
	}
	if captures != 3 {
		t.Fatalf("expected n, k and n to be captured, got %d captures", captures)
	}
	if errs := Verify(script.Bytecode()); len(errs) != 0 {
		t.Fatalf("verify: %v", errs)
	}
}

func TestClosureSharesLocalsWhileItsFunctionRuns(t *testing.T) {
	engine := MustNewEngine(Config{})
	engine.RegisterNative("apply", func(call *CallContext, args []Value) (Value, error) {
		if err := ExpectArgs("apply", args, 2); err != nil {
			return Value{}, err
		}
		return call.Invoke(args[0], args[1])
	}, false)
	script := compileScript(t, engine, `#version v0;
fn total(n) {
	let acc = 0;
	for (i in 0..n) {
		apply(|x| { acc += x; return 0; }, i);
	}
	return acc;
}
`)
	v, err := script.Call(context.Background(), "total", NewI32(4))
	if err != nil || v.I32() != 6 {
		t.Fatalf("total(4) = %v, %v", v, err)
	}
}

func TestLoopClosuresCaptureEachIteration(t *testing.T) {
	script := runScript(t, `#version v0;
let f0 = 0;
let f1 = 0;
let f2 = 0;
for (i in 0..3) {
	let f = |x| x + i;
	if (i == 0) { f0 = f; }
	if (i == 1) { f1 = f; }
	if (i == 2) { f2 = f; }
}
let out = 0;
out = f0(10) + f1(10) + f2(10);
`)
	expectI32(t, script, "out", 33)
}

func TestHugeRangeIsWalkedLazily(t *testing.T) {
	script := runScript(t, `#version v0;
let n = 0;
for (i in 0..2147483647) {
	n++;
	if (n == 3) { break; }
}
let size = 0;
size = len(0..2147483647);
`)
	expectI32(t, script, "n", 3)
	expectI32(t, script, "size", 2147483647)
}

func TestNativeCallsBackIntoScript(t *testing.T) {
	engine := MustNewEngine(Config{})
	engine.RegisterNative("apply", func(call *CallContext, args []Value) (Value, error) {
		if err := ExpectArgs("apply", args, 2); err != nil {
			return Value{}, err
		}
		return call.Invoke(args[0], args[1])
	}, false)
	script := compileScript(t, engine, `#version v0;
fn answer(x) { return x * 2; }
let out = 0;
out = apply(answer, 21);
let viaClosure = 0;
viaClosure = apply(|x| x + 1, 41);
`)
	if err := script.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	expectI32(t, script, "out", 42)
	expectI32(t, script, "viaClosure", 42)
}

func TestCallbacksFromHost(t *testing.T) {
	reg := NewCallbackRegistry()
	engine := MustNewEngine(Config{})
	engine.RegisterNative("on", func(_ *CallContext, args []Value) (Value, error) {
		if err := ExpectArgs("on", args, 2); err != nil {
			return Value{}, err
		}
		id, err := reg.Register(args[0], args[1])
		if err != nil {
			return Value{}, err
		}
		return NewString(id.String()), nil
	}, false)
	script := compileScript(t, engine, `#version v0;
let hits = 0;
hits = 0;
on(1, |t| { hits += t; return hits; });
on(2, |t| { hits += t * 10; return hits; });
`)
	ctx := context.Background()
	if err := script.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 callbacks, got %d", reg.Len())
	}
	inv := script.Invoker(ctx)
	var last Value
	for _, cb := range reg.Select(nil) {
		v, err := reg.Invoke(inv, cb.ID, cb.Key)
		if err != nil {
			t.Fatalf("callback: %v", err)
		}
		last = v
	}
	if last.I32() != 21 {
		t.Fatalf("last callback returned %v", last)
	}
	expectI32(t, script, "hits", 21)
}

func TestHostObjectsInScripts(t *testing.T) {
	s := &sprite{items: NewArray(TypeI32, []Value{NewI32(1)})}
	engine := MustNewEngine(Config{})
	engine.RegisterObject("hero", newSpriteObject(s))
	script := compileScript(t, engine, `#version v0;
hero.x = 2;
hero.x += 1.5;
let d = 0.0;
d = hero.double;
hero.move(1);
hero.items.push(2);
let kind = "";
kind = hero.kind;
`)
	if err := script.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.x != 4.5 {
		t.Fatalf("x = %v", s.x)
	}
	if d := globalValue(t, script, "d"); d.F32() != 7 {
		t.Fatalf("d = %v", d)
	}
	if got := s.items.String(); got != "[1, 2]" {
		t.Fatalf("items = %s", got)
	}
	if kind := globalValue(t, script, "kind"); kind.Str() != "sprite" {
		t.Fatalf("kind = %v", kind)
	}
}

func TestArraysInScripts(t *testing.T) {
	script := runScript(t, `#version v0;
let xs = [1, 2];
xs.push(3);
xs[0] = 9;
xs[1] += 5;
let n = 0;
n = len(xs);
let last = 0;
last = xs[xs.length - 1];
`)
	if got := globalValue(t, script, "xs").String(); got != "[9, 7, 3]" {
		t.Fatalf("xs = %s", got)
	}
	expectI32(t, script, "n", 3)
	expectI32(t, script, "last", 3)
}

func TestShortCircuitSkipsRightOperand(t *testing.T) {
	script := runScript(t, `#version v0;
let d = 0;
d = 0;
let ok = true;
ok = d != 0 && 10 / d > 1;
let either = false;
either = d == 0 || 10 / d > 1;
let pick = 0;
pick = d == 0 ? 1 : 10 / d;
`)
	if globalValue(t, script, "ok").Bool() {
		t.Fatalf("ok should be false")
	}
	if !globalValue(t, script, "either").Bool() {
		t.Fatalf("either should be true")
	}
	expectI32(t, script, "pick", 1)
}

func TestRuntimeDivisionByZeroFaults(t *testing.T) {
	script := compileScript(t, MustNewEngine(Config{}), `#version v0;
let d = 0;
d = 0;
let out = 0;
out = 1 / d;
`)
	err := script.Run(context.Background())
	expectFault(t, err, ErrDivisionByZero)
}

func TestRuntimeErrorsCarryPositions(t *testing.T) {
	engine := MustNewEngine(Config{})
	engine.RegisterNative("name", func(_ *CallContext, _ []Value) (Value, error) {
		return NewString("x"), nil
	}, false)
	script := compileScript(t, engine, "#version v0;\nlet out: any = 0;\nout = name() - 1;\n")
	err := script.Run(context.Background())
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if se.Kind != InvalidType || se.Pos.Line != 3 {
		t.Fatalf("unexpected error %v", se)
	}
}

func TestStepLimit(t *testing.T) {
	engine := MustNewEngine(Config{MaxSteps: 10_000})
	script := compileScript(t, engine, "#version v0; let i = 0; i = 0; while (true) { i++; }")
	err := script.Run(context.Background())
	expectFault(t, err, ErrStepLimit)
	if v := globalValue(t, script, "i"); v.I32() <= 0 {
		t.Fatalf("loop never ran: i = %v", v)
	}
}

func TestCanceledContext(t *testing.T) {
	script := compileScript(t, MustNewEngine(Config{}), "#version v0; let i = 0; i = 0; while (true) { i++; }")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := script.Run(ctx)
	expectFault(t, err, context.Canceled)
}

func TestScriptCallErrors(t *testing.T) {
	script := runScript(t, "#version v0;\nlet v = 1;\nfn two(a, b) { return a + b; }\n")
	ctx := context.Background()

	_, err := script.Call(ctx, "missing")
	if err == nil || !strings.Contains(err.Error(), "missing not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := script.Call(ctx, "v"); !errors.Is(err, &Error{Kind: NotCallable}) {
		t.Fatalf("expected NotCallable, got %v", err)
	}
	if _, err := script.Call(ctx, "two", NewI32(1)); !errors.Is(err, &Error{Kind: ArgumentCount}) {
		t.Fatalf("expected ArgumentCount, got %v", err)
	}
	v, err := script.Call(ctx, "two", NewI32(1), NewI32(2))
	if err != nil || v.I32() != 3 {
		t.Fatalf("two(1, 2) = %v, %v", v, err)
	}
}

func TestGlobalBeforeRun(t *testing.T) {
	script := compileScript(t, MustNewEngine(Config{}), "#version v0; let greeting = 'hi'; let n = 0; n = 4;")
	if v := globalValue(t, script, "greeting"); v.Str() != "hi" {
		t.Fatalf("greeting = %v", v)
	}
	if _, ok := script.Global("nope"); ok {
		t.Fatalf("unexpected global")
	}
	if err := script.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	expectI32(t, script, "n", 4)
}

func TestEngineCache(t *testing.T) {
	engine := MustNewEngine(Config{})
	source := "#version v0; let x = 0; x = 1;"
	first := compileScript(t, engine, source)
	second := compileScript(t, engine, source)
	if engine.CacheLen() != 1 {
		t.Fatalf("expected 1 cached script, got %d", engine.CacheLen())
	}
	if first.Bytecode() != second.Bytecode() {
		t.Fatalf("expected cached bytecode to be shared")
	}
	if first == second {
		t.Fatalf("each compile should return its own script")
	}

	engine.RegisterValue("speed", NewF32(2))
	if engine.CacheLen() != 0 {
		t.Fatalf("registration should purge the cache")
	}

	uncached := MustNewEngine(Config{CacheSize: -1})
	a := compileScript(t, uncached, source)
	b := compileScript(t, uncached, source)
	if a.Bytecode() == b.Bytecode() || uncached.CacheLen() != 0 {
		t.Fatalf("negative cache size should disable caching")
	}
}

func TestScriptsRunIndependently(t *testing.T) {
	engine := MustNewEngine(Config{})
	source := "#version v0; let n = 0; n = 0; n += 1;"
	first := compileScript(t, engine, source)
	second := compileScript(t, engine, source)
	for i := 0; i < 3; i++ {
		if err := first.Run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	if err := second.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	expectI32(t, first, "n", 1)
	expectI32(t, second, "n", 1)
}

func TestEngineConfig(t *testing.T) {
	if _, err := NewEngine(Config{Versions: []string{""}}); err == nil {
		t.Fatalf("expected an error for an empty version")
	}
	engine := MustNewEngine(Config{Versions: []string{"v1"}})
	if _, err := engine.Compile("#version v0;"); !errors.Is(err, &Error{Kind: InvalidVersion}) {
		t.Fatalf("expected InvalidVersion, got %v", err)
	}
	compileScript(t, engine, "#version v1; let x = 1;")

	globals := engine.Globals()
	if _, ok := globals["len"]; !ok {
		t.Fatalf("builtins should be registered")
	}
	delete(globals, "len")
	if _, ok := engine.Globals()["len"]; !ok {
		t.Fatalf("Globals should return a copy")
	}
}

func TestCompileErrors(t *testing.T) {
	engine := MustNewEngine(Config{})
	_, err := engine.Compile("#version v0; let a = b;")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompileError, got %T: %v", err, err)
	}
	if !errors.Is(err, &Error{Kind: UndefinedIdentifier}) {
		t.Fatalf("expected UndefinedIdentifier, got %v", err)
	}
	if !strings.Contains(err.Error(), "UndefinedIdentifier at 1:") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if engine.CacheLen() != 0 {
		t.Fatalf("failed compilations must not be cached")
	}

	_, err = engine.Compile("#version v0; let s = \"abc")
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompileError for a lexer error, got %T: %v", err, err)
	}

	program, err := engine.Analyze("#version v0; let x = 1; x = 'a';")
	if err == nil || program == nil {
		t.Fatalf("expected a program and an error, got %v, %v", program, err)
	}
}

func TestEngineDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)
	engine := MustNewEngine(Config{Logger: logger})
	script := compileScript(t, engine, "#version v0; let x = 0; x = 1;")
	compileScript(t, engine, "#version v0; let x = 0; x = 1;")
	if err := script.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"compiled script", "compile cache hit", "script finished"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
	if engine.Logger() != logger {
		t.Fatalf("Logger should return the configured logger")
	}
}
