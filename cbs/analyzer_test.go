package cbs

import (
	"runtime"
	"strings"
	"testing"
)

func builtinGlobals() map[string]Value {
	globals := make(map[string]Value, len(builtins))
	for name, b := range builtins {
		globals[name] = NewNative(name, b.pure, b.fn)
	}
	return globals
}

// analyzeSource keeps parse errors; Parse records them on the program.
func analyzeSource(t *testing.T, source string, opts AnalyzeOptions) *Program {
	t.Helper()
	program, _ := parseSource(t, source)
	if opts.Globals == nil {
		opts.Globals = builtinGlobals()
	}
	return Analyze(program, opts)
}

func mustAnalyze(t *testing.T, source string) *Program {
	t.Helper()
	program := analyzeSource(t, source, AnalyzeOptions{})
	if len(program.Errors) > 0 {
		t.Fatalf("unexpected analysis errors: %v", program.Errors)
	}
	return program
}

func expectAnalyzeError(t *testing.T, source string, kind ErrorType) *Error {
	t.Helper()
	program := analyzeSource(t, source, AnalyzeOptions{})
	for _, err := range program.Errors {
		if err.Kind == kind {
			return err
		}
	}
	t.Fatalf("expected %s, got %v", kind, program.Errors)
	return nil
}

func knownGlobal(t *testing.T, program *Program, name string) Value {
	t.Helper()
	sym, ok := program.Scopes.LookupLocal(program.Body.Scope, name)
	if !ok {
		t.Fatalf("no top-level symbol %s", name)
	}
	if !sym.Known {
		t.Fatalf("%s is not known at compile time", name)
	}
	return sym.Value
}

func findFunction(t *testing.T, program *Program, name string) *DeclaredFunction {
	t.Helper()
	for _, fn := range program.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("no function %s", name)
	return nil
}

func TestAnalyzeFoldsConstants(t *testing.T) {
	program := mustAnalyze(t, "#version v0; let x = 1 + 2 * 3; let s = 'n' + (x > 5); let f = 1 / 4.0;")
	if got := knownGlobal(t, program, "x"); got.Kind() != KindI32 || got.I32() != 7 {
		t.Fatalf("x = %v", got)
	}
	if got := knownGlobal(t, program, "s"); got.Str() != "ntrue" {
		t.Fatalf("s = %v", got)
	}
	if got := knownGlobal(t, program, "f"); got.F32() != 0.25 {
		t.Fatalf("f = %v", got)
	}
	if len(program.Statements()) != 0 {
		t.Fatalf("folded declarations should leave no statements, got:\n%s", Sprint(program))
	}
	if program.Version != "v0" {
		t.Fatalf("version = %q", program.Version)
	}
}

func TestAnalyzeKeepsAssignedVariables(t *testing.T) {
	program := mustAnalyze(t, "#version v0; let x = 1; x = 2; let y = x;")
	want := strings.Join([]string{"(= x 1)", "(= x 2)", "(= y x)"}, "\n")
	if got := Sprint(program); got != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}
}

func TestAnalyzeConstantBranches(t *testing.T) {
	program := mustAnalyze(t, `#version v0;
let x = 0;
x = 1;
if (false) { x = 2; } else { x = 3; }
if (true) { x = 4; }
if (1 > 2) { x = 5; }
while (false) { x = 6; }
for (let i = 0; false; i++) { x = 7; }
`)
	want := strings.Join([]string{
		"(= x 0)",
		"(= x 1)",
		"block",
		"  (= x 3)",
		"block",
		"  (= x 4)",
		"(= i 0)",
	}, "\n")
	if got := Sprint(program); got != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}
}

func TestAnalyzeInvertsEmptyThen(t *testing.T) {
	program := mustAnalyze(t, "#version v0; let x = 0; x = 1; if (x > 0) {} else { x = 2; }")
	want := strings.Join([]string{
		"(= x 0)",
		"(= x 1)",
		"(if (! (> x 0)))",
		"  then",
		"    (= x 2)",
	}, "\n")
	if got := Sprint(program); got != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}
}

func TestAnalyzeRemovesDeadCode(t *testing.T) {
	program := mustAnalyze(t, `#version v0;
fn f(a) {
	return a;
	a = 2;
	let unused = 3;
}
fn spin() {
	for (;;) { return; let dead = 1; }
}
let r = 0;
r = f(1) + spin();
`)
	if body := findFunction(t, program, "f").Body.Statements; len(body) != 1 {
		t.Fatalf("expected statements after return to be removed, got %d", len(body))
	}
	body := findFunction(t, program, "spin").Body.Statements
	if len(body) != 1 {
		t.Fatalf("infinite loop with return should stay, got %d statements", len(body))
	}
	loop, ok := body[0].(*ForStmt)
	if !ok || loop.Condition != nil {
		t.Fatalf("expected an unconditional for loop, got %s", Sprint(body[0]))
	}
	if len(loop.Body.Statements) != 1 {
		t.Fatalf("loop body should stop at its return:\n%s", Sprint(loop))
	}
}

func TestAnalyzeDropsPureExpressionStatements(t *testing.T) {
	program := mustAnalyze(t, "#version v0; let x = 0; x = 1; x + 1; 3 * 4; (x);")
	if got, want := Sprint(program), "(= x 0)\n(= x 1)"; got != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}
}

func TestAnalyzePurity(t *testing.T) {
	program := mustAnalyze(t, `#version v0;
const a = 1 + 2;
let counter = 0;
counter = 0;
fn add(a, b) { return a + b; }
fn twice(x) { let y = x * 2; return y; }
fn viaAdd(x) { return add(x, a); }
fn bump() { counter += 1; return counter; }
fn readCounter() { return counter; }
fn fib(n) { if (n < 2) { return n; } return fib(n - 1) + fib(n - 2); }
fn loop(n) { let s = 0; while (s < n) { s++; } return s; }
fn makeAdder(n) { return |x| x + n; }
`)
	if got := knownGlobal(t, program, "a"); got.I32() != 3 {
		t.Fatalf("a = %v", got)
	}
	cases := map[string]bool{
		"add":         true,
		"twice":       true,
		"viaAdd":      true,
		"bump":        false,
		"readCounter": false,
		"fib":         false,
		"loop":        false,
		"makeAdder":   false,
	}
	for name, want := range cases {
		if got := findFunction(t, program, name).Pure; got != want {
			t.Fatalf("%s: pure = %v, want %v", name, got, want)
		}
	}
}

func TestAnalyzeEvaluatesPureCalls(t *testing.T) {
	program := mustAnalyze(t, `#version v0;
fn sq(x) { return x * x; }
fn sum(..xs) { return len(xs); }
fn sign(x) { if (x < 0) { return -1; } return 1; }
const nine = sq(3);
const n = sum(1, 2, 3);
const neg = sign(-5);
const m = max(2, sq(2), 3);
const fromString = i32("12") + 1;
`)
	for name, want := range map[string]int32{"nine": 9, "n": 3, "neg": -1, "m": 4, "fromString": 13} {
		if got := knownGlobal(t, program, name); got.Kind() != KindI32 || got.I32() != want {
			t.Fatalf("%s = %v, want %d", name, got, want)
		}
	}
}

func TestAnalyzeReportsCertainRuntimeErrors(t *testing.T) {
	expectAnalyzeError(t, "#version v0; const z = 1 / 0;", DivideByZero)
	expectAnalyzeError(t, "#version v0; fn d(x) { return 1 / x; } const z = d(0);", DivideByZero)
	expectAnalyzeError(t, "#version v0; let a = 'ab'[5];", IndexOutOfRange)
	expectAnalyzeError(t, "#version v0; let b = 1 - 'x';", InvalidType)
	expectAnalyzeError(t, "#version v0; let x: i32 = 'abc';", InvalidType)
	expectAnalyzeError(t, "#version v0; if (1) {}", InvalidType)
}

func TestAnalyzeControlFlowOutsideContext(t *testing.T) {
	for _, source := range []string{
		"#version v0; break;",
		"#version v0; continue;",
		"#version v0; return 1;",
		"#version v0; fn f() { break; }",
	} {
		expectAnalyzeError(t, source, UnexpectedToken)
	}
	mustAnalyze(t, "#version v0; let i = 0; i = 1; while (i < 3) { i++; if (i == 2) { continue; } break; }")

	program := analyzeSource(t, "#version v0; let x = 0; x = 1; break; x = 2; fn f() { break; return 1; }", AnalyzeOptions{})
	if got, want := Sprint(program), "(= x 0)\n(= x 1)\n(= x 2)"; got != want {
		t.Fatalf("misplaced break should be removed:\n%s\nwant:\n%s", got, want)
	}
	if body := findFunction(t, program, "f").Body.Statements; len(body) != 1 {
		t.Fatalf("expected only the return to remain in f, got %d statements", len(body))
	}
}

func TestAnalyzeDiagnostics(t *testing.T) {
	cases := []struct {
		source string
		kind   ErrorType
	}{
		{"let x = 1;", DoesNotStartWithVersion},
		{"", DoesNotStartWithVersion},
		{"#version v9;", InvalidVersion},
		{"#version;", InvalidVersion},
		{"#version v0; #version v0;", InvalidCommand},
		{"#version v0; #target gpu;", NotSupported},
		{"#version v0; #enable fast;", NotSupported},
		{"#version v0; #frobnicate;", InvalidCommand},
		{"#version v0; const c = 1; c = 2;", AssignToConstant},
		{"#version v0; fn f() {} f = 1;", AssignToConstant},
		{"#version v0; y = 1;", UndefinedIdentifier},
		{"#version v0; let z = w + 1;", UndefinedIdentifier},
		{"#version v0; let q = 1; let q = 2;", DuplicateIdentifier},
		{"#version v0; fn f(a) {} f();", ArgumentCount},
		{"#version v0; const c;", InvalidAssignment},
		{"#version v0; 1 = 2;", InvalidAssignment},
		{"#version v0; let t: vec3 = 1;", InvalidType},
		{"#version v0; for (x in 5) { x; }", NotIterable},
	}
	for _, tc := range cases {
		expectAnalyzeError(t, tc.source, tc.kind)
	}
}

func TestAnalyzeCustomVersions(t *testing.T) {
	program := analyzeSource(t, "#version v1;", AnalyzeOptions{Versions: []string{"v0", "v1"}})
	if len(program.Errors) != 0 || program.Version != "v1" {
		t.Fatalf("expected v1 to be accepted: %v", program.Errors)
	}
}

func TestAnalyzeHostGlobals(t *testing.T) {
	opts := AnalyzeOptions{Globals: map[string]Value{
		"speed": NewI32(2),
		"now": NewNative("now", false, func(*CallContext, []Value) (Value, error) {
			return NewF32(1), nil
		}),
	}}
	program := analyzeSource(t, "#version v0; let s = speed * 3; let t = 0.0; t = now();", opts)
	if len(program.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", program.Errors)
	}
	if got := knownGlobal(t, program, "s"); got.I32() != 6 {
		t.Fatalf("s = %v", got)
	}
	if got := Sprint(program); got != "(= t 0.0)\n(= t (call now))" {
		t.Fatalf("impure native should not be folded:\n%s", got)
	}

	program = analyzeSource(t, "#version v0; speed = 1;", opts)
	if len(program.Errors) == 0 || program.Errors[0].Kind != AssignToConstant {
		t.Fatalf("expected AssignToConstant, got %v", program.Errors)
	}
}

func TestAnalyzeHoistsFunctions(t *testing.T) {
	mustAnalyze(t, "#version v0; let r = 0; r = twice(2); fn twice(x) { return x * 2; }")
	mustAnalyze(t, "#version v0; fn even(n) { return n == 0 ? true : odd(n - 1); } fn odd(n) { return n == 0 ? false : even(n - 1); }")
}

func TestAnalyzeTernaryAndShortCircuit(t *testing.T) {
	program := mustAnalyze(t, "#version v0; let k = 0; k = 1; let a = true ? 1 : 2; let b = false && k > 0; let c = 0..=3;")
	if got := knownGlobal(t, program, "a"); got.I32() != 1 {
		t.Fatalf("a = %v", got)
	}
	if got := knownGlobal(t, program, "b"); got.Kind() != KindBool || got.Bool() {
		t.Fatalf("b = %v", got)
	}
	if got := knownGlobal(t, program, "c"); got.String() != "0..=3" {
		t.Fatalf("c = %v", got)
	}
}

func TestAnalyzeLoopVariablesAreNotFolded(t *testing.T) {
	program := mustAnalyze(t, "#version v0; let total = 0; total = 0; for (i in 0..3) { let step = 2; total += step * i; }")
	loop, ok := program.Statements()[2].(*ForeachStmt)
	if !ok {
		t.Fatalf("expected a foreach loop, got:\n%s", Sprint(program))
	}
	if got, want := Sprint(loop), "(foreach i 0..3)\n  (= step 2)\n  (+= total (* step i))"; got != want {
		t.Fatalf("unexpected loop:\n%s\nwant:\n%s", got, want)
	}
}

func TestAnalyzeAllowsShadowingInNestedScopes(t *testing.T) {
	for _, source := range []string{
		"#version v0; let q = 1; { let q = 2; }",
		"#version v0; let q = 1; if (q > 0) { let q = 2; q = 3; }",
		"#version v0; fn f(q) { let r = q; { let q = 3; r = q; } return r; }",
		"#version v0; let i = 5; for (i in 0..2) { let x = i; x = 1; }",
	} {
		program := analyzeSource(t, source, AnalyzeOptions{})
		for _, err := range program.Errors {
			if err.Kind == DuplicateIdentifier {
				t.Fatalf("%s: unexpected %v", source, err)
			}
		}
	}
	expectAnalyzeError(t, "#version v0; { let q = 1; let q = 2; }", DuplicateIdentifier)
	expectAnalyzeError(t, "#version v0; fn f(a) { let a = 1; }", DuplicateIdentifier)
}

func TestAnalyzeIntegerLiteralRange(t *testing.T) {
	program := mustAnalyze(t, "#version v0; let top = 2147483647; let bottom = -2147483648; let bits = 0xFFFFFFFF; let sign = 0x80000000; let mask = 0b11111111111111111111111111111110;")
	for name, want := range map[string]int32{
		"top":    2147483647,
		"bottom": -2147483648,
		"bits":   -1,
		"sign":   -2147483648,
		"mask":   -2,
	} {
		if got := knownGlobal(t, program, name); got.Kind() != KindI32 || got.I32() != want {
			t.Fatalf("%s = %v, want %d", name, got, want)
		}
	}

	for _, source := range []string{
		"#version v0; let big = 3000000000;",
		"#version v0; let edge = 2147483648;",
		"#version v0; let wide = 0x100000000;",
		"#version v0; let x = 1 - 2147483648;",
	} {
		expectAnalyzeError(t, source, InvalidArgument)
	}
}

func TestAnalyzeDoesNotListRanges(t *testing.T) {
	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	mustAnalyze(t, "#version v0; let n = 0; for (i in 0..10000000) { n++; break; }")
	runtime.ReadMemStats(&after)
	if grown := after.TotalAlloc - before.TotalAlloc; grown > 16<<20 {
		t.Fatalf("analysis allocated %d bytes for a loop over a range", grown)
	}
	expectAnalyzeError(t, "#version v0; for (x in true) { x; }", NotIterable)
}
