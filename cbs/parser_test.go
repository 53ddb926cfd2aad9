package cbs

import (
	"strings"
	"testing"
)

func parseSource(t *testing.T, source string) (*Program, []*Error) {
	t.Helper()
	tokens, err := Tokenize(source)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return Parse(tokens)
}

func mustParse(t *testing.T, source string) *Program {
	t.Helper()
	program, errs := parseSource(t, source)
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return program
}

func TestParserPrecedence(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"1 + 2 * 3;", "(+ 1 (* 2 3))"},
		{"(1 + 2) * 3;", "(* (+ 1 2) 3)"},
		{"a || b && c;", "(|| a (&& b c))"},
		{"a == b < c;", "(== a (< b c))"},
		{"a | b ^ c & d;", "(| a (^ b (& c d)))"},
		{"1 << 2 + 3;", "(<< 1 (+ 2 3))"},
		{"-a * b;", "(* (- a) b)"},
		{"a = b = c;", "(= a (= b c))"},
		{"x += 1;", "(+= x 1)"},
		{"a ? b : c ? d : e;", "(? a b (? c d e))"},
		{"0..n + 1;", "(.. 0 (+ n 1))"},
		{"0..=4;", "(..= 0 4)"},
		{"i++;", "(post++ i)"},
		{"--i;", "(-- i)"},
		{"a.b.c(1, 2)[0];", "([] (call (. (. a b) c) 1 2) 0)"},
		{"[1, 'x', true,];", `[1 "x" true]`},
		{"array<f32>(1, 2);", "(call array<f32> 1 2)"},
	}
	for _, tc := range cases {
		program := mustParse(t, tc.source)
		if got := Sprint(program); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.source, got, tc.want)
		}
	}
}

func TestParserStatements(t *testing.T) {
	program := mustParse(t, `#version v0;
let x: i32 = 1;
const name = "a";
fn add(a: i32, ..rest) -> i32 { return a; }
if (x) y(); else { z(); }
while (x < 3) x++;
for (let i = 0; i < 3; i++) { break; }
for (;;) { continue; }
for (item in items) {}
for (let item in items) {}
`)
	want := strings.Join([]string{
		"(#version v0)",
		"(let x:i32 1)",
		`(const name "a")`,
		"(fn add (a:i32 ..rest):i32)",
		"  (return a)",
		"(if x)",
		"  then",
		"    (call y)",
		"  else",
		"    (call z)",
		"(while (< x 3))",
		"  (post++ x)",
		"(for (let i 0) (< i 3) (post++ i))",
		"  (break)",
		"(for _ _ _)",
		"  (continue)",
		"(foreach item items)",
		"(foreach item items)",
	}, "\n")
	if got := Sprint(program); got != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}
}

func TestParserClosures(t *testing.T) {
	program := mustParse(t, "let f = |x| x * 2; let g = || { return 1; }; let h = |a, b| -> i32 a;")
	want := strings.Join([]string{
		"(let f (closure (x) (return (* x 2))))",
		"(let g (closure () (return 1)))",
		"(let h (closure (a b):i32 (return a)))",
	}, "\n")
	if got := Sprint(program); got != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}
}

func TestParserVariadicMustBeLast(t *testing.T) {
	_, errs := parseSource(t, "fn f(..rest, x) {}")
	if len(errs) == 0 {
		t.Fatalf("expected an error")
	}
	if errs[0].Kind != UnexpectedToken {
		t.Fatalf("expected UnexpectedToken, got %v", errs[0])
	}
}

func TestParserRecoversAtStatementBoundary(t *testing.T) {
	program, errs := parseSource(t, "let = 1; let y = 2; ) let z = 3;")
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	wantKinds := []ErrorType{MissingToken, CannotStartStatement}
	for i, kind := range wantKinds {
		if errs[i].Kind != kind {
			t.Fatalf("error %d: expected %s, got %v", i, kind, errs[i])
		}
	}
	if got, want := Sprint(program), "(let y 2)\n(let z 3)"; got != want {
		t.Fatalf("unexpected tree after recovery:\n%s\nwant:\n%s", got, want)
	}
	if len(program.Errors) != len(errs) {
		t.Fatalf("program errors not recorded: %d vs %d", len(program.Errors), len(errs))
	}
}

func TestParserMissingSemicolon(t *testing.T) {
	_, errs := parseSource(t, "let x = 1\nlet y = 2;")
	if len(errs) == 0 || errs[0].Kind != MissingToken {
		t.Fatalf("expected MissingToken, got %v", errs)
	}
	if errs[0].Pos.Line != 2 {
		t.Fatalf("expected error on line 2, got %d", errs[0].Pos.Line)
	}
}

func TestParserIllegalCharacter(t *testing.T) {
	program, errs := parseSource(t, "let x = @;")
	if len(errs) != 1 || errs[0].Kind != UnexpectedToken {
		t.Fatalf("expected a single UnexpectedToken, got %v", errs)
	}
	if got := Sprint(program); got != "(let x <empty>)" {
		t.Fatalf("unexpected tree: %s", got)
	}
}
