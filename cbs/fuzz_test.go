package cbs

import (
	"context"
	"testing"
)

func FuzzCompileAndRun(f *testing.F) {
	seeds := []string{
		"#version v0; let x = 1 + 2;",
		"#version v0; fn f(n) { return n < 2 ? n : f(n - 1) + f(n - 2); } let r = 0; r = f(5);",
		"#version v0; for (i in 0..3) { if (i == 1) { continue; } }",
		"#version v0; let xs = [1, 2]; xs.push(3); xs[0] = len(xs);",
		"#version v0; let g = |x| { return x * 2; }; g(2);",
		"let = ; ) (",
		"\"unterminated",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}
	engine := MustNewEngine(Config{MaxSteps: 5000, CacheSize: -1})
	f.Fuzz(func(t *testing.T, source string) {
		script, err := engine.Compile(source)
		if err != nil {
			return
		}
		if errs := Verify(script.Bytecode()); len(errs) > 0 {
			t.Fatalf("compiled bytecode does not verify: %v", errs)
		}
		_ = script.Run(context.Background())
	})
}

func FuzzTokenize(f *testing.F) {
	for _, seed := range []string{"let a = 0x1F;", "1.5e3 'x' \"y\\n\"", "// c\n/* d */ a..=b"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, source string) {
		tokens, err := Tokenize(source)
		if err != nil {
			return
		}
		if len(tokens) == 0 || tokens[len(tokens)-1].Type != tokenEOF {
			t.Fatalf("token stream must end with EOF")
		}
	})
}
