package cbs

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkEngine() *Engine {
	return MustNewEngine(Config{MaxSteps: 50_000_000})
}

func BenchmarkExecutionArithmeticLoop(b *testing.B) {
	script := compileScript(b, benchmarkEngine(), `#version v0;
fn run(n: i32) -> i32 {
	let total = 0;
	for (i in 0..n) {
		total += i;
	}
	return total;
}
`)

	ctx := context.Background()
	args := []Value{NewI32(400)}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := script.Call(ctx, "run", args...); err != nil {
			b.Fatalf("call failed: %v", err)
		}
	}
}

func BenchmarkExecutionRecursion(b *testing.B) {
	script := compileScript(b, benchmarkEngine(), `#version v0;
fn fib(n) { if (n < 2) { return n; } return fib(n - 1) + fib(n - 2); }
`)

	ctx := context.Background()
	args := []Value{NewI32(15)}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := script.Call(ctx, "fib", args...); err != nil {
			b.Fatalf("call failed: %v", err)
		}
	}
}

func BenchmarkExecutionNativeCallback(b *testing.B) {
	engine := benchmarkEngine()
	engine.RegisterNative("each", func(call *CallContext, args []Value) (Value, error) {
		if err := ExpectArgs("each", args, 2); err != nil {
			return Value{}, err
		}
		n, err := NumberArg("each", args[0])
		if err != nil {
			return Value{}, err
		}
		for i := 0; i < int(n); i++ {
			if _, err := call.Invoke(args[1], NewI32(int32(i))); err != nil {
				return Value{}, err
			}
		}
		return NewNull(), nil
	}, false)
	script := compileScript(b, engine, `#version v0;
let sum = 0;
fn run() { sum = 0; each(100, |i| { sum += i; return 0; }); return sum; }
`)

	ctx := context.Background()
	if err := script.Run(ctx); err != nil {
		b.Fatalf("run failed: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := script.Call(ctx, "run"); err != nil {
			b.Fatalf("call failed: %v", err)
		}
	}
}

func BenchmarkCompile(b *testing.B) {
	engine := MustNewEngine(Config{CacheSize: -1})
	source := `#version v0;
fn scale(x: f32, by: f32) -> f32 { return x * by; }
let out = 0.0;
for (i in 0..16) {
	out += scale(i, 0.5);
}
`
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Compile(source); err != nil {
			b.Fatalf("compile failed: %v", err)
		}
	}
}

func BenchmarkCompileCached(b *testing.B) {
	engine := MustNewEngine(Config{})
	sources := make([]string, 8)
	for i := range sources {
		sources[i] = fmt.Sprintf("#version v0;\nlet x = %d;\nx += 1;\n", i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Compile(sources[i%len(sources)]); err != nil {
			b.Fatalf("compile failed: %v", err)
		}
	}
}
