// Package cbs implements chart-build script, a small language for authoring
// timed events in a rhythm-game chart editor. A script passes through these
// stages:
//   - Tokenize and Parse build a Program from C-like source: `let`/`const`
//     declarations, `fn` functions and `|x| x * 2` closures, if/while/for,
//     `for (x in xs)` loops, ranges (`0..4`, `0..=4`) and `#name args;` commands.
//   - Analyze resolves identifiers against nested scopes, folds constant
//     expressions, prunes dead code and classifies functions as pure.
//   - CompileProgram lowers the analyzed tree into goto-based bytecode that
//     Verify checks and a VM executes against a private slot table.
//
// Every script must start with `#version v0;`. Host objects reach scripts
// through the Object interface, usually built with ObjectBuilder, and the
// Engine ties the stages together behind a compile cache.
package cbs
