package cbs

import (
	"fmt"
	"sort"
)

// DefaultVersions lists the language versions accepted by `#version`.
var DefaultVersions = []string{"v0"}

// AnalyzeOptions configures Analyze.
type AnalyzeOptions struct {
	// Versions accepted by the leading `#version` command. Empty means
	// DefaultVersions.
	Versions []string
	// Globals are host values visible to the script as read-only names.
	Globals map[string]Value
}

type analyzer struct {
	program  *Program
	scopes   *ScopeTable
	versions []string
	errors   []*Error

	// assigned holds every name that appears as an assignment target
	// anywhere in the program. Such variables are never folded.
	assigned map[string]bool
}

type blockContext struct {
	scope      ScopeID
	inLoop     bool
	inFunction bool
	// reentrant is set where a statement may execute more than once.
	reentrant bool
	fn        *DeclaredFunction
}

// Analyze resolves, folds and prunes program in place and returns it. It
// runs once per program; problems are appended to program.Errors and the
// analysis always covers the whole tree.
func Analyze(program *Program, opts AnalyzeOptions) *Program {
	versions := opts.Versions
	if len(versions) == 0 {
		versions = DefaultVersions
	}
	if program.Body == nil {
		program.Body = &BlockStmt{}
	}

	a := &analyzer{
		program:  program,
		scopes:   NewScopeTable(),
		versions: versions,
		assigned: collectAssigned(program.Body),
	}
	program.Scopes = a.scopes

	global := a.scopes.New(NoScope, ScopeGlobal)
	names := make([]string, 0, len(opts.Globals))
	for name := range opts.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := opts.Globals[name]
		sym := &Symbol{Name: name, Type: v.Type(), Value: v, ReadOnly: true, Known: true}
		if err := a.scopes.Declare(global, sym); err != nil {
			a.report(err)
		}
	}

	program.Body.Scope = a.scopes.New(global, ScopeBlock)
	a.checkVersion()
	a.analyzeBlock(program.Body, blockContext{scope: program.Body.Scope})

	program.Errors = append(program.Errors, a.errors...)
	return program
}

func (a *analyzer) report(err error) {
	if err == nil {
		return
	}
	se, ok := err.(*Error)
	if !ok {
		se = newError(InvalidArgument, Position{}, "%v", err)
	}
	if se.Kind.internal() {
		return
	}
	a.errors = append(a.errors, se)
}

func (a *analyzer) errorf(kind ErrorType, pos Position, format string, args ...any) {
	a.errors = append(a.errors, newError(kind, pos, format, args...))
}

// checkVersion consumes the mandatory leading `#version` command.
func (a *analyzer) checkVersion() {
	stmts := a.program.Body.Statements
	cmd, ok := firstStatement(stmts).(*CommandStmt)
	if !ok || cmd.Name != "version" {
		pos := Position{Line: 1, Column: 1}
		if len(stmts) > 0 {
			pos = stmts[0].Pos()
		}
		a.errorf(DoesNotStartWithVersion, pos, "script must start with #version (one of %v)", a.versions)
		return
	}

	a.program.Body.Statements = stmts[1:]
	if len(cmd.Args) != 1 {
		a.errorf(InvalidVersion, cmd.Pos(), "#version takes exactly one argument")
		return
	}
	version := cmd.Args[0].Literal
	for _, supported := range a.versions {
		if version == supported {
			a.program.Version = version
			return
		}
	}
	a.errorf(InvalidVersion, cmd.Args[0].Pos, "unsupported version %q (supported: %v)", version, a.versions)
}

func firstStatement(stmts []Statement) Statement {
	if len(stmts) == 0 {
		return nil
	}
	return stmts[0]
}

// collectAssigned lists the identifiers written by assignments and
// increments anywhere under root.
func collectAssigned(root Node) map[string]bool {
	assigned := make(map[string]bool)
	Inspect(root, func(n Node) bool {
		switch n := n.(type) {
		case *AssignExpr:
			if ident, ok := n.Target.(*Identifier); ok {
				assigned[ident.Name] = true
			}
		case *UnaryExpr:
			if ident, ok := n.Operand.(*Identifier); ok && n.isStep() {
				assigned[ident.Name] = true
			}
		}
		return true
	})
	return assigned
}

// analyzeBlock rewrites block in place. It reports whether the block ends
// in an unconditional exit (break, continue or return).
func (a *analyzer) analyzeBlock(block *BlockStmt, ctx blockContext) bool {
	a.hoistFunctions(block, ctx)

	out := make([]Statement, 0, len(block.Statements))
	exits := false
	for i, stmt := range block.Statements {
		res, exit := a.analyzeStatement(stmt, ctx)
		if res != nil {
			if _, empty := res.(*EmptyStmt); !empty {
				out = append(out, res)
			}
		}
		if exit {
			exits = true
			// Hoisted declarations past the exit are still callable.
			for _, rest := range block.Statements[i+1:] {
				if decl, ok := rest.(*FunctionDecl); ok {
					a.analyzeFunctionDecl(decl, ctx)
				}
			}
			break
		}
	}
	block.Statements = out
	return exits
}

// analyzeBranch gives block its own scope under ctx and analyzes it.
func (a *analyzer) analyzeBranch(block *BlockStmt, ctx blockContext, kind ScopeKind) bool {
	ctx.scope = a.scopes.New(ctx.scope, kind)
	block.Scope = ctx.scope
	return a.analyzeBlock(block, ctx)
}

// hoistFunctions declares every function of block up front so that calls
// may precede declarations.
func (a *analyzer) hoistFunctions(block *BlockStmt, ctx blockContext) {
	for _, stmt := range block.Statements {
		decl, ok := stmt.(*FunctionDecl)
		if !ok {
			continue
		}
		fn := a.newFunction(decl.Name, decl.Params, decl.ReturnType, decl.Body, decl.Pos())
		decl.Function = fn
		sym := &Symbol{
			Name:     decl.Name,
			Type:     fn.Type(),
			Value:    NewFunction(fn),
			ReadOnly: true,
			Known:    true,
			Function: fn,
			Pos:      decl.Pos(),
		}
		if err := a.scopes.Declare(ctx.scope, sym); err != nil {
			a.report(err)
		}
	}
}

func (a *analyzer) newFunction(name string, params []Param, ret *TypeExpr, body *BlockStmt, pos Position) *DeclaredFunction {
	fn := &DeclaredFunction{Name: name, Body: body, Pos: pos}
	for _, param := range params {
		fn.ArgumentNames = append(fn.ArgumentNames, param.Name)
		fn.ArgumentTypes = append(fn.ArgumentTypes, a.resolveOptionalType(param.Type))
		if param.Variadic {
			fn.IsVariadic = true
		}
	}
	if ret != nil {
		fn.ReturnType = a.resolveOptionalType(ret)
	}
	return fn
}

func (a *analyzer) resolveOptionalType(expr *TypeExpr) Type {
	if expr == nil {
		return TypeAny
	}
	t, err := ResolveType(expr)
	if err != nil {
		a.report(err)
		return TypeAny
	}
	return t
}

// analyzeFunctionBody declares the parameters in a fresh function scope,
// analyzes the body and infers purity.
func (a *analyzer) analyzeFunctionBody(fn *DeclaredFunction, params []Param, ctx blockContext) {
	scope := a.scopes.New(ctx.scope, ScopeFunction)
	fn.Scope = scope
	fn.Body.Scope = scope

	for i, param := range params {
		typ := fn.ArgumentTypes[i]
		if param.Variadic {
			typ = ArrayOf(typ)
		}
		sym := &Symbol{Name: param.Name, Type: typ, Pos: param.Pos}
		if err := a.scopes.Declare(scope, sym); err != nil {
			a.report(err)
		}
		fn.Params = append(fn.Params, sym)
	}

	a.analyzeBlock(fn.Body, blockContext{scope: scope, inFunction: true, reentrant: true, fn: fn})
	fn.Pure = a.isPure(fn)
	a.program.Functions = append(a.program.Functions, fn)
}

func (a *analyzer) analyzeFunctionDecl(decl *FunctionDecl, ctx blockContext) {
	if decl.Function == nil {
		panic(fmt.Sprintf("cbs: function %s analyzed before it was hoisted", decl.Name))
	}
	if decl.Function.Scope != 0 {
		return
	}
	a.analyzeFunctionBody(decl.Function, decl.Params, ctx)
}
