package cbs

import "fmt"

// analyzeStatement returns the rewritten statement, or nil when it is
// removed, and whether it unconditionally leaves the enclosing block.
func (a *analyzer) analyzeStatement(stmt Statement, ctx blockContext) (Statement, bool) {
	switch s := stmt.(type) {
	case nil, *EmptyStmt:
		return nil, false
	case *BlockStmt:
		exits := a.analyzeBranch(s, ctx, ScopeBlock)
		if len(s.Statements) == 0 {
			return nil, exits
		}
		return s, exits
	case *CommandStmt:
		a.analyzeCommand(s)
		return nil, false
	case *VarDecl:
		return a.analyzeVarDecl(s, ctx), false
	case *FunctionDecl:
		a.analyzeFunctionDecl(s, ctx)
		return nil, false
	case *ExprStmt:
		s.Expr = a.analyzeExpression(s.Expr, ctx)
		if !hasSideEffects(s.Expr) {
			return nil, false
		}
		return s, false
	case *IfStmt:
		return a.analyzeIf(s, ctx)
	case *WhileStmt:
		return a.analyzeWhile(s, ctx), false
	case *ForStmt:
		return a.analyzeFor(s, ctx), false
	case *ForeachStmt:
		return a.analyzeForeach(s, ctx), false
	case *BreakStmt:
		if !ctx.inLoop {
			a.errorf(UnexpectedToken, s.Pos(), "break outside of a loop")
			return nil, false
		}
		return s, true
	case *ContinueStmt:
		if !ctx.inLoop {
			a.errorf(UnexpectedToken, s.Pos(), "continue outside of a loop")
			return nil, false
		}
		return s, true
	case *ReturnStmt:
		return a.analyzeReturn(s, ctx)
	}
	panic(fmt.Sprintf("cbs: unexpected statement %T", stmt))
}

func (a *analyzer) analyzeCommand(cmd *CommandStmt) {
	switch cmd.Name {
	case "version":
		a.errorf(InvalidCommand, cmd.Pos(), "#version must be the first statement")
	case "target", "enable", "disable":
		a.errorf(NotSupported, cmd.Pos(), "#%s is not supported", cmd.Name)
	default:
		a.errorf(InvalidCommand, cmd.Pos(), "unknown command #%s", cmd.Name)
	}
}

// analyzeVarDecl folds the declaration into the scope table when its value
// is known at compile time. Otherwise it becomes an initializing
// assignment so evaluation order is preserved.
func (a *analyzer) analyzeVarDecl(decl *VarDecl, ctx blockContext) Statement {
	declared := a.resolveOptionalType(decl.Type)
	if decl.Value != nil {
		decl.Value = a.analyzeExpression(decl.Value, ctx)
	}

	sym := &Symbol{Name: decl.Name, Type: declared, ReadOnly: decl.Const, Pos: decl.Pos()}
	decl.Symbol = sym
	if err := a.scopes.Declare(ctx.scope, sym); err != nil {
		a.report(err)
	}

	foldable := decl.Const || (!ctx.reentrant && !a.assigned[decl.Name])

	if decl.Value == nil {
		if decl.Const {
			a.errorf(InvalidAssignment, decl.Pos(), "const %s must be initialized", decl.Name)
		}
		switch {
		case ctx.reentrant:
			return a.initAssignment(decl, sym, NewLiteral(NewNull(), decl.Pos()))
		case foldable:
			sym.Known = true
			sym.Value = NewNull()
		}
		return nil
	}

	lit, isLit := decl.Value.(*Literal)
	if isLit {
		v, err := Convert(lit.Value, declared)
		if err != nil {
			a.report(at(err, decl.Value.Pos()))
			v = lit.Value
		}
		if foldable && v.isScalar() {
			sym.Known = true
			sym.Value = v.withoutOrigin()
			if declared.Kind() == KindAny {
				sym.Type = v.Type()
			}
			return nil
		}
		decl.Value = NewLiteral(v, lit.Pos())
	}
	return a.initAssignment(decl, sym, decl.Value)
}

func (a *analyzer) initAssignment(decl *VarDecl, sym *Symbol, value Expression) Statement {
	target := &Identifier{Name: decl.Name, Symbol: sym, position: decl.Pos()}
	assign := &AssignExpr{Target: target, Operator: tokenAssign, Value: value, Init: true, position: decl.Pos()}
	return &ExprStmt{Expr: assign, position: decl.Pos()}
}

func (a *analyzer) analyzeIf(stmt *IfStmt, ctx blockContext) (Statement, bool) {
	stmt.Condition = a.analyzeExpression(stmt.Condition, ctx)

	if _, isLit := stmt.Condition.(*Literal); isLit {
		cond, ok := a.constantCondition(stmt.Condition)
		if !ok {
			return nil, false
		}
		branch := stmt.Alternative
		if cond {
			branch = stmt.Consequent
		}
		if branch == nil {
			return nil, false
		}
		exits := a.analyzeBranch(branch, ctx, ScopeBlock)
		if len(branch.Statements) == 0 {
			return nil, exits
		}
		return branch, exits
	}

	thenExits := a.analyzeBranch(stmt.Consequent, ctx, ScopeBlock)
	elseExits := false
	if stmt.Alternative != nil {
		elseExits = a.analyzeBranch(stmt.Alternative, ctx, ScopeBlock)
		if len(stmt.Alternative.Statements) == 0 {
			stmt.Alternative = nil
		}
	}

	if len(stmt.Consequent.Statements) == 0 {
		if stmt.Alternative == nil {
			if hasSideEffects(stmt.Condition) {
				return &ExprStmt{Expr: stmt.Condition, position: stmt.Pos()}, false
			}
			return nil, false
		}
		stmt.Condition = &UnaryExpr{Operator: tokenBang, Operand: stmt.Condition, position: stmt.Condition.Pos()}
		stmt.Consequent, stmt.Alternative = stmt.Alternative, nil
		thenExits, elseExits = elseExits, false
	}
	return stmt, stmt.Alternative != nil && thenExits && elseExits
}

// constantCondition reports the value of a literal loop or branch
// condition. A literal that is not a bool is reported as InvalidType.
func (a *analyzer) constantCondition(cond Expression) (value, ok bool) {
	lit, isLit := cond.(*Literal)
	if !isLit {
		return false, false
	}
	if lit.Value.Kind() != KindBool {
		a.errorf(InvalidType, lit.Pos(), "condition must be bool, got %s", lit.Value.Type().Name())
		return false, false
	}
	return lit.Value.Bool(), true
}

func loopContext(ctx blockContext) blockContext {
	ctx.inLoop = true
	ctx.reentrant = true
	return ctx
}

func (a *analyzer) analyzeWhile(stmt *WhileStmt, ctx blockContext) Statement {
	stmt.Condition = a.analyzeExpression(stmt.Condition, ctx)
	if cond, ok := a.constantCondition(stmt.Condition); ok && !cond {
		return nil
	}

	a.analyzeBranch(stmt.Body, loopContext(ctx), ScopeLoop)
	if len(stmt.Body.Statements) == 0 && !hasSideEffects(stmt.Condition) {
		return nil
	}
	return stmt
}

func (a *analyzer) analyzeFor(stmt *ForStmt, ctx blockContext) Statement {
	header := ctx
	header.scope = a.scopes.New(ctx.scope, ScopeLoop)
	stmt.Scope = header.scope

	if stmt.Init != nil {
		stmt.Init, _ = a.analyzeStatement(stmt.Init, header)
	}
	body := loopContext(header)
	if stmt.Condition != nil {
		stmt.Condition = a.analyzeExpression(stmt.Condition, body)
	}
	if stmt.Update != nil {
		stmt.Update = a.analyzeExpression(stmt.Update, body)
	}

	if stmt.Condition != nil {
		if cond, ok := a.constantCondition(stmt.Condition); ok {
			if !cond {
				return stmt.Init
			}
			stmt.Condition = nil
		}
	}

	a.analyzeBranch(stmt.Body, body, ScopeBlock)
	if len(stmt.Body.Statements) == 0 && !hasSideEffects(stmt.Condition) && !hasSideEffects(stmt.Update) {
		return stmt.Init
	}
	return stmt
}

func (a *analyzer) analyzeForeach(stmt *ForeachStmt, ctx blockContext) Statement {
	stmt.Iterable = a.analyzeExpression(stmt.Iterable, ctx)
	if lit, ok := stmt.Iterable.(*Literal); ok {
		if err := Iterable(lit.Value); err != nil {
			a.report(at(err, lit.Pos()))
			return nil
		}
	}

	header := loopContext(ctx)
	header.scope = a.scopes.New(ctx.scope, ScopeLoop)
	stmt.Scope = header.scope
	stmt.Symbol = &Symbol{Name: stmt.Name, Pos: stmt.Pos()}
	if err := a.scopes.Declare(header.scope, stmt.Symbol); err != nil {
		a.report(err)
	}

	a.analyzeBranch(stmt.Body, header, ScopeBlock)
	if len(stmt.Body.Statements) == 0 && !hasSideEffects(stmt.Iterable) {
		return nil
	}
	return stmt
}

func (a *analyzer) analyzeReturn(stmt *ReturnStmt, ctx blockContext) (Statement, bool) {
	if !ctx.inFunction {
		a.errorf(UnexpectedToken, stmt.Pos(), "return outside of a function")
		return nil, false
	}
	if stmt.Value == nil {
		return stmt, true
	}
	stmt.Value = a.analyzeExpression(stmt.Value, ctx)
	if lit, ok := stmt.Value.(*Literal); ok && ctx.fn.ReturnType != nil {
		v, err := Convert(lit.Value, ctx.fn.ReturnType)
		if err != nil {
			a.report(at(err, lit.Pos()))
		} else {
			stmt.Value = NewLiteral(v, lit.Pos())
		}
	}
	return stmt, true
}

// hasSideEffects reports whether evaluating expr can change state or fail
// in a way that must be kept. Closure bodies only run when called.
func hasSideEffects(expr Expression) bool {
	if expr == nil {
		return false
	}
	found := false
	Inspect(expr, func(n Node) bool {
		switch n := n.(type) {
		case *ClosureExpr:
			return false
		case *AssignExpr, *CallExpr, *MemberExpr, *IndexExpr:
			found = true
		case *UnaryExpr:
			if n.isStep() {
				found = true
			}
		}
		return !found
	})
	return found
}
