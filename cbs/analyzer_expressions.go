package cbs

import "fmt"

// analyzeExpression resolves identifiers under expr and replaces every
// sub-expression whose value is known at compile time with a literal.
func (a *analyzer) analyzeExpression(expr Expression, ctx blockContext) Expression {
	switch e := expr.(type) {
	case *Literal, *EmptyExpr:
		return e
	case *Identifier:
		return a.analyzeIdentifier(e, ctx)
	case *TypeExpr:
		t, err := ResolveType(e)
		if err != nil {
			a.report(err)
			return &EmptyExpr{position: e.Pos()}
		}
		return NewLiteral(NewTypeValue(t), e.Pos())
	case *BinaryExpr:
		return a.analyzeBinary(e, ctx)
	case *UnaryExpr:
		if e.isStep() {
			e.Operand = a.analyzeTarget(e.Operand, ctx, false)
			return e
		}
		e.Operand = a.analyzeExpression(e.Operand, ctx)
		return a.fold(e)
	case *AssignExpr:
		return a.analyzeAssign(e, ctx)
	case *CallExpr:
		return a.analyzeCall(e, ctx)
	case *MemberExpr:
		e.Object = a.analyzeExpression(e.Object, ctx)
		return a.fold(e)
	case *IndexExpr:
		e.Object = a.analyzeExpression(e.Object, ctx)
		e.Index = a.analyzeExpression(e.Index, ctx)
		return a.fold(e)
	case *ArrayLiteral:
		for i, elem := range e.Elements {
			e.Elements[i] = a.analyzeExpression(elem, ctx)
		}
		return e
	case *RangeExpr:
		e.Start = a.analyzeExpression(e.Start, ctx)
		e.End = a.analyzeExpression(e.End, ctx)
		return a.fold(e)
	case *TernaryExpr:
		e.Condition = a.analyzeExpression(e.Condition, ctx)
		if _, isLit := e.Condition.(*Literal); isLit {
			cond, ok := a.constantCondition(e.Condition)
			if !ok {
				return e
			}
			if cond {
				return a.analyzeExpression(e.Consequent, ctx)
			}
			return a.analyzeExpression(e.Alternative, ctx)
		}
		e.Consequent = a.analyzeExpression(e.Consequent, ctx)
		e.Alternative = a.analyzeExpression(e.Alternative, ctx)
		return e
	case *ClosureExpr:
		fn := a.newFunction(fmt.Sprintf("closure@%d:%d", e.Pos().Line, e.Pos().Column), e.Params, e.ReturnType, e.Body, e.Pos())
		fn.closure = true
		e.Function = fn
		a.analyzeFunctionBody(fn, e.Params, ctx)
		return e
	}
	panic(fmt.Sprintf("cbs: unexpected expression %T", expr))
}

func (a *analyzer) analyzeIdentifier(e *Identifier, ctx blockContext) Expression {
	sym, ok := a.scopes.Lookup(ctx.scope, e.Name)
	if !ok {
		if t, isType := LookupType(e.Name); isType {
			return NewLiteral(NewTypeValue(t), e.Pos())
		}
		a.errorf(UndefinedIdentifier, e.Pos(), "undefined identifier %s", e.Name)
		return e
	}
	e.Symbol = sym
	if sym.Known && sym.Value.isScalar() {
		return NewLiteral(sym.Value, e.Pos())
	}
	return e
}

func (a *analyzer) analyzeBinary(e *BinaryExpr, ctx blockContext) Expression {
	e.Left = a.analyzeExpression(e.Left, ctx)
	e.Right = a.analyzeExpression(e.Right, ctx)

	// A constant left operand decides && and || on its own.
	if left, ok := e.Left.(*Literal); ok && left.Value.Kind() == KindBool {
		switch {
		case e.Operator == tokenAnd && !left.Value.Bool(),
			e.Operator == tokenOr && left.Value.Bool():
			return NewLiteral(left.Value, e.Pos())
		}
	}
	return a.fold(e)
}

// analyzeTarget resolves the left-hand side of an assignment or step
// without inlining it.
func (a *analyzer) analyzeTarget(target Expression, ctx blockContext, init bool) Expression {
	switch t := target.(type) {
	case *Identifier:
		sym, ok := a.scopes.Lookup(ctx.scope, t.Name)
		if !ok {
			a.errorf(UndefinedIdentifier, t.Pos(), "undefined identifier %s", t.Name)
			return t
		}
		t.Symbol = sym
		if !init && (sym.ReadOnly || sym.Function != nil) {
			a.errorf(AssignToConstant, t.Pos(), "cannot assign to constant %s", t.Name)
		}
		return t
	case *MemberExpr:
		t.Object = a.analyzeExpression(t.Object, ctx)
		a.checkMemberTarget(t.Object)
		return t
	case *IndexExpr:
		t.Object = a.analyzeExpression(t.Object, ctx)
		t.Index = a.analyzeExpression(t.Index, ctx)
		a.checkMemberTarget(t.Object)
		return t
	}
	a.errorf(InvalidAssignment, target.Pos(), "cannot assign to this expression")
	return target
}

func (a *analyzer) checkMemberTarget(object Expression) {
	if lit, ok := object.(*Literal); ok {
		a.errorf(InvalidAssignment, lit.Pos(), "cannot assign members of constant %s", lit.Value.Type().Name())
	}
}

func (a *analyzer) analyzeAssign(e *AssignExpr, ctx blockContext) Expression {
	e.Value = a.analyzeExpression(e.Value, ctx)
	e.Target = a.analyzeTarget(e.Target, ctx, e.Init)

	ident, ok := e.Target.(*Identifier)
	lit, isLit := e.Value.(*Literal)
	if !ok || !isLit || ident.Symbol == nil || e.Operator != tokenAssign {
		return e
	}
	v, err := Convert(lit.Value, ident.Symbol.Type)
	if err != nil {
		a.report(at(err, lit.Pos()))
		return e
	}
	e.Value = NewLiteral(v, lit.Pos())
	return e
}

func (a *analyzer) analyzeCall(e *CallExpr, ctx blockContext) Expression {
	e.Callee = a.analyzeExpression(e.Callee, ctx)
	for i, arg := range e.Args {
		e.Args[i] = a.analyzeExpression(arg, ctx)
	}

	if ident, ok := e.Callee.(*Identifier); ok && ident.Symbol != nil && ident.Symbol.Function != nil {
		fn := ident.Symbol.Function
		if !fn.acceptsArgs(len(e.Args)) {
			a.errorf(ArgumentCount, e.Pos(), "%s expects %s, got %d", fn.Name, describeArity(fn), len(e.Args))
			return e
		}
	}
	return a.fold(e)
}

func describeArity(fn *DeclaredFunction) string {
	n := fn.Arity()
	noun := "arguments"
	if n == 1 {
		noun = "argument"
	}
	if fn.IsVariadic {
		return fmt.Sprintf("at least %d %s", n, noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}

// fold replaces e with a literal when all of its operands are literals and
// it evaluates to an immutable value. Evaluation failures that would
// certainly happen at run time are reported here.
func (a *analyzer) fold(e Expression) Expression {
	if !operandsConstant(e) {
		return e
	}
	v, err := a.eval(e, nil)
	if err != nil {
		a.report(at(err, e.Pos()))
		return e
	}
	if !v.isScalar() {
		return e
	}
	return NewLiteral(v.withoutOrigin(), e.Pos())
}

func operandsConstant(e Expression) bool {
	var operands []Expression
	switch e := e.(type) {
	case *BinaryExpr:
		operands = []Expression{e.Left, e.Right}
	case *UnaryExpr:
		operands = []Expression{e.Operand}
	case *MemberExpr:
		operands = []Expression{e.Object}
	case *IndexExpr:
		operands = []Expression{e.Object, e.Index}
	case *RangeExpr:
		operands = []Expression{e.Start, e.End}
	case *CallExpr:
		operands = append(operands, e.Args...)
		switch callee := e.Callee.(type) {
		case *Literal:
		case *Identifier:
			if callee.Symbol == nil || !callee.Symbol.Known {
				return false
			}
		default:
			return false
		}
	default:
		return false
	}
	for _, op := range operands {
		if _, ok := op.(*Literal); !ok {
			return false
		}
	}
	return true
}
