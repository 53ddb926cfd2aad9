package cbs

// isPure reports whether fn may be evaluated at compile time: its only
// effect is its return value. The check is syntactic. Loops, closures,
// writes outside the function, reads of run-time state declared outside
// it and calls to anything but pure callees all make it impure. A function
// calling itself is never pure.
func (a *analyzer) isPure(fn *DeclaredFunction) bool {
	pure := true
	Inspect(fn.Body, func(n Node) bool {
		switch n := n.(type) {
		case *WhileStmt, *ForStmt, *ForeachStmt, *ClosureExpr:
			pure = false
		case *AssignExpr:
			pure = a.isLocal(n.Target, fn)
		case *UnaryExpr:
			if n.isStep() {
				pure = a.isLocal(n.Operand, fn)
			}
		case *Identifier:
			pure = a.isPureRead(n.Symbol, fn)
		case *CallExpr:
			pure = a.isPureCallee(n.Callee, fn)
		}
		return pure
	})
	return pure
}

func (a *analyzer) isLocal(target Expression, fn *DeclaredFunction) bool {
	ident, ok := target.(*Identifier)
	if !ok || ident.Symbol == nil {
		return false
	}
	return a.scopes.Within(ident.Symbol.Scope, fn.Scope)
}

func (a *analyzer) isPureRead(sym *Symbol, fn *DeclaredFunction) bool {
	switch {
	case sym == nil:
		return false
	case a.scopes.Within(sym.Scope, fn.Scope), sym.Function != nil:
		return true
	case sym.Known:
		return sym.Value.isScalar() || sym.Value.Native() != nil
	}
	return false
}

func (a *analyzer) isPureCallee(callee Expression, fn *DeclaredFunction) bool {
	switch c := callee.(type) {
	case *Literal:
		return c.Value.Kind() == KindType
	case *Identifier:
		sym := c.Symbol
		switch {
		case sym == nil:
			return false
		case sym.Function != nil:
			return sym.Function != fn && sym.Function.Pure
		case sym.Known && sym.Value.Native() != nil:
			return sym.Value.Native().Pure
		}
	}
	return false
}
