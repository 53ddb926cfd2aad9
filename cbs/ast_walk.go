package cbs

// Inspect traverses the tree rooted at node in depth-first order, calling fn
// for each node. Children are skipped when fn returns false.
func Inspect(node Node, fn func(Node) bool) {
	if isNilNode(node) || !fn(node) {
		return
	}

	switch n := node.(type) {
	case *Program:
		Inspect(n.Body, fn)
	case *BlockStmt:
		for _, stmt := range n.Statements {
			Inspect(stmt, fn)
		}
	case *VarDecl:
		Inspect(n.Type, fn)
		Inspect(n.Value, fn)
	case *FunctionDecl:
		for _, param := range n.Params {
			Inspect(param.Type, fn)
		}
		Inspect(n.ReturnType, fn)
		Inspect(n.Body, fn)
	case *IfStmt:
		Inspect(n.Condition, fn)
		Inspect(n.Consequent, fn)
		Inspect(n.Alternative, fn)
	case *WhileStmt:
		Inspect(n.Condition, fn)
		Inspect(n.Body, fn)
	case *ForStmt:
		Inspect(n.Init, fn)
		Inspect(n.Condition, fn)
		Inspect(n.Update, fn)
		Inspect(n.Body, fn)
	case *ForeachStmt:
		Inspect(n.Iterable, fn)
		Inspect(n.Body, fn)
	case *ReturnStmt:
		Inspect(n.Value, fn)
	case *ExprStmt:
		Inspect(n.Expr, fn)
	case *TypeExpr:
		for _, arg := range n.Args {
			Inspect(arg, fn)
		}
	case *BinaryExpr:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	case *UnaryExpr:
		Inspect(n.Operand, fn)
	case *AssignExpr:
		Inspect(n.Target, fn)
		Inspect(n.Value, fn)
	case *CallExpr:
		Inspect(n.Callee, fn)
		for _, arg := range n.Args {
			Inspect(arg, fn)
		}
	case *MemberExpr:
		Inspect(n.Object, fn)
	case *IndexExpr:
		Inspect(n.Object, fn)
		Inspect(n.Index, fn)
	case *ArrayLiteral:
		for _, elem := range n.Elements {
			Inspect(elem, fn)
		}
	case *RangeExpr:
		Inspect(n.Start, fn)
		Inspect(n.End, fn)
	case *TernaryExpr:
		Inspect(n.Condition, fn)
		Inspect(n.Consequent, fn)
		Inspect(n.Alternative, fn)
	case *ClosureExpr:
		for _, param := range n.Params {
			Inspect(param.Type, fn)
		}
		Inspect(n.ReturnType, fn)
		Inspect(n.Body, fn)
	}
}

func isNilNode(node Node) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *Program:
		return n == nil
	case *BlockStmt:
		return n == nil
	case *TypeExpr:
		return n == nil
	}
	return false
}
