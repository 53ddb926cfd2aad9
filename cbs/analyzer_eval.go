package cbs

import "errors"

// maxEvalDepth bounds nested pure calls during constant evaluation.
const maxEvalDepth = 64

// evalFrame holds the locals of a pure function evaluated at compile time.
type evalFrame struct {
	fn     *DeclaredFunction
	locals map[*Symbol]Value
	depth  int
}

// eval computes expr at compile time. It fails with errNotConstant when the
// result depends on run-time state; any other error is one the program
// would raise when run.
func (a *analyzer) eval(expr Expression, f *evalFrame) (Value, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Value, nil
	case *Identifier:
		if e.Symbol == nil {
			return Value{}, errNotConstant
		}
		if f != nil {
			if v, ok := f.locals[e.Symbol]; ok {
				return v, nil
			}
		}
		if e.Symbol.Known {
			return e.Symbol.Value, nil
		}
		return Value{}, errNotConstant
	case *BinaryExpr:
		op := binaryOperators[e.Operator]
		left, err := a.eval(e.Left, f)
		if err != nil {
			return Value{}, err
		}
		if left.Kind() == KindBool && ((op == OpAnd && !left.Bool()) || (op == OpOr && left.Bool())) {
			return left, nil
		}
		right, err := a.eval(e.Right, f)
		if err != nil {
			return Value{}, err
		}
		v, err := BinaryOp(op, left, right)
		return v, at(err, e.Pos())
	case *UnaryExpr:
		if e.isStep() {
			return a.evalStep(e, f)
		}
		operand, err := a.eval(e.Operand, f)
		if err != nil {
			return Value{}, err
		}
		v, err := UnaryOp(unaryOperators[e.Operator], operand)
		return v, at(err, e.Pos())
	case *AssignExpr:
		return a.evalAssign(e, f)
	case *TernaryExpr:
		cond, err := a.eval(e.Condition, f)
		if err != nil {
			return Value{}, err
		}
		if cond.Kind() != KindBool {
			return Value{}, newError(InvalidType, e.Condition.Pos(), "condition must be bool, got %s", cond.Type().Name())
		}
		if cond.Bool() {
			return a.eval(e.Consequent, f)
		}
		return a.eval(e.Alternative, f)
	case *RangeExpr:
		start, err := a.eval(e.Start, f)
		if err != nil {
			return Value{}, err
		}
		end, err := a.eval(e.End, f)
		if err != nil {
			return Value{}, err
		}
		v, err := makeRange(start, end, e.Inclusive)
		return v, at(err, e.Pos())
	case *ArrayLiteral:
		items := make([]Value, len(e.Elements))
		for i, elem := range e.Elements {
			v, err := a.eval(elem, f)
			if err != nil {
				return Value{}, err
			}
			items[i] = v.withoutOrigin()
		}
		return NewArrayOf(items), nil
	case *MemberExpr:
		object, err := a.eval(e.Object, f)
		if err != nil {
			return Value{}, err
		}
		if object.Object() != nil {
			return Value{}, errNotConstant
		}
		v, err := GetMember(object, NewString(e.Property))
		return v, at(err, e.Pos())
	case *IndexExpr:
		object, err := a.eval(e.Object, f)
		if err != nil {
			return Value{}, err
		}
		if object.Object() != nil {
			return Value{}, errNotConstant
		}
		index, err := a.eval(e.Index, f)
		if err != nil {
			return Value{}, err
		}
		v, err := GetMember(object, index)
		return v, at(err, e.Pos())
	case *CallExpr:
		return a.evalCall(e, f)
	}
	return Value{}, errNotConstant
}

// makeRange builds start..end from two i32 values.
func makeRange(start, end Value, inclusive bool) (Value, error) {
	if start.Kind() != KindI32 || end.Kind() != KindI32 {
		return Value{}, newError(InvalidType, Position{}, "range bounds must be i32, got %s and %s",
			start.Type().Name(), end.Type().Name())
	}
	return NewRange(start.I32(), end.I32(), inclusive), nil
}

// localSymbol returns the symbol an assignment writes when it belongs to
// the function being evaluated.
func (a *analyzer) localSymbol(target Expression, f *evalFrame) (*Symbol, bool) {
	ident, ok := target.(*Identifier)
	if !ok || ident.Symbol == nil || f == nil {
		return nil, false
	}
	if !a.scopes.Within(ident.Symbol.Scope, f.fn.Scope) {
		return nil, false
	}
	return ident.Symbol, true
}

func (a *analyzer) evalAssign(e *AssignExpr, f *evalFrame) (Value, error) {
	sym, ok := a.localSymbol(e.Target, f)
	if !ok {
		return Value{}, errNotConstant
	}
	v, err := a.eval(e.Value, f)
	if err != nil {
		return Value{}, err
	}
	if op, compound := compoundOperators[e.Operator]; compound {
		v, err = BinaryOp(binaryOperators[op], f.locals[sym], v)
		if err != nil {
			return Value{}, at(err, e.Pos())
		}
	}
	v, err = Convert(v.withoutOrigin(), sym.Type)
	if err != nil {
		return Value{}, at(err, e.Pos())
	}
	f.locals[sym] = v
	return v, nil
}

func (a *analyzer) evalStep(e *UnaryExpr, f *evalFrame) (Value, error) {
	sym, ok := a.localSymbol(e.Operand, f)
	if !ok {
		return Value{}, errNotConstant
	}
	op := OpAdd
	if e.Operator == tokenDecrement {
		op = OpSub
	}
	old := f.locals[sym]
	updated, err := BinaryOp(op, old, NewI32(1))
	if err != nil {
		return Value{}, at(err, e.Pos())
	}
	f.locals[sym] = updated
	if e.Postfix {
		return old, nil
	}
	return updated, nil
}

func (a *analyzer) evalCall(e *CallExpr, f *evalFrame) (Value, error) {
	callee, err := a.eval(e.Callee, f)
	if err != nil {
		return Value{}, err
	}
	args := make([]Value, len(e.Args))
	for i, arg := range e.Args {
		v, err := a.eval(arg, f)
		if err != nil {
			return Value{}, err
		}
		args[i] = v.withoutOrigin()
	}

	call := &CallContext{Pos: e.Pos()}
	switch {
	case callee.Object() != nil:
		return Value{}, errNotConstant
	case callee.Native() != nil:
		if !callee.Native().Pure {
			return Value{}, errNotConstant
		}
	case callee.Function() != nil:
		fn := callee.Function()
		if !fn.Pure {
			return Value{}, errNotConstant
		}
		if !fn.acceptsArgs(len(args)) {
			return Value{}, newError(ArgumentCount, e.Pos(), "%s expects %s, got %d", fn.Name, describeArity(fn), len(args))
		}
		return a.evalFunction(fn, args, f)
	}
	v, err := callValue(call, callee, args)
	return v, at(err, e.Pos())
}

// evalFunction runs a pure function body with the given arguments.
func (a *analyzer) evalFunction(fn *DeclaredFunction, args []Value, parent *evalFrame) (Value, error) {
	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}
	if depth > maxEvalDepth {
		return Value{}, errNotConstant
	}

	frame := &evalFrame{fn: fn, locals: make(map[*Symbol]Value), depth: depth}
	for i, param := range fn.Params {
		if fn.IsVariadic && i == len(fn.Params)-1 {
			rest, err := variadicArray(fn.ArgumentTypes[i], args[i:])
			if err != nil {
				return Value{}, err
			}
			frame.locals[param] = rest
			break
		}
		v, err := Convert(args[i], fn.ArgumentTypes[i])
		if err != nil {
			return Value{}, err
		}
		frame.locals[param] = v
	}

	ret := NewNull()
	if err := a.execBlock(fn.Body, frame); err != nil {
		var signal *Error
		if !errors.As(err, &signal) || signal.Kind != ReturnValue {
			return Value{}, err
		}
		ret = signal.value
	}
	if fn.ReturnType != nil {
		return Convert(ret, fn.ReturnType)
	}
	return ret, nil
}

func variadicArray(elem Type, args []Value) (Value, error) {
	items := make([]Value, len(args))
	for i, arg := range args {
		v, err := Convert(arg, elem)
		if err != nil {
			return Value{}, err
		}
		items[i] = v.withoutOrigin()
	}
	return NewArray(elem, items), nil
}

func (a *analyzer) execBlock(block *BlockStmt, f *evalFrame) error {
	for _, stmt := range block.Statements {
		if err := a.execStatement(stmt, f); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) execStatement(stmt Statement, f *evalFrame) error {
	switch s := stmt.(type) {
	case *EmptyStmt:
		return nil
	case *ExprStmt:
		_, err := a.eval(s.Expr, f)
		return err
	case *BlockStmt:
		return a.execBlock(s, f)
	case *IfStmt:
		cond, err := a.eval(s.Condition, f)
		if err != nil {
			return err
		}
		if cond.Kind() != KindBool {
			return newError(InvalidType, s.Condition.Pos(), "condition must be bool, got %s", cond.Type().Name())
		}
		if cond.Bool() {
			return a.execBlock(s.Consequent, f)
		}
		if s.Alternative != nil {
			return a.execBlock(s.Alternative, f)
		}
		return nil
	case *ReturnStmt:
		if s.Value == nil {
			return returnSignal(NewNull())
		}
		v, err := a.eval(s.Value, f)
		if err != nil {
			return err
		}
		return returnSignal(v.withoutOrigin())
	}
	return errNotConstant
}
