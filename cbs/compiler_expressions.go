package cbs

import "fmt"

// compileExpr emits code for expr and returns the slot holding its value.
func (c *compiler) compileExpr(expr Expression) uint32 {
	switch e := expr.(type) {
	case *Literal:
		return c.constSlot(e.Value)
	case *EmptyExpr:
		return c.constSlot(NewNull())
	case *TypeExpr:
		t, err := ResolveType(e)
		if err != nil {
			return c.constSlot(NewNull())
		}
		return c.constSlot(NewTypeValue(t))
	case *Identifier:
		if e.Symbol == nil {
			return c.constSlot(NewNull())
		}
		if fn := e.Symbol.Function; fn != nil && len(c.captures[fn]) > 0 {
			return c.compileClosure(fn, e.Pos())
		}
		return c.symbolSlot(e.Symbol)
	case *BinaryExpr:
		return c.compileBinary(e)
	case *UnaryExpr:
		if e.isStep() {
			return c.compileStep(e)
		}
		operand := c.compileExpr(e.Operand)
		tmp := c.newTemp()
		c.emitOperator(operand, operand, unaryOperators[e.Operator], e.Pos())
		c.emitPop(tmp)
		return tmp
	case *AssignExpr:
		return c.compileAssign(e)
	case *CallExpr:
		return c.compileCall(e)
	case *MemberExpr:
		object := c.compileExpr(e.Object)
		return c.callIntrinsic("__get", e.Pos(), object, c.constSlot(NewString(e.Property)))
	case *IndexExpr:
		object, key := c.compileMemberOperands(e)
		return c.callIntrinsic("__get", e.Pos(), object, key)
	case *ArrayLiteral:
		return c.callIntrinsic("__array", e.Pos(), c.compileArgs(e.Elements)...)
	case *RangeExpr:
		bounds := c.compileArgs([]Expression{e.Start, e.End})
		return c.callIntrinsic("__range", e.Pos(), bounds[0], bounds[1], c.constSlot(NewBool(e.Inclusive)))
	case *TernaryExpr:
		return c.compileTernary(e)
	case *ClosureExpr:
		return c.compileClosure(e.Function, e.Pos())
	}
	panic(fmt.Sprintf("cbs: unexpected expression %T", expr))
}

// compileArgs evaluates exprs left to right and keeps each result stable
// against side effects of the expressions after it.
func (c *compiler) compileArgs(exprs []Expression) []uint32 {
	out := make([]uint32, len(exprs))
	for i, expr := range exprs {
		slot := c.compileExpr(expr)
		for _, rest := range exprs[i+1:] {
			if hasSideEffects(rest) {
				slot = c.stable(slot)
				break
			}
		}
		out[i] = slot
	}
	return out
}

// compileMemberOperands evaluates the object and key of a member or index
// expression.
func (c *compiler) compileMemberOperands(target Expression) (object, key uint32) {
	switch t := target.(type) {
	case *MemberExpr:
		return c.compileExpr(t.Object), c.constSlot(NewString(t.Property))
	case *IndexExpr:
		slots := c.compileArgs([]Expression{t.Object, t.Index})
		return slots[0], slots[1]
	}
	panic(fmt.Sprintf("cbs: %T is not a member expression", target))
}

func (c *compiler) compileBinary(e *BinaryExpr) uint32 {
	op := binaryOperators[e.Operator]
	if op == OpAnd || op == OpOr {
		tmp := c.newTemp()
		c.emitAssign(tmp, c.compileExpr(e.Left))
		c.emitPush(tmp)
		end := c.newLabel()
		c.mark(e.Left.Pos())
		if op == OpAnd {
			c.jump(OpGotoIfNot, end)
		} else {
			c.jump(OpGotoIf, end)
		}
		right := c.compileExpr(e.Right)
		c.emitOperator(tmp, right, op, e.Pos())
		c.emitPop(tmp)
		c.bind(end)
		return tmp
	}

	operands := c.compileArgs([]Expression{e.Left, e.Right})
	tmp := c.newTemp()
	c.emitOperator(operands[0], operands[1], op, e.Pos())
	c.emitPop(tmp)
	return tmp
}

func (c *compiler) compileAssign(e *AssignExpr) uint32 {
	compound, isCompound := compoundOperators[e.Operator]

	if ident, ok := e.Target.(*Identifier); ok {
		dst := c.symbolSlot(ident.Symbol)
		value := c.compileExpr(e.Value)
		if isCompound {
			c.emitOperator(dst, value, binaryOperators[compound], e.Pos())
			c.emitPop(dst)
		} else {
			c.emitAssign(dst, value)
		}
		c.coerce(dst, ident.Symbol.Type, e.Pos())
		return dst
	}

	object, key := c.compileMemberOperands(e.Target)
	if hasSideEffects(e.Value) {
		object, key = c.stable(object), c.stable(key)
	}
	value := c.compileExpr(e.Value)
	if isCompound {
		current := c.callIntrinsic("__get", e.Target.Pos(), object, key)
		tmp := c.newTemp()
		c.emitOperator(current, value, binaryOperators[compound], e.Pos())
		c.emitPop(tmp)
		value = tmp
	}
	return c.callIntrinsic("__set", e.Pos(), object, key, value)
}

func (c *compiler) compileStep(e *UnaryExpr) uint32 {
	op := OpAdd
	if e.Operator == tokenDecrement {
		op = OpSub
	}
	one := c.constSlot(NewI32(1))

	if ident, ok := e.Operand.(*Identifier); ok {
		slot := c.symbolSlot(ident.Symbol)
		result := slot
		if e.Postfix {
			result = c.newTemp()
			c.emitAssign(result, slot)
		}
		c.emitOperator(slot, one, op, e.Pos())
		c.emitPop(slot)
		c.coerce(slot, ident.Symbol.Type, e.Pos())
		return result
	}

	object, key := c.compileMemberOperands(e.Operand)
	current := c.callIntrinsic("__get", e.Pos(), object, key)
	updated := c.newTemp()
	c.emitOperator(current, one, op, e.Pos())
	c.emitPop(updated)
	c.callIntrinsic("__set", e.Pos(), object, key, updated)
	if e.Postfix {
		return current
	}
	return updated
}

func (c *compiler) compileCall(e *CallExpr) uint32 {
	if ident, ok := e.Callee.(*Identifier); ok && ident.Symbol != nil && ident.Symbol.Function != nil {
		return c.compileStaticCall(ident.Symbol.Function, e)
	}

	slots := c.compileArgs(append([]Expression{e.Callee}, e.Args...))
	c.emitCall(slots[0], slots[1:], e.Pos())
	tmp := c.newTemp()
	c.emitPop(tmp)
	return tmp
}

// compileStaticCall stores the arguments into the callee's transfer slots
// and enters it with Goto; the callee returns with GoBack.
func (c *compiler) compileStaticCall(fn *DeclaredFunction, e *CallExpr) uint32 {
	fs := c.function(fn)
	args := c.compileArgs(e.Args)

	fixed := len(fs.args)
	if fn.IsVariadic {
		fixed--
	}
	for i := 0; i < fixed; i++ {
		c.emitAssign(fs.args[i], args[i])
	}
	if fn.IsVariadic {
		elem := c.constSlot(NewTypeValue(fn.ArgumentTypes[fixed]))
		rest := c.callIntrinsic("__variadic", e.Pos(), append([]uint32{elem}, args[fixed:]...)...)
		c.emitAssign(fs.args[fixed], rest)
	}

	c.mark(e.Pos())
	c.jump(OpGoto, fs.entry)
	tmp := c.newTemp()
	c.emitAssign(tmp, fs.ret)
	return tmp
}

func (c *compiler) compileTernary(e *TernaryExpr) uint32 {
	tmp := c.newTemp()
	elseLabel, end := c.newLabel(), c.newLabel()
	c.branchUnless(e.Condition, elseLabel)
	c.emitAssign(tmp, c.compileExpr(e.Consequent))
	c.jump(OpGotoNoStackPush, end)
	c.bind(elseLabel)
	c.emitAssign(tmp, c.compileExpr(e.Alternative))
	c.bind(end)
	return tmp
}
