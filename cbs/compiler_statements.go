package cbs

import "fmt"

func (c *compiler) compileBlock(block *BlockStmt) {
	c.enterScope(block.Scope)
	for _, stmt := range block.Statements {
		c.compileStatement(stmt)
	}
}

func (c *compiler) compileStatement(stmt Statement) {
	switch s := stmt.(type) {
	case *EmptyStmt:
	case *ExprStmt:
		c.compileExpr(s.Expr)
	case *BlockStmt:
		c.compileBlock(s)
	case *IfStmt:
		c.compileIf(s)
	case *WhileStmt:
		c.compileLoop(s.Condition, nil, s.Body)
	case *ForStmt:
		c.enterScope(s.Scope)
		if s.Init != nil {
			c.compileStatement(s.Init)
		}
		c.compileLoop(s.Condition, s.Update, s.Body)
	case *ForeachStmt:
		c.compileForeach(s)
	case *BreakStmt:
		c.asm.op(OpGotoAfterLoop)
	case *ContinueStmt:
		c.jump(OpGotoNoStackPush, c.loops[len(c.loops)-1].cont)
	case *ReturnStmt:
		c.compileReturn(s)
	default:
		panic(fmt.Sprintf("cbs: unexpected statement %T after analysis", stmt))
	}
}

// branchUnless pops cond and jumps to l when it is false.
func (c *compiler) branchUnless(cond Expression, l label) {
	slot := c.compileExpr(cond)
	c.emitPush(slot)
	c.mark(cond.Pos())
	c.jump(OpGotoIfNot, l)
}

func (c *compiler) compileIf(s *IfStmt) {
	elseLabel := c.newLabel()
	c.branchUnless(s.Condition, elseLabel)
	c.compileBlock(s.Consequent)
	if s.Alternative == nil {
		c.bind(elseLabel)
		return
	}
	end := c.newLabel()
	c.jump(OpGotoNoStackPush, end)
	c.bind(elseLabel)
	c.compileBlock(s.Alternative)
	c.bind(end)
}

// compileLoop emits
//
//	      Goto head
//	      GotoNoStackPush end
//	head: GotoIfNot exit (cond)
//	      body
//	cont: update
//	      GotoNoStackPush head
//	exit: GotoAfterLoop
//	end:
//
// The Goto leaves the address of the second instruction on the goto stack,
// so GotoAfterLoop from anywhere in the body leaves the loop.
func (c *compiler) compileLoop(cond, update Expression, body *BlockStmt) {
	head, cont, exit, end := c.newLabel(), c.newLabel(), c.newLabel(), c.newLabel()
	c.jump(OpGoto, head)
	c.jump(OpGotoNoStackPush, end)

	c.bind(head)
	if cond != nil {
		c.branchUnless(cond, exit)
	}
	c.loops = append(c.loops, loopLabels{cont: cont})
	c.compileBlock(body)
	c.loops = c.loops[:len(c.loops)-1]

	c.bind(cont)
	if update != nil {
		c.compileExpr(update)
	}
	c.jump(OpGotoNoStackPush, head)
	c.bind(exit)
	c.asm.op(OpGotoAfterLoop)
	c.bind(end)
}

func (c *compiler) compileForeach(s *ForeachStmt) {
	iterable := c.compileExpr(s.Iterable)
	it := c.callIntrinsic("__iter", s.Iterable.Pos(), iterable)
	item := c.symbolSlot(s.Symbol)

	head, exit, end := c.newLabel(), c.newLabel(), c.newLabel()
	c.jump(OpGoto, head)
	c.jump(OpGotoNoStackPush, end)

	c.bind(head)
	c.emitCall(c.nativeSlot("__next"), []uint32{it}, s.Pos())
	c.jump(OpGotoIfNot, exit)
	c.emitCall(c.nativeSlot("__current"), []uint32{it}, s.Pos())
	c.emitPop(item)
	c.enterScope(s.Scope)

	c.loops = append(c.loops, loopLabels{cont: head})
	c.compileBlock(s.Body)
	c.loops = c.loops[:len(c.loops)-1]

	c.jump(OpGotoNoStackPush, head)
	c.bind(exit)
	c.asm.op(OpGotoAfterLoop)
	c.bind(end)
}

func (c *compiler) compileReturn(s *ReturnStmt) {
	fs := c.cur
	if s.Value == nil {
		c.emitAssign(fs.ret, c.constSlot(NewNull()))
	} else {
		c.emitAssign(fs.ret, c.compileExpr(s.Value))
		c.coerce(fs.ret, fs.fn.ReturnType, s.Pos())
	}
	for range c.loops {
		c.asm.op(OpDropGoto)
	}
	c.jump(OpGotoNoStackPush, fs.epilogue)
}
