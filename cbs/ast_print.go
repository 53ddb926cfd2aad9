package cbs

import (
	"fmt"
	"strings"
)

// Sprint renders node as a compact s-expression, one statement per line.
// It is meant for tests and `emit ast`; it is not a source formatter.
func Sprint(node Node) string {
	var b strings.Builder
	p := &printer{b: &b}
	switch n := node.(type) {
	case *Program:
		p.stmts(n.Statements(), 0)
	case Statement:
		p.stmt(n, 0)
	case Expression:
		p.expr(n)
	}
	return strings.TrimRight(b.String(), "\n")
}

type printer struct {
	b *strings.Builder
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.b, format, args...)
}

func (p *printer) line(depth int, format string, args ...any) {
	p.b.WriteString(strings.Repeat("  ", depth))
	p.printf(format, args...)
	p.b.WriteByte('\n')
}

func (p *printer) stmts(stmts []Statement, depth int) {
	for _, stmt := range stmts {
		p.stmt(stmt, depth)
	}
}

func (p *printer) block(label string, block *BlockStmt, depth int) {
	if block == nil {
		return
	}
	p.line(depth, "%s", label)
	p.stmts(block.Statements, depth+1)
}

func (p *printer) stmt(stmt Statement, depth int) {
	switch s := stmt.(type) {
	case *BlockStmt:
		p.block("block", s, depth)
	case *VarDecl:
		kw := "let"
		if s.Const {
			kw = "const"
		}
		p.line(depth, "(%s %s%s %s)", kw, s.Name, p.optType(s.Type), p.sexpr(s.Value))
	case *FunctionDecl:
		p.line(depth, "(fn %s (%s)%s)", s.Name, p.params(s.Params), p.optType(s.ReturnType))
		p.stmts(s.Body.Statements, depth+1)
	case *IfStmt:
		p.line(depth, "(if %s)", p.sexpr(s.Condition))
		p.block("then", s.Consequent, depth+1)
		p.block("else", s.Alternative, depth+1)
	case *WhileStmt:
		p.line(depth, "(while %s)", p.sexpr(s.Condition))
		p.stmts(s.Body.Statements, depth+1)
	case *ForStmt:
		init := "_"
		if s.Init != nil {
			init = Sprint(s.Init)
		}
		p.line(depth, "(for %s %s %s)", init, p.sexpr(s.Condition), p.sexpr(s.Update))
		p.stmts(s.Body.Statements, depth+1)
	case *ForeachStmt:
		p.line(depth, "(foreach %s %s)", s.Name, p.sexpr(s.Iterable))
		p.stmts(s.Body.Statements, depth+1)
	case *BreakStmt:
		p.line(depth, "(break)")
	case *ContinueStmt:
		p.line(depth, "(continue)")
	case *ReturnStmt:
		if s.Value == nil {
			p.line(depth, "(return)")
		} else {
			p.line(depth, "(return %s)", p.sexpr(s.Value))
		}
	case *CommandStmt:
		args := make([]string, len(s.Args))
		for i, arg := range s.Args {
			args[i] = arg.Literal
		}
		p.line(depth, "(#%s %s)", s.Name, strings.Join(args, " "))
	case *ExprStmt:
		p.line(depth, "%s", p.sexpr(s.Expr))
	case *EmptyStmt:
		p.line(depth, "(empty)")
	}
}

func (p *printer) optType(t *TypeExpr) string {
	if t == nil {
		return ""
	}
	return ":" + typeExprString(t)
}

func typeExprString(t *TypeExpr) string {
	if len(t.Args) == 0 {
		return t.Name
	}
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = typeExprString(arg)
	}
	return t.Name + "<" + strings.Join(args, ", ") + ">"
}

func (p *printer) params(params []Param) string {
	out := make([]string, len(params))
	for i, param := range params {
		prefix := ""
		if param.Variadic {
			prefix = ".."
		}
		out[i] = prefix + param.Name + p.optType(param.Type)
	}
	return strings.Join(out, " ")
}

func (p *printer) sexpr(expr Expression) string {
	if isNilNode(expr) {
		return "_"
	}
	var b strings.Builder
	(&printer{b: &b}).expr(expr)
	return b.String()
}

func (p *printer) exprs(exprs []Expression) string {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		out[i] = p.sexpr(e)
	}
	return strings.Join(out, " ")
}

func (p *printer) expr(expr Expression) {
	switch e := expr.(type) {
	case *Literal:
		if e.Value.Kind() == KindString {
			p.printf("%q", e.Value.Str())
		} else {
			p.printf("%s", e.Value)
		}
	case *Identifier:
		p.printf("%s", e.Name)
	case *TypeExpr:
		p.printf("%s", typeExprString(e))
	case *BinaryExpr:
		p.printf("(%s %s %s)", e.Operator, p.sexpr(e.Left), p.sexpr(e.Right))
	case *UnaryExpr:
		if e.Postfix {
			p.printf("(post%s %s)", e.Operator, p.sexpr(e.Operand))
		} else {
			p.printf("(%s %s)", e.Operator, p.sexpr(e.Operand))
		}
	case *AssignExpr:
		p.printf("(%s %s %s)", e.Operator, p.sexpr(e.Target), p.sexpr(e.Value))
	case *CallExpr:
		if len(e.Args) == 0 {
			p.printf("(call %s)", p.sexpr(e.Callee))
		} else {
			p.printf("(call %s %s)", p.sexpr(e.Callee), p.exprs(e.Args))
		}
	case *MemberExpr:
		p.printf("(. %s %s)", p.sexpr(e.Object), e.Property)
	case *IndexExpr:
		p.printf("([] %s %s)", p.sexpr(e.Object), p.sexpr(e.Index))
	case *ArrayLiteral:
		p.printf("[%s]", p.exprs(e.Elements))
	case *RangeExpr:
		op := ".."
		if e.Inclusive {
			op = "..="
		}
		p.printf("(%s %s %s)", op, p.sexpr(e.Start), p.sexpr(e.End))
	case *TernaryExpr:
		p.printf("(? %s %s %s)", p.sexpr(e.Condition), p.sexpr(e.Consequent), p.sexpr(e.Alternative))
	case *ClosureExpr:
		body := make([]string, len(e.Body.Statements))
		for i, stmt := range e.Body.Statements {
			body[i] = Sprint(stmt)
		}
		p.printf("(closure (%s)%s %s)", p.params(e.Params), p.optType(e.ReturnType), strings.Join(body, " "))
	case *EmptyExpr:
		p.printf("<empty>")
	}
}
