package cbs

import (
	"math"
	"strconv"
)

func (p *parser) parseExpression(precedence int) Expression {
	prefix := p.prefixFns[p.curToken.Type]
	if prefix == nil {
		return p.parseUnknownPrefix()
	}

	left := prefix()

	for p.peekToken.Type != tokenSemicolon && precedence < p.peekPrecedence() {
		infix := p.infixFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}

	return left
}

// parseUnknownPrefix reports a token that cannot begin an expression and
// substitutes an EmptyExpr. Closing tokens are left in place for the
// enclosing construct.
func (p *parser) parseUnknownPrefix() Expression {
	tok := p.curToken
	p.errorUnexpected(tok)
	switch tok.Type {
	case tokenSemicolon, tokenRBrace, tokenRParen, tokenRBracket, tokenEOF:
		p.backup()
	}
	return &EmptyExpr{position: tok.Pos}
}

func (p *parser) parseIllegal() Expression {
	p.addError(UnexpectedToken, p.curToken.Pos, "illegal character %q", p.curToken.Literal)
	return &EmptyExpr{position: p.curToken.Pos}
}

func (p *parser) parseIdentifier() Expression {
	if p.peekToken.Type == tokenTypeOpen {
		if typ := p.parseTypeExpr(); typ != nil {
			return typ
		}
		return &EmptyExpr{position: p.curToken.Pos}
	}
	return &Identifier{Name: p.curToken.Literal, position: p.curToken.Pos}
}

// parseTypeExpr reads `name` or `name<arg, ...>` starting at the name.
func (p *parser) parseTypeExpr() *TypeExpr {
	if p.curToken.Type != tokenIdent {
		p.errorExpected(p.curToken, "type name")
		return nil
	}
	typ := &TypeExpr{Name: p.curToken.Literal, position: p.curToken.Pos}
	if p.peekToken.Type != tokenTypeOpen {
		return typ
	}
	p.nextToken()
	for {
		p.nextToken()
		arg := p.parseTypeExpr()
		if arg == nil {
			return nil
		}
		typ.Args = append(typ.Args, arg)
		if p.peekToken.Type != tokenComma {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(tokenTypeClose) {
		return nil
	}
	return typ
}

// minI32Magnitude is the one decimal literal that only fits i32 negated.
const minI32Magnitude = "2147483648"

func (p *parser) parseIntegerLiteral() Expression {
	pos := p.curToken.Pos
	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil || value > math.MaxInt32 || value < math.MinInt32 {
		p.addError(InvalidArgument, pos, "integer literal %s does not fit in i32", p.curToken.Literal)
		return &EmptyExpr{position: pos}
	}
	return NewLiteral(NewI32(int32(value)), pos)
}

func (p *parser) parseFloatLiteral() Expression {
	pos := p.curToken.Pos
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError(InvalidArgument, pos, "invalid float literal %s", p.curToken.Literal)
		return &EmptyExpr{position: pos}
	}
	return NewLiteral(NewF32(float32(value)), pos)
}

func (p *parser) parseStringLiteral() Expression {
	return NewLiteral(NewString(p.curToken.Literal), p.curToken.Pos)
}

func (p *parser) parseBooleanLiteral() Expression {
	return NewLiteral(NewBool(p.curToken.Type == tokenTrue), p.curToken.Pos)
}

func (p *parser) parseUnsetLiteral() Expression {
	return NewLiteral(NewNull(), p.curToken.Pos)
}

func (p *parser) parseGroupedExpression() Expression {
	p.nextToken()
	expr := p.parseExpression(lowestPrec)
	if !p.expectPeek(tokenRParen) {
		return &EmptyExpr{position: expr.Pos()}
	}
	return expr
}

func (p *parser) parseArrayLiteral() Expression {
	arr := &ArrayLiteral{position: p.curToken.Pos}
	arr.Elements = p.parseExpressionList(tokenRBracket)
	return arr
}

// parseExpressionList reads comma separated expressions up to end, allowing
// a trailing comma. curToken is left on end.
func (p *parser) parseExpressionList(end TokenType) []Expression {
	list := []Expression{}
	if p.peekToken.Type == end {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(lowestPrec))
	for p.peekToken.Type == tokenComma {
		p.nextToken()
		if p.peekToken.Type == end {
			break
		}
		p.nextToken()
		list = append(list, p.parseExpression(lowestPrec))
	}

	p.expectPeek(end)
	return list
}

func (p *parser) parsePrefixExpression() Expression {
	expr := &UnaryExpr{Operator: p.curToken.Type, position: p.curToken.Pos}
	if expr.Operator == tokenMinus && p.peekToken.Type == tokenInt && p.peekToken.Literal == minI32Magnitude {
		p.nextToken()
		return NewLiteral(NewI32(math.MinInt32), expr.position)
	}
	p.nextToken()
	expr.Operand = p.parseExpression(precPrefix)
	if expr.isStep() && !isAssignable(expr.Operand) {
		p.addError(InvalidAssignment, expr.position, "operand of %s must be assignable", expr.Operator)
	}
	return expr
}

func (p *parser) parsePostfixExpression(left Expression) Expression {
	expr := &UnaryExpr{Operator: p.curToken.Type, Operand: left, Postfix: true, position: p.curToken.Pos}
	if !isAssignable(left) {
		p.addError(InvalidAssignment, expr.position, "operand of %s must be assignable", expr.Operator)
	}
	return expr
}

func (p *parser) parseInfixExpression(left Expression) Expression {
	expr := &BinaryExpr{Left: left, Operator: p.curToken.Type, position: p.curToken.Pos}
	precedence := precedences[p.curToken.Type]
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

// parseAssignExpression is right associative: the value is parsed below
// assignment power so that `a = b = c` assigns c to b first.
func (p *parser) parseAssignExpression(left Expression) Expression {
	expr := &AssignExpr{Target: left, Operator: p.curToken.Type, position: p.curToken.Pos}
	if !isAssignable(left) {
		p.addError(InvalidAssignment, expr.position, "cannot assign to this expression")
	}
	p.nextToken()
	expr.Value = p.parseExpression(precAssign - 1)
	return expr
}

func (p *parser) parseTernaryExpression(cond Expression) Expression {
	expr := &TernaryExpr{Condition: cond, position: p.curToken.Pos}
	p.nextToken()
	expr.Consequent = p.parseExpression(lowestPrec)
	if !p.expectPeek(tokenColon) {
		expr.Alternative = &EmptyExpr{position: p.peekToken.Pos}
		return expr
	}
	p.nextToken()
	expr.Alternative = p.parseExpression(precTernary - 1)
	return expr
}

func (p *parser) parseRangeExpression(left Expression) Expression {
	expr := &RangeExpr{Start: left, Inclusive: p.curToken.Type == tokenRangeInclusive, position: p.curToken.Pos}
	p.nextToken()
	expr.End = p.parseExpression(precRange)
	return expr
}

func (p *parser) parseCallExpression(callee Expression) Expression {
	expr := &CallExpr{Callee: callee, position: p.curToken.Pos}
	expr.Args = p.parseExpressionList(tokenRParen)
	return expr
}

func (p *parser) parseMemberExpression(object Expression) Expression {
	pos := p.curToken.Pos
	if !p.expectPeek(tokenIdent) {
		return &EmptyExpr{position: pos}
	}
	return &MemberExpr{Object: object, Property: p.curToken.Literal, position: pos}
}

func (p *parser) parseIndexExpression(object Expression) Expression {
	expr := &IndexExpr{Object: object, position: p.curToken.Pos}
	p.nextToken()
	expr.Index = p.parseExpression(lowestPrec)
	p.expectPeek(tokenRBracket)
	return expr
}

// parseClosure reads `|params| body` or `|| body`; an expression body is
// wrapped into a block holding a single return.
func (p *parser) parseClosure() Expression {
	closure := &ClosureExpr{position: p.curToken.Pos}
	if p.curToken.Type == tokenBitOr {
		params, ok := p.parseParams(tokenBitOr)
		if !ok {
			return &EmptyExpr{position: closure.position}
		}
		closure.Params = params
	}

	if p.peekToken.Type == tokenArrow {
		p.nextToken()
		p.nextToken()
		closure.ReturnType = p.parseTypeExpr()
	}

	if p.peekToken.Type == tokenLBrace {
		p.nextToken()
		closure.Body = p.parseBlock()
		return closure
	}

	p.nextToken()
	bodyPos := p.curToken.Pos
	value := p.parseExpression(lowestPrec)
	closure.Body = &BlockStmt{
		Statements: []Statement{&ReturnStmt{Value: value, position: bodyPos}},
		position:   bodyPos,
	}
	return closure
}
