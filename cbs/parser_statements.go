package cbs

func (p *parser) parseStatement() Statement {
	switch p.curToken.Type {
	case tokenLet, tokenConst:
		return p.recover(p.parseVarDecl())
	case tokenFn:
		return p.recover(p.parseFunctionDecl())
	case tokenLBrace:
		return p.parseBlock()
	case tokenIf:
		return p.recover(p.parseIfStatement())
	case tokenWhile:
		return p.recover(p.parseWhileStatement())
	case tokenFor:
		return p.recover(p.parseForStatement())
	case tokenBreak:
		stmt := &BreakStmt{position: p.curToken.Pos}
		return p.recover(stmt, p.expectPeek(tokenSemicolon))
	case tokenContinue:
		stmt := &ContinueStmt{position: p.curToken.Pos}
		return p.recover(stmt, p.expectPeek(tokenSemicolon))
	case tokenReturn:
		return p.recover(p.parseReturnStatement())
	case tokenHash:
		return p.recover(p.parseCommand())
	case tokenSemicolon:
		return &EmptyStmt{position: p.curToken.Pos}
	case tokenRBrace, tokenRParen, tokenRBracket, tokenElse, tokenIn, tokenTypeClose:
		p.addError(CannotStartStatement, p.curToken.Pos, "%s cannot start a statement", tokenLabel(p.curToken.Type))
		return nil
	default:
		return p.recover(p.parseExpressionStatement())
	}
}

// recover resynchronizes after a statement that did not parse cleanly.
func (p *parser) recover(stmt Statement, ok bool) Statement {
	if !ok {
		p.synchronize()
		return nil
	}
	return stmt
}

func (p *parser) parseVarDecl() (Statement, bool) {
	decl := &VarDecl{Const: p.curToken.Type == tokenConst, position: p.curToken.Pos}
	if !p.expectPeek(tokenIdent) {
		return nil, false
	}
	decl.Name = p.curToken.Literal

	if p.peekToken.Type == tokenColon {
		p.nextToken()
		p.nextToken()
		decl.Type = p.parseTypeExpr()
		if decl.Type == nil {
			return nil, false
		}
	}

	if p.peekToken.Type == tokenAssign {
		p.nextToken()
		p.nextToken()
		decl.Value = p.parseExpression(lowestPrec)
	}

	if !p.expectPeek(tokenSemicolon) {
		return nil, false
	}
	return decl, true
}

func (p *parser) parseFunctionDecl() (Statement, bool) {
	pos := p.curToken.Pos
	if !p.expectPeek(tokenIdent) {
		return nil, false
	}
	name := p.curToken.Literal

	if !p.expectPeek(tokenLParen) {
		return nil, false
	}
	params, ok := p.parseParams(tokenRParen)
	if !ok {
		return nil, false
	}

	var returnType *TypeExpr
	if p.peekToken.Type == tokenArrow {
		p.nextToken()
		p.nextToken()
		if returnType = p.parseTypeExpr(); returnType == nil {
			return nil, false
		}
	}

	if !p.expectPeek(tokenLBrace) {
		return nil, false
	}
	body := p.parseBlock()
	return &FunctionDecl{Name: name, Params: params, ReturnType: returnType, Body: body, position: pos}, true
}

// parseParams reads a parameter list up to closing, which may be `)` for
// functions or `|` for closures. curToken is the opening token on entry and
// the closing token on success.
func (p *parser) parseParams(closing TokenType) ([]Param, bool) {
	var params []Param
	if p.peekToken.Type == closing {
		p.nextToken()
		return params, true
	}

	for {
		p.nextToken()
		param := Param{Pos: p.curToken.Pos}
		if p.curToken.Type == tokenRange {
			param.Variadic = true
			p.nextToken()
		}
		if p.curToken.Type != tokenIdent {
			p.errorExpected(p.curToken, "parameter name")
			return nil, false
		}
		param.Name = p.curToken.Literal
		if p.peekToken.Type == tokenColon {
			p.nextToken()
			p.nextToken()
			if param.Type = p.parseTypeExpr(); param.Type == nil {
				return nil, false
			}
		}
		params = append(params, param)

		if p.peekToken.Type != tokenComma {
			break
		}
		p.nextToken()
		if param.Variadic {
			p.addError(UnexpectedToken, p.curToken.Pos, "variadic parameter %s must be the last parameter", param.Name)
			return nil, false
		}
	}

	if !p.expectPeek(closing) {
		return nil, false
	}
	return params, true
}

// parseBlock expects curToken to be `{` and leaves it on the matching `}`.
func (p *parser) parseBlock() *BlockStmt {
	block := &BlockStmt{position: p.curToken.Pos}
	p.nextToken()

	for p.curToken.Type != tokenRBrace && p.curToken.Type != tokenEOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	if p.curToken.Type != tokenRBrace {
		p.errorMissing(p.curToken, tokenRBrace)
	}
	return block
}

// parseBranch parses a statement and normalizes it to a block.
func (p *parser) parseBranch() *BlockStmt {
	if p.curToken.Type == tokenLBrace {
		return p.parseBlock()
	}
	block := &BlockStmt{position: p.curToken.Pos}
	if stmt := p.parseStatement(); stmt != nil {
		block.Statements = append(block.Statements, stmt)
	}
	return block
}

func (p *parser) parseCondition() (Expression, bool) {
	if !p.expectPeek(tokenLParen) {
		return nil, false
	}
	p.nextToken()
	cond := p.parseExpression(lowestPrec)
	if !p.expectPeek(tokenRParen) {
		return nil, false
	}
	return cond, true
}

func (p *parser) parseIfStatement() (Statement, bool) {
	stmt := &IfStmt{position: p.curToken.Pos}
	cond, ok := p.parseCondition()
	if !ok {
		return nil, false
	}
	stmt.Condition = cond

	p.nextToken()
	stmt.Consequent = p.parseBranch()

	if p.peekToken.Type == tokenElse {
		p.nextToken()
		p.nextToken()
		stmt.Alternative = p.parseBranch()
	}
	return stmt, true
}

func (p *parser) parseWhileStatement() (Statement, bool) {
	stmt := &WhileStmt{position: p.curToken.Pos}
	cond, ok := p.parseCondition()
	if !ok {
		return nil, false
	}
	stmt.Condition = cond
	p.nextToken()
	stmt.Body = p.parseBranch()
	return stmt, true
}

func (p *parser) parseForStatement() (Statement, bool) {
	pos := p.curToken.Pos
	if !p.expectPeek(tokenLParen) {
		return nil, false
	}
	p.nextToken()

	if p.curToken.Type == tokenLet && p.peekToken.Type == tokenIdent && p.peekTokenN(2).Type == tokenIn {
		p.nextToken()
	}
	if p.curToken.Type == tokenIdent && p.peekToken.Type == tokenIn {
		return p.parseForeach(pos)
	}

	stmt := &ForStmt{position: pos}
	switch p.curToken.Type {
	case tokenSemicolon:
	case tokenLet, tokenConst:
		init, ok := p.parseVarDecl()
		if !ok {
			return nil, false
		}
		stmt.Init = init
	default:
		init, ok := p.parseExpressionStatement()
		if !ok {
			return nil, false
		}
		stmt.Init = init
	}

	if p.peekToken.Type == tokenSemicolon {
		p.nextToken()
	} else {
		p.nextToken()
		stmt.Condition = p.parseExpression(lowestPrec)
		if !p.expectPeek(tokenSemicolon) {
			return nil, false
		}
	}

	if p.peekToken.Type == tokenRParen {
		p.nextToken()
	} else {
		p.nextToken()
		stmt.Update = p.parseExpression(lowestPrec)
		if !p.expectPeek(tokenRParen) {
			return nil, false
		}
	}

	p.nextToken()
	stmt.Body = p.parseBranch()
	return stmt, true
}

func (p *parser) parseForeach(pos Position) (Statement, bool) {
	stmt := &ForeachStmt{Name: p.curToken.Literal, position: pos}
	p.nextToken()
	p.nextToken()
	stmt.Iterable = p.parseExpression(lowestPrec)
	if !p.expectPeek(tokenRParen) {
		return nil, false
	}
	p.nextToken()
	stmt.Body = p.parseBranch()
	return stmt, true
}

func (p *parser) parseReturnStatement() (Statement, bool) {
	stmt := &ReturnStmt{position: p.curToken.Pos}
	if p.peekToken.Type == tokenSemicolon {
		p.nextToken()
		return stmt, true
	}
	p.nextToken()
	stmt.Value = p.parseExpression(lowestPrec)
	if !p.expectPeek(tokenSemicolon) {
		return nil, false
	}
	return stmt, true
}

// parseCommand reads `#name args... ;`. Arguments are kept as raw tokens;
// their meaning is up to the analyzer.
func (p *parser) parseCommand() (Statement, bool) {
	stmt := &CommandStmt{position: p.curToken.Pos}
	if !p.expectPeek(tokenIdent) {
		return nil, false
	}
	stmt.Name = p.curToken.Literal

	for p.peekToken.Type != tokenSemicolon {
		if p.peekToken.Type == tokenEOF {
			p.errorMissing(p.peekToken, tokenSemicolon)
			return nil, false
		}
		p.nextToken()
		stmt.Args = append(stmt.Args, p.curToken)
	}
	p.nextToken()
	return stmt, true
}

func (p *parser) parseExpressionStatement() (Statement, bool) {
	pos := p.curToken.Pos
	expr := p.parseExpression(lowestPrec)
	if !p.expectPeek(tokenSemicolon) {
		return nil, false
	}
	return &ExprStmt{Expr: expr, position: pos}, true
}
