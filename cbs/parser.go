package cbs

import (
	"fmt"
	"strings"
)

type (
	prefixParseFn func() Expression
	infixParseFn  func(Expression) Expression
)

type parser struct {
	tokens []Token
	idx    int

	curToken  Token
	peekToken Token

	errors []*Error

	prefixFns map[TokenType]prefixParseFn
	infixFns  map[TokenType]infixParseFn
}

// Parse builds a Program from a token stream. It never fails outright:
// malformed statements are reported and skipped, and the returned program is
// always usable. The errors are also recorded on Program.Errors.
func Parse(tokens []Token) (*Program, []*Error) {
	p := newParser(tokens)
	return p.ParseProgram()
}

func newParser(tokens []Token) *parser {
	p := &parser{tokens: tokens, idx: -1}

	p.prefixFns = make(map[TokenType]prefixParseFn)
	p.infixFns = make(map[TokenType]infixParseFn)

	p.registerPrefix(tokenIdent, p.parseIdentifier)
	p.registerPrefix(tokenInt, p.parseIntegerLiteral)
	p.registerPrefix(tokenFloat, p.parseFloatLiteral)
	p.registerPrefix(tokenString, p.parseStringLiteral)
	p.registerPrefix(tokenTrue, p.parseBooleanLiteral)
	p.registerPrefix(tokenFalse, p.parseBooleanLiteral)
	p.registerPrefix(tokenUnset, p.parseUnsetLiteral)
	p.registerPrefix(tokenLParen, p.parseGroupedExpression)
	p.registerPrefix(tokenLBracket, p.parseArrayLiteral)
	p.registerPrefix(tokenBitOr, p.parseClosure)
	p.registerPrefix(tokenOr, p.parseClosure)
	p.registerPrefix(tokenIllegal, p.parseIllegal)
	for _, tt := range []TokenType{tokenMinus, tokenPlus, tokenBang, tokenTilde, tokenIncrement, tokenDecrement} {
		p.registerPrefix(tt, p.parsePrefixExpression)
	}

	for _, tt := range []TokenType{
		tokenPlus, tokenMinus, tokenAsterisk, tokenSlash, tokenPercent,
		tokenShl, tokenShr, tokenBitAnd, tokenBitOr, tokenBitXor,
		tokenAnd, tokenOr, tokenEQ, tokenNotEQ, tokenLT, tokenLTE, tokenGT, tokenGTE,
	} {
		p.infixFns[tt] = p.parseInfixExpression
	}
	p.infixFns[tokenAssign] = p.parseAssignExpression
	for tt := range compoundOperators {
		p.infixFns[tt] = p.parseAssignExpression
	}
	p.infixFns[tokenQuestion] = p.parseTernaryExpression
	p.infixFns[tokenRange] = p.parseRangeExpression
	p.infixFns[tokenRangeInclusive] = p.parseRangeExpression
	p.infixFns[tokenIncrement] = p.parsePostfixExpression
	p.infixFns[tokenDecrement] = p.parsePostfixExpression
	p.infixFns[tokenLParen] = p.parseCallExpression
	p.infixFns[tokenDot] = p.parseMemberExpression
	p.infixFns[tokenLBracket] = p.parseIndexExpression

	p.nextToken()

	return p
}

func (p *parser) registerPrefix(tt TokenType, fn prefixParseFn) {
	p.prefixFns[tt] = fn
}

func (p *parser) token(i int) Token {
	if i >= 0 && i < len(p.tokens) {
		return p.tokens[i]
	}
	var pos Position
	if n := len(p.tokens); n > 0 {
		pos = p.tokens[n-1].Pos
	}
	return Token{Type: tokenEOF, Pos: pos}
}

func (p *parser) nextToken() {
	if p.curToken.Type == tokenEOF && p.idx >= 0 {
		return
	}
	p.idx++
	p.curToken = p.token(p.idx)
	p.peekToken = p.token(p.idx + 1)
}

// backup steps back one token so that a closing token an expression could
// not use stays available to the enclosing construct.
func (p *parser) backup() {
	if p.idx <= 0 {
		return
	}
	p.idx--
	p.curToken = p.token(p.idx)
	p.peekToken = p.token(p.idx + 1)
}

func (p *parser) peekTokenN(n int) Token {
	return p.token(p.idx + n)
}

func (p *parser) ParseProgram() (*Program, []*Error) {
	body := &BlockStmt{position: p.curToken.Pos}

	for p.curToken.Type != tokenEOF {
		stmt := p.parseStatement()
		if stmt != nil {
			body.Statements = append(body.Statements, stmt)
		}
		p.nextToken()
	}

	program := &Program{Body: body, Errors: append([]*Error(nil), p.errors...)}
	return program, p.errors
}

func (p *parser) expectPeek(t TokenType) bool {
	if p.peekToken.Type == t {
		p.nextToken()
		return true
	}
	p.errorMissing(p.peekToken, t)
	return false
}

func (p *parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return lowestPrec
}

// synchronize skips to the end of the current statement: a `;`, or the token
// before a closing brace or a statement keyword.
func (p *parser) synchronize() {
	for p.curToken.Type != tokenSemicolon && p.curToken.Type != tokenEOF {
		switch p.peekToken.Type {
		case tokenRBrace, tokenEOF, tokenLet, tokenConst, tokenFn, tokenIf, tokenWhile,
			tokenFor, tokenReturn, tokenBreak, tokenContinue, tokenHash:
			return
		}
		p.nextToken()
	}
}

func (p *parser) errorMissing(tok Token, expected TokenType) {
	p.addError(MissingToken, tok.Pos, "expected %s, got %s", tokenLabel(expected), tokenLabel(tok.Type))
}

func (p *parser) errorExpected(tok Token, expected string) {
	p.addError(UnexpectedToken, tok.Pos, "expected %s, got %s", expected, tokenLabel(tok.Type))
}

func (p *parser) errorUnexpected(tok Token) {
	p.addError(UnexpectedToken, tok.Pos, "unexpected token %s", tokenLabel(tok.Type))
}

func (p *parser) addError(kind ErrorType, pos Position, format string, args ...any) {
	p.errors = append(p.errors, newError(kind, pos, format, args...))
}

func tokenLabel(tt TokenType) string {
	switch tt {
	case tokenIllegal:
		return "invalid token"
	case tokenEOF:
		return "end of input"
	case tokenIdent:
		return "identifier"
	case tokenInt:
		return "integer"
	case tokenFloat:
		return "float"
	case tokenString:
		return "string"
	case tokenTypeOpen:
		return "'<'"
	case tokenTypeClose:
		return "'>'"
	default:
		if strings.ToUpper(string(tt)) == string(tt) && strings.ToLower(string(tt)) != string(tt) {
			return fmt.Sprintf("'%s'", strings.ToLower(string(tt)))
		}
		return fmt.Sprintf("%q", string(tt))
	}
}
