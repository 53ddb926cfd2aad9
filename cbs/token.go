package cbs

// TokenType identifies the lexical category of a token.
type TokenType string

const (
	tokenIllegal TokenType = "ILLEGAL"
	tokenEOF     TokenType = "EOF"

	tokenIdent  TokenType = "IDENT"
	tokenInt    TokenType = "INT"
	tokenFloat  TokenType = "FLOAT"
	tokenString TokenType = "STRING"

	tokenAssign        TokenType = "="
	tokenPlus          TokenType = "+"
	tokenPlusAssign    TokenType = "+="
	tokenIncrement     TokenType = "++"
	tokenMinus         TokenType = "-"
	tokenMinusAssign   TokenType = "-="
	tokenDecrement     TokenType = "--"
	tokenArrow         TokenType = "->"
	tokenAsterisk      TokenType = "*"
	tokenStarAssign    TokenType = "*="
	tokenSlash         TokenType = "/"
	tokenSlashAssign   TokenType = "/="
	tokenPercent       TokenType = "%"
	tokenPercentAssign TokenType = "%="
	tokenBang          TokenType = "!"
	tokenTilde         TokenType = "~"
	tokenLT            TokenType = "<"
	tokenGT            TokenType = ">"
	tokenLTE           TokenType = "<="
	tokenGTE           TokenType = ">="
	tokenShl           TokenType = "<<"
	tokenShr           TokenType = ">>"
	tokenShlAssign     TokenType = "<<="
	tokenShrAssign     TokenType = ">>="
	tokenEQ            TokenType = "=="
	tokenNotEQ         TokenType = "!="
	tokenAnd           TokenType = "&&"
	tokenOr            TokenType = "||"
	tokenBitAnd        TokenType = "&"
	tokenBitOr         TokenType = "|"
	tokenBitXor        TokenType = "^"
	tokenAndAssign     TokenType = "&="
	tokenOrAssign      TokenType = "|="
	tokenXorAssign     TokenType = "^="
	tokenQuestion      TokenType = "?"

	tokenComma          TokenType = ","
	tokenColon          TokenType = ":"
	tokenSemicolon      TokenType = ";"
	tokenDot            TokenType = "."
	tokenRange          TokenType = ".."
	tokenRangeInclusive TokenType = "..="
	tokenHash           TokenType = "#"
	tokenLParen         TokenType = "("
	tokenRParen         TokenType = ")"
	tokenLBrace         TokenType = "{"
	tokenRBrace         TokenType = "}"
	tokenLBracket       TokenType = "["
	tokenRBracket       TokenType = "]"

	// Generic argument brackets, produced only when `<...>` directly
	// follows an identifier and forms a balanced type-argument run.
	tokenTypeOpen  TokenType = "TYPE_OPEN"
	tokenTypeClose TokenType = "TYPE_CLOSE"

	tokenLet      TokenType = "LET"
	tokenConst    TokenType = "CONST"
	tokenFn       TokenType = "FN"
	tokenIf       TokenType = "IF"
	tokenElse     TokenType = "ELSE"
	tokenWhile    TokenType = "WHILE"
	tokenFor      TokenType = "FOR"
	tokenIn       TokenType = "IN"
	tokenBreak    TokenType = "BREAK"
	tokenContinue TokenType = "CONTINUE"
	tokenReturn   TokenType = "RETURN"
	tokenTrue     TokenType = "TRUE"
	tokenFalse    TokenType = "FALSE"
	tokenUnset    TokenType = "UNSET"
)

// Token captures lexical information for the parser. Literal tokens carry
// the decoded value: integers in decimal, strings unescaped.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// Position identifies a line and column in the source file.
type Position struct {
	Line   int
	Column int
}

var keywords = map[string]TokenType{
	"let":      tokenLet,
	"const":    tokenConst,
	"fn":       tokenFn,
	"if":       tokenIf,
	"else":     tokenElse,
	"while":    tokenWhile,
	"for":      tokenFor,
	"in":       tokenIn,
	"break":    tokenBreak,
	"continue": tokenContinue,
	"return":   tokenReturn,
	"true":     tokenTrue,
	"false":    tokenFalse,
	"unset":    tokenUnset,
}

func lookupIdent(ident string) TokenType {
	if tt, ok := keywords[ident]; ok {
		return tt
	}
	return tokenIdent
}

// Keywords returns the reserved words of the language in a stable order.
func Keywords() []string {
	return []string{
		"break", "const", "continue", "else", "false", "fn", "for", "if",
		"in", "let", "return", "true", "unset", "while",
	}
}
