package cbs

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// operatorVariants lists every operator and punctuation token keyed by its
// first rune, longest spelling first, so that a prefix match picks the
// longest operator.
var operatorVariants = func() map[rune][]TokenType {
	all := []TokenType{
		tokenAssign, tokenPlus, tokenPlusAssign, tokenIncrement, tokenMinus,
		tokenMinusAssign, tokenDecrement, tokenArrow, tokenAsterisk, tokenStarAssign,
		tokenSlash, tokenSlashAssign, tokenPercent, tokenPercentAssign, tokenBang,
		tokenTilde, tokenLT, tokenGT, tokenLTE, tokenGTE, tokenShl, tokenShr,
		tokenShlAssign, tokenShrAssign, tokenEQ, tokenNotEQ, tokenAnd, tokenOr,
		tokenBitAnd, tokenBitOr, tokenBitXor, tokenAndAssign, tokenOrAssign,
		tokenXorAssign, tokenQuestion, tokenComma, tokenColon, tokenSemicolon,
		tokenDot, tokenRange, tokenRangeInclusive, tokenHash, tokenLParen,
		tokenRParen, tokenLBrace, tokenRBrace, tokenLBracket, tokenRBracket,
	}
	table := make(map[rune][]TokenType)
	for _, tt := range all {
		first, _ := utf8.DecodeRuneInString(string(tt))
		table[first] = append(table[first], tt)
	}
	for _, variants := range table {
		sort.Slice(variants, func(i, j int) bool { return len(variants[i]) > len(variants[j]) })
	}
	return table
}()

type lexer struct {
	input string

	offset int
	width  int

	line   int
	column int

	ch rune

	pending []Token
}

func newLexer(input string) *lexer {
	l := &lexer{input: input, line: 1, column: 0}
	l.readRune()
	return l
}

// Tokenize converts source into a token sequence terminated by an EOF token.
// Unterminated string literals and block comments are fatal: the tokens
// scanned so far are returned, terminated by EOF, together with the error.
func Tokenize(source string) ([]Token, error) {
	l := newLexer(source)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			tokens = append(tokens, Token{Type: tokenEOF, Pos: err.Pos})
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == tokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) readRune() {
	if l.offset >= len(l.input) {
		l.width = 0
		l.ch = 0
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.offset:])
	l.width = w
	l.offset += w

	if l.ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}

	l.ch = r
}

func (l *lexer) peekRune() rune {
	if l.offset >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])
	return r
}

func (l *lexer) peekRuneN(n int) rune {
	idx := l.offset
	for i := 0; ; i++ {
		if idx >= len(l.input) {
			return 0
		}
		r, w := utf8.DecodeRuneInString(l.input[idx:])
		if i == n {
			return r
		}
		idx += w
	}
}

func (l *lexer) currentOffset() int {
	return l.offset - l.width
}

func (l *lexer) atEOF() bool {
	return l.width == 0 && l.ch == 0
}

func (l *lexer) pos() Position {
	return Position{Line: l.line, Column: l.column}
}

// NextToken scans the next token.
func (l *lexer) NextToken() (Token, *Error) {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok, nil
	}

	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	pos := l.pos()
	if l.atEOF() {
		return Token{Type: tokenEOF, Pos: pos}, nil
	}

	switch {
	case l.ch == '"' || l.ch == '\'':
		literal, err := l.readString()
		if err != nil {
			return Token{}, err
		}
		return Token{Type: tokenString, Literal: literal, Pos: pos}, nil
	case isIdentifierStart(l.ch):
		literal := l.readIdentifier()
		tok := Token{Type: lookupIdent(literal), Literal: literal, Pos: pos}
		if tok.Type == tokenIdent && l.ch == '<' {
			l.pending = l.scanTypeArguments()
		}
		return tok, nil
	case isDigit(l.ch):
		return l.readNumber(pos), nil
	}

	if variants, ok := operatorVariants[l.ch]; ok {
		rest := l.input[l.currentOffset():]
		for _, tt := range variants {
			if strings.HasPrefix(rest, string(tt)) {
				for range utf8.RuneCountInString(string(tt)) {
					l.readRune()
				}
				return Token{Type: tt, Literal: string(tt), Pos: pos}, nil
			}
		}
	}

	tok := Token{Type: tokenIllegal, Literal: string(l.ch), Pos: pos}
	l.readRune()
	return tok, nil
}

func (l *lexer) skipWhitespaceAndComments() *Error {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readRune()
		case l.ch == '/' && l.peekRune() == '/':
			for !l.atEOF() && l.ch != '\n' {
				l.readRune()
			}
		case l.ch == '/' && l.peekRune() == '*':
			start := l.pos()
			l.readRune()
			l.readRune()
			for !(l.ch == '*' && l.peekRune() == '/') {
				if l.atEOF() {
					return newError(UnexpectedToken, start, "unterminated block comment")
				}
				l.readRune()
			}
			l.readRune()
			l.readRune()
		default:
			return nil
		}
	}
}

func (l *lexer) readIdentifier() string {
	start := l.currentOffset()
	for isIdentifierRune(l.ch) {
		l.readRune()
	}
	return l.input[start:l.currentOffset()]
}

// scanTypeArguments tentatively lexes a `<...>` run that directly follows an
// identifier. Only identifiers, commas, spaces and nested angle brackets may
// appear before the brackets balance; otherwise the lexer state is left
// untouched and `<` is lexed as an operator.
func (l *lexer) scanTypeArguments() []Token {
	saved := *l
	var run []Token
	depth := 0
	idents := 0
	for {
		pos := l.pos()
		switch {
		case l.ch == '<':
			depth++
			run = append(run, Token{Type: tokenTypeOpen, Literal: "<", Pos: pos})
			l.readRune()
		case l.ch == '>':
			depth--
			run = append(run, Token{Type: tokenTypeClose, Literal: ">", Pos: pos})
			l.readRune()
			if depth == 0 {
				if idents == 0 {
					*l = saved
					return nil
				}
				return run
			}
		case l.ch == ',':
			run = append(run, Token{Type: tokenComma, Literal: ",", Pos: pos})
			l.readRune()
		case l.ch == ' ':
			l.readRune()
		case isIdentifierStart(l.ch):
			literal := l.readIdentifier()
			run = append(run, Token{Type: tokenIdent, Literal: literal, Pos: pos})
			idents++
		default:
			*l = saved
			return nil
		}
	}
}

func (l *lexer) readNumber(pos Position) Token {
	if l.ch == '0' && (l.peekRune() == 'x' || l.peekRune() == 'X' || l.peekRune() == 'b' || l.peekRune() == 'B') {
		base := 16
		valid := isHexDigit
		if l.peekRune() == 'b' || l.peekRune() == 'B' {
			base = 2
			valid = func(r rune) bool { return r == '0' || r == '1' }
		}
		l.readRune()
		l.readRune()
		var digits strings.Builder
		for valid(l.ch) || l.ch == '_' {
			if l.ch != '_' {
				digits.WriteRune(l.ch)
			}
			l.readRune()
		}
		value, err := strconv.ParseUint(digits.String(), base, 64)
		if err != nil || value > 1<<63-1 {
			return Token{Type: tokenIllegal, Literal: "invalid integer literal", Pos: pos}
		}
		if value <= math.MaxUint32 {
			// Hex and binary literals spell out the 32 bits of an i32.
			bits := int32(uint32(value))
			return Token{Type: tokenInt, Literal: strconv.FormatInt(int64(bits), 10), Pos: pos}
		}
		return Token{Type: tokenInt, Literal: strconv.FormatUint(value, 10), Pos: pos}
	}

	var sb strings.Builder
	isFloat := false
	l.readDigits(&sb)

	if l.ch == '.' && isDigit(l.peekRune()) {
		isFloat = true
		sb.WriteRune('.')
		l.readRune()
		l.readDigits(&sb)
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekRune()
		signed := next == '+' || next == '-'
		if isDigit(next) || (signed && isDigit(l.peekRuneN(1))) {
			isFloat = true
			sb.WriteRune('e')
			l.readRune()
			if signed {
				sb.WriteRune(l.ch)
				l.readRune()
			}
			l.readDigits(&sb)
		}
	}

	literal := sb.String()
	if isFloat {
		return Token{Type: tokenFloat, Literal: literal, Pos: pos}
	}
	value, err := strconv.ParseInt(literal, 10, 64)
	if err != nil {
		return Token{Type: tokenIllegal, Literal: "invalid integer literal", Pos: pos}
	}
	return Token{Type: tokenInt, Literal: strconv.FormatInt(value, 10), Pos: pos}
}

// readDigits consumes decimal digits, dropping `_` separators that sit
// between two digits.
func (l *lexer) readDigits(sb *strings.Builder) {
	for {
		switch {
		case isDigit(l.ch):
			sb.WriteRune(l.ch)
			l.readRune()
		case l.ch == '_' && isDigit(l.peekRune()) && sb.Len() > 0:
			l.readRune()
		default:
			return
		}
	}
}

func (l *lexer) readString() (string, *Error) {
	start := l.pos()
	delim := l.ch
	var sb strings.Builder

	for {
		l.readRune()
		switch {
		case l.atEOF():
			return "", newError(UnexpectedToken, start, "unterminated string literal")
		case l.ch == delim:
			l.readRune()
			return sb.String(), nil
		case l.ch == '\\':
			l.readRune()
			if l.atEOF() {
				return "", newError(UnexpectedToken, start, "unterminated string literal")
			}
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteRune(l.ch)
			}
		default:
			sb.WriteRune(l.ch)
		}
	}
}

func isIdentifierStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentifierRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
