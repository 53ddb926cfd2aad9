package cbs

func isAssignable(expr Expression) bool {
	switch expr.(type) {
	case *Identifier, *MemberExpr, *IndexExpr:
		return true
	default:
		return false
	}
}

// Binding powers, weakest first. An infix form is consumed while its power
// exceeds the power the caller is parsing at.
const (
	lowestPrec = iota
	precAssign
	precTernary
	precRange
	precOr
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precSum
	precProduct
	precPrefix
	precPostfix
	precCall
)

var precedences = map[TokenType]int{
	tokenAssign:         precAssign,
	tokenPlusAssign:     precAssign,
	tokenMinusAssign:    precAssign,
	tokenStarAssign:     precAssign,
	tokenSlashAssign:    precAssign,
	tokenPercentAssign:  precAssign,
	tokenShlAssign:      precAssign,
	tokenShrAssign:      precAssign,
	tokenAndAssign:      precAssign,
	tokenOrAssign:       precAssign,
	tokenXorAssign:      precAssign,
	tokenQuestion:       precTernary,
	tokenRange:          precRange,
	tokenRangeInclusive: precRange,
	tokenOr:             precOr,
	tokenAnd:            precAnd,
	tokenBitOr:          precBitOr,
	tokenBitXor:         precBitXor,
	tokenBitAnd:         precBitAnd,
	tokenEQ:             precEquality,
	tokenNotEQ:          precEquality,
	tokenLT:             precRelational,
	tokenLTE:            precRelational,
	tokenGT:             precRelational,
	tokenGTE:            precRelational,
	tokenShl:            precShift,
	tokenShr:            precShift,
	tokenPlus:           precSum,
	tokenMinus:          precSum,
	tokenAsterisk:       precProduct,
	tokenSlash:          precProduct,
	tokenPercent:        precProduct,
	tokenIncrement:      precPostfix,
	tokenDecrement:      precPostfix,
	tokenLParen:         precCall,
	tokenDot:            precCall,
	tokenLBracket:       precCall,
}

// compoundOperators maps a compound assignment to the binary operator it
// applies before storing.
var compoundOperators = map[TokenType]TokenType{
	tokenPlusAssign:    tokenPlus,
	tokenMinusAssign:   tokenMinus,
	tokenStarAssign:    tokenAsterisk,
	tokenSlashAssign:   tokenSlash,
	tokenPercentAssign: tokenPercent,
	tokenShlAssign:     tokenShl,
	tokenShrAssign:     tokenShr,
	tokenAndAssign:     tokenBitAnd,
	tokenOrAssign:      tokenBitOr,
	tokenXorAssign:     tokenBitXor,
}
