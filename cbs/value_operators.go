package cbs

import (
	"math"
	"strings"
)

// Operator is the tag carried by the BinaryOperator instruction.
type Operator uint8

const (
	OpInvalid Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpAnd
	OpOr
	OpEq
	OpNotEq
	OpLT
	OpLTE
	OpGT
	OpGTE

	// Unary operators ignore their second operand.
	OpNeg
	OpPos
	OpNot
	OpBitNot
)

var operatorSymbols = map[Operator]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpShl: "<<", OpShr: ">>", OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^",
	OpAnd: "&&", OpOr: "||", OpEq: "==", OpNotEq: "!=",
	OpLT: "<", OpLTE: "<=", OpGT: ">", OpGTE: ">=",
	OpNeg: "-", OpPos: "+", OpNot: "!", OpBitNot: "~",
}

func (op Operator) String() string {
	if s, ok := operatorSymbols[op]; ok {
		return s
	}
	return "?"
}

func (op Operator) Unary() bool {
	return op >= OpNeg
}

var binaryOperators = map[TokenType]Operator{
	tokenPlus:     OpAdd,
	tokenMinus:    OpSub,
	tokenAsterisk: OpMul,
	tokenSlash:    OpDiv,
	tokenPercent:  OpMod,
	tokenShl:      OpShl,
	tokenShr:      OpShr,
	tokenBitAnd:   OpBitAnd,
	tokenBitOr:    OpBitOr,
	tokenBitXor:   OpBitXor,
	tokenAnd:      OpAnd,
	tokenOr:       OpOr,
	tokenEQ:       OpEq,
	tokenNotEQ:    OpNotEq,
	tokenLT:       OpLT,
	tokenLTE:      OpLTE,
	tokenGT:       OpGT,
	tokenGTE:      OpGTE,
}

var unaryOperators = map[TokenType]Operator{
	tokenMinus: OpNeg,
	tokenPlus:  OpPos,
	tokenBang:  OpNot,
	tokenTilde: OpBitNot,
}

// Apply evaluates a unary or binary operator. right is ignored for unary
// operators.
func Apply(op Operator, left, right Value) (Value, error) {
	if op.Unary() {
		return UnaryOp(op, left)
	}
	return BinaryOp(op, left, right)
}

// BinaryOp evaluates left op right. Equality is structural for every kind;
// for other operators a host object on either side gets the first chance to
// implement them.
func BinaryOp(op Operator, left, right Value) (Value, error) {
	switch op {
	case OpEq:
		return NewBool(left.Equal(right)), nil
	case OpNotEq:
		return NewBool(!left.Equal(right)), nil
	}

	if obj := left.Object(); obj != nil {
		return obj.BinaryOp(op, right, false)
	}
	if obj := right.Object(); obj != nil {
		return obj.BinaryOp(op, left, true)
	}

	lk, rk := left.Kind(), right.Kind()
	switch op {
	case OpAnd, OpOr:
		if lk != KindBool || rk != KindBool {
			return Value{}, operandError(op, left, right)
		}
		if op == OpAnd {
			return NewBool(left.Bool() && right.Bool()), nil
		}
		return NewBool(left.Bool() || right.Bool()), nil
	}

	switch {
	case op == OpAdd && (lk == KindString || rk == KindString):
		return NewString(left.String() + right.String()), nil
	case op == OpAdd && lk == KindArray && rk == KindArray:
		a, b := left.Array(), right.Array()
		items := make([]Value, 0, len(a.Items)+len(b.Items))
		items = append(items, a.Items...)
		items = append(items, b.Items...)
		elem := a.Elem
		if elem.Name() != b.Elem.Name() {
			elem = TypeAny
		}
		return NewArray(elem, items), nil
	case lk == KindString && rk == KindString:
		return compareStrings(op, left, right)
	case lk == KindI32 && rk == KindI32:
		return intOp(op, left.I32(), right.I32())
	case lk == KindBool && rk == KindBool:
		switch op {
		case OpBitAnd:
			return NewBool(left.Bool() && right.Bool()), nil
		case OpBitOr:
			return NewBool(left.Bool() || right.Bool()), nil
		case OpBitXor:
			return NewBool(left.Bool() != right.Bool()), nil
		}
	}

	a, lok := left.Number()
	b, rok := right.Number()
	if lok && rok {
		return floatOp(op, left, right, float32(a), float32(b))
	}
	return Value{}, operandError(op, left, right)
}

func operandError(op Operator, left, right Value) *Error {
	return newError(InvalidType, Position{}, "operator %s is not defined for %s and %s", op, left.Type().Name(), right.Type().Name())
}

func divideByZero() *Error {
	return newError(DivideByZero, Position{}, "division by zero")
}

func intOp(op Operator, a, b int32) (Value, error) {
	switch op {
	case OpAdd:
		return NewI32(a + b), nil
	case OpSub:
		return NewI32(a - b), nil
	case OpMul:
		return NewI32(a * b), nil
	case OpDiv:
		if b == 0 {
			return Value{}, divideByZero()
		}
		return NewI32(a / b), nil
	case OpMod:
		if b == 0 {
			return Value{}, divideByZero()
		}
		return NewI32(a % b), nil
	case OpShl, OpShr:
		if b < 0 {
			return Value{}, newError(InvalidArgument, Position{}, "negative shift count %d", b)
		}
		if op == OpShl {
			return NewI32(a << uint32(b)), nil
		}
		return NewI32(a >> uint32(b)), nil
	case OpBitAnd:
		return NewI32(a & b), nil
	case OpBitOr:
		return NewI32(a | b), nil
	case OpBitXor:
		return NewI32(a ^ b), nil
	case OpLT:
		return NewBool(a < b), nil
	case OpLTE:
		return NewBool(a <= b), nil
	case OpGT:
		return NewBool(a > b), nil
	case OpGTE:
		return NewBool(a >= b), nil
	}
	return Value{}, operandError(op, NewI32(a), NewI32(b))
}

func floatOp(op Operator, left, right Value, a, b float32) (Value, error) {
	switch op {
	case OpAdd:
		return NewF32(a + b), nil
	case OpSub:
		return NewF32(a - b), nil
	case OpMul:
		return NewF32(a * b), nil
	case OpDiv:
		if b == 0 {
			return Value{}, divideByZero()
		}
		return NewF32(a / b), nil
	case OpMod:
		if b == 0 {
			return Value{}, divideByZero()
		}
		return NewF32(float32(math.Mod(float64(a), float64(b)))), nil
	case OpLT:
		return NewBool(a < b), nil
	case OpLTE:
		return NewBool(a <= b), nil
	case OpGT:
		return NewBool(a > b), nil
	case OpGTE:
		return NewBool(a >= b), nil
	}
	return Value{}, operandError(op, left, right)
}

func compareStrings(op Operator, left, right Value) (Value, error) {
	c := strings.Compare(left.Str(), right.Str())
	switch op {
	case OpLT:
		return NewBool(c < 0), nil
	case OpLTE:
		return NewBool(c <= 0), nil
	case OpGT:
		return NewBool(c > 0), nil
	case OpGTE:
		return NewBool(c >= 0), nil
	}
	return Value{}, operandError(op, left, right)
}

// UnaryOp evaluates a prefix operator.
func UnaryOp(op Operator, v Value) (Value, error) {
	if obj := v.Object(); obj != nil {
		return obj.UnaryOp(op)
	}
	switch {
	case op == OpNeg && v.Kind() == KindI32:
		return NewI32(-v.I32()), nil
	case op == OpNeg && v.Kind() == KindF32:
		return NewF32(-v.F32()), nil
	case op == OpPos && (v.Kind() == KindI32 || v.Kind() == KindF32):
		return v.withoutOrigin(), nil
	case op == OpNot && v.Kind() == KindBool:
		return NewBool(!v.Bool()), nil
	case op == OpBitNot && v.Kind() == KindI32:
		return NewI32(^v.I32()), nil
	}
	return Value{}, newError(InvalidType, Position{}, "operator %s is not defined for %s", op, v.Type().Name())
}
