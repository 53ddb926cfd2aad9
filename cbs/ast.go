package cbs

type Node interface {
	Pos() Position
}

type Statement interface {
	Node
	stmtNode()
}

type Expression interface {
	Node
	exprNode()
}

// Program is the root of a parsed script. Parse and Analyze both append to
// Errors; Scopes and Functions are filled in by Analyze.
type Program struct {
	Body      *BlockStmt
	Errors    []*Error
	Scopes    *ScopeTable
	Functions []*DeclaredFunction
	Version   string
}

func (p *Program) Pos() Position {
	if p.Body == nil {
		return Position{}
	}
	return p.Body.Pos()
}

// Statements returns the top-level statements of the script body.
func (p *Program) Statements() []Statement {
	if p.Body == nil {
		return nil
	}
	return p.Body.Statements
}

// Literal holds any compile-time value: parsed literals as well as
// expressions the analyzer has folded.
type Literal struct {
	Value    Value
	position Position
}

func (e *Literal) exprNode()     {}
func (e *Literal) Pos() Position { return e.position }

// NewLiteral builds a literal node at pos.
func NewLiteral(v Value, pos Position) *Literal {
	return &Literal{Value: v, position: pos}
}

type Identifier struct {
	Name     string
	Symbol   *Symbol
	position Position
}

func (e *Identifier) exprNode()     {}
func (e *Identifier) Pos() Position { return e.position }

type TypeExpr struct {
	Name     string
	Args     []*TypeExpr
	position Position
}

func (e *TypeExpr) exprNode()     {}
func (e *TypeExpr) Pos() Position { return e.position }

type BinaryExpr struct {
	Left     Expression
	Operator TokenType
	Right    Expression
	position Position
}

func (e *BinaryExpr) exprNode()     {}
func (e *BinaryExpr) Pos() Position { return e.position }

// UnaryExpr covers prefix operators and postfix `++`/`--`.
type UnaryExpr struct {
	Operator TokenType
	Operand  Expression
	Postfix  bool
	position Position
}

func (e *UnaryExpr) exprNode()     {}
func (e *UnaryExpr) Pos() Position { return e.position }

func (e *UnaryExpr) isStep() bool {
	return e.Operator == tokenIncrement || e.Operator == tokenDecrement
}

// AssignExpr is `target op value`. Init marks an assignment the analyzer
// synthesized from a declaration; it may target a read-only symbol.
type AssignExpr struct {
	Target   Expression
	Operator TokenType
	Value    Expression
	Init     bool
	position Position
}

func (e *AssignExpr) exprNode()     {}
func (e *AssignExpr) Pos() Position { return e.position }

type CallExpr struct {
	Callee   Expression
	Args     []Expression
	position Position
}

func (e *CallExpr) exprNode()     {}
func (e *CallExpr) Pos() Position { return e.position }

type MemberExpr struct {
	Object   Expression
	Property string
	position Position
}

func (e *MemberExpr) exprNode()     {}
func (e *MemberExpr) Pos() Position { return e.position }

type IndexExpr struct {
	Object   Expression
	Index    Expression
	position Position
}

func (e *IndexExpr) exprNode()     {}
func (e *IndexExpr) Pos() Position { return e.position }

type ArrayLiteral struct {
	Elements []Expression
	position Position
}

func (e *ArrayLiteral) exprNode()     {}
func (e *ArrayLiteral) Pos() Position { return e.position }

type RangeExpr struct {
	Start     Expression
	End       Expression
	Inclusive bool
	position  Position
}

func (e *RangeExpr) exprNode()     {}
func (e *RangeExpr) Pos() Position { return e.position }

type TernaryExpr struct {
	Condition   Expression
	Consequent  Expression
	Alternative Expression
	position    Position
}

func (e *TernaryExpr) exprNode()     {}
func (e *TernaryExpr) Pos() Position { return e.position }

// ClosureExpr is `|params| body`. Expression bodies are wrapped into a block
// holding a single return statement.
type ClosureExpr struct {
	Params     []Param
	ReturnType *TypeExpr
	Body       *BlockStmt
	Function   *DeclaredFunction
	position   Position
}

func (e *ClosureExpr) exprNode()     {}
func (e *ClosureExpr) Pos() Position { return e.position }

// EmptyExpr stands in for an expression the parser could not read.
type EmptyExpr struct {
	position Position
}

func (e *EmptyExpr) exprNode()     {}
func (e *EmptyExpr) Pos() Position { return e.position }
