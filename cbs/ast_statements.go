package cbs

// BlockStmt owns a scope once analyzed.
type BlockStmt struct {
	Statements []Statement
	Scope      ScopeID
	position   Position
}

func (s *BlockStmt) stmtNode()     {}
func (s *BlockStmt) Pos() Position { return s.position }

type VarDecl struct {
	Name     string
	Type     *TypeExpr
	Value    Expression
	Const    bool
	Symbol   *Symbol
	position Position
}

func (s *VarDecl) stmtNode()     {}
func (s *VarDecl) Pos() Position { return s.position }

type Param struct {
	Name     string
	Type     *TypeExpr
	Variadic bool
	Pos      Position
}

type FunctionDecl struct {
	Name       string
	Params     []Param
	ReturnType *TypeExpr
	Body       *BlockStmt
	Function   *DeclaredFunction
	position   Position
}

func (s *FunctionDecl) stmtNode()     {}
func (s *FunctionDecl) Pos() Position { return s.position }

// IfStmt branches are always blocks; `else if` chains nest an IfStmt inside
// the Alternative block. Alternative is nil when there is no else branch.
type IfStmt struct {
	Condition   Expression
	Consequent  *BlockStmt
	Alternative *BlockStmt
	position    Position
}

func (s *IfStmt) stmtNode()     {}
func (s *IfStmt) Pos() Position { return s.position }

type WhileStmt struct {
	Condition Expression
	Body      *BlockStmt
	position  Position
}

func (s *WhileStmt) stmtNode()     {}
func (s *WhileStmt) Pos() Position { return s.position }

// ForStmt is the C-style loop; every header part may be nil.
type ForStmt struct {
	Init      Statement
	Condition Expression
	Update    Expression
	Body      *BlockStmt
	Scope     ScopeID
	position  Position
}

func (s *ForStmt) stmtNode()     {}
func (s *ForStmt) Pos() Position { return s.position }

type ForeachStmt struct {
	Name     string
	Symbol   *Symbol
	Iterable Expression
	Body     *BlockStmt
	Scope    ScopeID
	position Position
}

func (s *ForeachStmt) stmtNode()     {}
func (s *ForeachStmt) Pos() Position { return s.position }

type BreakStmt struct {
	position Position
}

func (s *BreakStmt) stmtNode()     {}
func (s *BreakStmt) Pos() Position { return s.position }

type ContinueStmt struct {
	position Position
}

func (s *ContinueStmt) stmtNode()     {}
func (s *ContinueStmt) Pos() Position { return s.position }

type ReturnStmt struct {
	Value    Expression
	position Position
}

func (s *ReturnStmt) stmtNode()     {}
func (s *ReturnStmt) Pos() Position { return s.position }

// CommandStmt is a compile-time directive such as `#version v0;`.
type CommandStmt struct {
	Name     string
	Args     []Token
	position Position
}

func (s *CommandStmt) stmtNode()     {}
func (s *CommandStmt) Pos() Position { return s.position }

type ExprStmt struct {
	Expr     Expression
	position Position
}

func (s *ExprStmt) stmtNode()     {}
func (s *ExprStmt) Pos() Position { return s.position }

type EmptyStmt struct {
	position Position
}

func (s *EmptyStmt) stmtNode()     {}
func (s *EmptyStmt) Pos() Position { return s.position }
