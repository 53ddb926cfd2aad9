package cbs

import "sort"

// ScopeID addresses a scope inside a ScopeTable.
type ScopeID int32

// NoScope is the parent of the root scope.
const NoScope ScopeID = -1

type ScopeKind uint8

const (
	ScopeGlobal ScopeKind = iota
	ScopeBlock
	ScopeFunction
	ScopeLoop
)

// Symbol is one scope entry. Known symbols carry their compile-time value;
// the others only get a value when the program runs.
type Symbol struct {
	Name     string
	Type     Type
	Value    Value
	ReadOnly bool
	Known    bool
	Function *DeclaredFunction
	Scope    ScopeID
	Pos      Position
}

type Scope struct {
	ID      ScopeID
	Parent  ScopeID
	Kind    ScopeKind
	symbols map[string]*Symbol
	order   []*Symbol
}

// ScopeTable is the arena every scope of a program lives in. Parent links
// are ids, so scopes never reference each other directly.
type ScopeTable struct {
	scopes []*Scope
}

func NewScopeTable() *ScopeTable {
	return &ScopeTable{}
}

func (t *ScopeTable) New(parent ScopeID, kind ScopeKind) ScopeID {
	id := ScopeID(len(t.scopes))
	t.scopes = append(t.scopes, &Scope{
		ID:      id,
		Parent:  parent,
		Kind:    kind,
		symbols: make(map[string]*Symbol),
	})
	return id
}

func (t *ScopeTable) Get(id ScopeID) *Scope {
	if id < 0 || int(id) >= len(t.scopes) {
		return nil
	}
	return t.scopes[id]
}

func (t *ScopeTable) Len() int {
	return len(t.scopes)
}

// Declare adds sym to scope id. Redeclaring a name in the same scope is a
// DuplicateIdentifier error; shadowing an outer scope is allowed.
func (t *ScopeTable) Declare(id ScopeID, sym *Symbol) error {
	scope := t.Get(id)
	if prev, ok := scope.symbols[sym.Name]; ok {
		return newError(DuplicateIdentifier, sym.Pos, "%s is already declared in this scope (previous declaration at %d:%d)",
			sym.Name, prev.Pos.Line, prev.Pos.Column)
	}
	if sym.Type == nil {
		sym.Type = TypeAny
	}
	sym.Scope = id
	scope.symbols[sym.Name] = sym
	scope.order = append(scope.order, sym)
	return nil
}

// Lookup walks from id towards the root and returns the nearest symbol.
func (t *ScopeTable) Lookup(id ScopeID, name string) (*Symbol, bool) {
	for scope := t.Get(id); scope != nil; scope = t.Get(scope.Parent) {
		if sym, ok := scope.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

func (t *ScopeTable) LookupLocal(id ScopeID, name string) (*Symbol, bool) {
	scope := t.Get(id)
	if scope == nil {
		return nil, false
	}
	sym, ok := scope.symbols[name]
	return sym, ok
}

// Symbols returns the symbols of one scope in declaration order.
func (t *ScopeTable) Symbols(id ScopeID) []*Symbol {
	scope := t.Get(id)
	if scope == nil {
		return nil
	}
	return append([]*Symbol(nil), scope.order...)
}

// Within reports whether scope id is ancestor itself or nested inside it.
func (t *ScopeTable) Within(id, ancestor ScopeID) bool {
	for scope := t.Get(id); scope != nil; scope = t.Get(scope.Parent) {
		if scope.ID == ancestor {
			return true
		}
	}
	return false
}

// Descendants lists id and every scope nested under it.
func (t *ScopeTable) Descendants(id ScopeID) []ScopeID {
	var out []ScopeID
	for _, scope := range t.scopes {
		if t.Within(scope.ID, id) {
			out = append(out, scope.ID)
		}
	}
	return out
}

// Names lists the names visible from id, nearest scope first within each
// level and alphabetically inside a scope.
func (t *ScopeTable) Names(id ScopeID) []string {
	seen := make(map[string]bool)
	var out []string
	for scope := t.Get(id); scope != nil; scope = t.Get(scope.Parent) {
		names := make([]string, 0, len(scope.symbols))
		for name := range scope.symbols {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		sort.Strings(names)
		out = append(out, names...)
	}
	return out
}
