package cbs

import (
	"errors"
	"reflect"
	"testing"
)

func TestScopeLookupWalksParents(t *testing.T) {
	table := NewScopeTable()
	global := table.New(NoScope, ScopeGlobal)
	fn := table.New(global, ScopeFunction)
	inner := table.New(fn, ScopeBlock)

	if err := table.Declare(global, &Symbol{Name: "x", Type: TypeI32}); err != nil {
		t.Fatalf("declare x: %v", err)
	}
	if err := table.Declare(inner, &Symbol{Name: "x", Type: TypeString}); err != nil {
		t.Fatalf("shadowing should be allowed: %v", err)
	}

	sym, ok := table.Lookup(inner, "x")
	if !ok || sym.Type != TypeString || sym.Scope != inner {
		t.Fatalf("expected inner x, got %+v", sym)
	}
	sym, ok = table.Lookup(fn, "x")
	if !ok || sym.Type != TypeI32 || sym.Scope != global {
		t.Fatalf("expected global x, got %+v", sym)
	}
	if _, ok := table.LookupLocal(fn, "x"); ok {
		t.Fatalf("LookupLocal should not walk parents")
	}
	if _, ok := table.Lookup(inner, "missing"); ok {
		t.Fatalf("unexpected symbol")
	}
}

func TestScopeDuplicateDeclaration(t *testing.T) {
	table := NewScopeTable()
	id := table.New(NoScope, ScopeGlobal)
	if err := table.Declare(id, &Symbol{Name: "a", Pos: Position{Line: 1, Column: 5}}); err != nil {
		t.Fatalf("declare: %v", err)
	}
	err := table.Declare(id, &Symbol{Name: "a", Pos: Position{Line: 2, Column: 5}})
	if !errors.Is(err, &Error{Kind: DuplicateIdentifier}) {
		t.Fatalf("expected DuplicateIdentifier, got %v", err)
	}
	if got := len(table.Symbols(id)); got != 1 {
		t.Fatalf("expected 1 symbol, got %d", got)
	}
}

func TestScopeDefaultsToAny(t *testing.T) {
	table := NewScopeTable()
	id := table.New(NoScope, ScopeGlobal)
	sym := &Symbol{Name: "v"}
	if err := table.Declare(id, sym); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if sym.Type != TypeAny {
		t.Fatalf("expected any, got %v", sym.Type)
	}
}

func TestScopeWithinAndDescendants(t *testing.T) {
	table := NewScopeTable()
	root := table.New(NoScope, ScopeGlobal)
	a := table.New(root, ScopeBlock)
	b := table.New(a, ScopeLoop)
	c := table.New(root, ScopeFunction)

	if !table.Within(b, root) || !table.Within(b, a) || !table.Within(b, b) {
		t.Fatalf("b should be within root, a and itself")
	}
	if table.Within(c, a) {
		t.Fatalf("c is not nested in a")
	}
	if got, want := table.Descendants(a), []ScopeID{a, b}; !reflect.DeepEqual(got, want) {
		t.Fatalf("descendants = %v, want %v", got, want)
	}
	if table.Get(ScopeID(99)) != nil || table.Get(NoScope) != nil {
		t.Fatalf("out of range ids should yield nil")
	}
	if table.Len() != 4 {
		t.Fatalf("expected 4 scopes, got %d", table.Len())
	}
}

func TestScopeNames(t *testing.T) {
	table := NewScopeTable()
	root := table.New(NoScope, ScopeGlobal)
	inner := table.New(root, ScopeBlock)
	for _, name := range []string{"zeta", "alpha", "shared"} {
		if err := table.Declare(root, &Symbol{Name: name}); err != nil {
			t.Fatalf("declare %s: %v", name, err)
		}
	}
	for _, name := range []string{"shared", "beta"} {
		if err := table.Declare(inner, &Symbol{Name: name}); err != nil {
			t.Fatalf("declare %s: %v", name, err)
		}
	}
	want := []string{"beta", "shared", "alpha", "zeta"}
	if got := table.Names(inner); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
}
