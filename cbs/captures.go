package cbs

import (
	"fmt"
	"sort"
)

// collectCaptures computes, for every function, the variables of enclosing
// scopes its body uses. A function that references another function also
// captures what that function needs from outside its own scope. Top-level
// variables live in shared slots and are never captured.
func (c *compiler) collectCaptures() {
	c.captures = make(map[*DeclaredFunction][]*Symbol)
	sets := make(map[*DeclaredFunction]map[*Symbol]bool)
	refs := make(map[*DeclaredFunction][]*DeclaredFunction)
	for _, fn := range c.program.Functions {
		set := make(map[*Symbol]bool)
		Inspect(fn.Body, func(n Node) bool {
			ident, ok := n.(*Identifier)
			if !ok || ident.Symbol == nil {
				return true
			}
			if g := ident.Symbol.Function; g != nil {
				if g != fn {
					refs[fn] = append(refs[fn], g)
				}
				return true
			}
			if c.capturable(ident.Symbol, fn) {
				set[ident.Symbol] = true
			}
			return true
		})
		sets[fn] = set
	}

	for changed := true; changed; {
		changed = false
		for _, fn := range c.program.Functions {
			for _, g := range refs[fn] {
				for sym := range sets[g] {
					if !sets[fn][sym] && c.capturable(sym, fn) {
						sets[fn][sym] = true
						changed = true
					}
				}
			}
		}
	}

	for _, fn := range c.program.Functions {
		if len(sets[fn]) == 0 {
			continue
		}
		syms := make([]*Symbol, 0, len(sets[fn]))
		for sym := range sets[fn] {
			syms = append(syms, sym)
		}
		sort.Slice(syms, func(i, j int) bool {
			if syms[i].Scope != syms[j].Scope {
				return syms[i].Scope < syms[j].Scope
			}
			if syms[i].Pos.Line != syms[j].Pos.Line {
				return syms[i].Pos.Line < syms[j].Pos.Line
			}
			if syms[i].Pos.Column != syms[j].Pos.Column {
				return syms[i].Pos.Column < syms[j].Pos.Column
			}
			return syms[i].Name < syms[j].Name
		})
		for _, sym := range syms {
			c.frameSlot(sym.Scope)
		}
		c.captures[fn] = syms
	}
}

func (c *compiler) capturable(sym *Symbol, fn *DeclaredFunction) bool {
	if sym.Known || sym.Function != nil {
		return false
	}
	if sym.Scope == 0 || sym.Scope == c.program.Body.Scope {
		return false
	}
	return !c.program.Scopes.Within(sym.Scope, fn.Scope)
}

func (c *compiler) frameSlot(scope ScopeID) uint32 {
	if slot, ok := c.frames[scope]; ok {
		return slot
	}
	slot := c.newSlot(fmt.Sprintf("$frame%d", scope), slotSymbol, NewNull())
	c.frames[scope] = slot
	return slot
}

// enterScope starts a new activation of scope when closures capture its
// variables.
func (c *compiler) enterScope(scope ScopeID) {
	slot, ok := c.frames[scope]
	if !ok {
		return
	}
	c.emitCall(c.nativeSlot("__frame"), nil, Position{})
	c.emitPop(slot)
}

// compileClosure creates the value of fn at pos. Functions without captures
// are plain constants; the others snapshot their captured variables
// together with the frames those variables belong to.
func (c *compiler) compileClosure(fn *DeclaredFunction, pos Position) uint32 {
	c.function(fn)
	value := c.constSlot(NewFunction(fn))
	captures := c.captures[fn]
	if len(captures) == 0 {
		return value
	}
	args := make([]uint32, 0, 1+2*len(captures))
	args = append(args, value)
	for _, sym := range captures {
		args = append(args, c.symbolSlot(sym), c.frames[sym.Scope])
	}
	return c.callIntrinsic("__closure", pos, args...)
}
