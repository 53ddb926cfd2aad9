package cbs

import (
	"fmt"
	"sort"
)

// Bytecode is a compiled script image. Slots holds the initial value of
// every slot; each VM works on its own copy.
type Bytecode struct {
	Code      []byte
	Slots     []Value
	SlotNames []string
	Functions []FuncInfo
	// Globals maps top-level and host names to their slots.
	Globals   map[string]uint32
	Positions map[uint32]Position

	funcIndex map[*DeclaredFunction]int
}

// FuncInfo describes the calling convention of one compiled function:
// arguments are stored into Args, control enters at Entry through OpGoto and
// the result is left in Ret.
type FuncInfo struct {
	Name     string
	Entry    uint32
	Args     []uint32
	Ret      uint32
	Variadic bool
	Closure  bool
	// Captures lists the outer variables the function reads or writes,
	// in the order a closure value stores them.
	Captures []Capture

	fn *DeclaredFunction
}

// Capture is one captured variable: its slot and the slot holding the
// current activation frame of the scope that declares it.
type Capture struct {
	Slot  uint32
	Frame uint32
}

func (bc *Bytecode) function(fn *DeclaredFunction) (FuncInfo, bool) {
	idx, ok := bc.funcIndex[fn]
	if !ok {
		return FuncInfo{}, false
	}
	return bc.Functions[idx], true
}

// position returns the source position recorded for the instruction at pc.
func (bc *Bytecode) position(pc uint32) Position {
	return bc.Positions[pc]
}

type slotKind uint8

const (
	slotConstant slotKind = iota
	slotSymbol
	slotTemp
	slotTransfer
)

type label int

type patch struct {
	at    int
	label label
}

type funcState struct {
	fn       *DeclaredFunction
	entry    label
	body     label
	epilogue label
	prologue label
	args     []uint32
	ret      uint32
	temps    []uint32
}

type loopLabels struct {
	cont label
}

type compiler struct {
	asm       assembler
	program   *Program
	slots     []Value
	names     []string
	kinds     []slotKind
	symbols   map[*Symbol]uint32
	consts    map[string]uint32
	natives   map[string]uint32
	funcs     map[*DeclaredFunction]*funcState
	order     []*funcState
	labels    []int
	patches   []patch
	positions map[uint32]Position
	captures  map[*DeclaredFunction][]*Symbol
	frames    map[ScopeID]uint32

	cur   *funcState
	loops []loopLabels
}

// CompileProgram lowers an analyzed program into bytecode. The program must
// carry no errors.
func CompileProgram(program *Program) (*Bytecode, error) {
	if len(program.Errors) > 0 {
		return nil, fmt.Errorf("cbs: cannot compile a program with %d error(s)", len(program.Errors))
	}
	if program.Scopes == nil {
		return nil, fmt.Errorf("cbs: program has not been analyzed")
	}

	c := &compiler{
		program:   program,
		symbols:   make(map[*Symbol]uint32),
		consts:    make(map[string]uint32),
		natives:   make(map[string]uint32),
		funcs:     make(map[*DeclaredFunction]*funcState),
		positions: make(map[uint32]Position),
		frames:    make(map[ScopeID]uint32),
	}
	c.collectCaptures()

	globals := make(map[string]uint32)
	for _, scope := range []ScopeID{0, program.Body.Scope} {
		for _, sym := range program.Scopes.Symbols(scope) {
			globals[sym.Name] = c.symbolSlot(sym)
		}
	}
	for _, fn := range program.Functions {
		c.function(fn)
	}

	c.compileBlock(program.Body)
	c.asm.op(OpHalt)
	for i := 0; i < len(c.order); i++ {
		c.compileFunction(c.order[i])
	}
	c.asm.op(OpHalt)

	for _, p := range c.patches {
		target := c.labels[p.label]
		if target < 0 {
			return nil, fmt.Errorf("cbs: unresolved label %d", p.label)
		}
		c.asm.patch32(p.at, uint32(target))
	}

	funcs := make([]FuncInfo, 0, len(c.order))
	funcIndex := make(map[*DeclaredFunction]int, len(c.order))
	for _, fs := range c.order {
		var captures []Capture
		for _, sym := range c.captures[fs.fn] {
			captures = append(captures, Capture{Slot: c.symbolSlot(sym), Frame: c.frames[sym.Scope]})
		}
		funcIndex[fs.fn] = len(funcs)
		funcs = append(funcs, FuncInfo{
			Name:     fs.fn.Name,
			Entry:    uint32(c.labels[fs.entry]),
			Args:     fs.args,
			Ret:      fs.ret,
			Variadic: fs.fn.IsVariadic,
			Closure:  fs.fn.closure,
			Captures: captures,
			fn:       fs.fn,
		})
	}
	return &Bytecode{
		Code:      c.asm.code,
		Slots:     c.slots,
		SlotNames: c.names,
		Functions: funcs,
		Globals:   globals,
		Positions: c.positions,
		funcIndex: funcIndex,
	}, nil
}

func (c *compiler) newSlot(name string, kind slotKind, init Value) uint32 {
	slot := uint32(len(c.slots))
	c.slots = append(c.slots, init)
	c.names = append(c.names, name)
	c.kinds = append(c.kinds, kind)
	return slot
}

func (c *compiler) symbolSlot(sym *Symbol) uint32 {
	if slot, ok := c.symbols[sym]; ok {
		return slot
	}
	init := NewNull()
	if sym.Known {
		init = sym.Value
	}
	slot := c.newSlot(sym.Name, slotSymbol, init)
	c.symbols[sym] = slot
	return slot
}

// constSlot returns a slot initialized to v. Immutable values share slots.
func (c *compiler) constSlot(v Value) uint32 {
	if !v.isScalar() {
		return c.newSlot(v.String(), slotConstant, v)
	}
	key := v.Type().Name() + "\x00" + v.String()
	if slot, ok := c.consts[key]; ok {
		return slot
	}
	name := v.String()
	if v.Kind() == KindString {
		name = fmt.Sprintf("%q", v.Str())
	}
	slot := c.newSlot(name, slotConstant, v)
	c.consts[key] = slot
	return slot
}

func (c *compiler) nativeSlot(name string) uint32 {
	if slot, ok := c.natives[name]; ok {
		return slot
	}
	fn, ok := intrinsics[name]
	if !ok {
		panic("cbs: unknown intrinsic " + name)
	}
	slot := c.newSlot(name, slotConstant, NewNative(name, false, fn))
	c.natives[name] = slot
	return slot
}

// newTemp allocates a scratch slot owned by the function being compiled.
func (c *compiler) newTemp() uint32 {
	slot := c.newSlot(fmt.Sprintf("$t%d", len(c.slots)), slotTemp, NewNull())
	if c.cur != nil {
		c.cur.temps = append(c.cur.temps, slot)
	}
	return slot
}

// stable copies a variable's slot into a temporary so that later side
// effects cannot change an operand that was already evaluated.
func (c *compiler) stable(slot uint32) uint32 {
	if c.kinds[slot] != slotSymbol {
		return slot
	}
	tmp := c.newTemp()
	c.emitAssign(tmp, slot)
	return tmp
}

func (c *compiler) function(fn *DeclaredFunction) *funcState {
	if fs, ok := c.funcs[fn]; ok {
		return fs
	}
	fs := &funcState{
		fn:       fn,
		entry:    c.newLabel(),
		body:     c.newLabel(),
		epilogue: c.newLabel(),
		prologue: c.newLabel(),
	}
	for i, name := range fn.ArgumentNames {
		fs.args = append(fs.args, c.newSlot(fmt.Sprintf("%s.arg%d(%s)", fn.Name, i, name), slotTransfer, NewNull()))
	}
	fs.ret = c.newSlot(fn.Name+".ret", slotTransfer, NewNull())
	c.funcs[fn] = fs
	c.order = append(c.order, fs)
	return fs
}

func (c *compiler) newLabel() label {
	c.labels = append(c.labels, -1)
	return label(len(c.labels) - 1)
}

func (c *compiler) bind(l label) {
	c.labels[l] = len(c.asm.code)
}

func (c *compiler) jump(op Opcode, l label) {
	c.asm.op(op)
	c.patches = append(c.patches, patch{at: len(c.asm.code), label: l})
	c.asm.u32(0)
}

// mark records pos for the next instruction.
func (c *compiler) mark(pos Position) {
	if pos.Line > 0 {
		c.positions[c.asm.pc()] = pos
	}
}

func (c *compiler) emitPush(slot uint32) {
	c.asm.op(OpPush)
	c.asm.u32(slot)
}

func (c *compiler) emitPop(slot uint32) {
	c.asm.op(OpPop)
	c.asm.u32(slot)
}

func (c *compiler) emitAssign(dst, src uint32) {
	if dst == src {
		return
	}
	c.asm.op(OpAssign)
	c.asm.u32(dst)
	c.asm.u32(src)
}

func (c *compiler) emitOperator(left, right uint32, op Operator, pos Position) {
	c.mark(pos)
	c.asm.op(OpBinaryOperator)
	c.asm.u32(left)
	c.asm.u32(right)
	c.asm.code = append(c.asm.code, byte(op))
}

func (c *compiler) emitCall(callee uint32, args []uint32, pos Position) {
	c.mark(pos)
	c.asm.op(OpCallNative)
	c.asm.u32(callee)
	c.asm.u16(uint16(len(args)))
	for _, arg := range args {
		c.asm.u32(arg)
	}
}

// callIntrinsic calls a built-in helper and returns the slot holding its
// result.
func (c *compiler) callIntrinsic(name string, pos Position, args ...uint32) uint32 {
	c.emitCall(c.nativeSlot(name), args, pos)
	tmp := c.newTemp()
	c.emitPop(tmp)
	return tmp
}

// coerce converts the value in slot to t in place.
func (c *compiler) coerce(slot uint32, t Type, pos Position) {
	if t == nil || t.Kind() == KindAny {
		return
	}
	c.emitCall(c.nativeSlot("__coerce"), []uint32{slot, c.constSlot(NewTypeValue(t))}, pos)
	c.emitPop(slot)
}

// owner returns the innermost function scope enclosing id.
func (c *compiler) owner(id ScopeID) ScopeID {
	for scope := c.program.Scopes.Get(id); scope != nil; scope = c.program.Scopes.Get(scope.Parent) {
		if scope.Kind == ScopeFunction {
			return scope.ID
		}
	}
	return NoScope
}

// savedSlots lists the slots a function preserves across activations: its
// parameters, its locals, its temporaries and the frames of its scopes.
func (c *compiler) savedSlots(fs *funcState) []uint32 {
	saved := append([]uint32(nil), fs.temps...)
	for sym, slot := range c.symbols {
		if sym.Function == nil && c.owner(sym.Scope) == fs.fn.Scope {
			saved = append(saved, slot)
		}
	}
	for scope, slot := range c.frames {
		if c.owner(scope) == fs.fn.Scope {
			saved = append(saved, slot)
		}
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i] < saved[j] })
	return saved
}

// compileFunction lays out
//
//	entry:    GotoNoStackPush prologue
//	body:     ...; ret = null
//	epilogue: Pop saved...; GoBack
//	prologue: Push saved...; params = args; GotoNoStackPush body
//
// so the save set is complete when it is emitted.
func (c *compiler) compileFunction(fs *funcState) {
	c.cur, c.loops = fs, nil
	defer func() { c.cur, c.loops = nil, nil }()

	fn := fs.fn
	params := make([]uint32, len(fn.Params))
	for i, param := range fn.Params {
		params[i] = c.symbolSlot(param)
	}

	c.bind(fs.entry)
	c.jump(OpGotoNoStackPush, fs.prologue)
	c.bind(fs.body)
	c.compileBlock(fn.Body)
	c.emitAssign(fs.ret, c.constSlot(NewNull()))

	saved := c.savedSlots(fs)
	c.bind(fs.epilogue)
	for i := len(saved) - 1; i >= 0; i-- {
		c.emitPop(saved[i])
	}
	c.asm.op(OpGoBack)

	c.bind(fs.prologue)
	for _, slot := range saved {
		c.emitPush(slot)
	}
	for i, slot := range params {
		c.emitAssign(slot, fs.args[i])
		if !(fn.IsVariadic && i == len(params)-1) {
			c.coerce(slot, fn.ArgumentTypes[i], fn.Params[i].Pos)
		}
	}
	c.jump(OpGotoNoStackPush, fs.body)
}
