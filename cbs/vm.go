package cbs

import (
	"context"
	"errors"
	"fmt"
)

// ErrStepLimit stops a VM that exceeded its instruction budget.
var ErrStepLimit = errors.New("vm: step limit exceeded")

// Fault is a host-level VM failure: malformed bytecode, a stack underflow or
// a division by zero. Errors raised by natives and type mismatches are
// returned as *Error instead.
type Fault struct {
	PC  uint32
	Op  Opcode
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("vm fault at pc %d (%s): %v", f.PC, f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// hostReturn is the return address a host-initiated call leaves on the goto
// stack; reaching it hands control back to the caller of callScript.
const hostReturn = ^uint32(0)

const maxGotoDepth = 1 << 16

// VM executes one Bytecode image. It is not safe for concurrent use.
type VM struct {
	bc     *Bytecode
	slots  []Value
	stack  []Value
	gotos  []uint32
	pc     uint32
	halted bool

	steps uint64
	limit uint64
	ctx   context.Context
}

// NewVM prepares a machine with a fresh copy of the image's slots.
func NewVM(bc *Bytecode) *VM {
	slots := make([]Value, len(bc.Slots))
	for i, v := range bc.Slots {
		slots[i] = v.clone()
	}
	return &VM{
		bc:    bc,
		slots: slots,
		stack: make([]Value, 0, 16),
		gotos: make([]uint32, 0, 16),
	}
}

// SetStepLimit bounds the number of instructions executed; zero means no
// limit.
func (vm *VM) SetStepLimit(limit uint64) { vm.limit = limit }

// SetContext makes the machine stop with a Fault wrapping ctx.Err() once ctx
// is done. The context is polled every 1024 instructions.
func (vm *VM) SetContext(ctx context.Context) { vm.ctx = ctx }

func (vm *VM) PC() uint32          { return vm.pc }
func (vm *VM) Halted() bool        { return vm.halted }
func (vm *VM) StackDepth() int     { return len(vm.stack) }
func (vm *VM) GotoDepth() int      { return len(vm.gotos) }
func (vm *VM) Steps() uint64       { return vm.steps }
func (vm *VM) Slot(i int) Value    { return vm.slots[i] }
func (vm *VM) Bytecode() *Bytecode { return vm.bc }

// Global returns the current value of a top-level or host name.
func (vm *VM) Global(name string) (Value, bool) {
	slot, ok := vm.bc.Globals[name]
	if !ok {
		return Value{}, false
	}
	return vm.slots[slot], true
}

// Run executes until OpHalt or an error.
func (vm *VM) Run() error {
	for !vm.halted {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) fault(pc uint32, err error) *Fault {
	var op Opcode
	if int(pc) < len(vm.bc.Code) {
		op = Opcode(vm.bc.Code[pc])
	}
	return &Fault{PC: pc, Op: op, Err: err}
}

// scriptError attaches the source position of pc to a script error.
func (vm *VM) scriptError(pc uint32, err error) error {
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	if isSignal(err, DivideByZero) {
		return vm.fault(pc, ErrDivisionByZero)
	}
	return at(err, vm.bc.position(pc))
}

// Step executes one instruction.
func (vm *VM) Step() error {
	if vm.halted {
		return ErrHalted
	}
	pc := vm.pc
	ins, err := DecodeInstruction(vm.bc.Code, pc)
	if err != nil {
		return vm.fault(pc, err)
	}
	for _, slot := range ins.slotOperands() {
		if int(slot) >= len(vm.slots) {
			return vm.fault(pc, ErrSlotOutOfRange)
		}
	}
	if vm.limit > 0 && vm.steps >= vm.limit {
		return vm.fault(pc, ErrStepLimit)
	}
	if vm.ctx != nil && vm.steps&1023 == 0 {
		if err := vm.ctx.Err(); err != nil {
			return vm.fault(pc, err)
		}
	}
	vm.steps++
	vm.pc = pc + uint32(ins.Size)

	switch ins.Op {
	case OpHalt:
		vm.halted = true
	case OpPush:
		vm.stack = append(vm.stack, vm.slots[ins.Operands[0]])
	case OpPop:
		v, ok := vm.pop()
		if !ok {
			return vm.fault(pc, ErrStackUnderflow)
		}
		vm.slots[ins.Operands[0]] = v
	case OpGoto:
		if len(vm.gotos) >= maxGotoDepth {
			return vm.fault(pc, ErrGotoStackOverflow)
		}
		vm.gotos = append(vm.gotos, vm.pc)
		vm.pc = ins.Operands[0]
	case OpGotoNoStackPush:
		vm.pc = ins.Operands[0]
	case OpGotoIf, OpGotoIfNot:
		v, ok := vm.pop()
		if !ok {
			return vm.fault(pc, ErrStackUnderflow)
		}
		if v.Kind() != KindBool {
			return vm.scriptError(pc, newError(InvalidType, Position{}, "condition must be bool, got %s", v.Type().Name()))
		}
		if v.Bool() == (ins.Op == OpGotoIf) {
			vm.pc = ins.Operands[0]
		}
	case OpGoBack, OpGotoAfterLoop:
		addr, ok := vm.popGoto()
		if !ok {
			return vm.fault(pc, ErrGotoStackUnderflow)
		}
		vm.pc = addr
	case OpDropGoto:
		if _, ok := vm.popGoto(); !ok {
			return vm.fault(pc, ErrGotoStackUnderflow)
		}
	case OpAssign:
		vm.slots[ins.Operands[0]] = vm.slots[ins.Operands[1]]
	case OpBinaryOperator:
		left, right := vm.slots[ins.Operands[0]], vm.slots[ins.Operands[1]]
		v, err := Apply(Operator(ins.Operands[2]), left, right)
		if err != nil {
			return vm.scriptError(pc, err)
		}
		vm.stack = append(vm.stack, v)
	case OpCallNative:
		callee := vm.slots[ins.Operands[0]]
		args := make([]Value, len(ins.Operands)-1)
		for i, slot := range ins.Operands[1:] {
			args[i] = vm.slots[slot]
		}
		v, err := vm.call(callee, args, vm.bc.position(pc))
		if err != nil {
			return vm.scriptError(pc, err)
		}
		vm.stack = append(vm.stack, v)
	}
	return nil
}

func (vm *VM) pop() (Value, bool) {
	n := len(vm.stack)
	if n == 0 {
		return Value{}, false
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, true
}

func (vm *VM) popGoto() (uint32, bool) {
	n := len(vm.gotos)
	if n == 0 {
		return 0, false
	}
	addr := vm.gotos[n-1]
	vm.gotos = vm.gotos[:n-1]
	return addr, true
}

func (vm *VM) call(callee Value, args []Value, pos Position) (Value, error) {
	if fn := callee.Function(); fn != nil {
		return vm.callScript(fn, callee.Closure(), args)
	}
	return callValue(&CallContext{Pos: pos, invoker: vm}, callee, args)
}

// Invoke calls fn from host code, re-entering the machine for script
// functions. It implements Invoker.
func (vm *VM) Invoke(fn Value, args ...Value) (Value, error) {
	return vm.call(fn, args, Position{})
}

// callScript runs a compiled function to completion inside a nested
// dispatch loop. cl carries the variables of a closure; it is nil for plain
// function values.
func (vm *VM) callScript(fn *DeclaredFunction, cl *Closure, args []Value) (Value, error) {
	info, ok := vm.bc.function(fn)
	if !ok {
		return Value{}, newError(NotCallable, Position{}, "function %s does not belong to this script", fn.Name)
	}
	if !fn.acceptsArgs(len(args)) {
		return Value{}, newError(ArgumentCount, Position{}, "%s expects %s, got %d", fn.Name, describeArity(fn), len(args))
	}
	for i, slot := range info.Args {
		if info.Variadic && i == len(info.Args)-1 {
			rest, err := variadicArray(fn.ArgumentTypes[i], args[i:])
			if err != nil {
				return Value{}, err
			}
			vm.slots[slot] = rest
			break
		}
		vm.slots[slot] = args[i].withoutOrigin()
	}

	savedPC, halted := vm.pc, vm.halted
	stackLen, gotoLen := len(vm.stack), len(vm.gotos)
	restore := func() {
		vm.pc, vm.halted = savedPC, halted
		vm.stack = vm.stack[:min(stackLen, len(vm.stack))]
		vm.gotos = vm.gotos[:min(gotoLen, len(vm.gotos))]
	}

	release := vm.bindCaptures(info, cl)
	defer release()

	vm.gotos = append(vm.gotos, hostReturn)
	vm.pc, vm.halted = info.Entry, false
	for vm.pc != hostReturn {
		if err := vm.Step(); err != nil {
			restore()
			return Value{}, err
		}
	}
	restore()
	return vm.slots[info.Ret], nil
}

// bindCaptures makes the variables of cl visible in their slots for one
// call. A variable whose scope activation is still current is used in
// place. The others are swapped in from the closure, and the returned
// function writes them back to the closure and restores the slots.
func (vm *VM) bindCaptures(info FuncInfo, cl *Closure) func() {
	if cl == nil || len(cl.env) != len(info.Captures) || len(cl.env) == 0 {
		return func() {}
	}
	swapped := make([]bool, len(info.Captures))
	for i, capture := range info.Captures {
		swapped[i] = vm.slots[capture.Frame].Object() != cl.frames[i].Object()
	}
	values := make([]Value, len(info.Captures))
	frames := make([]Value, len(info.Captures))
	for i, capture := range info.Captures {
		if !swapped[i] {
			continue
		}
		values[i], frames[i] = vm.slots[capture.Slot], vm.slots[capture.Frame]
		vm.slots[capture.Slot], vm.slots[capture.Frame] = cl.env[i], cl.frames[i]
	}
	return func() {
		for i := len(info.Captures) - 1; i >= 0; i-- {
			if !swapped[i] {
				continue
			}
			capture := info.Captures[i]
			cl.env[i] = vm.slots[capture.Slot]
			vm.slots[capture.Slot], vm.slots[capture.Frame] = values[i], frames[i]
		}
	}
}
