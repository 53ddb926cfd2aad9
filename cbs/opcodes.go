package cbs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Opcode is one VM instruction code. Operands follow the opcode byte in
// big-endian order: slots and code addresses take four bytes, operator tags
// one byte and argument counts two.
type Opcode uint8

const (
	// OpHalt stops the machine.
	OpHalt Opcode = iota
	// OpPush pushes slot onto the operand stack.
	OpPush
	// OpPop pops the operand stack into slot.
	OpPop
	// OpGoto pushes the address of the next instruction onto the goto
	// stack and jumps.
	OpGoto
	// OpGotoNoStackPush jumps without touching the goto stack.
	OpGotoNoStackPush
	// OpGotoIf pops a bool and jumps when it is true.
	OpGotoIf
	// OpGotoIfNot pops a bool and jumps when it is false.
	OpGotoIfNot
	// OpGoBack pops the goto stack and jumps there.
	OpGoBack
	// OpGotoAfterLoop pops the address a loop's OpGoto recorded and jumps
	// there.
	OpGotoAfterLoop
	// OpAssign copies slot src into slot dst.
	OpAssign
	// OpBinaryOperator applies the operator tag to slots l and r and
	// pushes the result. Unary operators ignore r.
	OpBinaryOperator
	// OpCallNative calls the value in slot fn with argc argument slots and
	// pushes the result.
	OpCallNative
	// OpDropGoto discards the top of the goto stack.
	OpDropGoto
)

type operandKind uint8

const (
	operandSlot operandKind = iota
	operandAddr
	operandTag
	operandArgs
)

type opcodeInfo struct {
	name     string
	operands []operandKind
}

var opcodeTable = map[Opcode]opcodeInfo{
	OpHalt:            {name: "Halt"},
	OpPush:            {name: "Push", operands: []operandKind{operandSlot}},
	OpPop:             {name: "Pop", operands: []operandKind{operandSlot}},
	OpGoto:            {name: "Goto", operands: []operandKind{operandAddr}},
	OpGotoNoStackPush: {name: "GotoNoStackPush", operands: []operandKind{operandAddr}},
	OpGotoIf:          {name: "GotoIf", operands: []operandKind{operandAddr}},
	OpGotoIfNot:       {name: "GotoIfNot", operands: []operandKind{operandAddr}},
	OpGoBack:          {name: "GoBack"},
	OpGotoAfterLoop:   {name: "GotoAfterLoop"},
	OpAssign:          {name: "Assign", operands: []operandKind{operandSlot, operandSlot}},
	OpBinaryOperator:  {name: "BinaryOperator", operands: []operandKind{operandSlot, operandSlot, operandTag}},
	OpCallNative:      {name: "CallNative", operands: []operandKind{operandSlot, operandArgs}},
	OpDropGoto:        {name: "DropGoto"},
}

func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// isJump reports whether the instruction's first operand is a jump target.
func (op Opcode) isJump() bool {
	switch op {
	case OpGoto, OpGotoNoStackPush, OpGotoIf, OpGotoIfNot:
		return true
	}
	return false
}

var (
	ErrInvalidOpcode         = errors.New("vm: invalid opcode")
	ErrTruncatedInstruction  = errors.New("vm: truncated instruction")
	ErrStackUnderflow        = errors.New("vm: stack underflow")
	ErrGotoStackUnderflow    = errors.New("vm: goto stack underflow")
	ErrGotoStackOverflow     = errors.New("vm: goto stack overflow")
	ErrDivisionByZero        = errors.New("vm: division by zero")
	ErrSlotOutOfRange        = errors.New("vm: slot out of range")
	ErrProgramCounterInvalid = errors.New("vm: program counter out of range")
	ErrHalted                = errors.New("vm: already halted")
)

// Instruction is one decoded instruction. For OpCallNative, Operands holds
// the callee slot followed by the argument slots.
type Instruction struct {
	PC       uint32
	Op       Opcode
	Operands []uint32
	Size     int
}

// DecodeInstruction reads the instruction at pc.
func DecodeInstruction(code []byte, pc uint32) (Instruction, error) {
	if int(pc) >= len(code) {
		return Instruction{}, ErrProgramCounterInvalid
	}
	op := Opcode(code[pc])
	info, ok := opcodeTable[op]
	if !ok {
		return Instruction{}, ErrInvalidOpcode
	}

	ins := Instruction{PC: pc, Op: op}
	off := int(pc) + 1
	need := func(n int) bool { return off+n <= len(code) }
	for _, kind := range info.operands {
		switch kind {
		case operandSlot, operandAddr:
			if !need(4) {
				return Instruction{}, ErrTruncatedInstruction
			}
			ins.Operands = append(ins.Operands, binary.BigEndian.Uint32(code[off:]))
			off += 4
		case operandTag:
			if !need(1) {
				return Instruction{}, ErrTruncatedInstruction
			}
			ins.Operands = append(ins.Operands, uint32(code[off]))
			off++
		case operandArgs:
			if !need(2) {
				return Instruction{}, ErrTruncatedInstruction
			}
			argc := int(binary.BigEndian.Uint16(code[off:]))
			off += 2
			if !need(4 * argc) {
				return Instruction{}, ErrTruncatedInstruction
			}
			for i := 0; i < argc; i++ {
				ins.Operands = append(ins.Operands, binary.BigEndian.Uint32(code[off:]))
				off += 4
			}
		}
	}
	ins.Size = off - int(pc)
	return ins, nil
}

// slotOperands lists the operands of ins that address slots.
func (ins Instruction) slotOperands() []uint32 {
	switch ins.Op {
	case OpPush, OpPop, OpAssign, OpCallNative:
		return ins.Operands
	case OpBinaryOperator:
		return ins.Operands[:2]
	}
	return nil
}

// Format renders ins; names, when given, label slot operands.
func (ins Instruction) Format(names []string) string {
	slot := func(s uint32) string {
		if int(s) < len(names) && names[s] != "" {
			return fmt.Sprintf("%d(%s)", s, names[s])
		}
		return fmt.Sprintf("%d", s)
	}

	var b strings.Builder
	b.WriteString(ins.Op.String())
	switch ins.Op {
	case OpPush, OpPop:
		fmt.Fprintf(&b, " %s", slot(ins.Operands[0]))
	case OpGoto, OpGotoNoStackPush, OpGotoIf, OpGotoIfNot:
		fmt.Fprintf(&b, " @%d", ins.Operands[0])
	case OpAssign:
		fmt.Fprintf(&b, " %s <- %s", slot(ins.Operands[0]), slot(ins.Operands[1]))
	case OpBinaryOperator:
		op := Operator(ins.Operands[2])
		if op.Unary() {
			fmt.Fprintf(&b, " %s %s", op, slot(ins.Operands[0]))
		} else {
			fmt.Fprintf(&b, " %s %s %s", slot(ins.Operands[0]), op, slot(ins.Operands[1]))
		}
	case OpCallNative:
		args := make([]string, 0, len(ins.Operands)-1)
		for _, a := range ins.Operands[1:] {
			args = append(args, slot(a))
		}
		fmt.Fprintf(&b, " %s(%s)", slot(ins.Operands[0]), strings.Join(args, ", "))
	}
	return b.String()
}

// assembler appends encoded instructions to a code buffer.
type assembler struct {
	code []byte
}

func (a *assembler) pc() uint32 { return uint32(len(a.code)) }

func (a *assembler) op(op Opcode) {
	a.code = append(a.code, byte(op))
}

func (a *assembler) u32(v uint32) {
	a.code = binary.BigEndian.AppendUint32(a.code, v)
}

func (a *assembler) u16(v uint16) {
	a.code = binary.BigEndian.AppendUint16(a.code, v)
}

func (a *assembler) patch32(at int, v uint32) {
	binary.BigEndian.PutUint32(a.code[at:], v)
}
