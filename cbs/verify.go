package cbs

import "fmt"

// VerifyError describes one problem found in a bytecode image.
type VerifyError struct {
	Offset  uint32
	Message string
}

func (e VerifyError) Error() string {
	return fmt.Sprintf("verify error at offset %d: %s", e.Offset, e.Message)
}

// Verify checks that bc can be executed safely:
//  1. every instruction decodes and is complete
//  2. slot operands address existing slots
//  3. operator tags name a known operator
//  4. jump targets and function entries start an instruction
//  5. the code ends with Halt
func Verify(bc *Bytecode) []VerifyError {
	var errs []VerifyError
	boundaries := make(map[uint32]bool)
	var jumps []Instruction
	last := Opcode(0xff)

	for pc := 0; pc < len(bc.Code); {
		ins, err := DecodeInstruction(bc.Code, uint32(pc))
		if err != nil {
			errs = append(errs, VerifyError{Offset: uint32(pc), Message: err.Error()})
			last = Opcode(0xff)
			break
		}
		boundaries[ins.PC] = true

		for _, slot := range ins.slotOperands() {
			if int(slot) >= len(bc.Slots) {
				errs = append(errs, VerifyError{
					Offset:  ins.PC,
					Message: fmt.Sprintf("slot %d out of range (%d slots)", slot, len(bc.Slots)),
				})
			}
		}
		if ins.Op == OpBinaryOperator {
			if _, ok := operatorSymbols[Operator(ins.Operands[2])]; !ok {
				errs = append(errs, VerifyError{Offset: ins.PC, Message: fmt.Sprintf("unknown operator tag %d", ins.Operands[2])})
			}
		}
		if ins.Op.isJump() {
			jumps = append(jumps, ins)
		}
		last = ins.Op
		pc += ins.Size
	}

	for _, ins := range jumps {
		if !boundaries[ins.Operands[0]] {
			errs = append(errs, VerifyError{
				Offset:  ins.PC,
				Message: fmt.Sprintf("jump target %d is not an instruction boundary", ins.Operands[0]),
			})
		}
	}
	for _, fn := range bc.Functions {
		if !boundaries[fn.Entry] {
			errs = append(errs, VerifyError{
				Offset:  fn.Entry,
				Message: fmt.Sprintf("entry of %s is not an instruction boundary", fn.Name),
			})
		}
		for _, slot := range append(append([]uint32(nil), fn.Args...), fn.Ret) {
			if int(slot) >= len(bc.Slots) {
				errs = append(errs, VerifyError{
					Offset:  fn.Entry,
					Message: fmt.Sprintf("%s: transfer slot %d out of range", fn.Name, slot),
				})
			}
		}
		for _, capture := range fn.Captures {
			if int(capture.Slot) >= len(bc.Slots) || int(capture.Frame) >= len(bc.Slots) {
				errs = append(errs, VerifyError{
					Offset:  fn.Entry,
					Message: fmt.Sprintf("%s: capture slot %d out of range", fn.Name, capture.Slot),
				})
			}
		}
	}

	if last != OpHalt {
		errs = append(errs, VerifyError{Offset: uint32(len(bc.Code)), Message: "code does not end with Halt"})
	}
	return errs
}
