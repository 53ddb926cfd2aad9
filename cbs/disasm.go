package cbs

import (
	"fmt"
	"strings"
)

// Instructions decodes the whole image.
func (bc *Bytecode) Instructions() ([]Instruction, error) {
	var out []Instruction
	for pc := 0; pc < len(bc.Code); {
		ins, err := DecodeInstruction(bc.Code, uint32(pc))
		if err != nil {
			return out, fmt.Errorf("decode at %d: %w", pc, err)
		}
		out = append(out, ins)
		pc += ins.Size
	}
	return out, nil
}

// FunctionAt returns the name of the function whose entry is pc.
func (bc *Bytecode) FunctionAt(pc uint32) (string, bool) {
	for _, fn := range bc.Functions {
		if fn.Entry == pc {
			return fn.Name, true
		}
	}
	return "", false
}

// Disassemble renders bc as text, one instruction per line.
func Disassemble(bc *Bytecode) (string, error) {
	instructions, err := bc.Instructions()
	var b strings.Builder
	for _, ins := range instructions {
		if name, ok := bc.FunctionAt(ins.PC); ok {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		fmt.Fprintf(&b, "  %06d  %s\n", ins.PC, ins.Format(bc.SlotNames))
	}
	return b.String(), err
}
