package cpu

import (
	"fmt"
)

// Opcodes. The opcode field of an instruction is 16 bits wide, but the high
// byte is reserved and must be zero.
const (
	OP_NOP  = uint16(0x00) // no effect
	OP_HLT  = uint16(0x01) // halt the CPU
	OP_SL   = uint16(0x02) // push the operand as a literal
	OP_SPOP = uint16(0x03) // pop the top operand items
	OP_LLBL = uint16(0x04) // push the offset of a label

	OP_RGW = uint16(0x10) // pop into a register
	OP_RGR = uint16(0x11) // push a register value

	OP_JMPL = uint16(0x20) // jump to a label
	OP_JMPR = uint16(0x21) // jump to a label, saving the return address in r7
	OP_RET  = uint16(0x22) // jump to the address in r7
	OP_JMPA = uint16(0x23) // jump to the popped absolute address

	OP_ADD = uint16(0x30) // add operand (or popped value if zero)
	OP_SUB = uint16(0x31) // subtract
	OP_MUL = uint16(0x32) // multiply, wrapping on overflow
	OP_DIV = uint16(0x33) // integer divide

	// OP_ERROR is the instruction log sentinel for an errored cycle.
	OP_ERROR = uint16(0xFFFF)
)

var opcodeNames = map[uint16]string{
	OP_NOP:   "nop",
	OP_HLT:   "hlt",
	OP_SL:    "sl",
	OP_SPOP:  "spop",
	OP_LLBL:  "llbl",
	OP_RGW:   "rgw",
	OP_RGR:   "rgr",
	OP_JMPL:  "jmpl",
	OP_JMPR:  "jmpr",
	OP_RET:   "ret",
	OP_JMPA:  "jmpa",
	OP_ADD:   "add",
	OP_SUB:   "sub",
	OP_MUL:   "mul",
	OP_DIV:   "div",
	OP_ERROR: "err!",
}

// Instruction is a decoded 4-byte instruction. The opcode and operand are
// consecutive big-endian 16-bit words.
type Instruction struct {
	Address uint32
	Opcode  uint16
	Operand uint16
}

// Encode packs the instruction back into its 4-byte wire form.
func (inst Instruction) Encode() (out [4]byte) {
	out[0] = byte(inst.Opcode >> 8)
	out[1] = byte(inst.Opcode)
	out[2] = byte(inst.Operand >> 8)
	out[3] = byte(inst.Operand)
	return
}

// Mnemonic returns the assembly name of the opcode, or a raw hex form for
// opcodes outside the instruction set.
func (inst Instruction) Mnemonic() (name string) {
	name, ok := opcodeNames[inst.Opcode]
	if !ok {
		name = fmt.Sprintf("0x%04X", inst.Opcode)
	}
	return
}

// String returns the listing representation of this instruction.
func (inst Instruction) String() string {
	return fmt.Sprintf("%06X: %-4s 0x%04X", inst.Address, inst.Mnemonic(), inst.Operand)
}
