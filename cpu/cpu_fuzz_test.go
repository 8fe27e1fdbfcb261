package cpu

import (
	"testing"
)

// FuzzCpuStep executes arbitrary instruction words. The CPU must never
// panic; every outcome is a normal state transition.
func FuzzCpuStep(f *testing.F) {
	f.Add(uint16(OP_NOP), uint16(0))
	f.Add(uint16(OP_SL), uint16(7))
	f.Add(uint16(OP_SPOP), uint16(0xFFFF))
	f.Add(uint16(OP_DIV), uint16(0))
	f.Add(uint16(OP_JMPL), uint16(640))
	f.Add(uint16(OP_RGW), uint16(10))
	f.Add(uint16(0xFE), uint16(0))
	f.Add(uint16(0xABCD), uint16(0xABCD))

	c, err := NewCpu(4)
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, opcode uint16, operand uint16) {
		c.Reset()

		inst := Instruction{Opcode: opcode, Operand: operand}
		enc := inst.Encode()
		if err := c.Mmu.WriteBytes(MEM_PROGRAM_BASE, enc[:]); err != nil {
			t.Fatal(err)
		}

		c.SetPC(MEM_PROGRAM_BASE)
		c.SetRunning()

		if err := c.Step(); err != nil {
			t.Fatalf("step surfaced %v", err)
		}

		if c.Stack.Size() > c.Stack.Limit {
			t.Fatalf("stack exceeded its limit: %d", c.Stack.Size())
		}
		if c.State() == STATE_ERRORED && c.LastError() == "" {
			t.Fatal("errored without a message")
		}
	})
}
