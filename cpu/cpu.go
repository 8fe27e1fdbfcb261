package cpu

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"strings"
)

// State is the CPU execution state. STATE_ERRORED is terminal until reset.
type State int

const (
	STATE_HALTED = State(iota)
	STATE_RUNNING
	STATE_DEBUGGING
	STATE_ERRORED
)

func (state State) String() (name string) {
	switch state {
	case STATE_HALTED:
		name = "halted"
	case STATE_RUNNING:
		name = "running"
	case STATE_DEBUGGING:
		name = "debugging"
	case STATE_ERRORED:
		name = "errored"
	default:
		name = fmt.Sprintf("State(%d)", int(state))
	}
	return
}

var _cpu_defines = map[string]string{
	"MEM_LABEL_BASE":   fmt.Sprintf("%#x", MEM_LABEL_BASE),
	"MEM_PROGRAM_BASE": fmt.Sprintf("%#x", MEM_PROGRAM_BASE),
	"MEM_DATA_BASE":    fmt.Sprintf("%#x", MEM_DATA_BASE),
	"LABEL_LIMIT":      fmt.Sprintf("%d", LABEL_LIMIT),
}

// Defines returns the machine constants, for assembler predefines.
func Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// registerSlot binds a register to its writability from the instruction
// stream. The PC is read-only; jumps modify it through the CPU itself.
type registerSlot struct {
	reg      *Register
	writable bool
}

// Cpu owns the memory unit, register file, stack, state and diagnostic
// rings. It is single-threaded and synchronous; Step is atomic from the
// caller's perspective.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Mmu   *Mmu  // Byte-addressable memory unit.
	Stack Stack // Bounded value stack.

	regs       [REGISTER_COUNT]registerSlot
	state      State
	cycleCount uint64
	lastError  string

	instructionLog Ring[Instruction]
	traceLog       Ring[TraceEvent]
}

// NewCpu creates a CPU with the given stack capacity. The 16 MiB memory
// region is allocated here and reused across resets.
func NewCpu(stackSize int) (cpu *Cpu, err error) {
	if stackSize < 1 {
		err = ErrConfig
		return
	}

	cpu = &Cpu{
		Mmu:            NewMmu(),
		Stack:          Stack{Limit: stackSize},
		instructionLog: Ring[Instruction]{Limit: INSTRUCTION_LOG_LIMIT},
		traceLog:       Ring[TraceEvent]{Limit: TRACE_LOG_LIMIT},
	}

	for n := range cpu.regs {
		width := GP_REGISTER_WIDTH
		if n >= REG_MAR {
			width = REGISTER_WIDTH_MAX
		}

		var reg *Register
		reg, err = NewRegister(width)
		if err != nil {
			cpu = nil
			return
		}

		cpu.regs[n] = registerSlot{reg: reg, writable: n != REG_PC}
	}

	return
}

// State returns the current execution state.
func (cpu *Cpu) State() State {
	return cpu.state
}

// CycleCount returns the number of cycles executed since the last reset.
func (cpu *Cpu) CycleCount() uint64 {
	return cpu.cycleCount
}

// LastError returns the message of the error that put the CPU into
// STATE_ERRORED, or the empty string.
func (cpu *Cpu) LastError() string {
	return cpu.lastError
}

// PC returns the current program counter.
func (cpu *Cpu) PC() uint32 {
	return uint32(cpu.regs[REG_PC].reg.Read())
}

// Mar returns the memory address register.
func (cpu *Cpu) Mar() int32 {
	return cpu.regs[REG_MAR].reg.Read()
}

// Mvr returns the memory value register.
func (cpu *Cpu) Mvr() int32 {
	return cpu.regs[REG_MVR].reg.Read()
}

// Registers returns a snapshot of the full register file, sign-extended to
// each register's effective width. Reading a snapshot appends no trace.
func (cpu *Cpu) Registers() (out [REGISTER_COUNT]int32) {
	for n, slot := range cpu.regs {
		out[n] = slot.reg.Read()
	}
	return
}

// StackValues returns a snapshot of the stack, bottom first.
func (cpu *Cpu) StackValues() (out []int32) {
	out = make([]int32, len(cpu.Stack.Data))
	copy(out, cpu.Stack.Data)
	return
}

// Instructions returns a snapshot of the recent instruction ring.
func (cpu *Cpu) Instructions() []Instruction {
	return cpu.instructionLog.Snapshot()
}

// Trace returns a snapshot of the recent side-effect ring.
func (cpu *Cpu) Trace() []TraceEvent {
	return cpu.traceLog.Snapshot()
}

// SetPC places the program counter. This is the loader/front-end hook; it is
// not a register file write and appends no trace.
func (cpu *Cpu) SetPC(addr uint32) {
	cpu.regs[REG_PC].reg.Write(int32(addr))
}

// SetRunning moves a halted CPU to running. No-op once errored.
func (cpu *Cpu) SetRunning() {
	if cpu.state == STATE_HALTED {
		cpu.state = STATE_RUNNING
	}
}

// SetHalted moves a running or debugging CPU to halted. No-op once errored.
func (cpu *Cpu) SetHalted() {
	if cpu.state == STATE_RUNNING || cpu.state == STATE_DEBUGGING {
		cpu.state = STATE_HALTED
	}
}

// SetDebugging moves a halted or running CPU to debugging. No-op once errored.
func (cpu *Cpu) SetDebugging() {
	if cpu.state == STATE_HALTED || cpu.state == STATE_RUNNING {
		cpu.state = STATE_DEBUGGING
	}
}

// Toggle swaps between halted and running. Debugging counts as non-halted.
// No-op once errored.
func (cpu *Cpu) Toggle() {
	switch cpu.state {
	case STATE_HALTED:
		cpu.state = STATE_RUNNING
	case STATE_RUNNING, STATE_DEBUGGING:
		cpu.state = STATE_HALTED
	}
}

// Reset clears the registers, stack, diagnostics, counters and memory, and
// returns the CPU to halted. The caller reinstalls the program image and
// places the PC afterwards.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	for _, slot := range cpu.regs {
		slot.reg.Write(0)
	}
	cpu.Stack.Reset()
	cpu.Mmu.Clear()
	cpu.instructionLog.Clear()
	cpu.traceLog.Clear()
	cpu.cycleCount = 0
	cpu.lastError = ""
	cpu.state = STATE_HALTED
}

// Step executes a single fetch-execute cycle. It fails with ErrBadState
// unless the CPU is running or debugging; every runtime fault instead moves
// the CPU to STATE_ERRORED and Step returns nil.
func (cpu *Cpu) Step() (err error) {
	if cpu.state != STATE_RUNNING && cpu.state != STATE_DEBUGGING {
		err = ErrBadState
		return
	}

	cpu.cycleCount++

	pc := cpu.PC()
	inst, err := cpu.Mmu.Fetch(pc)
	if err != nil {
		cpu.fail(err)
		err = nil
		return
	}

	// The PC advances before dispatch; jumps overwrite it.
	cpu.SetPC(pc + 4)
	cpu.instructionLog.Push(inst)

	if cpu.Verbose {
		log.Printf("cpu: %v", inst)
	}

	err = cpu.execute(inst, pc)
	if err != nil {
		cpu.fail(err)
		err = nil
	}

	return
}

// Run repeatedly steps until the state leaves running.
func (cpu *Cpu) Run() (err error) {
	for cpu.state == STATE_RUNNING {
		err = cpu.Step()
		if err != nil {
			return
		}
	}
	return
}

// fail moves the CPU to the terminal errored state, records the message and
// appends the sentinel row to the instruction log.
func (cpu *Cpu) fail(cause error) {
	cpu.state = STATE_ERRORED
	cpu.lastError = cause.Error()
	cpu.instructionLog.Push(Instruction{Address: cpu.PC(), Opcode: OP_ERROR})

	if cpu.Verbose {
		log.Printf("cpu: error: %v", cpu.lastError)
	}
}

// jumpTarget clamps a jump address into the program region: anything below
// MEM_PROGRAM_BASE is a body-relative offset.
func jumpTarget(addr uint32) uint32 {
	if addr < MEM_PROGRAM_BASE {
		return addr + MEM_PROGRAM_BASE
	}
	return addr
}

// execute dispatches a single decoded instruction. A returned error aborts
// the cycle; Step translates it into the errored state.
func (cpu *Cpu) execute(inst Instruction, from uint32) (err error) {
	op := inst.Opcode
	if op&0xFF00 != 0 {
		// The high opcode byte is reserved.
		cpu.fail(ErrUnknownOpcode(op))
		return
	}

	switch op {
	case OP_NOP:
		// pass
	case OP_HLT:
		cpu.SetHalted()
	case OP_SL:
		err = cpu.push(int32(inst.Operand))
	case OP_SPOP:
		count := int(inst.Operand)
		for range count {
			_, ok := cpu.Stack.Pop()
			if !ok {
				err = ErrStackUnderflow
				return
			}
		}
		cpu.trace(TracePop{Count: count})
	case OP_LLBL:
		var offset uint32
		offset, err = cpu.labelOffset(inst.Operand)
		if err != nil {
			return
		}
		err = cpu.push(int32(offset))
	case OP_RGW:
		var value int32
		value, err = cpu.pop()
		if err != nil {
			return
		}
		err = cpu.writeReg(inst.Operand, value)
	case OP_RGR:
		var value int32
		value, err = cpu.readReg(inst.Operand)
		if err != nil {
			return
		}
		err = cpu.push(value)
	case OP_JMPL:
		var offset uint32
		offset, err = cpu.labelOffset(inst.Operand)
		if err != nil {
			return
		}
		cpu.jump(from, jumpTarget(offset))
	case OP_JMPR:
		err = cpu.writeReg(REG_R7, int32(cpu.PC()))
		if err != nil {
			return
		}
		var offset uint32
		offset, err = cpu.labelOffset(inst.Operand)
		if err != nil {
			return
		}
		cpu.jump(from, jumpTarget(offset))
	case OP_RET:
		var value int32
		value, err = cpu.readReg(REG_R7)
		if err != nil {
			return
		}
		cpu.jump(from, jumpTarget(uint32(value)))
	case OP_JMPA:
		var value int32
		value, err = cpu.pop()
		if err != nil {
			return
		}
		cpu.jump(from, jumpTarget(uint32(value)))
	case OP_ADD, OP_SUB, OP_MUL, OP_DIV:
		err = cpu.arith(op, inst.Operand)
	default:
		// Unknown opcodes leave the CPU errored without aborting the cycle.
		cpu.fail(ErrUnknownOpcode(op))
	}

	return
}

// arith executes an arithmetic opcode. A zero operand takes the right-hand
// side from the stack; otherwise the operand is sign-extended from 16 bits.
func (cpu *Cpu) arith(op uint16, operand uint16) (err error) {
	if op == OP_DIV {
		return cpu.divide(operand)
	}

	var rhs int32
	if operand == 0 {
		rhs, err = cpu.pop()
		if err != nil {
			return
		}
	} else {
		rhs = int32(int16(operand))
	}

	lhs, err := cpu.pop()
	if err != nil {
		return
	}

	var out int32
	switch op {
	case OP_ADD:
		out = lhs + rhs
	case OP_SUB:
		out = lhs - rhs
	case OP_MUL:
		out = lhs * rhs
	}

	err = cpu.push(out)
	return
}

// divide pops the dividend first; a zero operand then pops the divisor.
func (cpu *Cpu) divide(operand uint16) (err error) {
	lhs, err := cpu.pop()
	if err != nil {
		return
	}

	var rhs int32
	if operand == 0 {
		rhs, err = cpu.pop()
		if err != nil {
			return
		}
	} else {
		rhs = int32(int16(operand))
	}

	if rhs == 0 {
		err = ErrDivideByZero
		return
	}

	err = cpu.push(lhs / rhs)
	return
}

// jump places the PC on the resolved target and records the trace event.
func (cpu *Cpu) jump(from uint32, to uint32) {
	cpu.trace(TraceJump{From: from, To: to})
	cpu.SetPC(to)
}

func (cpu *Cpu) push(value int32) (err error) {
	if cpu.Stack.Full() {
		err = ErrStackOverflow
		return
	}

	cpu.Stack.Push(value)
	cpu.trace(TracePush{Value: value})
	return
}

func (cpu *Cpu) pop() (value int32, err error) {
	value, ok := cpu.Stack.Pop()
	if !ok {
		err = ErrStackUnderflow
		return
	}

	cpu.trace(TracePop{Count: 1})
	return
}

// labelOffset resolves a label id through the table in memory.
func (cpu *Cpu) labelOffset(id uint16) (offset uint32, err error) {
	offset, err = cpu.Mmu.LabelOffset(id)
	if err != nil {
		return
	}

	cpu.trace(TraceMemRead{Addr: LabelRecordAddress(id)})
	return
}

// readReg reads a register from the instruction stream. Valid for all
// register indexes, the PC included.
func (cpu *Cpu) readReg(index uint16) (value int32, err error) {
	if index >= REGISTER_COUNT {
		err = ErrBadRegister(index)
		return
	}

	value = cpu.regs[index].reg.Read()
	cpu.trace(TraceRegRead{Index: int(index)})
	return
}

// writeReg writes a register from the instruction stream. The PC is
// protected; jumps are the only way to modify it.
func (cpu *Cpu) writeReg(index uint16, value int32) (err error) {
	if index >= REGISTER_COUNT {
		err = ErrBadRegister(index)
		return
	}
	if !cpu.regs[index].writable {
		err = ErrProtected
		return
	}

	cpu.regs[index].reg.Write(value)
	cpu.trace(TraceRegWrite{Index: int(index), Value: value})
	return
}

func (cpu *Cpu) trace(event TraceEvent) {
	cpu.traceLog.Push(event)

	if cpu.Verbose {
		log.Printf("cpu: trace: %v", event)
	}
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text = fmt.Sprintf("% 6s: 0x%06X\n", "pc", cpu.PC())
	for n := REG_R0; n <= REG_R7; n++ {
		value := cpu.regs[n].reg.Read()
		text += fmt.Sprintf("% 6s: 0x%04X (%d)\n", registerName(n), uint16(value), value)
	}
	text += fmt.Sprintf("% 6s: 0x%08X\n", "mar", uint32(cpu.Mar()))
	text += fmt.Sprintf("% 6s: 0x%08X\n", "mvr", uint32(cpu.Mvr()))

	var cells []string
	for _, value := range cpu.Stack.Data {
		cells = append(cells, fmt.Sprintf("%d", value))
	}
	text += fmt.Sprintf("% 6s: [%v]\n", "stack", strings.Join(cells, " "))
	text += fmt.Sprintf("% 6s: %v\n", "state", cpu.state)
	text += fmt.Sprintf("% 6s: %d\n", "cycle", cpu.cycleCount)
	if cpu.lastError != "" {
		text += fmt.Sprintf("% 6s: %v\n", "error", cpu.lastError)
	}

	return
}
