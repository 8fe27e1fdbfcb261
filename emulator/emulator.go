// Package emulator wires the K27 loader and the CPU core into the command
// surface a front-end drives: load, reset, step, run, halt, toggle, and the
// read-only views of the machine.
package emulator

import (
	"bytes"
	"log"
	"os"

	"github.com/Fuyukai/kl27/cpu"
	"github.com/Fuyukai/kl27/k27"
)

// Emulator owns the CPU and the retained K27 byte source. The image is
// re-parsed from the source on every reset.
type Emulator struct {
	Verbose bool // If set, enables verbose logging.

	Cpu   *cpu.Cpu   // The machine, nil until a program is loaded.
	Image *k27.Image // Header and image of the current program.

	path   string
	source []byte
}

// NewEmulator creates an emulator with no program loaded.
func NewEmulator() (emu *Emulator) {
	return &Emulator{}
}

// LoadFile loads a K27 container from a file. The path is retained so that
// Reset re-reads the file.
func (emu *Emulator) LoadFile(path string) (err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	err = emu.Load(data)
	if err != nil {
		return
	}

	emu.path = path
	return
}

// Load loads a K27 container from a byte slice, which is retained for
// resets.
func (emu *Emulator) Load(data []byte) (err error) {
	image := &k27.Image{}
	err = image.Unmarshal(bytes.NewReader(data))
	if err != nil {
		return
	}

	emu.path = ""
	emu.source = data
	emu.Image = image
	err = emu.install()
	return
}

// Reset re-parses the byte source, zeroes memory, reinstalls the image,
// clears the stack and diagnostics, and leaves the CPU halted at the entry
// point.
func (emu *Emulator) Reset() (err error) {
	if emu.source == nil {
		err = ErrNoProgram
		return
	}

	if emu.path != "" {
		emu.source, err = os.ReadFile(emu.path)
		if err != nil {
			return
		}
	}

	image := &k27.Image{}
	err = image.Unmarshal(bytes.NewReader(emu.source))
	if err != nil {
		return
	}

	emu.Image = image
	err = emu.install()
	return
}

// install places the parsed image into a clean machine. The 16 MiB memory
// region is allocated once and reused across resets.
func (emu *Emulator) install() (err error) {
	if emu.Cpu == nil {
		emu.Cpu, err = cpu.NewCpu(int(emu.Image.StackSize))
		if err != nil {
			return
		}
	} else {
		emu.Cpu.Reset()
		emu.Cpu.Stack.Limit = int(emu.Image.StackSize)
	}

	emu.Cpu.Verbose = emu.Verbose

	err = emu.Image.Install(emu.Cpu.Mmu)
	if err != nil {
		return
	}

	entry := cpu.MEM_PROGRAM_BASE + emu.Image.EntryPoint
	emu.Cpu.SetPC(entry)

	if emu.Verbose {
		log.Printf("emulator: entry point 0x%06X, stack %d", entry, emu.Image.StackSize)
	}

	return
}

// Step executes a single cycle in the debugging state.
func (emu *Emulator) Step() (err error) {
	if emu.Cpu == nil {
		err = ErrNoProgram
		return
	}

	emu.Cpu.SetDebugging()
	err = emu.Cpu.Step()
	return
}

// RunUntilIdle runs the program until it halts or errors.
func (emu *Emulator) RunUntilIdle() (err error) {
	if emu.Cpu == nil {
		err = ErrNoProgram
		return
	}

	// A debugging machine is halted first so that it can enter running.
	emu.Cpu.SetHalted()
	emu.Cpu.SetRunning()
	err = emu.Cpu.Run()
	return
}

// SetDebugging moves the machine into single-step mode.
func (emu *Emulator) SetDebugging() {
	if emu.Cpu != nil {
		emu.Cpu.SetDebugging()
	}
}

// Halt stops a running or debugging machine.
func (emu *Emulator) Halt() {
	if emu.Cpu != nil {
		emu.Cpu.SetHalted()
	}
}

// Toggle swaps the machine between halted and running.
func (emu *Emulator) Toggle() {
	if emu.Cpu != nil {
		emu.Cpu.Toggle()
	}
}
