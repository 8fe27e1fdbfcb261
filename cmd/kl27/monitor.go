package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Fuyukai/kl27/cpu"
	"github.com/Fuyukai/kl27/emulator"
)

// monitor drives the emulator one key at a time from a raw-mode terminal.
// Keys: space/s step, r run until idle, t toggle, i instruction log,
// e trace log, x reset, q quit.
func monitor(emu *emulator.Emulator) (err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		err = fmt.Errorf("stdin is not a terminal")
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return
	}
	defer term.Restore(fd, oldState)

	show(emu)
	for {
		var key [1]byte
		_, err = os.Stdin.Read(key[:])
		if err != nil {
			return
		}

		switch key[0] {
		case 's', ' ':
			stepErr := emu.Step()
			if stepErr != nil {
				display("step: %v", stepErr)
			}
			show(emu)
		case 'r':
			runErr := emu.RunUntilIdle()
			if runErr != nil {
				display("run: %v", runErr)
			}
			show(emu)
		case 't':
			emu.Toggle()
			show(emu)
		case 'i':
			for _, inst := range emu.Cpu.Instructions() {
				display("%v", inst)
			}
		case 'e':
			for _, event := range emu.Cpu.Trace() {
				display("%v", event)
			}
		case 'x':
			resetErr := emu.Reset()
			if resetErr != nil {
				display("reset: %v", resetErr)
			}
			show(emu)
		case 'q', 3, 4: // q, ^C, ^D
			return
		}
	}
}

// display prints a line, keeping the raw-mode cursor at the left margin.
func display(format string, args ...any) {
	fmt.Printf(format+"\r\n", args...)
}

// show dumps the CPU state.
func show(emu *emulator.Emulator) {
	for line := range strings.SplitSeq(strings.TrimSuffix(emu.Cpu.String(), "\n"), "\n") {
		display("%v", line)
	}
	if emu.Cpu.State() == cpu.STATE_ERRORED {
		display("(errored; x resets)")
	}
	display("[s]tep [r]un [t]oggle [i]nsts [e]vents [x]reset [q]uit")
}
