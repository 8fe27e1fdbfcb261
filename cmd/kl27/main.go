package main

import (
	"bytes"
	"flag"
	"log"
	"os"

	"github.com/Fuyukai/kl27/asm"
	"github.com/Fuyukai/kl27/cpu"
	"github.com/Fuyukai/kl27/emulator"
)

// Exit codes.
const (
	EXIT_OK      = 0 // program halted normally
	EXIT_LOADER  = 1 // loader or assembler error
	EXIT_ERRORED = 2 // CPU entered the errored state
	EXIT_ARGS    = 3 // bad arguments
)

func main() {
	var compile string
	var output string
	var entry string
	var debug bool
	var verbose bool

	flag.StringVar(&compile, "c", "", ".klt file to assemble")
	flag.StringVar(&output, "o", "", ".k27 file to write the assembled container to")
	flag.StringVar(&entry, "e", "main", "Entry point label for the assembler")
	flag.BoolVar(&debug, "d", false, "Interactive step monitor")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() > 1 {
		log.Printf("%v: Unknown arguments: %v", os.Args[0], flag.Args()[1:])
		os.Exit(EXIT_ARGS)
	}
	if compile == "" && flag.NArg() == 0 {
		log.Printf("%v: nothing to do; pass a .k27 file or -c", os.Args[0])
		os.Exit(EXIT_ARGS)
	}

	var assembled []byte

	// Assemble a new container.
	if compile != "" {
		inf, err := os.Open(compile)
		if err != nil {
			log.Printf("%v: %v", compile, err)
			os.Exit(EXIT_LOADER)
		}

		as := &asm.Assembler{Verbose: verbose, EntryPoint: entry}
		img, err := as.Parse(inf)
		inf.Close()
		if err != nil {
			log.Printf("%v: %v", compile, err)
			os.Exit(EXIT_LOADER)
		}

		buf := &bytes.Buffer{}
		err = img.Marshal(buf)
		if err != nil {
			log.Printf("%v: %v", compile, err)
			os.Exit(EXIT_LOADER)
		}
		assembled = buf.Bytes()

		if output != "" {
			err = os.WriteFile(output, assembled, 0o644)
			if err != nil {
				log.Printf("%v: %v", output, err)
				os.Exit(EXIT_LOADER)
			}
		}
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose

	var err error
	switch {
	case flag.NArg() == 1:
		err = emu.LoadFile(flag.Arg(0))
	case assembled != nil && output == "":
		err = emu.Load(assembled)
	default:
		// Assemble-only invocation.
		os.Exit(EXIT_OK)
	}
	if err != nil {
		log.Printf("load: %v", err)
		os.Exit(EXIT_LOADER)
	}

	if debug {
		err = monitor(emu)
		if err != nil {
			log.Printf("monitor: %v", err)
		}
	} else {
		err = emu.RunUntilIdle()
		if err != nil {
			log.Printf("run: %v", err)
			os.Exit(EXIT_ERRORED)
		}
	}

	if emu.Cpu.State() == cpu.STATE_ERRORED {
		log.Printf("cpu: %v", emu.Cpu.LastError())
		os.Exit(EXIT_ERRORED)
	}

	os.Exit(EXIT_OK)
}
