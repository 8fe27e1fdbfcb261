// Package asm implements the KLT assembler, which produces K27 container
// images for the KL27 virtual machine. Its only contract with the VM is the
// container format.
//
// The source language is line oriented: `//` comments, `name:` labels,
// `#equ`/`#stack` directives, and one mnemonic with at most one operand per
// line. Operands may be numbers in any strconv base form, equate names,
// register names, label names, or compile-time `$( ... )` expressions.
package asm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/Fuyukai/kl27/cpu"
	"github.com/Fuyukai/kl27/internal"
	"github.com/Fuyukai/kl27/k27"
)

// operandKind selects how the single operand of a mnemonic is parsed.
type operandKind int

const (
	operandNone      = operandKind(iota) // no operand
	operandValue                         // required 16-bit value
	operandCount                         // optional count, default 1
	operandStackable                     // optional value, 0 means take from stack
	operandRegister                      // register name
	operandLabel                         // label name, encoded as the label id
)

type opcodeSpec struct {
	code uint16
	kind operandKind
}

var opcodeMap = map[string]opcodeSpec{
	"nop":  {cpu.OP_NOP, operandNone},
	"hlt":  {cpu.OP_HLT, operandNone},
	"sl":   {cpu.OP_SL, operandValue},
	"spop": {cpu.OP_SPOP, operandCount},
	"llbl": {cpu.OP_LLBL, operandLabel},
	"rgw":  {cpu.OP_RGW, operandRegister},
	"rgr":  {cpu.OP_RGR, operandRegister},
	"jmpl": {cpu.OP_JMPL, operandLabel},
	"jmpr": {cpu.OP_JMPR, operandLabel},
	"ret":  {cpu.OP_RET, operandNone},
	"jmpa": {cpu.OP_JMPA, operandNone},
	"add":  {cpu.OP_ADD, operandStackable},
	"sub":  {cpu.OP_SUB, operandStackable},
	"mul":  {cpu.OP_MUL, operandStackable},
	"div":  {cpu.OP_DIV, operandStackable},
}

var registerMap = map[string]uint16{
	"r0":  0,
	"r1":  1,
	"r2":  2,
	"r3":  3,
	"r4":  4,
	"r5":  5,
	"r6":  6,
	"r7":  7,
	"mar": cpu.REG_MAR,
	"mvr": cpu.REG_MVR,
	"pc":  cpu.REG_PC,
}

// label tracks one label through assembly. Ids are assigned in first-seen
// order, which is also the table packing order.
type label struct {
	id      uint16
	offset  uint32
	defined bool
	lineNo  int
}

// Assembler is a single pass assembler for KLT source.
type Assembler struct {
	Verbose    bool   // If set, verbosely logs the assembler actions.
	EntryPoint string // Entry point label, "main" if empty.
	StackSize  uint8  // Header stack size, k27.STACK_SIZE_MIN if zero.

	Equate map[string]string // Map of equates.

	predefine map[string]string
	labels    map[string]*label
	order     []string
	body      []byte
}

// Predefine defines a new equate or redefines an existing equate before
// parsing begins.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// Parse assembles KLT source into a K27 image.
func (asm *Assembler) Parse(r io.Reader) (img *k27.Image, err error) {
	asm.Equate = map[string]string{}
	for key, value := range internal.IterSeq2Concat(cpu.Defines(), k27.Defines()) {
		asm.Equate[key] = value
	}
	for key, value := range asm.predefine {
		asm.Equate[key] = value
	}

	asm.labels = map[string]*label{}
	asm.order = nil
	asm.body = nil

	if asm.EntryPoint == "" {
		asm.EntryPoint = "main"
	}
	if asm.StackSize == 0 {
		asm.StackSize = k27.STACK_SIZE_MIN
	}

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		err = asm.parseLine(line, lineno)
		if err != nil {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
			return
		}
	}
	err = scanner.Err()
	if err != nil {
		return
	}

	err = asm.link()
	if err != nil {
		return
	}

	img = asm.image()
	return
}

// parseLine assembles one non-empty source line.
func (asm *Assembler) parseLine(line string, lineno int) (err error) {
	if strings.HasPrefix(line, "#") {
		return asm.directive(line)
	}

	if strings.HasSuffix(line, ":") {
		return asm.defineLabel(strings.TrimSuffix(line, ":"), lineno)
	}

	// Do $() evaluations
	re := regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})
	if err != nil {
		return
	}

	words := strings.Fields(line)
	spec, ok := opcodeMap[strings.ToLower(words[0])]
	if !ok {
		err = ErrOpcodeInvalid
		return
	}

	operand, err := asm.operandOf(spec.kind, words[1:], lineno)
	if err != nil {
		return
	}

	if asm.Verbose {
		log.Printf("asm: %04X: %v", len(asm.body), line)
	}

	var code [4]byte
	binary.BigEndian.PutUint16(code[0:], spec.code)
	binary.BigEndian.PutUint16(code[2:], operand)
	asm.body = append(asm.body, code[:]...)
	return
}

// directive handles a # line.
func (asm *Assembler) directive(line string) (err error) {
	words := strings.Fields(line)
	switch words[0] {
	case "#equ":
		if len(words) < 3 {
			err = ErrEquateSyntax
			return
		}
		name := words[1]
		_, exists := asm.Equate[name]
		if exists {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[name] = strings.Join(words[2:], " ")
	case "#stack":
		if len(words) != 2 {
			err = ErrStackSizeInvalid
			return
		}
		var value int32
		value, err = asm.valueOf(words[1])
		if err != nil {
			return
		}
		if value < k27.STACK_SIZE_MIN || value > 255 {
			err = ErrStackSizeInvalid
			return
		}
		asm.StackSize = uint8(value)
	default:
		err = ErrDirectiveUnknown
	}
	return
}

// defineLabel records the current body offset under a label name.
func (asm *Assembler) defineLabel(name string, lineno int) (err error) {
	at, err := asm.labelOf(name, lineno)
	if err != nil {
		return
	}
	if at.defined {
		err = ErrLabelDuplicate
		return
	}

	at.defined = true
	at.offset = uint32(len(asm.body))
	at.lineNo = lineno

	if asm.Verbose {
		log.Printf("asm: label %v = 0x%04X (id %d)", name, at.offset, at.id)
	}
	return
}

// labelOf returns the record for a label name, creating an undefined record
// with the next id on first reference.
func (asm *Assembler) labelOf(name string, lineno int) (at *label, err error) {
	at, ok := asm.labels[name]
	if ok {
		return
	}

	if len(asm.order) >= cpu.LABEL_LIMIT {
		err = ErrLabelLimit
		return
	}

	at = &label{id: uint16(len(asm.order)), lineNo: lineno}
	asm.labels[name] = at
	asm.order = append(asm.order, name)
	return
}

// operandOf parses the operand words for one mnemonic.
func (asm *Assembler) operandOf(kind operandKind, words []string, lineno int) (operand uint16, err error) {
	if len(words) > 1 {
		err = ErrOpcodeExtraArgs
		return
	}

	switch kind {
	case operandNone:
		if len(words) != 0 {
			err = ErrOpcodeExtraArgs
		}
	case operandValue:
		if len(words) == 0 {
			err = ErrOperandMissing
			return
		}
		operand, err = asm.wordOf(words[0])
	case operandCount:
		if len(words) == 0 {
			operand = 1
			return
		}
		operand, err = asm.wordOf(words[0])
	case operandStackable:
		// No operand means take the right-hand side from the stack.
		if len(words) == 0 {
			return
		}
		operand, err = asm.wordOf(words[0])
	case operandRegister:
		if len(words) == 0 {
			err = ErrOperandMissing
			return
		}
		reg, ok := registerMap[strings.ToLower(words[0])]
		if !ok {
			err = ErrRegisterInvalid
			return
		}
		operand = reg
	case operandLabel:
		if len(words) == 0 {
			err = ErrOperandMissing
			return
		}
		var at *label
		at, err = asm.labelOf(words[0], lineno)
		if err != nil {
			return
		}
		operand = at.id
	}

	return
}

// wordOf parses a value word into a 16-bit operand.
func (asm *Assembler) wordOf(word string) (operand uint16, err error) {
	value, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if value < -0x8000 || value > 0xFFFF {
		err = ErrOperandRange
		return
	}
	operand = uint16(value)
	return
}

// valueOf resolves equates and parses a number.
func (asm *Assembler) valueOf(word string) (value int32, err error) {
	for range 8 {
		next, ok := asm.Equate[word]
		if !ok {
			break
		}
		word = next
	}

	v64, err := strconv.ParseInt(word, 0, 33)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}
	value = int32(v64)
	return
}

// parenEval does compile-time $(...) evaluations.
func (asm *Assembler) parenEval(expr string) (value int32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value32 int32
		value32, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt(int(value32))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = ErrParseExpression(expr)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int32(st_int64)
	return
}

// link verifies that every referenced label was defined and the entry point
// exists.
func (asm *Assembler) link() (err error) {
	for _, name := range asm.order {
		at := asm.labels[name]
		if !at.defined {
			err = ErrSyntax{LineNo: at.lineNo, Line: name, Err: ErrLabelMissing(name)}
			return
		}
	}

	entry, ok := asm.labels[asm.EntryPoint]
	if !ok || !entry.defined {
		err = ErrEntryMissing(asm.EntryPoint)
	}
	return
}

// image packs the assembled body and label table into a K27 image.
func (asm *Assembler) image() (img *k27.Image) {
	labels := make([]k27.Label, 0, len(asm.order))
	for _, name := range asm.order {
		at := asm.labels[name]
		labels = append(labels, k27.Label{Id: at.id, Offset: at.offset})
	}

	img = &k27.Image{
		Version:     k27.VERSION,
		Compression: k27.COMPRESSION_NONE,
		EntryPoint:  asm.labels[asm.EntryPoint].offset,
		StackSize:   asm.StackSize,
	}
	img.SetLabels(labels)
	img.Body = asm.body
	img.SealChecksum()
	return
}
