package asm

import (
	"errors"

	"github.com/Fuyukai/kl27/translate"
)

var f = translate.From

var (
	ErrOpcodeInvalid    = errors.New(f("opcode invalid"))
	ErrOpcodeExtraArgs  = errors.New(f("excessive arguments"))
	ErrOperandMissing   = errors.New(f("operand missing"))
	ErrOperandRange     = errors.New(f("operand out of range"))
	ErrRegisterInvalid  = errors.New(f("register invalid"))
	ErrEquateSyntax     = errors.New(f("#equ syntax"))
	ErrEquateDuplicate  = errors.New(f("#equ duplicated"))
	ErrDirectiveUnknown = errors.New(f("unknown directive"))
	ErrLabelDuplicate   = errors.New(f("label duplicated"))
	ErrLabelLimit       = errors.New(f("too many labels"))
	ErrStackSizeInvalid = errors.New(f("#stack out of range"))
)

// ErrEntryMissing indicates the entry point label was never defined.
type ErrEntryMissing string

func (ee ErrEntryMissing) Error() string {
	return f("entry point label %v missing", string(ee))
}

// ErrLabelMissing indicates a referenced label was never defined.
type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

// ErrSyntax wraps an assembly error with its source location.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}
