package cpu

import (
	"errors"

	"github.com/Fuyukai/kl27/translate"
)

var f = translate.From

var (
	// Construction errors
	ErrConfig = errors.New(f("register width or stack size out of range"))

	// Runtime errors
	ErrStackOverflow  = errors.New(f("Stack overflow"))
	ErrStackUnderflow = errors.New(f("Stack underflow"))
	ErrProtected      = errors.New(f("write to protected register"))
	ErrDivideByZero   = errors.New(f("divide by zero"))
	ErrBadState       = errors.New(f("cpu is not running or debugging"))
)

// ErrMemoryFault is raised when any touched byte of an access lies outside
// the memory unit.
type ErrMemoryFault uint32

func (em ErrMemoryFault) Error() string {
	return f("memory fault at 0x%06X", uint32(em))
}

func (em ErrMemoryFault) Is(err error) (ok bool) {
	_, ok = err.(ErrMemoryFault)
	return
}

// ErrBadRegister is raised for a register index outside the register file.
type ErrBadRegister uint16

func (eb ErrBadRegister) Error() string {
	return f("bad register %d", uint16(eb))
}

func (eb ErrBadRegister) Is(err error) (ok bool) {
	_, ok = err.(ErrBadRegister)
	return
}

// ErrUnknownOpcode is raised for an opcode the dispatcher does not know,
// including any opcode with a non-zero high byte.
type ErrUnknownOpcode uint16

func (eu ErrUnknownOpcode) Error() string {
	return f("Unknown opcode 0x%02X", uint16(eu))
}

func (eu ErrUnknownOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrUnknownOpcode)
	return
}
