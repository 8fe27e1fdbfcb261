package emulator

import (
	"errors"

	"github.com/Fuyukai/kl27/translate"
)

var f = translate.From

var (
	ErrNoProgram = errors.New(f("no program loaded"))
)
