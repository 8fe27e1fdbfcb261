package k27

import (
	"errors"

	"github.com/Fuyukai/kl27/translate"
)

var f = translate.From

var (
	ErrBadMagic    = errors.New(f("bad magic"))
	ErrBadVersion  = errors.New(f("unknown version"))
	ErrUnsupported = errors.New(f("compressed body not supported"))
	ErrBadFile     = errors.New(f("malformed file"))
	ErrChecksum    = errors.New(f("body checksum mismatch"))
)
