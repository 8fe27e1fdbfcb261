package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegister_Width(t *testing.T) {
	assert := assert.New(t)

	for _, width := range []int{0, -1, 33, 100} {
		_, err := NewRegister(width)
		assert.ErrorIs(err, ErrConfig, width)
	}

	for _, width := range []int{1, 16, 32} {
		reg, err := NewRegister(width)
		assert.NoError(err, width)
		assert.Equal(width, reg.Width)
	}
}

func TestRegister_SignExtend(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		width int
		write int32
		read  int32
	}){
		{"round_trip", 16, 0x1234, 0x1234},
		{"negative", 16, -5, -5},
		{"sign_bit", 16, 0x8000, -0x8000},
		{"truncated_high", 16, 0x12345678, 0x5678},
		{"truncated_sign", 16, 0x0001FFFF, -1},
		{"one_bit_zero", 1, 0, 0},
		{"one_bit_set", 1, 1, -1},
		{"full_width", 32, -0x12345678, -0x12345678},
		{"full_width_max", 32, 0x7FFFFFFF, 0x7FFFFFFF},
	}

	for _, entry := range table {
		reg, err := NewRegister(entry.width)
		assert.NoError(err, entry.name)

		reg.Write(entry.write)
		assert.Equal(entry.read, reg.Read(), entry.name)
	}
}

func TestRegister_WriteVerbatim(t *testing.T) {
	assert := assert.New(t)

	// The full value is stored; widening the effective width recovers it.
	reg, err := NewRegister(16)
	assert.NoError(err)

	reg.Write(0x12345678)
	assert.Equal(int32(0x5678), reg.Read())

	reg.Width = 32
	assert.Equal(int32(0x12345678), reg.Read())
}
