package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMmu_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	m := NewMmu()

	assert.NoError(m.Write8(MEM_DATA_BASE, -5))
	v8, err := m.Read8(MEM_DATA_BASE)
	assert.NoError(err)
	assert.Equal(int8(-5), v8)

	assert.NoError(m.Write16(MEM_DATA_BASE+0x10, -12345))
	v16, err := m.Read16(MEM_DATA_BASE + 0x10)
	assert.NoError(err)
	assert.Equal(int16(-12345), v16)

	assert.NoError(m.Write32(MEM_DATA_BASE+0x20, -123456789))
	v32, err := m.Read32(MEM_DATA_BASE + 0x20)
	assert.NoError(err)
	assert.Equal(int32(-123456789), v32)
}

func TestMmu_BigEndian(t *testing.T) {
	assert := assert.New(t)

	m := NewMmu()
	assert.NoError(m.Write32(MEM_DATA_BASE, 0x01020304))

	b0, _ := m.Read8(MEM_DATA_BASE)
	b1, _ := m.Read8(MEM_DATA_BASE + 1)
	b2, _ := m.Read8(MEM_DATA_BASE + 2)
	b3, _ := m.Read8(MEM_DATA_BASE + 3)
	assert.Equal([]int8{1, 2, 3, 4}, []int8{b0, b1, b2, b3})

	hi, _ := m.Read16(MEM_DATA_BASE)
	lo, _ := m.Read16(MEM_DATA_BASE + 2)
	assert.Equal(int16(0x0102), hi)
	assert.Equal(int16(0x0304), lo)
}

func TestMmu_Bounds(t *testing.T) {
	assert := assert.New(t)

	m := NewMmu()

	// The last byte is addressable; anything past it faults.
	assert.NoError(m.Write8(MEM_SIZE-1, 1))
	assert.ErrorIs(m.Write8(MEM_SIZE, 1), ErrMemoryFault(MEM_SIZE))

	_, err := m.Read32(MEM_SIZE - 3)
	assert.ErrorIs(err, ErrMemoryFault(0))
	assert.NoError(m.Write32(MEM_SIZE-4, 42))

	_, err = m.Read16(0xFFFFFFFF)
	assert.ErrorIs(err, ErrMemoryFault(0))

	err = m.WriteBytes(MEM_SIZE-2, []byte{1, 2, 3})
	assert.ErrorIs(err, ErrMemoryFault(0))
}

func TestMmu_Fetch(t *testing.T) {
	assert := assert.New(t)

	m := NewMmu()
	assert.NoError(m.WriteBytes(MEM_PROGRAM_BASE, []byte{0x00, 0x02, 0x00, 0x07}))

	inst, err := m.Fetch(MEM_PROGRAM_BASE)
	assert.NoError(err)
	assert.Equal(Instruction{Address: MEM_PROGRAM_BASE, Opcode: OP_SL, Operand: 7}, inst)

	_, err = m.Fetch(MEM_SIZE - 2)
	assert.ErrorIs(err, ErrMemoryFault(0))
}

func TestMmu_LabelOffset(t *testing.T) {
	assert := assert.New(t)

	m := NewMmu()

	// Record for id 3 lives at 0x100 + 6*3; the offset field is 2 in.
	assert.NoError(m.Write16(MEM_LABEL_BASE+6*3, 3))
	assert.NoError(m.Write32(MEM_LABEL_BASE+6*3+2, 0x20))

	offset, err := m.LabelOffset(3)
	assert.NoError(err)
	assert.Equal(uint32(0x20), offset)

	// Unwritten labels resolve to the zeroed bytes behind them.
	offset, err = m.LabelOffset(100)
	assert.NoError(err)
	assert.Equal(uint32(0), offset)
}

func TestMmu_Clear(t *testing.T) {
	assert := assert.New(t)

	m := NewMmu()
	assert.NoError(m.Write32(MEM_DATA_BASE, 99))
	m.Clear()

	v, err := m.Read32(MEM_DATA_BASE)
	assert.NoError(err)
	assert.Equal(int32(0), v)
}
