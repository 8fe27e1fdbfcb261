package cpu

import (
	"encoding/binary"
)

// Memory map. The label table and program regions are populated by the K27
// image installer; everything above MEM_DATA_BASE is main memory.
const (
	MEM_LABEL_BASE   = 0x00100 // Label table (3840 bytes, up to 640 records)
	MEM_PROGRAM_BASE = 0x01000 // Program code
	MEM_DATA_BASE    = 0x40000 // Data / main memory
	MEM_SIZE         = 1 << 24 // Total byte-addressable memory

	LABEL_RECORD_SIZE = 6 // Packed {id: u16, offset: u32} record
	LABEL_LIMIT       = (MEM_PROGRAM_BASE - MEM_LABEL_BASE) / LABEL_RECORD_SIZE
)

// Mmu is a flat byte-addressable memory unit. All multi-byte accessors are
// big-endian. The backing array is allocated once and reused across resets.
type Mmu struct {
	data []byte
}

// NewMmu allocates the memory unit, initially zeroed.
func NewMmu() *Mmu {
	return &Mmu{data: make([]byte, MEM_SIZE)}
}

// Clear zeroes all of memory.
func (m *Mmu) Clear() {
	clear(m.data)
}

// check validates that [offset, offset+size) lies inside memory.
func (m *Mmu) check(offset uint32, size uint32) (err error) {
	if offset >= MEM_SIZE || size > MEM_SIZE-offset {
		err = ErrMemoryFault(offset)
	}
	return
}

func (m *Mmu) Read8(offset uint32) (value int8, err error) {
	err = m.check(offset, 1)
	if err != nil {
		return
	}
	value = int8(m.data[offset])
	return
}

func (m *Mmu) Read16(offset uint32) (value int16, err error) {
	err = m.check(offset, 2)
	if err != nil {
		return
	}
	value = int16(binary.BigEndian.Uint16(m.data[offset:]))
	return
}

func (m *Mmu) Read32(offset uint32) (value int32, err error) {
	err = m.check(offset, 4)
	if err != nil {
		return
	}
	value = int32(binary.BigEndian.Uint32(m.data[offset:]))
	return
}

func (m *Mmu) Write8(offset uint32, value int8) (err error) {
	err = m.check(offset, 1)
	if err != nil {
		return
	}
	m.data[offset] = uint8(value)
	return
}

func (m *Mmu) Write16(offset uint32, value int16) (err error) {
	err = m.check(offset, 2)
	if err != nil {
		return
	}
	binary.BigEndian.PutUint16(m.data[offset:], uint16(value))
	return
}

func (m *Mmu) Write32(offset uint32, value int32) (err error) {
	err = m.check(offset, 4)
	if err != nil {
		return
	}
	binary.BigEndian.PutUint32(m.data[offset:], uint32(value))
	return
}

// WriteBytes copies a block of bytes into memory, used by the image installer.
func (m *Mmu) WriteBytes(offset uint32, data []byte) (err error) {
	err = m.check(offset, uint32(len(data)))
	if err != nil {
		return
	}
	copy(m.data[offset:], data)
	return
}

// Fetch reads and decodes the 4-byte instruction at the given offset.
func (m *Mmu) Fetch(offset uint32) (inst Instruction, err error) {
	err = m.check(offset, 4)
	if err != nil {
		return
	}

	inst = Instruction{
		Address: offset,
		Opcode:  binary.BigEndian.Uint16(m.data[offset:]),
		Operand: binary.BigEndian.Uint16(m.data[offset+2:]),
	}
	return
}

// LabelOffset resolves a label id to its program offset. The label table is
// packed in id order, so the offset field of record id lives at a fixed
// address. Lookups past the written label count return whatever bytes reside
// there, zeros by initialisation.
func (m *Mmu) LabelOffset(id uint16) (offset uint32, err error) {
	record := LabelRecordAddress(id)
	value, err := m.Read32(record)
	if err != nil {
		return
	}
	offset = uint32(value)
	return
}

// LabelRecordAddress returns the address of the offset field of the label
// record for the given id.
func LabelRecordAddress(id uint16) uint32 {
	return MEM_LABEL_BASE + LABEL_RECORD_SIZE*uint32(id) + 2
}
