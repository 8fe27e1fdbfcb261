// Package k27 implements the K27 binary container consumed by the KL27
// virtual machine: the header, the packed label table and the instruction
// body. Unmarshal parses a byte stream into an Image; Install places the
// image into a memory unit; Marshal emits the canonical container, used by
// the assembler and by tests.
package k27

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"iter"
	"maps"

	"github.com/Fuyukai/kl27/cpu"
)

const (
	MAGIC   = "KL27" // ASCII file magic
	VERSION = 1      // The only understood container version

	COMPRESSION_NONE = 0 // Raw body
	COMPRESSION_LZMA = 1 // Parsed but rejected at load time

	STACK_SIZE_MIN = 4 // Smallest permitted stack capacity

	// The header is a fixed 22-byte prefix: magic, version, compression,
	// entry point, stack size, checksum, 5 reserved bytes, label count.
	HEADER_SIZE = 0x16

	// LABEL_UNIT is the on-disk size unit of the label table payload: the
	// header count field is expressed in 4-byte units.
	LABEL_UNIT = 4

	// TERMINATOR_SIZE is the padding skipped between the label table
	// payload and the instruction body.
	TERMINATOR_SIZE = 5
)

var _k27_defines = map[string]string{
	"K27_VERSION":   fmt.Sprintf("%d", VERSION),
	"K27_STACK_MIN": fmt.Sprintf("%d", STACK_SIZE_MIN),
}

// Defines returns the container constants, for assembler predefines.
func Defines() iter.Seq2[string, string] {
	return maps.All(_k27_defines)
}

// Label is one decoded label table record.
type Label struct {
	Id     uint16
	Offset uint32
}

// Image is a parsed K27 container. Labels holds the raw table payload
// exactly as it is installed at cpu.MEM_LABEL_BASE.
type Image struct {
	Version     uint8
	Compression uint8
	EntryPoint  uint32
	StackSize   uint8
	Checksum    [4]byte

	LabelCount uint16 // Payload length in LABEL_UNIT units, as stored on disk.
	Labels     []byte
	Body       []byte
}

// Unmarshal parses a K27 byte stream, replacing the image contents. The
// stream is consumed to its end.
func (img *Image) Unmarshal(r io.Reader) (err error) {
	// The magic is checked before the rest of the header so that a stream
	// in some other format is rejected as such, not as a short file.
	var header [HEADER_SIZE]byte
	_, err = io.ReadFull(r, header[0:4])
	if err != nil {
		err = errors.Join(ErrBadFile, err)
		return
	}
	if string(header[0:4]) != MAGIC {
		err = ErrBadMagic
		return
	}

	_, err = io.ReadFull(r, header[4:])
	if err != nil {
		err = errors.Join(ErrBadFile, err)
		return
	}

	img.Version = header[0x04]
	if img.Version != VERSION {
		err = ErrBadVersion
		return
	}

	img.Compression = header[0x05]
	switch img.Compression {
	case COMPRESSION_NONE:
		// pass
	case COMPRESSION_LZMA:
		err = ErrUnsupported
		return
	default:
		err = ErrBadFile
		return
	}

	img.EntryPoint = binary.BigEndian.Uint32(header[0x06:])
	img.StackSize = header[0x0A]
	if img.StackSize < STACK_SIZE_MIN {
		err = ErrBadFile
		return
	}
	copy(img.Checksum[:], header[0x0B:0x0F])

	img.LabelCount = binary.BigEndian.Uint16(header[0x14:])
	if img.LabelCount > cpu.LABEL_LIMIT {
		err = ErrBadFile
		return
	}

	img.Labels = make([]byte, int(img.LabelCount)*LABEL_UNIT)
	_, err = io.ReadFull(r, img.Labels)
	if err != nil {
		err = errors.Join(ErrBadFile, err)
		return
	}

	var terminator [TERMINATOR_SIZE]byte
	_, err = io.ReadFull(r, terminator[:])
	if err != nil {
		err = errors.Join(ErrBadFile, err)
		return
	}

	img.Body, err = io.ReadAll(r)
	if err != nil {
		err = errors.Join(ErrBadFile, err)
		return
	}

	if img.Checksum != [4]byte{} {
		sum := crc32.ChecksumIEEE(img.Body)
		if sum != binary.BigEndian.Uint32(img.Checksum[:]) {
			err = ErrChecksum
			return
		}
	}

	return
}

// Marshal emits the image as a canonical K27 container. The header fields
// are written verbatim; use SealChecksum first to stamp the body CRC.
func (img *Image) Marshal(w io.Writer) (err error) {
	var header [HEADER_SIZE]byte
	copy(header[0:4], MAGIC)
	header[0x04] = img.Version
	header[0x05] = img.Compression
	binary.BigEndian.PutUint32(header[0x06:], img.EntryPoint)
	header[0x0A] = img.StackSize
	copy(header[0x0B:0x0F], img.Checksum[:])
	binary.BigEndian.PutUint16(header[0x14:], img.LabelCount)

	_, err = w.Write(header[:])
	if err != nil {
		return
	}

	_, err = w.Write(img.Labels)
	if err != nil {
		return
	}

	terminator := bytes.Repeat([]byte{0xFF}, TERMINATOR_SIZE)
	_, err = w.Write(terminator)
	if err != nil {
		return
	}

	_, err = w.Write(img.Body)
	return
}

// SealChecksum stamps the CRC32 of the body into the header checksum.
func (img *Image) SealChecksum() {
	binary.BigEndian.PutUint32(img.Checksum[:], crc32.ChecksumIEEE(img.Body))
}

// SetLabels packs the given records, in order, into the raw table payload
// and sets the on-disk count. Records are 6 bytes each; the payload is
// zero-padded to a LABEL_UNIT boundary.
func (img *Image) SetLabels(labels []Label) {
	payload := make([]byte, 0, len(labels)*cpu.LABEL_RECORD_SIZE)
	var record [cpu.LABEL_RECORD_SIZE]byte
	for _, label := range labels {
		binary.BigEndian.PutUint16(record[0:], label.Id)
		binary.BigEndian.PutUint32(record[2:], label.Offset)
		payload = append(payload, record[:]...)
	}

	for len(payload)%LABEL_UNIT != 0 {
		payload = append(payload, 0)
	}

	img.Labels = payload
	img.LabelCount = uint16(len(payload) / LABEL_UNIT)
}

// LabelOffsets yields the whole records packed in the table payload.
func (img *Image) LabelOffsets() iter.Seq2[uint16, uint32] {
	return func(yield func(id uint16, offset uint32) bool) {
		for at := 0; at+cpu.LABEL_RECORD_SIZE <= len(img.Labels); at += cpu.LABEL_RECORD_SIZE {
			id := binary.BigEndian.Uint16(img.Labels[at:])
			offset := binary.BigEndian.Uint32(img.Labels[at+2:])
			if !yield(id, offset) {
				return
			}
		}
	}
}

// Install copies the label table and instruction body into a memory unit at
// their fixed offsets.
func (img *Image) Install(m *cpu.Mmu) (err error) {
	if len(img.Labels) > cpu.MEM_PROGRAM_BASE-cpu.MEM_LABEL_BASE {
		err = ErrBadFile
		return
	}

	err = m.WriteBytes(cpu.MEM_LABEL_BASE, img.Labels)
	if err != nil {
		return
	}

	err = m.WriteBytes(cpu.MEM_PROGRAM_BASE, img.Body)
	return
}
