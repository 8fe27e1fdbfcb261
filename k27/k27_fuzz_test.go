package k27

import (
	"bytes"
	"testing"

	"github.com/Fuyukai/kl27/cpu"
)

// FuzzImageUnmarshal throws arbitrary byte streams at the loader. Whatever
// happens, it must not panic, and anything it accepts must install cleanly.
func FuzzImageUnmarshal(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("KL27"))
	f.Add(build(MAGIC, VERSION, COMPRESSION_NONE, 0, 4, 0, nil, nil))
	f.Add(build(MAGIC, VERSION, COMPRESSION_NONE, 0x20, 16, 0,
		[]Label{{Id: 0, Offset: 0}, {Id: 1, Offset: 0x20}},
		[]byte{0x00, 0x02, 0x00, 0x07, 0x00, 0x01, 0x00, 0x00}))

	m := cpu.NewMmu()

	f.Fuzz(func(t *testing.T, data []byte) {
		img := &Image{}
		err := img.Unmarshal(bytes.NewReader(data))
		if err != nil {
			return
		}

		if img.StackSize < STACK_SIZE_MIN {
			t.Fatalf("accepted stack size %d", img.StackSize)
		}

		err = img.Install(m)
		if err != nil {
			t.Fatalf("parsed image failed to install: %v", err)
		}
	})
}
