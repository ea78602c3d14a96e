package patch

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/davidgfnet/go-superfw/internal/rom"
)

func mkop(code Opcode, arg uint8, off uint32) uint32 {
	return uint32(code)<<28 | uint32(arg)<<25 | off&0x1FFFFFF
}

func mkRecord(t *testing.T, raw []uint32, progs []Program) *Record {
	t.Helper()
	r, err := NewRecord(raw, 0, len(raw), 0, 0, progs)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	return r
}

func TestWriteWordsOp(t *testing.T) {
	buf := make([]byte, 64*1024)
	r := mkRecord(t, []uint32{mkop(OpWriteWords, 0, 0x100), 0xDEADBEEF}, nil)

	if err := Apply(Window{Buf: buf}, r, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{0xEF, 0xBE, 0xAD, 0xDE}
	if !bytes.Equal(buf[0x100:0x104], want) {
		t.Errorf("expected % X at 0x100, got % X", want, buf[0x100:0x104])
	}
	for i, b := range buf {
		if (i < 0x100 || i >= 0x104) && b != 0 {
			t.Fatalf("byte %#x unexpectedly modified", i)
		}
	}
}

func TestThumbNOPOp(t *testing.T) {
	buf := make([]byte, 0x400)
	buf[0x200] = 0x34
	buf[0x201] = 0x12
	r := mkRecord(t, []uint32{mkop(OpThumbNOP, 0, 0x200)}, nil)

	if err := Apply(Window{Buf: buf}, r, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf[0x200] != 0xC0 || buf[0x201] != 0x46 {
		t.Errorf("expected C0 46 at 0x200, got %02X %02X", buf[0x200], buf[0x201])
	}
}

func TestByteWriteKeepsNeighbour(t *testing.T) {
	buf := make([]byte, 0x400)
	buf[0x300] = 0xAA
	buf[0x301] = 0xBB

	t.Run("low byte", func(t *testing.T) {
		r := mkRecord(t, []uint32{mkop(OpWriteBytes, 0, 0x300), 0x11}, nil)
		if err := Apply(Window{Buf: buf}, r, Options{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf[0x300] != 0x11 || buf[0x301] != 0xBB {
			t.Errorf("expected 11 BB, got %02X %02X", buf[0x300], buf[0x301])
		}
	})
	t.Run("high byte", func(t *testing.T) {
		buf[0x300] = 0xAA
		buf[0x301] = 0xBB
		r := mkRecord(t, []uint32{mkop(OpWriteBytes, 0, 0x301), 0x22}, nil)
		if err := Apply(Window{Buf: buf}, r, Options{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf[0x300] != 0xAA || buf[0x301] != 0x22 {
			t.Errorf("expected AA 22, got %02X %02X", buf[0x300], buf[0x301])
		}
	})
}

func TestWindowSplitEquivalence(t *testing.T) {
	progs := []Program{{Data: []byte{0x70, 0x47, 0xC0, 0x46, 0x01, 0x02, 0x03}}}
	raw := []uint32{
		mkop(OpWriteWords, 1, 0x100), 0xDEADBEEF, 0xCAFEBABE,
		mkop(OpThumbNOP, 0, 0x7E),
		mkop(OpARMNOP, 0, 0x17C),
		mkop(OpWriteBytes, 4, 0x1FD), 0x44332211, 0x00000055,
		mkop(OpProgram, 0, 0x7D),
		mkop(OpStubReturn, 1, 0x1F8),
		mkop(OpStubReturn, 5, 0x240),
		mkop(OpEEPROMHandler, 0, 0x300),
		mkop(OpFlashHandler, 3, 0x3A0),
		mkop(OpRTCHandler, 3, 0x430),
	}
	rec := mkRecord(t, raw, progs)
	opts := Options{PatchWaitcnt: true, PatchRTC: true, DSAddr: 0x089FE000}

	const size = 0x600
	single := make([]byte, size)
	if err := Apply(Window{Buf: single}, rec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	splits := [][]uint32{
		{0x80, size},
		{0x200, size},
		{0x2, 0x180, 0x302, size},
		{0x100, 0x200, 0x300, 0x400, 0x500, size},
	}
	for _, split := range splits {
		multi := make([]byte, size)
		base := uint32(0)
		for _, end := range split {
			w := Window{Buf: multi[base:end], Base: base}
			if err := Apply(w, rec, opts); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			base = end
		}
		if !bytes.Equal(single, multi) {
			t.Errorf("split %v diverged from single-window apply", split)
		}
	}
}

func TestApplyNeverWritesOutsideWindow(t *testing.T) {
	raw := []uint32{
		mkop(OpWriteWords, 0, 0x1FE), 0xDEADBEEF,
		mkop(OpThumbNOP, 0, 0x400),
	}
	rec := mkRecord(t, raw, nil)

	full := make([]byte, 0x600)
	w := Window{Buf: full[0x100:0x200], Base: 0x100}
	if err := Apply(w, rec, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Only the two in-window bytes of the straddling word may change.
	if full[0x1FE] != 0xEF || full[0x1FF] != 0xBE {
		t.Errorf("expected EF BE at 0x1FE, got %02X %02X", full[0x1FE], full[0x1FF])
	}
	for i, b := range full {
		if (i < 0x1FE || i > 0x1FF) && b != 0 {
			t.Fatalf("byte %#x outside the window was modified", i)
		}
	}
}

func TestStandinTrailer(t *testing.T) {
	buf := make([]byte, 0x1000)
	rec := mkRecord(t, []uint32{mkop(OpEEPROMHandler, 1, 0x200)}, nil)
	const dsAddr = 0x089FE000

	if err := Apply(Window{Buf: buf}, rec, Options{DSAddr: dsAddr}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := directSaveFuncs.eeprom[1]
	if !bytes.Equal(buf[0x200:0x200+len(body)], body) {
		t.Error("stand-in body not copied verbatim")
	}
	got := binary.LittleEndian.Uint32(buf[0x200+len(body):])
	if got != dsAddr {
		t.Errorf("expected trailer %08x, got %08x", dsAddr, got)
	}
}

func TestStandinFlavourSelection(t *testing.T) {
	if saveFlavour(SaveTypeFlash1M, 0) != &sram128kFuncs {
		t.Error("expected 128k flavour for 1Mbit flash saves")
	}
	if saveFlavour(SaveTypeFlash512K, 0) != &sram64kFuncs {
		t.Error("expected 64k flavour for 512Kbit flash saves")
	}
	if saveFlavour(SaveTypeFlash1M, 0x08000000) != &directSaveFuncs {
		t.Error("expected direct-save flavour when a payload address is set")
	}
}

func TestEntrypointDetour(t *testing.T) {
	buf := make([]byte, 0x1000)
	// b 0x080000D8 as the original entry branch
	binary.LittleEndian.PutUint32(buf, 0xEA000034)

	rec, err := NewRecord([]uint32{mkop(OpThumbNOP, 0, 0x800)}, 0, 0, 1, 0, nil)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	const igmAddr = 0x08F00000
	if err := Apply(Window{Buf: buf}, rec, Options{IGMenuAddr: igmAddr}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	brop := binary.LittleEndian.Uint32(buf[0:4])
	want := 0xEA000000 | uint32((igmAddr-rom.GBABase-8)>>2)
	if brop != want {
		t.Errorf("expected branch %08x, got %08x", want, brop)
	}
	boot := binary.LittleEndian.Uint32(buf[0xB8:0xBC])
	if boot != 0x34*4+8+rom.GBABase {
		t.Errorf("expected stashed entrypoint, got %08x", boot)
	}

	t.Run("not at base zero", func(t *testing.T) {
		buf2 := make([]byte, 0x1000)
		w := Window{Buf: buf2, Base: 0x1000}
		if err := Apply(w, rec, Options{IGMenuAddr: igmAddr}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, b := range buf2 {
			if b != 0 {
				t.Fatalf("byte %#x modified in non-zero-base window", i)
			}
		}
	})
}

func TestStubReturn(t *testing.T) {
	buf := make([]byte, 0x100)
	rec := mkRecord(t, []uint32{
		mkop(OpStubReturn, 1, 0x10),
		mkop(OpStubReturn, 5, 0x20),
	}, nil)
	if err := Apply(Window{Buf: buf}, rec, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := binary.LittleEndian.Uint32(buf[0x10:]); got != 0x47702001 {
		t.Errorf("expected thumb return-1 stub, got %08x", got)
	}
	if got := binary.LittleEndian.Uint32(buf[0x20:]); got != 0xE3A00001 {
		t.Errorf("expected arm mov r0,#1, got %08x", got)
	}
	if got := binary.LittleEndian.Uint32(buf[0x24:]); got != 0xE12FFF1E {
		t.Errorf("expected arm bx lr, got %08x", got)
	}
}

func TestApplyPayload(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6}
	full := make([]byte, 0x200)
	w1 := Window{Buf: full[:0x100]}
	w2 := Window{Buf: full[0x100:], Base: 0x100}
	if err := ApplyPayload(w1, payload, 0xFE); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ApplyPayload(w2, payload, 0xFE); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(full[0xFE:0x104], payload) {
		t.Errorf("payload not assembled across windows: % X", full[0xFC:0x106])
	}
}

func TestRejectsUnalignedWindow(t *testing.T) {
	rec := mkRecord(t, nil, nil)
	if err := Apply(Window{Buf: make([]byte, 3)}, rec, Options{}); err == nil {
		t.Error("expected odd-sized window to be rejected")
	}
	if err := Apply(Window{Buf: make([]byte, 4), Base: 1}, rec, Options{}); err == nil {
		t.Error("expected odd-based window to be rejected")
	}
}
