package patch

import "github.com/davidgfnet/go-superfw/internal/rom"

// Options drive one Apply call. Addresses are bus addresses (the 0x08
// mirror); zero disables the feature.
type Options struct {
	PatchWaitcnt bool
	PatchRTC     bool
	// IGMenuAddr is where the in-game menu payload was parked, or zero.
	IGMenuAddr uint32
	// DSAddr is where the direct-save payload was parked, or zero.
	DSAddr uint32
}

// Apply rewrites the window according to the record. The ROM may be
// streamed through any sequence of windows covering it: ops (or parts
// of ops) falling outside the current window are silently dropped and
// picked up when their window comes around.
func Apply(w Window, r *Record, opts Options) error {
	if err := w.check(); err != nil {
		return err
	}

	// Save stand-in flavour is fixed for the whole call.
	sfns := saveFlavour(r.SaveMode, opts.DSAddr)

	applyOps(w, r.Wcnt, r.Progs, sfns, opts.DSAddr, opts.PatchWaitcnt)
	applyOps(w, r.Save, r.Progs, sfns, opts.DSAddr, true)

	if opts.IGMenuAddr != 0 {
		applyOps(w, r.Irqh, r.Progs, sfns, opts.DSAddr, true)

		// Detour the entrypoint through the in-game menu. Offset 0xB8 is
		// unused header space; the menu payload reads the real boot
		// address back from there.
		if w.Base == 0 && len(w.Buf) >= 0xC0 {
			ibranch := w.readWord(0)
			bootAddr := ((ibranch & 0xFFFFFF) << 2) + 8 + rom.GBABase
			brop := 0xEA000000 | ((opts.IGMenuAddr - rom.GBABase - 8) >> 2)
			w.writeWord(0, brop)
			w.writeWord(0xB8, bootAddr)
		}
	}

	applyOps(w, r.Rtc, r.Progs, sfns, opts.DSAddr, opts.PatchRTC)
	return nil
}

func applyOps(w Window, ops []Op, progs []Program, sfns *saveFuncs, dsAddr uint32, enabled bool) {
	if !enabled {
		return
	}
	for _, op := range ops {
		switch op.Code {
		case OpProgram:
			w.copyCode(op.Target, progs[op.Arg].Data)
		case OpThumbNOP:
			w.writeHalf(op.Target, thumbNOP)
		case OpARMNOP:
			w.writeWord(op.Target, armNOP)
		case OpWriteBytes:
			for j, b := range op.Data {
				w.writeByte(op.Target+uint32(j), b)
			}
		case OpWriteWords:
			for j, v := range op.Words {
				w.writeWord(op.Target+uint32(j)*4, v)
			}
		case OpStubReturn:
			if op.Arg < 4 {
				// movs r0, #k; bx lr packed in one word.
				w.writeWord(op.Target, fnThumbRet|uint32(op.Arg))
			} else {
				w.writeWord(op.Target, fnARMRet|uint32(op.Arg-4))
				w.writeWord(op.Target+4, fnARMRetBX)
			}
		case OpRTCHandler:
			w.copyCode(op.Target, rtcFuncs[op.Arg])
		case OpEEPROMHandler:
			installStandin(w, op.Target, sfns.eeprom[op.Arg], dsAddr)
		case OpFlashHandler:
			installStandin(w, op.Target, sfns.flash[op.Arg], dsAddr)
		}
	}
}

// installStandin copies the stand-in body and appends the direct-save
// config address as a 32-bit trailer; the routine reads it back at
// runtime to locate its configuration.
func installStandin(w Window, target uint32, code []byte, dsAddr uint32) {
	w.copyCode(target, code)
	w.writeWord(target+uint32(len(code)), dsAddr)
}

// ApplyPayload copies an arbitrary precompiled blob into the window at
// an absolute ROM offset, with the same out-of-window-drop policy the
// op applier uses.
func ApplyPayload(w Window, payload []byte, offset uint32) error {
	if err := w.check(); err != nil {
		return err
	}
	if offset > w.Base+uint32(len(w.Buf)) {
		return nil
	}
	if w.Base > offset+uint32(len(payload)) {
		return nil
	}
	w.copyCode(offset, payload)
	return nil
}
