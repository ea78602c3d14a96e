package patch

import "fmt"

const (
	// MaxPrograms bounds the inlined byte programs a record may carry.
	MaxPrograms = 8
	// MaxProgramLen bounds the body of a single inlined program.
	MaxProgramLen = 64
)

// Program is a short byte string spliced verbatim into the ROM.
type Program struct {
	Data []byte
}

// Record is an immutable description of the surgical rewrites needed by
// one title. Ops are decoded up front and kept in their four groups;
// groups are always applied in the order wcnt, save, irqh, rtc.
type Record struct {
	SaveMode SaveType

	// Unused ROM region where payloads may be parked (zero if none).
	HoleAddr uint32
	HoleSize uint32

	Wcnt []Op
	Save []Op
	Irqh []Op
	Rtc  []Op

	Progs []Program
}

// NewRecord decodes the four raw op word groups of a patch entry.
// Counts refer to raw words, matching the on-disk encoding; literal
// data ops consume their trailing words from the same group.
func NewRecord(raw []uint32, wcnt, save, irqh, rtc int, progs []Program) (*Record, error) {
	if len(progs) > MaxPrograms {
		return nil, fmt.Errorf("patch: too many programs: %d", len(progs))
	}
	total := wcnt + save + irqh + rtc
	if total > len(raw) {
		return nil, fmt.Errorf("patch: op stream truncated: have %d words, need %d", len(raw), total)
	}

	r := &Record{Progs: progs}
	var err error
	off := 0
	for _, g := range []struct {
		dst *[]Op
		cnt int
	}{
		{&r.Wcnt, wcnt},
		{&r.Save, save},
		{&r.Irqh, irqh},
		{&r.Rtc, rtc},
	} {
		*g.dst, err = decodeOps(raw[off:off+g.cnt], len(progs))
		if err != nil {
			return nil, err
		}
		off += g.cnt
	}
	return r, nil
}

// SupportsIGM reports whether the record carries in-game-menu hooks.
func (r *Record) SupportsIGM() bool {
	return len(r.Irqh) > 0
}

// SupportsRTC reports whether the record carries RTC redirects.
func (r *Record) SupportsRTC() bool {
	return len(r.Rtc) > 0
}

// HasHole reports whether the record describes a parking hole.
func (r *Record) HasHole() bool {
	return r.HoleSize != 0
}
