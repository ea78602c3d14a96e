package patch

import "fmt"

// encodeOp re-encodes a decoded op into raw words. Inverse of decodeOps.
func encodeOp(op Op) []uint32 {
	head := uint32(op.Code)<<28 | uint32(op.Arg)<<25 | op.Target&0x1FFFFFF
	switch op.Code {
	case OpWriteBytes:
		words := make([]uint32, 1+(len(op.Data)+3)/4)
		words[0] = head
		for j, b := range op.Data {
			words[1+j/4] |= uint32(b) << ((j % 4) * 8)
		}
		return words
	case OpWriteWords:
		return append([]uint32{head}, op.Words...)
	default:
		return []uint32{head}
	}
}

// EncodeOps flattens the record's op groups back into the raw word
// stream and per-group word counts used by the database format.
func (r *Record) EncodeOps() (raw []uint32, wcnt, save, irqh, rtc int, err error) {
	counts := [4]int{}
	for gi, grp := range [][]Op{r.Wcnt, r.Save, r.Irqh, r.Rtc} {
		for _, op := range grp {
			w := encodeOp(op)
			raw = append(raw, w...)
			counts[gi] += len(w)
		}
	}
	wcnt, save, irqh, rtc = counts[0], counts[1], counts[2], counts[3]
	if wcnt > 0xFF || save > 0x1F || irqh > 0xFF || rtc > 0x0F {
		return nil, 0, 0, 0, 0, fmt.Errorf("patch: op group too large: %d/%d/%d/%d", wcnt, save, irqh, rtc)
	}
	return raw, wcnt, save, irqh, rtc, nil
}
