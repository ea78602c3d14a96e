package patch

import "fmt"

// Opcode selects the kind of surgical edit a patch op performs.
type Opcode uint8

const (
	// OpProgram splices inlined byte program arg at the target offset.
	OpProgram Opcode = 0x0
	// OpThumbNOP overwrites a 16-bit instruction with a Thumb NOP.
	OpThumbNOP Opcode = 0x1
	// OpARMNOP overwrites a 32-bit instruction with an ARM NOP.
	OpARMNOP Opcode = 0x2
	// OpWriteBytes writes arg+1 literal bytes packed in the following words.
	OpWriteBytes Opcode = 0x3
	// OpWriteWords writes arg+1 literal words, one per following word.
	OpWriteWords Opcode = 0x4
	// OpStubReturn replaces a function prologue with a return stub: Thumb
	// returning arg when arg < 4, otherwise ARM returning arg-4.
	OpStubReturn Opcode = 0x5
	// OpRTCHandler installs an RTC stand-in (probe/reset/status/gettimedate).
	OpRTCHandler Opcode = 0x7
	// OpEEPROMHandler installs an EEPROM stand-in (read/write).
	OpEEPROMHandler Opcode = 0x8
	// OpFlashHandler installs a FLASH stand-in
	// (read/erase-device/erase-sector/write-sector/write-byte).
	OpFlashHandler Opcode = 0x9
)

const (
	thumbNOP = 0x46C0     // mov r8, r8
	armNOP   = 0xE1A00000 // mov r0, r0

	fnThumbRet = 0x47702000 // movs r0, #k; bx lr
	fnARMRet   = 0xE3A00000 // mov r0, #k
	fnARMRetBX = 0xE12FFF1E // bx lr
)

// Op is one decoded patch op. Target is an absolute ROM offset. Literal
// payloads (OpWriteBytes/OpWriteWords) are captured at decode time so
// the applier never re-walks the raw word stream.
type Op struct {
	Code   Opcode
	Arg    uint8
	Target uint32
	Data   []byte   // OpWriteBytes literal payload
	Words  []uint32 // OpWriteWords literal payload
}

// decodeOps turns a raw op word group into decoded ops, validating
// opcode and argument ranges up front. nprogs bounds OpProgram args.
func decodeOps(raw []uint32, nprogs int) ([]Op, error) {
	var ops []Op
	for i := 0; i < len(raw); i++ {
		w := raw[i]
		op := Op{
			Code:   Opcode(w >> 28),
			Arg:    uint8((w >> 25) & 7),
			Target: w & 0x1FFFFFF,
		}

		switch op.Code {
		case OpProgram:
			if int(op.Arg) >= nprogs {
				return nil, fmt.Errorf("patch: op %d references program %d of %d", i, op.Arg, nprogs)
			}
		case OpThumbNOP, OpARMNOP, OpStubReturn:
			// no extra payload
		case OpWriteBytes:
			n := int(op.Arg) + 1
			words := (n + 3) / 4
			if i+words > len(raw)-1 {
				return nil, fmt.Errorf("patch: op %d literal bytes truncated", i)
			}
			op.Data = make([]byte, n)
			for j := 0; j < n; j++ {
				op.Data[j] = byte(raw[i+1+j/4] >> ((j % 4) * 8))
			}
			i += words
		case OpWriteWords:
			n := int(op.Arg) + 1
			if i+n > len(raw)-1 {
				return nil, fmt.Errorf("patch: op %d literal words truncated", i)
			}
			op.Words = make([]uint32, n)
			copy(op.Words, raw[i+1:i+1+n])
			i += n
		case OpRTCHandler:
			if op.Arg > 3 {
				return nil, fmt.Errorf("patch: op %d bad RTC handler %d", i, op.Arg)
			}
		case OpEEPROMHandler:
			if op.Arg > 1 {
				return nil, fmt.Errorf("patch: op %d bad EEPROM handler %d", i, op.Arg)
			}
		case OpFlashHandler:
			if op.Arg > 4 {
				return nil, fmt.Errorf("patch: op %d bad FLASH handler %d", i, op.Arg)
			}
		default:
			return nil, fmt.Errorf("patch: op %d unknown opcode %d", i, op.Code)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
