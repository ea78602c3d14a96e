package launcher

// Error carries the numeric code persisted in diagnostics.
type Error struct {
	Code uint32
	msg  string
}

func (e *Error) Error() string { return e.msg }

var (
	// ErrBadROM flags a ROM read failure mid-load.
	ErrBadROM = &Error{1, "launcher: ROM read failed"}
	// ErrMenuSpace means the in-game menu payload would not fit.
	ErrMenuSpace = &Error{2, "launcher: no space for the in-game menu payload"}
	// ErrPayloadSpace means the direct-save payload would not fit.
	ErrPayloadSpace = &Error{3, "launcher: no space for the payload"}
	// ErrNoEmu is kept for foreign ROM types routed through an external
	// emulator that is not installed.
	ErrNoEmu = &Error{4, "launcher: no emulator available"}
	// ErrFlashOp flags a NOR erase/program/verify failure.
	ErrFlashOp = &Error{5, "launcher: flash operation failed"}
)
