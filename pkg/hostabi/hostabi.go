// Package hostabi describes the host functions a script bridge guest consumes
// and provides an in-memory host for native runs and tests.
package hostabi

// LogLevel is the severity passed to the host log function.
type LogLevel uint32

// Log levels understood by the host.
const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

// String returns the lower-case level name.
func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return "unknown"
	}
}

// Host is the set of host functions the bridge calls. Offsets address blocks
// in host-managed memory; offset 0 is never a valid block.
type Host interface {
	// InputLength reports the size of the current call's input.
	InputLength() uint64
	// InputLoadByte returns the input byte at offset.
	InputLoadByte(offset uint64) byte
	// Alloc reserves size bytes and returns the block offset, or 0 on failure.
	Alloc(size uint64) uint64
	// Free releases a block returned by Alloc.
	Free(offset uint64)
	// Store copies data into the block at offset.
	Store(offset uint64, data []byte)
	// OutputSet registers the block at offset as the call's output.
	OutputSet(offset, length uint64)
	// Length reports the size of the block at offset, 0 if unknown.
	Length(offset uint64) uint64
	// Load copies the start of the block at offset into dst.
	Load(offset uint64, dst []byte)
	// Call runs the named host function on the block at input and returns
	// the offset of a new block holding its result, or 0 on failure. The
	// guest frees the result block.
	Call(name string, input uint64) uint64
	// ErrorSet hands the block at offset to the host as the call's error message.
	ErrorSet(offset uint64)
	// Log forwards a message to the host logging channel.
	Log(level LogLevel, msg string)
}

// HostFunc is a function the host exposes to scripts by name.
type HostFunc func(input []byte) ([]byte, error)

// InputLoader is implemented by hosts that can copy the whole input at once.
type InputLoader interface {
	LoadInput(dst []byte) int
}
