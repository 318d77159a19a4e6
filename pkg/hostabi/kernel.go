package hostabi

import (
	"errors"
	"fmt"
	"sync"
)

// kernelBase is the first block offset. Offsets [0-7] are reserved so that 0
// can signal allocation failure.
const kernelBase = 8

var (
	// ErrNoOutput is returned by Kernel.Output when no output was registered.
	ErrNoOutput = errors.New("no output registered")
	// ErrUnknownBlock is returned when an offset does not name a live block.
	ErrUnknownBlock = errors.New("unknown memory block")
	// ErrOutputRange is returned when the registered output exceeds its block.
	ErrOutputRange = errors.New("output exceeds block length")
	// ErrUnknownFunction is recorded when a guest calls an unregistered host function.
	ErrUnknownFunction = errors.New("unknown host function")
)

// LogEntry is one message received through Log.
type LogEntry struct {
	Level   LogLevel
	Message string
}

// Kernel is an in-memory Host. It owns a block table the way a real host
// owns its side of the memory boundary, and records faults (double frees,
// stores to unknown blocks) instead of trapping so tests can assert on them.
type Kernel struct {
	mu      sync.Mutex
	blocks  map[uint64][]byte
	next    uint64
	limit   uint64
	used    uint64
	input   []byte
	outOff  uint64
	outLen  uint64
	outSet  bool
	errMsg  string
	errSet  bool
	logs    []LogEntry
	faults  []error
	logSink func(LogEntry)
	funcs   map[string]HostFunc
}

// KernelOption configures a Kernel.
type KernelOption func(*Kernel)

// WithMemoryLimit caps the bytes the kernel hands out. Zero means unlimited.
func WithMemoryLimit(limit uint64) KernelOption {
	return func(k *Kernel) {
		k.limit = limit
	}
}

// WithLogSink receives every log entry as it arrives.
func WithLogSink(fn func(LogEntry)) KernelOption {
	return func(k *Kernel) {
		k.logSink = fn
	}
}

// WithHostFunc exposes fn to guests as name.
func WithHostFunc(name string, fn HostFunc) KernelOption {
	return func(k *Kernel) {
		k.funcs[name] = fn
	}
}

// NewKernel returns an empty kernel.
func NewKernel(opts ...KernelOption) *Kernel {
	k := &Kernel{
		blocks: make(map[uint64][]byte),
		next:   kernelBase,
		funcs:  make(map[string]HostFunc),
	}
	for _, opt := range opts {
		opt(k)
	}

	return k
}

// SetInput replaces the input for the next call.
func (k *Kernel) SetInput(data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.input = append([]byte(nil), data...)
}

// InputLength implements Host.
func (k *Kernel) InputLength() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	return uint64(len(k.input))
}

// InputLoadByte implements Host.
func (k *Kernel) InputLoadByte(offset uint64) byte {
	k.mu.Lock()
	defer k.mu.Unlock()

	if offset >= uint64(len(k.input)) {
		k.faults = append(k.faults, fmt.Errorf("input offset %d out of range", offset))
		return 0
	}

	return k.input[offset]
}

// LoadInput implements InputLoader.
func (k *Kernel) LoadInput(dst []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return copy(dst, k.input)
}

// Alloc implements Host. Blocks are 8-byte aligned and zero-sized blocks
// still get a distinct offset.
func (k *Kernel) Alloc(size uint64) uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.alloc(size)
}

func (k *Kernel) alloc(size uint64) uint64 {
	if k.limit > 0 && k.used+size > k.limit {
		return 0
	}

	offset := k.next
	step := size + (8-size%8)%8
	if step == 0 {
		step = 8
	}
	k.next += step
	k.blocks[offset] = make([]byte, size)
	k.used += size

	return offset
}

// Free implements Host.
func (k *Kernel) Free(offset uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	block, ok := k.blocks[offset]
	if !ok {
		k.faults = append(k.faults, fmt.Errorf("free %d: %w", offset, ErrUnknownBlock))
		return
	}
	k.used -= uint64(len(block))
	delete(k.blocks, offset)
	if k.outSet && k.outOff == offset {
		k.outSet = false
	}
}

// Store implements Host.
func (k *Kernel) Store(offset uint64, data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	block, ok := k.blocks[offset]
	if !ok {
		k.faults = append(k.faults, fmt.Errorf("store %d: %w", offset, ErrUnknownBlock))
		return
	}
	if len(data) > len(block) {
		k.faults = append(k.faults, fmt.Errorf("store %d: %d bytes into %d byte block", offset, len(data), len(block)))
	}
	copy(block, data)
}

// OutputSet implements Host.
func (k *Kernel) OutputSet(offset, length uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.outOff = offset
	k.outLen = length
	k.outSet = true
}

// Length implements Host.
func (k *Kernel) Length(offset uint64) uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	return uint64(len(k.blocks[offset]))
}

// Load implements Host.
func (k *Kernel) Load(offset uint64, dst []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	block, ok := k.blocks[offset]
	if !ok {
		k.faults = append(k.faults, fmt.Errorf("load %d: %w", offset, ErrUnknownBlock))
		return
	}
	if len(dst) > len(block) {
		k.faults = append(k.faults, fmt.Errorf("load %d: %d bytes from %d byte block", offset, len(dst), len(block)))
	}
	copy(dst, block)
}

// Call implements Host. The function runs without the kernel lock held.
func (k *Kernel) Call(name string, input uint64) uint64 {
	k.mu.Lock()
	fn, ok := k.funcs[name]
	block, known := k.blocks[input]
	arg := append([]byte(nil), block...)
	k.mu.Unlock()

	if !ok {
		k.fault(fmt.Errorf("call %q: %w", name, ErrUnknownFunction))
		return 0
	}
	if !known {
		k.fault(fmt.Errorf("call %q input %d: %w", name, input, ErrUnknownBlock))
		return 0
	}

	out, err := fn(arg)
	if err != nil {
		k.Log(LogError, fmt.Sprintf("host function %s: %v", name, err))
		return 0
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	offset := k.alloc(uint64(len(out)))
	if offset != 0 {
		copy(k.blocks[offset], out)
	}

	return offset
}

// ErrorSet implements Host. The kernel takes the block over and keeps its
// contents as the call's error message.
func (k *Kernel) ErrorSet(offset uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	block, ok := k.blocks[offset]
	if !ok {
		k.faults = append(k.faults, fmt.Errorf("error_set %d: %w", offset, ErrUnknownBlock))
		return
	}
	k.errMsg, k.errSet = string(block), true
	k.used -= uint64(len(block))
	delete(k.blocks, offset)
}

// Error returns the message registered through ErrorSet during the current call.
func (k *Kernel) Error() (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.errMsg, k.errSet
}

func (k *Kernel) fault(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.faults = append(k.faults, err)
}

// Log implements Host.
func (k *Kernel) Log(level LogLevel, msg string) {
	entry := LogEntry{Level: level, Message: msg}

	k.mu.Lock()
	k.logs = append(k.logs, entry)
	sink := k.logSink
	k.mu.Unlock()

	if sink != nil {
		sink(entry)
	}
}

// Output returns a copy of the registered output, validated against the
// block it points into.
func (k *Kernel) Output() ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.outSet {
		return nil, ErrNoOutput
	}
	block, ok := k.blocks[k.outOff]
	if !ok {
		return nil, fmt.Errorf("output %d: %w", k.outOff, ErrUnknownBlock)
	}
	if k.outLen > uint64(len(block)) {
		return nil, fmt.Errorf("output %d[%d]: %w", k.outOff, k.outLen, ErrOutputRange)
	}

	return append([]byte{}, block[:k.outLen]...), nil
}

// Outstanding reports live blocks other than the registered output.
func (k *Kernel) Outstanding() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := len(k.blocks)
	if k.outSet {
		if _, ok := k.blocks[k.outOff]; ok {
			n--
		}
	}

	return n
}

// Logs returns a copy of the log entries received so far.
func (k *Kernel) Logs() []LogEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	return append([]LogEntry(nil), k.logs...)
}

// Faults returns the protocol violations observed so far.
func (k *Kernel) Faults() []error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return append([]error(nil), k.faults...)
}

// Reset prepares the kernel for the next call: the previous output block is
// reclaimed and input, output, error and logs are cleared. Faults are kept.
func (k *Kernel) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.outSet {
		if block, ok := k.blocks[k.outOff]; ok {
			k.used -= uint64(len(block))
			delete(k.blocks, k.outOff)
		}
	}
	k.input = nil
	k.outOff, k.outLen, k.outSet = 0, 0, false
	k.errMsg, k.errSet = "", false
	k.logs = nil
}
