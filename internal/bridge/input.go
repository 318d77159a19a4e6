package bridge

import "github.com/andrei-cloud/go_scriptbridge/pkg/guestmem"

// Input is the current call's input. It must not be modified and is valid
// until Release.
type Input struct {
	buf  []byte
	pool *guestmem.BufferPool
}

// Bytes returns the input. Zero-length input is empty but not nil.
func (in *Input) Bytes() []byte {
	if in.buf == nil {
		return []byte{}
	}

	return in.buf
}

// Len returns the input length.
func (in *Input) Len() int { return len(in.buf) }

// String returns the input as a string.
func (in *Input) String() string { return string(in.buf) }

// Release returns the buffer to the pool. Further calls are no-ops.
func (in *Input) Release() {
	if in.buf == nil {
		return
	}
	in.pool.Put(in.buf)
	in.buf = nil
}
