// Package guestmem manages guest-owned memory handed to the host through the
// allocate and deallocate exports, plus a pool of reusable input buffers.
package guestmem

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultLimit caps the bytes an Arena keeps pinned at once.
const DefaultLimit = 64 << 20

var (
	// ErrLimitExceeded is returned when an allocation would pass the arena limit.
	ErrLimitExceeded = errors.New("guest memory limit exceeded")
	// ErrUnknownPointer is returned when a pointer was not issued by the arena.
	ErrUnknownPointer = errors.New("pointer not allocated by arena")
	// ErrSizeMismatch is returned when a deallocation size differs from the allocation.
	ErrSizeMismatch = errors.New("deallocation size mismatch")
)

// Arena pins guest allocations so the garbage collector keeps them alive
// while the host holds their address. Every pointer it returns is non-zero
// and distinct, including pointers for zero-sized allocations.
type Arena struct {
	mu    sync.Mutex
	ptrs  map[uint32][]byte
	total uint64
	limit uint64
	next  uint32
}

// NewArena returns an arena that pins at most limit bytes. Zero selects DefaultLimit.
func NewArena(limit uint64) *Arena {
	if limit == 0 {
		limit = DefaultLimit
	}

	return &Arena{
		ptrs:  make(map[uint32][]byte),
		limit: limit,
		next:  firstAddress,
	}
}

// Allocate reserves size bytes and returns their address.
func (a *Arena) Allocate(size uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.total+uint64(size) > a.limit {
		return 0, fmt.Errorf("allocate %d bytes with %d of %d in use: %w",
			size, a.total, a.limit, ErrLimitExceeded)
	}

	// A zero-capacity slice has no backing array of its own, so zero-sized
	// blocks still get one byte to anchor a unique address.
	buf := make([]byte, size, max(size, 1))
	ptr := a.address(buf)
	a.ptrs[ptr] = buf
	a.total += uint64(size)

	return ptr, nil
}

// Deallocate unpins the block at ptr. The block is released even when size
// does not match, and ErrSizeMismatch reports the disagreement.
func (a *Arena) Deallocate(ptr, size uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.ptrs[ptr]
	if !ok {
		return fmt.Errorf("deallocate %#x: %w", ptr, ErrUnknownPointer)
	}
	delete(a.ptrs, ptr)
	a.total -= uint64(len(buf))

	if uint32(len(buf)) != size {
		return fmt.Errorf("deallocate %#x: got %d, allocated %d: %w",
			ptr, size, len(buf), ErrSizeMismatch)
	}

	return nil
}

// Bytes returns the pinned block at ptr, or nil if ptr is not live.
func (a *Arena) Bytes(ptr uint32) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.ptrs[ptr]
}

// Outstanding reports the number of live blocks.
func (a *Arena) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.ptrs)
}

// InUse reports the bytes currently pinned.
func (a *Arena) InUse() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.total
}

// Reset unpins every block.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.ptrs)
	a.total = 0
	a.next = firstAddress
}
