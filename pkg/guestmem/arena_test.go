package guestmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestArenaAllocateDeallocate verifies allocate then deallocate leaves nothing pinned for any size.
func TestArenaAllocateDeallocate(t *testing.T) {
	t.Parallel()

	for _, size := range []uint32{0, 1, 7, 8, 9, 4096} {
		a := NewArena(0)

		ptr, err := a.Allocate(size)
		require.NoError(t, err)
		assert.NotZero(t, ptr)
		assert.Len(t, a.Bytes(ptr), int(size))
		assert.Equal(t, 1, a.Outstanding())

		require.NoError(t, a.Deallocate(ptr, size))
		assert.Zero(t, a.Outstanding())
		assert.Zero(t, a.InUse())
	}
}

// TestArenaZeroSizedBlocksAreDistinct verifies zero-sized allocations never share an address.
func TestArenaZeroSizedBlocksAreDistinct(t *testing.T) {
	t.Parallel()

	a := NewArena(0)
	seen := make(map[uint32]bool)
	for range 16 {
		ptr, err := a.Allocate(0)
		require.NoError(t, err)
		assert.False(t, seen[ptr], "address %#x reused", ptr)
		seen[ptr] = true
	}
	assert.Equal(t, 16, a.Outstanding())
}

// TestArenaLimit verifies the limit is enforced and freed bytes become available again.
func TestArenaLimit(t *testing.T) {
	t.Parallel()

	a := NewArena(100)
	ptr, err := a.Allocate(80)
	require.NoError(t, err)

	_, err = a.Allocate(21)
	require.ErrorIs(t, err, ErrLimitExceeded)

	require.NoError(t, a.Deallocate(ptr, 80))
	_, err = a.Allocate(100)
	require.NoError(t, err)
}

// TestArenaDeallocateErrors verifies unknown pointers and size mismatches are reported.
func TestArenaDeallocateErrors(t *testing.T) {
	t.Parallel()

	a := NewArena(0)
	require.ErrorIs(t, a.Deallocate(12345, 1), ErrUnknownPointer)

	ptr, err := a.Allocate(16)
	require.NoError(t, err)
	require.ErrorIs(t, a.Deallocate(ptr, 8), ErrSizeMismatch)
	assert.Zero(t, a.Outstanding(), "mismatched deallocation still releases the block")

	require.ErrorIs(t, a.Deallocate(ptr, 16), ErrUnknownPointer)
}

// TestArenaReset verifies Reset unpins everything.
func TestArenaReset(t *testing.T) {
	t.Parallel()

	a := NewArena(0)
	for range 3 {
		_, err := a.Allocate(10)
		require.NoError(t, err)
	}
	a.Reset()

	assert.Zero(t, a.Outstanding())
	assert.Zero(t, a.InUse())
}
