package bridge

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_scriptbridge/internal/errorcodes"
	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
)

// byteHost hides the kernel's bulk loader so input is read one byte at a time.
type byteHost struct{ hostabi.Host }

// TestAllocateDeallocateAnySize verifies every size leaves nothing outstanding after release.
func TestAllocateDeallocateAnySize(t *testing.T) {
	t.Parallel()

	for _, size := range []uint64{0, 1, 8, 13, 4096} {
		k := hostabi.NewKernel()
		br := New(k, nil)

		b, err := br.Allocate(size)
		require.NoError(t, err)
		assert.Equal(t, size, b.Len())
		assert.NotZero(t, b.Offset())
		assert.Equal(t, size, k.Length(b.Offset()))
		assert.Equal(t, 1, br.Outstanding())

		require.NoError(t, b.Release())
		assert.Zero(t, br.Outstanding())
		assert.Zero(t, k.Outstanding())
		assert.Empty(t, k.Faults())
	}
}

// TestAllocateFailure verifies a zero offset from the host becomes an AllocationError.
func TestAllocateFailure(t *testing.T) {
	t.Parallel()

	br := New(hostabi.NewKernel(hostabi.WithMemoryLimit(4)), nil)
	_, err := br.Allocate(5)

	var allocErr *AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, uint64(5), allocErr.Size)
	assert.ErrorIs(t, err, errorcodes.ErrAllocation)
	assert.Zero(t, br.Outstanding())
}

// TestDoubleReleaseNeverReachesHost verifies the second release is an error value, not a host free.
func TestDoubleReleaseNeverReachesHost(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel()
	br := New(k, nil)
	b, err := br.Allocate(4)
	require.NoError(t, err)

	require.NoError(t, b.Release())
	err = b.Release()
	require.ErrorIs(t, err, errorcodes.ErrBlockState)
	assert.Empty(t, k.Faults())
	assert.Zero(t, br.Outstanding())

	require.ErrorIs(t, b.Write([]byte("x")), errorcodes.ErrBlockState)
	assert.NoError(t, br.Deallocate(nil))
}

// TestBlockWriteBounds verifies writes larger than the block are rejected.
func TestBlockWriteBounds(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel()
	br := New(k, nil)
	b, err := br.Allocate(2)
	require.NoError(t, err)

	require.Error(t, b.Write([]byte("abc")))
	require.NoError(t, b.Write([]byte("ab")))
	require.NoError(t, b.Release())
	assert.Empty(t, k.Faults())
}

// TestWithBlockReleasesOnEveryPath verifies scoped blocks are freed on success, error and panic.
func TestWithBlockReleasesOnEveryPath(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel()
	br := New(k, nil)

	require.NoError(t, br.WithBlock(8, func(b *Block) error {
		return b.Write([]byte("scoped"))
	}))
	assert.Zero(t, br.Outstanding())

	boom := errors.New("boom")
	require.ErrorIs(t, br.WithBlock(8, func(*Block) error { return boom }), boom)
	assert.Zero(t, br.Outstanding())

	assert.Panics(t, func() {
		_ = br.WithBlock(8, func(*Block) error { panic("fn") })
	})
	assert.Zero(t, br.Outstanding())
	assert.Zero(t, k.Outstanding())
}

// TestWithBlockEarlyRelease verifies a block released inside fn is not released again.
func TestWithBlockEarlyRelease(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel()
	br := New(k, nil)

	require.NoError(t, br.WithBlock(8, func(b *Block) error { return b.Release() }))
	assert.Empty(t, k.Faults())
	assert.Zero(t, br.Outstanding())
}

// TestReadInput verifies bulk and byte-wise input loading produce the same bytes.
func TestReadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		wrap  bool
	}{
		{"bulk", []byte("Hello World"), false},
		{"byte-wise", []byte("Hello World"), true},
		{"bulk empty", nil, false},
		{"byte-wise empty", nil, true},
		{"binary", []byte{0, 1, 2, 255}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			k := hostabi.NewKernel()
			k.SetInput(tt.input)

			var host hostabi.Host = k
			if tt.wrap {
				host = byteHost{k}
			}

			in, err := New(host, nil).ReadInput()
			require.NoError(t, err)
			assert.NotNil(t, in.Bytes())
			assert.Equal(t, len(tt.input), in.Len())
			assert.Equal(t, string(tt.input), in.String())

			in.Release()
			in.Release()
			assert.NotNil(t, in.Bytes())
			assert.Empty(t, k.Faults())
		})
	}
}

// TestWriteOutput verifies allocate, store and registration in order, with the block handed over.
func TestWriteOutput(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel()
	br := New(k, nil)

	b, err := br.WriteOutput([]byte(`{"count": 3}`))
	require.NoError(t, err)
	assert.Zero(t, br.Outstanding())

	out, err := k.Output()
	require.NoError(t, err)
	assert.Equal(t, `{"count": 3}`, string(out))

	require.ErrorIs(t, b.Release(), errorcodes.ErrBlockState)
	assert.Empty(t, k.Faults())
}

// TestWriteOutputEmpty verifies an empty result still registers an output region.
func TestWriteOutputEmpty(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel()
	_, err := New(k, nil).WriteOutput(nil)
	require.NoError(t, err)

	out, err := k.Output()
	require.NoError(t, err)
	assert.Empty(t, out)
}

// TestWriteOutputAllocationFailure verifies the failure is an OutputError wrapping the allocation error.
func TestWriteOutputAllocationFailure(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel(hostabi.WithMemoryLimit(2))
	br := New(k, nil)

	_, err := br.WriteOutput([]byte("too long"))
	require.ErrorIs(t, err, errorcodes.ErrOutput)
	require.ErrorIs(t, err, errorcodes.ErrAllocation)
	assert.Equal(t, "40", errorcodes.Code(err))

	_, err = k.Output()
	assert.ErrorIs(t, err, hostabi.ErrNoOutput)
	assert.Zero(t, br.Outstanding())
}

// TestCallHost verifies the input and result blocks are both freed and the result is returned.
func TestCallHost(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel(hostabi.WithHostFunc("upper", func(in []byte) ([]byte, error) {
		return []byte(strings.ToUpper(string(in))), nil
	}))
	br := New(k, nil)

	for _, input := range []string{"hello", ""} {
		out, err := br.CallHost("upper", []byte(input))
		require.NoError(t, err)
		assert.Equal(t, strings.ToUpper(input), string(out))
	}

	assert.Zero(t, br.Outstanding())
	assert.Zero(t, k.Outstanding())
	assert.Empty(t, k.Faults())
}

// TestCallHostFailure verifies a zero result offset becomes a HostCallError.
func TestCallHostFailure(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel(hostabi.WithHostFunc("broken", func([]byte) ([]byte, error) {
		return nil, errors.New("backend down")
	}))
	br := New(k, nil)

	_, err := br.CallHost("broken", []byte("x"))
	var callErr *HostCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "broken", callErr.Name)
	assert.Equal(t, "33", errorcodes.Code(err))
	assert.Zero(t, br.Outstanding())
	assert.Zero(t, k.Outstanding())
}

// TestSetError verifies the message block is handed to the host and no longer counted.
func TestSetError(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel()
	br := New(k, nil)

	require.NoError(t, br.SetError("bad input"))
	msg, ok := k.Error()
	require.True(t, ok)
	assert.Equal(t, "bad input", msg)
	assert.Zero(t, br.Outstanding())
	assert.Zero(t, k.Outstanding())
}

// TestBlockReadAfterRelease verifies a released block cannot be read.
func TestBlockReadAfterRelease(t *testing.T) {
	t.Parallel()

	k := hostabi.NewKernel()
	br := New(k, nil)

	b, err := br.Allocate(3)
	require.NoError(t, err)
	require.NoError(t, b.Write([]byte("abc")))

	data, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	require.NoError(t, b.Release())
	_, err = b.Read()
	require.ErrorIs(t, err, errorcodes.ErrBlockState)
}
