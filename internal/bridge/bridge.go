// Package bridge moves bytes across the host/guest memory boundary. Every
// host block is wrapped in a Block that tracks its own state, so a block is
// freed at most once and never after the host took ownership of it.
package bridge

import (
	"errors"
	"fmt"
	"math"

	"github.com/andrei-cloud/go_scriptbridge/pkg/guestmem"
	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
)

type blockState uint8

const (
	blockOwned blockState = iota
	blockConsumed
	blockReleased
)

func (s blockState) String() string {
	switch s {
	case blockOwned:
		return "owned"
	case blockConsumed:
		return "consumed"
	case blockReleased:
		return "released"
	default:
		return "invalid"
	}
}

// Block is a host memory region allocated for the current call.
type Block struct {
	bridge *Bridge
	offset uint64
	length uint64
	state  blockState
}

// Offset returns the host offset of the block.
func (b *Block) Offset() uint64 { return b.offset }

// Len returns the block length requested at allocation.
func (b *Block) Len() uint64 { return b.length }

// Write copies data to the start of the block.
func (b *Block) Write(data []byte) error {
	if b.state != blockOwned {
		return &BlockStateError{Op: "write", Offset: b.offset, State: b.state.String()}
	}
	if uint64(len(data)) > b.length {
		return fmt.Errorf("write %d bytes into %d byte block %d", len(data), b.length, b.offset)
	}
	b.bridge.host.Store(b.offset, data)

	return nil
}

// Read copies the block contents out of host memory.
func (b *Block) Read() ([]byte, error) {
	if b.state != blockOwned {
		return nil, &BlockStateError{Op: "read", Offset: b.offset, State: b.state.String()}
	}
	if b.length > math.MaxInt32 {
		return nil, fmt.Errorf("block %d of %d bytes exceeds guest address space", b.offset, b.length)
	}
	buf := make([]byte, b.length)
	b.bridge.host.Load(b.offset, buf)

	return buf, nil
}

// handOff marks b as owned by the host.
func (b *Block) handOff() {
	b.state = blockConsumed
	b.bridge.outstanding--
}

// Release returns the block to the host.
func (b *Block) Release() error {
	return b.bridge.Deallocate(b)
}

// Bridge allocates host blocks and copies call input and output. It serves
// one call at a time.
type Bridge struct {
	host        hostabi.Host
	pool        *guestmem.BufferPool
	outstanding int
}

// New returns a bridge over host. A nil pool gets a default one.
func New(host hostabi.Host, pool *guestmem.BufferPool) *Bridge {
	if pool == nil {
		pool = guestmem.NewBufferPool()
	}

	return &Bridge{host: host, pool: pool}
}

// Allocate reserves size bytes of host memory. Zero is a valid size.
func (br *Bridge) Allocate(size uint64) (*Block, error) {
	offset := br.host.Alloc(size)
	if offset == 0 {
		return nil, &AllocationError{Size: size}
	}
	br.outstanding++

	return &Block{bridge: br, offset: offset, length: size}, nil
}

// Deallocate frees b. A block that was already released or handed to the
// host is reported and never reaches the host.
func (br *Bridge) Deallocate(b *Block) error {
	if b == nil {
		return nil
	}
	if b.state != blockOwned {
		return &BlockStateError{Op: "release", Offset: b.offset, State: b.state.String()}
	}
	br.host.Free(b.offset)
	b.state = blockReleased
	br.outstanding--

	return nil
}

// WithBlock allocates size bytes, runs fn and releases the block on every
// exit path unless fn handed it to the host.
func (br *Bridge) WithBlock(size uint64, fn func(*Block) error) (err error) {
	b, err := br.Allocate(size)
	if err != nil {
		return err
	}

	defer func() {
		if b.state == blockOwned {
			err = errors.Join(err, br.Deallocate(b))
		}
	}()

	return fn(b)
}

// ReadInput copies the current call's input out of host memory.
func (br *Bridge) ReadInput() (*Input, error) {
	n := br.host.InputLength()
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("input of %d bytes exceeds guest address space", n)
	}

	buf := br.pool.Get(int(n))
	if loader, ok := br.host.(hostabi.InputLoader); ok {
		if got := loader.LoadInput(buf); uint64(got) != n {
			br.pool.Put(buf)

			return nil, fmt.Errorf("host loaded %d of %d input bytes", got, n)
		}
	} else {
		for i := range buf {
			buf[i] = br.host.InputLoadByte(uint64(i))
		}
	}

	return &Input{buf: buf, pool: br.pool}, nil
}

// WriteOutput stores data in a fresh block and registers it as the call's
// output. On success the block belongs to the host.
func (br *Bridge) WriteOutput(data []byte) (*Block, error) {
	var out *Block
	err := br.WithBlock(uint64(len(data)), func(b *Block) error {
		if err := b.Write(data); err != nil {
			return err
		}
		br.host.OutputSet(b.offset, b.length)
		b.handOff()
		out = b

		return nil
	})
	if err != nil {
		return nil, &OutputError{Size: len(data), Err: err}
	}

	return out, nil
}

// errNoResult is the cause of a host call that returned offset 0.
var errNoResult = errors.New("host returned no result")

// CallHost runs the host function name on input and returns its result.
// Both the input block and the result block are freed before returning.
func (br *Bridge) CallHost(name string, input []byte) ([]byte, error) {
	var result []byte
	err := br.WithBlock(uint64(len(input)), func(in *Block) error {
		if err := in.Write(input); err != nil {
			return err
		}

		offset := br.host.Call(name, in.offset)
		if offset == 0 {
			return errNoResult
		}
		br.outstanding++
		out := &Block{bridge: br, offset: offset, length: br.host.Length(offset)}

		data, err := out.Read()
		result = data

		return errors.Join(err, out.Release())
	})
	if err != nil {
		return nil, &HostCallError{Name: name, Err: err}
	}

	return result, nil
}

// SetError hands msg to the host as the current call's error message.
func (br *Bridge) SetError(msg string) error {
	return br.WithBlock(uint64(len(msg)), func(b *Block) error {
		if err := b.Write([]byte(msg)); err != nil {
			return err
		}
		br.host.ErrorSet(b.offset)
		b.handOff()

		return nil
	})
}

// Outstanding reports blocks allocated through the bridge that were neither
// released nor handed to the host.
func (br *Bridge) Outstanding() int {
	return br.outstanding
}
