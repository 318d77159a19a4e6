package bridge

import (
	"fmt"

	"github.com/andrei-cloud/go_scriptbridge/internal/errorcodes"
)

// AllocationError reports a host allocation that returned offset 0.
type AllocationError struct {
	Size uint64
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("host allocation of %d bytes failed", e.Size)
}

// Is matches errorcodes.ErrAllocation.
func (e *AllocationError) Is(target error) bool {
	return target == errorcodes.ErrAllocation
}

// BlockStateError reports an operation on a block that is no longer owned
// by the guest.
type BlockStateError struct {
	Op     string
	Offset uint64
	State  string
}

func (e *BlockStateError) Error() string {
	return fmt.Sprintf("%s block %d: block is %s", e.Op, e.Offset, e.State)
}

// Is matches errorcodes.ErrBlockState.
func (e *BlockStateError) Is(target error) bool {
	return target == errorcodes.ErrBlockState
}

// OutputError reports a result that could not be handed to the host.
type OutputError struct {
	Size int
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("write %d byte output: %v", e.Size, e.Err)
}

// Is matches errorcodes.ErrOutput.
func (e *OutputError) Is(target error) bool {
	return target == errorcodes.ErrOutput
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// HostCallError reports a host function that failed or could not be reached.
type HostCallError struct {
	Name string
	Err  error
}

func (e *HostCallError) Error() string {
	return fmt.Sprintf("host function %s: %v", e.Name, e.Err)
}

// Is matches errorcodes.ErrHostCall.
func (e *HostCallError) Is(target error) bool {
	return target == errorcodes.ErrHostCall
}

func (e *HostCallError) Unwrap() error {
	return e.Err
}
