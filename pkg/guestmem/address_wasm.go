//go:build wasip1

package guestmem

import "unsafe"

const firstAddress = 0

// address returns the linear-memory address of buf's backing array.
//
//nolint:gosec // wasm32 pointers fit in 32 bits.
func (a *Arena) address(buf []byte) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf[:cap(buf)]))))
}
