//go:build !wasip1

package guestmem

// firstAddress keeps 0 free to signal failure.
const firstAddress = 8

// address hands out 8-byte aligned synthetic addresses. Outside wasm the
// host never dereferences them, it only passes them back.
func (a *Arena) address(buf []byte) uint32 {
	ptr := a.next
	size := uint32(cap(buf))
	a.next += size + (8-size%8)%8

	return ptr
}
