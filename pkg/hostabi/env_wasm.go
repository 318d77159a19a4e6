//go:build wasip1

package hostabi

import "unsafe"

//go:wasmimport env input_length
func hostInputLength() uint64

//go:wasmimport env input_load_byte
func hostInputLoadByte(offset uint64) uint32

//go:wasmimport env alloc
func hostAlloc(size uint64) uint64

//go:wasmimport env free
func hostFree(offset uint64)

//go:wasmimport env store
func hostStore(offset uint64, ptr unsafe.Pointer, size uint32)

//go:wasmimport env output_set
func hostOutputSet(offset, length uint64)

//go:wasmimport env length
func hostLength(offset uint64) uint64

//go:wasmimport env load
func hostLoad(offset uint64, ptr unsafe.Pointer, size uint32)

//go:wasmimport env host_call
func hostCall(namePtr unsafe.Pointer, nameSize uint32, input uint64) uint64

//go:wasmimport env error_set
func hostErrorSet(offset uint64)

//go:wasmimport env log
func hostLog(ptr unsafe.Pointer, size, level uint32)

// Env is the Host implemented by the imports of the "env" module.
type Env struct{}

// InputLength implements Host.
func (Env) InputLength() uint64 { return hostInputLength() }

// InputLoadByte implements Host.
func (Env) InputLoadByte(offset uint64) byte { return byte(hostInputLoadByte(offset)) }

// Alloc implements Host.
func (Env) Alloc(size uint64) uint64 { return hostAlloc(size) }

// Free implements Host.
func (Env) Free(offset uint64) { hostFree(offset) }

// Store implements Host.
//
//nolint:gosec // the host reads size bytes from guest linear memory.
func (Env) Store(offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	hostStore(offset, unsafe.Pointer(unsafe.SliceData(data)), uint32(len(data)))
}

// OutputSet implements Host.
func (Env) OutputSet(offset, length uint64) { hostOutputSet(offset, length) }

// Length implements Host.
func (Env) Length(offset uint64) uint64 { return hostLength(offset) }

// Load implements Host.
//
//nolint:gosec // the host writes len(dst) bytes into guest linear memory.
func (Env) Load(offset uint64, dst []byte) {
	if len(dst) == 0 {
		return
	}
	hostLoad(offset, unsafe.Pointer(unsafe.SliceData(dst)), uint32(len(dst)))
}

// Call implements Host.
//
//nolint:gosec // the host reads the name from guest linear memory.
func (Env) Call(name string, input uint64) uint64 {
	return hostCall(unsafe.Pointer(unsafe.StringData(name)), uint32(len(name)), input)
}

// ErrorSet implements Host.
func (Env) ErrorSet(offset uint64) { hostErrorSet(offset) }

// Log implements Host.
//
//nolint:gosec // the host reads size bytes from guest linear memory.
func (Env) Log(level LogLevel, msg string) {
	if msg == "" {
		return
	}
	hostLog(unsafe.Pointer(unsafe.StringData(msg)), uint32(len(msg)), uint32(level))
}
