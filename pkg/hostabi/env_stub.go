//go:build !wasip1

// Stubs for the host imports so the package builds and lints natively.
// Outside a WASM host every allocation fails and input is empty.
package hostabi

// Env is the Host implemented by the imports of the "env" module.
type Env struct{}

// InputLength implements Host.
func (Env) InputLength() uint64 { return 0 }

// InputLoadByte implements Host.
func (Env) InputLoadByte(_ uint64) byte { return 0 }

// Alloc implements Host.
func (Env) Alloc(_ uint64) uint64 { return 0 }

// Free implements Host.
func (Env) Free(_ uint64) {}

// Store implements Host.
func (Env) Store(_ uint64, _ []byte) {}

// OutputSet implements Host.
func (Env) OutputSet(_, _ uint64) {}

// Length implements Host.
func (Env) Length(_ uint64) uint64 { return 0 }

// Load implements Host.
func (Env) Load(_ uint64, _ []byte) {}

// Call implements Host.
func (Env) Call(_ string, _ uint64) uint64 { return 0 }

// ErrorSet implements Host.
func (Env) ErrorSet(_ uint64) {}

// Log implements Host.
func (Env) Log(_ LogLevel, _ string) {}
