//go:build wasip1

// Command guest is the script bridge plugin. Build it as a WASI reactor:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o plugin.wasm ./cmd/guest
//
// The host calls initialize once, then invoke for every request, and uses
// allocate and deallocate to exchange guest memory.
package main

import (
	"github.com/andrei-cloud/go_scriptbridge/internal/config"
	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
	"github.com/andrei-cloud/go_scriptbridge/pkg/plugin"
)

// instance exists before the first export call; Go runs package
// initialization from the reactor's _initialize.
var instance = newInstance()

func newInstance() *plugin.Instance {
	host := hostabi.Env{}

	cfg, err := config.Load()
	if err != nil {
		host.Log(hostabi.LogError, "config: "+err.Error()+"; using defaults")
		cfg = config.Default()
	}

	return plugin.New(host, cfg)
}

//go:wasmexport initialize
func initialize() {
	// Failures are logged to the host and reported again by invoke.
	_ = instance.Initialize()
}

//go:wasmexport allocate
func allocate(size uint32) uint32 {
	return instance.Allocate(size)
}

//go:wasmexport deallocate
func deallocate(ptr, size uint32) {
	instance.Deallocate(ptr, size)
}

//go:wasmexport invoke
func invoke() int32 {
	return instance.Invoke()
}

func main() {}
