//go:build wasip1

// Command echo is a guest for the runner tests. It serves the bridge exports
// with a scripted engine instead of QuickJS:
//
//	"fail"      fails with the message "rejected"
//	"call:<s>"  returns host function upper applied to s
//	anything    is echoed back
package main

import (
	"strings"

	"github.com/spf13/afero"

	"github.com/andrei-cloud/go_scriptbridge/internal/config"
	"github.com/andrei-cloud/go_scriptbridge/internal/interp"
	"github.com/andrei-cloud/go_scriptbridge/internal/interp/interptest"
	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
	"github.com/andrei-cloud/go_scriptbridge/pkg/plugin"
)

var (
	engine   = &interptest.Engine{}
	instance = newInstance()
)

func newInstance() *plugin.Instance {
	host := hostabi.Env{}

	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/plugin/plugin.js", []byte("// scripted"), 0o644)

	cfg, err := config.Load(config.WithFs(fs))
	if err != nil {
		host.Log(hostabi.LogError, "config: "+err.Error())
		cfg = config.Default()
	}
	engine.Attrs = map[string]any{cfg.Interpreter.EntryPoint: interptest.Func(run)}

	return plugin.New(host, cfg, plugin.WithEngine(engine), plugin.WithFs(fs))
}

func run(input []byte) ([]byte, error) {
	s := string(input)
	switch {
	case s == "fail":
		return nil, &interp.ScriptError{Message: "rejected"}
	case strings.HasPrefix(s, "call:"):
		return engine.Opts.Host.CallHost("upper", []byte(strings.TrimPrefix(s, "call:")))
	default:
		return input, nil
	}
}

//go:wasmexport initialize
func initialize() {
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
