package cmd

import (
	"time"

	"github.com/google/uuid"

	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
)

// hostFuncs are the functions scripts reach through host.call.
func hostFuncs() map[string]hostabi.HostFunc {
	return map[string]hostabi.HostFunc{
		"echo": func(in []byte) ([]byte, error) { return in, nil },
		"uuid": func([]byte) ([]byte, error) { return []byte(uuid.NewString()), nil },
		"now": func([]byte) ([]byte, error) {
			return []byte(time.Now().UTC().Format(time.RFC3339Nano)), nil
		},
	}
}

// kernelOptions registers hostFuncs on a kernel.
func kernelOptions(opts ...hostabi.KernelOption) []hostabi.KernelOption {
	for name, fn := range hostFuncs() {
		opts = append(opts, hostabi.WithHostFunc(name, fn))
	}

	return opts
}
