// Package plugins hosts script bridge guests on wazero. A Runner plays the
// host side of the ABI with an in-memory kernel, so guests can be run and
// tested from the command line.
package plugins

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/andrei-cloud/go_scriptbridge/internal/logging"
	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
)

// Guest export names.
const (
	ExportInitialize = "initialize"
	ExportInvoke     = "invoke"
	ExportAllocate   = "allocate"
	ExportDeallocate = "deallocate"
)

// ErrMissingExport is returned when a guest lacks a required export.
var ErrMissingExport = errors.New("guest is missing required exports")

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Name identifies the guest in logs.
	Name string
	// Mount is a host directory exposed to the guest at Home. Empty mounts nothing.
	Mount string
	// Home is the guest path of the mount.
	Home string
	// MaxMemory caps host-side block allocations. Zero is unlimited.
	MaxMemory uint64
	// Env is passed to the guest environment.
	Env map[string]string
	// Stderr receives the guest's standard error. Nil discards it.
	Stderr io.Writer
	// Funcs are the host functions scripts reach through host.call.
	Funcs map[string]hostabi.HostFunc
}

// Result is the outcome of one invocation.
type Result struct {
	CallID  string
	Status  int32
	Output  []byte
	// Error is the message the guest registered for a failed call.
	Error   string
	Logs    []hostabi.LogEntry
	Elapsed time.Duration
}

// Runner owns a wazero runtime with one guest instance.
type Runner struct {
	ctx     context.Context
	name    string
	runtime wazero.Runtime
	module  api.Module
	kernel  *hostabi.Kernel

	initialize api.Function
	invoke     api.Function
	allocate   api.Function
	deallocate api.Function

	mu sync.Mutex
}

// NewRunner compiles and instantiates wasm.
func NewRunner(ctx context.Context, wasm []byte, cfg RunnerConfig) (*Runner, error) {
	if cfg.Name == "" {
		cfg.Name = "guest"
	}

	r := &Runner{ctx: ctx, name: cfg.Name}
	opts := []hostabi.KernelOption{
		hostabi.WithMemoryLimit(cfg.MaxMemory),
		hostabi.WithLogSink(ForwardLogs(r.name)),
	}
	for name, fn := range cfg.Funcs {
		opts = append(opts, hostabi.WithHostFunc(name, fn))
	}
	r.kernel = hostabi.NewKernel(opts...)

	r.runtime = wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if err := r.instantiate(wasm, cfg); err != nil {
		return nil, errors.Join(err, r.runtime.Close(ctx))
	}

	log.Info().
		Str("event", "guest_loaded").
		Str("plugin", r.name).
		Msg("loaded wasm guest")

	return r, nil
}

func (r *Runner) instantiate(wasm []byte, cfg RunnerConfig) error {
	ctx := r.ctx
	wasi_snapshot_preview1.MustInstantiate(ctx, r.runtime)

	if err := NewHostFunctions(r.kernel, r.name).Register(ctx, r.runtime); err != nil {
		return fmt.Errorf("failed to instantiate env module: %w", err)
	}

	compiled, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return fmt.Errorf("failed to compile guest module: %w", err)
	}

	// Go guests index os.Args[0] during package initialization.
	modCfg := wazero.NewModuleConfig().
		WithName(r.name).
		WithArgs(r.name).
		WithStartFunctions("_initialize").
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)
	if cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(cfg.Stderr)
	}
	for k, v := range cfg.Env {
		modCfg = modCfg.WithEnv(k, v)
	}
	if cfg.Mount != "" {
		modCfg = modCfg.WithFSConfig(wazero.NewFSConfig().WithDirMount(cfg.Mount, cfg.Home))
	}

	if err := r.checkExports(compiled); err != nil {
		return err
	}

	r.module, err = r.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return fmt.Errorf("failed to instantiate guest module: %w", err)
	}

	r.initialize = r.module.ExportedFunction(ExportInitialize)
	r.invoke = r.module.ExportedFunction(ExportInvoke)
	r.allocate = r.module.ExportedFunction(ExportAllocate)
	r.deallocate = r.module.ExportedFunction(ExportDeallocate)

	return nil
}

// checkExports fails before instantiation when a required export is absent.
func (r *Runner) checkExports(compiled wazero.CompiledModule) error {
	exports := compiled.ExportedFunctions()

	var missing []string
	for _, name := range []string{ExportInitialize, ExportInvoke, ExportAllocate, ExportDeallocate} {
		if _, ok := exports[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingExport, strings.Join(missing, ", "))
	}

	return nil
}

// ForwardLogs returns a kernel log sink that relays guest entries to the
// process logger.
func ForwardLogs(plugin string) func(hostabi.LogEntry) {
	return func(e hostabi.LogEntry) {
		log.WithLevel(zerologLevel(e.Level)).
			Str("event", "guest_log").
			Str("plugin", plugin).
			Msg(e.Message)
	}
}

// Initialize calls the guest initialize export.
func (r *Runner) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.initialize.Call(r.ctx); err != nil {
		return fmt.Errorf("initialize %s: %w", r.name, err)
	}

	return nil
}

// Call invokes the guest with input.
func (r *Runner) Call(input []byte) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Result{CallID: uuid.NewString()}
	r.kernel.Reset()
	r.kernel.SetInput(input)

	start := time.Now()
	ret, err := r.invoke.Call(r.ctx)
	res.Elapsed = time.Since(start)
	res.Logs = r.kernel.Logs()
	if err != nil {
		return res, fmt.Errorf("invoke %s: %w", r.name, err)
	}
	if len(ret) < 1 {
		return res, errors.New("invoke returned no status")
	}
	res.Status = api.DecodeI32(ret[0])
	res.Error, _ = r.kernel.Error()

	if res.Status == 0 {
		if res.Output, err = r.kernel.Output(); err != nil {
			return res, fmt.Errorf("read output: %w", err)
		}
	}

	logging.LogInvocation(res.CallID, r.name, res.Status, input, res.Output, res.Elapsed)

	return res, nil
}

// Allocate asks the guest for size bytes and returns the address.
func (r *Runner) Allocate(size uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ret, err := r.allocate.Call(r.ctx, api.EncodeU32(size))
	if err != nil {
		return 0, fmt.Errorf("allocate failed: %w", err)
	}
	if len(ret) < 1 {
		return 0, errors.New("allocate returned no results")
	}
	ptr := api.DecodeU32(ret[0])
	if ptr == 0 {
		return 0, fmt.Errorf("guest could not allocate %d bytes", size)
	}

	return ptr, nil
}

// Deallocate returns a block obtained from Allocate.
func (r *Runner) Deallocate(ptr, size uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.deallocate.Call(r.ctx, api.EncodeU32(ptr), api.EncodeU32(size)); err != nil {
		return fmt.Errorf("deallocate failed: %w", err)
	}

	return nil
}

// WriteGuest copies data into guest memory at ptr.
func (r *Runner) WriteGuest(ptr uint32, data []byte) error {
	if !r.module.Memory().Write(ptr, data) {
		return errors.New("memory write failed: bounds exceeded")
	}

	return nil
}

// ReadGuest copies size bytes of guest memory at ptr.
func (r *Runner) ReadGuest(ptr, size uint32) ([]byte, error) {
	data, ok := r.module.Memory().Read(ptr, size)
	if !ok {
		return nil, errors.New("memory read failed: bounds exceeded")
	}

	return append([]byte(nil), data...), nil
}

// Faults returns ABI violations the guest committed against the host.
func (r *Runner) Faults() []error {
	return r.kernel.Faults()
}

// Close closes the runtime and the guest.
func (r *Runner) Close() error {
	return r.runtime.Close(r.ctx)
}

func zerologLevel(level hostabi.LogLevel) zerolog.Level {
	switch level {
	case hostabi.LogDebug:
		return zerolog.DebugLevel
	case hostabi.LogWarn:
		return zerolog.WarnLevel
	case hostabi.LogError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
