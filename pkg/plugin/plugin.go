// Package plugin assembles a script bridge guest: one Instance per guest
// instantiation owns the interpreter, the memory bridge and the allocator
// behind the exported functions.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/andrei-cloud/go_scriptbridge/internal/bridge"
	"github.com/andrei-cloud/go_scriptbridge/internal/config"
	"github.com/andrei-cloud/go_scriptbridge/internal/dispatch"
	"github.com/andrei-cloud/go_scriptbridge/internal/errorcodes"
	"github.com/andrei-cloud/go_scriptbridge/internal/interp"
	"github.com/andrei-cloud/go_scriptbridge/internal/interp/jsengine"
	"github.com/andrei-cloud/go_scriptbridge/internal/logging"
	"github.com/andrei-cloud/go_scriptbridge/pkg/guestmem"
	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
)

// Option configures an Instance.
type Option func(*options)

type options struct {
	ctx    context.Context
	engine interp.Engine
	fs     afero.Fs
	exit   func(int)
	logger *zerolog.Logger
}

// WithContext bounds the default engine. Defaults to context.Background.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithEngine replaces the QuickJS engine.
func WithEngine(engine interp.Engine) Option {
	return func(o *options) {
		o.engine = engine
	}
}

// WithFs sets the sandbox filesystem modules are loaded from. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithExit replaces os.Exit for fatal double initialization.
func WithExit(exit func(int)) Option {
	return func(o *options) {
		o.exit = exit
	}
}

// WithLogger replaces the logger that writes to the host.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// Instance is the state of one guest instantiation. Calls are serialized.
type Instance struct {
	mu sync.Mutex
	// terminated holds the fatal error once the instance must stop serving.
	terminated error

	arena      *guestmem.Arena
	pool       *guestmem.BufferPool
	bridge     *bridge.Bridge
	manager    *interp.Manager
	dispatcher *dispatch.Dispatcher
	log        zerolog.Logger
}

// New builds an instance talking to host. A nil cfg uses config.Default.
// The interpreter starts on Initialize or on the first Invoke.
func New(host hostabi.Host, cfg *config.Config, opts ...Option) *Instance {
	if cfg == nil {
		cfg = config.Default()
	}

	o := options{
		ctx:  context.Background(),
		fs:   afero.NewOsFs(),
		exit: os.Exit,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.NewHostLogger(host, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format != "json")
	if o.logger != nil {
		logger = *o.logger
	}
	logger = logger.With().Str("module", cfg.Interpreter.Module).Logger()

	engine := o.engine
	if engine == nil {
		engine = jsengine.New(o.ctx, logger)
	}

	pool := guestmem.NewBufferPool()
	br := bridge.New(host, pool)

	ic := cfg.Interpreter
	manager := interp.NewManager(engine, o.fs, interp.Settings{
		Module:    ic.Module,
		Extension: ic.Extension,
		Options: interp.Options{
			Home:         ic.Home,
			SearchPath:   ic.SearchPath,
			MemoryLimit:  ic.MemoryLimit,
			MaxStackSize: ic.MaxStackSize,
			Vars:         ic.Vars,
			Host:         br,
		},
	}, interp.WithLogger(logger), interp.WithExit(o.exit))

	return &Instance{
		arena:      guestmem.NewArena(0),
		pool:       pool,
		bridge:     br,
		manager:    manager,
		dispatcher: dispatch.New(manager, br, ic.EntryPoint, logger),
		log:        logger,
	}
}

// Initialize starts the interpreter and loads the module. A second
// initialization terminates the process; when the exit hook returns, the
// instance stops serving invocations instead.
func (i *Instance) Initialize() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	_, err := i.manager.Initialize()
	if errorcodes.IsFatal(err) {
		i.terminated = err
	}

	return err
}

// Invoke runs the entry point on the current input and returns the status
// for the host.
func (i *Instance) Invoke() (status int32) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.terminated != nil {
		i.log.Error().
			Err(i.terminated).
			Str("event", "invoke_rejected").
			Msg("instance terminated")

		return dispatch.StatusFailure
	}

	defer func() {
		if r := recover(); r != nil {
			i.log.Error().
				Str("event", "invoke_panic").
				Str("panic", fmt.Sprint(r)).
				Msg("invocation aborted")
			status = dispatch.StatusFailure
		}
	}()
	defer i.logMemory()

	return i.dispatcher.Invoke()
}

// logMemory reports allocator and input pool usage after a call.
func (i *Instance) logMemory() {
	stats := i.pool.Stats()
	i.log.Debug().
		Str("event", "invoke_memory").
		Int("arena_blocks", i.arena.Outstanding()).
		Uint64("arena_bytes", i.arena.InUse()).
		Int("host_blocks", i.bridge.Outstanding()).
		Int64("pool_gets", stats.Gets).
		Int64("pool_misses", stats.Misses).
		Int64("pool_oversized", stats.Oversized).
		Float64("pool_hit_rate", stats.HitRate()).
		Msg("memory after invoke")
}

// Allocate reserves size bytes of guest memory for the host and returns
// their address, or 0 on failure.
func (i *Instance) Allocate(size uint32) uint32 {
	i.mu.Lock()
	defer i.mu.Unlock()

	ptr, err := i.arena.Allocate(size)
	if err != nil {
		i.log.Error().Err(err).Str("event", "allocate_failed").Uint32("size", size).Msg("guest allocation failed")

		return 0
	}

	return ptr
}

// Deallocate frees memory returned by Allocate.
func (i *Instance) Deallocate(ptr, size uint32) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.arena.Deallocate(ptr, size); err != nil {
		i.log.Error().Err(err).Str("event", "deallocate_failed").Uint32("size", size).Msg("guest deallocation failed")
	}
}

// Bytes returns the guest block at ptr, or nil.
func (i *Instance) Bytes(ptr uint32) []byte {
	return i.arena.Bytes(ptr)
}

// State reports the interpreter lifecycle state.
func (i *Instance) State() interp.State {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.manager.State()
}

// Outstanding reports live guest allocations and host blocks still owned by the bridge.
func (i *Instance) Outstanding() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.arena.Outstanding() + i.bridge.Outstanding()
}

// Close releases the interpreter and every guest allocation.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.arena.Reset()
	if err := i.manager.Close(); err != nil && !errors.Is(err, interp.ErrClosed) {
		return err
	}

	return nil
}
