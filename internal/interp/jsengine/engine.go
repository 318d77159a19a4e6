// Package jsengine runs plugin modules on QuickJS-ng.
//
// A module is plain JavaScript in CommonJS style: it assigns its entry
// points to exports (or replaces module.exports). Every module also sees a
// host global with log, config, vars, call and setError helpers.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gaurav-Gosain/quickjs"
	"github.com/rs/zerolog"

	"github.com/andrei-cloud/go_scriptbridge/internal/interp"
)

// ErrNotStarted is returned by Load before Start.
var ErrNotStarted = errors.New("engine not started")

// moduleHeader and moduleFooter wrap a source file so its top-level
// bindings stay private and its exports come back as the eval result. The
// header has no newline so error line numbers match the file.
const (
	moduleHeader = "(function () { var module = { exports: {} }; var exports = module.exports; "
	moduleFooter = "\n;return module.exports; })()"
)

// Engine is an interp.Engine backed by one QuickJS runtime and context.
type Engine struct {
	ctx context.Context
	log zerolog.Logger

	rt *quickjs.Runtime
	js *quickjs.Context

	arrayBuffer quickjs.Value
	uint8Array  quickjs.Value

	config map[string]string
	vars   map[string]string
	host   interp.HostCaller

	// scriptErr is the message passed to host.setError during the current call.
	scriptErr *string
}

var _ interp.Engine = (*Engine)(nil)

// New returns an engine that logs through logger. ctx bounds the runtime.
func New(ctx context.Context, logger zerolog.Logger) *Engine {
	return &Engine{
		ctx:  ctx,
		log:  logger,
		vars: make(map[string]string),
	}
}

// Start implements interp.Engine.
func (e *Engine) Start(opts interp.Options) error {
	if e.rt != nil {
		return errors.New("engine already started")
	}

	rt, err := quickjs.NewRuntimeWithContext(e.ctx)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}

	if err := e.configure(rt, opts); err != nil {
		return errors.Join(err, rt.Close())
	}

	js, err := rt.NewContext()
	if err != nil {
		return errors.Join(fmt.Errorf("create context: %w", err), rt.Close())
	}

	e.rt, e.js = rt, js
	e.config = opts.Vars
	e.host = opts.Host
	if err := e.install(); err != nil {
		return errors.Join(err, e.Close())
	}

	e.log.Debug().
		Str("event", "engine_started").
		Uint32("memory_limit", opts.MemoryLimit).
		Uint32("max_stack_size", opts.MaxStackSize).
		Msg("quickjs runtime ready")

	return nil
}

func (e *Engine) configure(rt *quickjs.Runtime, opts interp.Options) error {
	if opts.MemoryLimit > 0 {
		if err := rt.SetMemoryLimit(opts.MemoryLimit); err != nil {
			return fmt.Errorf("set memory limit: %w", err)
		}
	}
	if opts.MaxStackSize > 0 {
		if err := rt.SetMaxStackSize(opts.MaxStackSize); err != nil {
			return fmt.Errorf("set max stack size: %w", err)
		}
	}

	rt.SetLogFunc(func(msg string) {
		e.log.Info().Str("event", "console").Msg(strings.TrimRight(msg, "\n"))
	})

	return nil
}

// install defines the host global and caches constructors used to marshal results.
func (e *Engine) install() error {
	if err := e.js.SetGlobal("host", e.hostObject()); err != nil {
		return fmt.Errorf("install host object: %w", err)
	}

	var err error
	if e.arrayBuffer, err = e.js.GetGlobal("ArrayBuffer"); err != nil {
		return fmt.Errorf("lookup ArrayBuffer: %w", err)
	}
	if e.uint8Array, err = e.js.GetGlobal("Uint8Array"); err != nil {
		return fmt.Errorf("lookup Uint8Array: %w", err)
	}

	return nil
}

// Load implements interp.Engine.
func (e *Engine) Load(path string, source []byte) (interp.Module, error) {
	if e.js == nil {
		return nil, ErrNotStarted
	}

	exports, err := e.js.EvalFile(moduleHeader+string(source)+moduleFooter, path)
	if err != nil {
		return nil, err
	}
	if !exports.IsObject() {
		return nil, fmt.Errorf("module exports a %s, want an object", exports.Typeof())
	}

	return &module{engine: e, path: path, exports: exports}, nil
}

// Close implements interp.Engine.
func (e *Engine) Close() error {
	var errs []error
	if e.js != nil {
		errs = append(errs, e.js.Close())
		e.js = nil
	}
	if e.rt != nil {
		errs = append(errs, e.rt.Close())
		e.rt = nil
	}

	return errors.Join(errs...)
}
