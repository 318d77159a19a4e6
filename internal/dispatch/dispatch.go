// Package dispatch runs one exported call: it makes sure the interpreter is
// ready, reads the input, resolves and invokes the entry point and writes
// the result back to the host.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrei-cloud/go_scriptbridge/internal/bridge"
	"github.com/andrei-cloud/go_scriptbridge/internal/errorcodes"
	"github.com/andrei-cloud/go_scriptbridge/internal/interp"
)

// Status is returned to the host by the invoke export.
type Status = int32

// Status values.
const (
	StatusOK      Status = errorcodes.StatusOK
	StatusFailure Status = errorcodes.StatusFailure
)

// Lifecycle provides the loaded module.
type Lifecycle interface {
	EnsureReady() (interp.Module, error)
}

// Dispatcher invokes one entry point per call.
type Dispatcher struct {
	lifecycle  Lifecycle
	bridge     *bridge.Bridge
	entryPoint string
	log        zerolog.Logger
}

// New returns a dispatcher calling entryPoint on the module lifecycle provides.
func New(lifecycle Lifecycle, br *bridge.Bridge, entryPoint string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		lifecycle:  lifecycle,
		bridge:     br,
		entryPoint: entryPoint,
		log:        logger,
	}
}

// Invoke performs one call and reports its status. Every failure is logged
// at error level, registered as the call's error with the host and returned
// as StatusFailure.
func (d *Dispatcher) Invoke() Status {
	start := time.Now()

	mod, err := d.lifecycle.EnsureReady()
	if err != nil {
		d.log.Error().
			Err(err).
			Str("event", "invoke_failed").
			Str("code", errorcodes.Code(err)).
			Msgf("module not loaded: %v", err)
		d.report(fmt.Errorf("module not loaded: %w", err))

		return StatusFailure
	}

	n, err := d.call(mod)
	if err != nil {
		d.log.Error().
			Err(err).
			Str("event", "invoke_failed").
			Str("code", errorcodes.Code(err)).
			Str("entry_point", d.entryPoint).
			Msg("invocation failed")
		d.report(err)

		return errorcodes.Status(err)
	}

	d.log.Debug().
		Str("event", "invoke_complete").
		Str("entry_point", d.entryPoint).
		Int("output_len", n).
		Dur("elapsed", time.Since(start)).
		Msg("invocation complete")

	return StatusOK
}

// report hands the failure message to the host. A message the script set
// itself is passed unchanged.
func (d *Dispatcher) report(err error) {
	msg := err.Error()
	var scriptErr *interp.ScriptError
	if errors.As(err, &scriptErr) {
		msg = scriptErr.Message
	}

	if serr := d.bridge.SetError(msg); serr != nil {
		d.log.Warn().
			Err(serr).
			Str("event", "error_set_failed").
			Msg("could not report error to host")
	}
}

// call runs the entry point and registers its output. It returns the output length.
func (d *Dispatcher) call(mod interp.Module) (int, error) {
	input, err := d.bridge.ReadInput()
	if err != nil {
		return 0, fmt.Errorf("read input: %w", err)
	}
	defer input.Release()

	lookup := mod.Lookup(d.entryPoint)
	switch lookup.Kind {
	case interp.LookupFound:
	case interp.LookupNotCallable:
		return 0, &NotCallableError{Module: mod.Name(), Name: d.entryPoint, TypeName: lookup.TypeName}
	default:
		return 0, &AttributeLookupError{Module: mod.Name(), Name: d.entryPoint}
	}

	d.log.Debug().
		Str("event", "invoke_start").
		Str("entry_point", d.entryPoint).
		Int("input_len", input.Len()).
		Msg("invoking entry point")

	result, err := invoke(lookup.Callable, d.entryPoint, input.Bytes())
	if err != nil {
		return 0, err
	}

	if _, err := d.bridge.WriteOutput(result); err != nil {
		return 0, err
	}

	return len(result), nil
}

// invoke calls c, converting both errors and panics into an InvocationError.
func invoke(c interp.Callable, name string, input []byte) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &InvocationError{Name: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err = c.Call(input)
	if err != nil {
		return nil, &InvocationError{Name: name, Err: err}
	}

	return result, nil
}
