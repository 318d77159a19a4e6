// Package interptest provides a scripted interp.Engine for tests.
package interptest

import (
	"fmt"

	"github.com/andrei-cloud/go_scriptbridge/internal/interp"
)

// Func adapts a Go function to interp.Callable.
type Func func(input []byte) ([]byte, error)

// Call implements interp.Callable.
func (f Func) Call(input []byte) ([]byte, error) {
	return f(input)
}

// Module resolves attributes from a map. Values implementing
// interp.Callable are found; any other value is not callable.
type Module struct {
	Path  string
	Attrs map[string]any
}

// Name implements interp.Module.
func (m *Module) Name() string { return m.Path }

// Lookup implements interp.Module.
func (m *Module) Lookup(name string) interp.Lookup {
	v, ok := m.Attrs[name]
	if !ok {
		return interp.NotFound()
	}
	if c, ok := v.(interp.Callable); ok {
		return interp.Found(c)
	}

	return interp.NotCallable(fmt.Sprintf("%T", v))
}

// Engine records calls and serves Module values built from Attrs.
type Engine struct {
	StartErr error
	LoadErr  error
	Attrs    map[string]any
	// OnStart runs inside Start, before StartErr is returned.
	OnStart func()

	Starts  int
	Loads   int
	Closes  int
	Opts    interp.Options
	Paths   []string
	Sources []string
}

// Start implements interp.Engine.
func (e *Engine) Start(opts interp.Options) error {
	e.Starts++
	e.Opts = opts
	if e.OnStart != nil {
		e.OnStart()
	}

	return e.StartErr
}

// Load implements interp.Engine.
func (e *Engine) Load(path string, source []byte) (interp.Module, error) {
	e.Loads++
	e.Paths = append(e.Paths, path)
	e.Sources = append(e.Sources, string(source))
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}

	return &Module{Path: path, Attrs: e.Attrs}, nil
}

// Close implements interp.Engine.
func (e *Engine) Close() error {
	e.Closes++

	return nil
}
