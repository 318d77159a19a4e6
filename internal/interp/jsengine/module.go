package jsengine

import (
	"errors"
	"fmt"

	"github.com/Gaurav-Gosain/quickjs"

	"github.com/andrei-cloud/go_scriptbridge/internal/interp"
)

// ErrAsyncResult is returned when an entry point returns a Promise.
var ErrAsyncResult = errors.New("entry point returned a Promise")

type module struct {
	engine  *Engine
	path    string
	exports quickjs.Value
}

func (m *module) Name() string { return m.path }

func (m *module) Lookup(name string) interp.Lookup {
	if !m.exports.Has(name) {
		return interp.NotFound()
	}

	v, err := m.exports.Get(name)
	if err != nil || v.IsUndefined() {
		return interp.NotFound()
	}
	if !v.IsFunction() {
		return interp.NotCallable(v.Typeof())
	}

	return interp.Found(&function{engine: m.engine, fn: v, this: m.exports})
}

type function struct {
	engine *Engine
	fn     quickjs.Value
	this   quickjs.Value
}

// Call passes input as a string and marshals the result to bytes. A
// message set through host.setError fails the call even if the function
// returned normally.
func (f *function) Call(input []byte) ([]byte, error) {
	e := f.engine
	e.scriptErr = nil
	arg := e.js.String(string(input))

	result, err := f.fn.Call(f.this, arg)
	if e.scriptErr != nil {
		return nil, &interp.ScriptError{Message: *e.scriptErr}
	}
	if err != nil {
		return nil, err
	}

	return e.marshal(result)
}

// marshal converts a script value to output bytes: undefined and null are
// empty, strings are UTF-8, binary buffers are copied raw, other objects
// are JSON and remaining primitives use their string form.
func (e *Engine) marshal(v quickjs.Value) ([]byte, error) {
	switch {
	case v.IsUndefined(), v.IsNull():
		return []byte{}, nil
	case v.IsString():
		return []byte(v.String()), nil
	case v.IsPromise():
		return nil, ErrAsyncResult
	case v.Instanceof(e.arrayBuffer):
		return bufferBytes(v)
	case v.Instanceof(e.uint8Array):
		return viewBytes(v)
	case v.IsFunction():
		return nil, fmt.Errorf("cannot return a %s", v.Typeof())
	case v.IsObject():
		s, err := v.JSONStringify()
		if err != nil {
			return nil, fmt.Errorf("encode result as JSON: %w", err)
		}

		return []byte(s), nil
	default:
		return []byte(v.String()), nil
	}
}

func bufferBytes(v quickjs.Value) ([]byte, error) {
	n, err := intProp(v, "byteLength")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}

	return v.Bytes()
}

func viewBytes(v quickjs.Value) ([]byte, error) {
	buf, err := v.Get("buffer")
	if err != nil {
		return nil, err
	}
	offset, err := intProp(v, "byteOffset")
	if err != nil {
		return nil, err
	}
	length, err := intProp(v, "byteLength")
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}

	raw, err := buf.Bytes()
	if err != nil {
		return nil, err
	}
	if offset+length > len(raw) {
		return nil, fmt.Errorf("view [%d:%d] exceeds %d byte buffer", offset, offset+length, len(raw))
	}

	return raw[offset : offset+length], nil
}

func intProp(v quickjs.Value, name string) (int, error) {
	p, err := v.Get(name)
	if err != nil {
		return 0, err
	}
	n, err := p.Int64()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}

	return int(n), nil
}
