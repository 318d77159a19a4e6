package jsengine

import (
	"strings"

	"github.com/Gaurav-Gosain/quickjs"

	"github.com/andrei-cloud/go_scriptbridge/internal/logging"
)

// hostObject builds the host global:
//
//	host.log(level, msg) or host.log(msg)
//	host.config(key)      configured value or undefined
//	host.vars.get(key)    instance value or undefined
//	host.vars.set(key, v) stores String(v); null or undefined removes the key
//	host.call(name, in)   runs a host function, returns its result as a string
//	host.setError(msg)    fails the current call with msg
func (e *Engine) hostObject() quickjs.Value {
	js := e.js

	vars := js.Object()
	_ = vars.Set("get", js.Function("get", e.varsGet))
	_ = vars.Set("set", js.Function("set", e.varsSet))

	host := js.Object()
	_ = host.Set("log", js.Function("log", e.hostLog))
	_ = host.Set("config", js.Function("config", e.hostConfig))
	_ = host.Set("vars", vars)
	_ = host.Set("call", js.Function("call", e.hostCall))
	_ = host.Set("setError", js.Function("setError", e.hostSetError))

	return host
}

func (e *Engine) hostLog(c *quickjs.Context, _ quickjs.Value, args []quickjs.Value) quickjs.Value {
	level, msg := "info", ""
	switch len(args) {
	case 0:
	case 1:
		msg = args[0].String()
	default:
		level, msg = strings.ToLower(args[0].String()), args[1].String()
	}

	e.log.WithLevel(logging.ParseLevel(level)).
		Str("event", "script_log").
		Msg(msg)

	return c.Undefined()
}

func (e *Engine) hostConfig(c *quickjs.Context, _ quickjs.Value, args []quickjs.Value) quickjs.Value {
	if len(args) == 0 {
		return c.ThrowTypeError("host.config requires a key")
	}

	v, ok := e.config[args[0].String()]
	if !ok {
		return c.Undefined()
	}

	return c.String(v)
}

func (e *Engine) varsGet(c *quickjs.Context, _ quickjs.Value, args []quickjs.Value) quickjs.Value {
	if len(args) == 0 {
		return c.ThrowTypeError("host.vars.get requires a key")
	}

	v, ok := e.vars[args[0].String()]
	if !ok {
		return c.Undefined()
	}

	return c.String(v)
}

func (e *Engine) varsSet(c *quickjs.Context, _ quickjs.Value, args []quickjs.Value) quickjs.Value {
	if len(args) == 0 {
		return c.ThrowTypeError("host.vars.set requires a key")
	}

	key := args[0].String()
	if len(args) < 2 || args[1].IsUndefined() || args[1].IsNull() {
		delete(e.vars, key)
	} else {
		e.vars[key] = args[1].String()
	}

	return c.Undefined()
}

func (e *Engine) hostCall(c *quickjs.Context, _ quickjs.Value, args []quickjs.Value) quickjs.Value {
	if len(args) == 0 {
		return c.ThrowTypeError("host.call requires a function name")
	}
	if e.host == nil {
		return c.ThrowError("host functions are not available")
	}

	name, input := args[0].String(), ""
	if len(args) > 1 && !args[1].IsUndefined() && !args[1].IsNull() {
		input = args[1].String()
	}

	out, err := e.host.CallHost(name, []byte(input))
	if err != nil {
		return c.ThrowError(err.Error())
	}

	return c.String(string(out))
}

func (e *Engine) hostSetError(c *quickjs.Context, _ quickjs.Value, args []quickjs.Value) quickjs.Value {
	msg := "error"
	if len(args) > 0 {
		msg = args[0].String()
	}
	e.scriptErr = &msg

	return c.Undefined()
}
