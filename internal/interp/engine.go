// Package interp owns the embedded interpreter for a plugin instance: it
// starts the engine once, resolves the plugin module on the sandbox
// filesystem and hands the loaded module to the dispatcher.
package interp

// Options are passed to Engine.Start.
type Options struct {
	// Home is the interpreter home directory inside the sandbox.
	Home string
	// SearchPath lists module directories; relative entries resolve against Home.
	SearchPath []string
	// MemoryLimit caps the interpreter heap in bytes. Zero leaves it unlimited.
	MemoryLimit uint32
	// MaxStackSize caps the interpreter stack in bytes. Zero keeps the engine default.
	MaxStackSize uint32
	// Vars are read-only values exposed to scripts.
	Vars map[string]string
	// Host runs host functions for scripts. Nil leaves host calls failing.
	Host HostCaller
}

// HostCaller runs named host functions on behalf of scripts.
type HostCaller interface {
	CallHost(name string, input []byte) ([]byte, error)
}

// Engine is an embedded interpreter.
type Engine interface {
	// Start brings the interpreter up. It is called once per instance.
	Start(opts Options) error
	// Load evaluates source as the module stored at path.
	Load(path string, source []byte) (Module, error)
	// Close releases the interpreter.
	Close() error
}

// Module is a loaded plugin module.
type Module interface {
	// Name returns the path the module was loaded from.
	Name() string
	// Lookup resolves an exported attribute. It is called on every invocation.
	Lookup(name string) Lookup
}

// Callable is an exported function of a Module.
type Callable interface {
	// Call invokes the function with input as its single argument and
	// returns the marshaled result.
	Call(input []byte) ([]byte, error)
}

// LookupKind classifies the result of Module.Lookup.
type LookupKind uint8

// Lookup outcomes.
const (
	LookupNotFound LookupKind = iota
	LookupFound
	LookupNotCallable
)

func (k LookupKind) String() string {
	switch k {
	case LookupFound:
		return "found"
	case LookupNotCallable:
		return "not callable"
	default:
		return "not found"
	}
}

// Lookup is the tagged result of resolving an attribute.
type Lookup struct {
	Kind     LookupKind
	Callable Callable // set when Kind is LookupFound
	TypeName string   // the attribute's type when Kind is LookupNotCallable
}

// Found wraps a resolved callable.
func Found(c Callable) Lookup {
	return Lookup{Kind: LookupFound, Callable: c}
}

// NotFound reports a missing attribute.
func NotFound() Lookup {
	return Lookup{Kind: LookupNotFound}
}

// NotCallable reports an attribute of type typeName that cannot be called.
func NotCallable(typeName string) Lookup {
	return Lookup{Kind: LookupNotCallable, TypeName: typeName}
}
