package interp

import (
	"errors"
	"fmt"

	"github.com/andrei-cloud/go_scriptbridge/internal/errorcodes"
)

var (
	// ErrModuleNotFound is the cause of a ModuleLoadError when no search
	// path entry holds the module.
	ErrModuleNotFound = errors.New("module not found on search path")
	// ErrClosed is returned after the manager was closed.
	ErrClosed = errors.New("interpreter closed")
)

// ModuleLoadError reports a plugin module that could not be resolved or evaluated.
type ModuleLoadError struct {
	Name     string
	Path     string   // file that failed to evaluate, empty when not found
	Searched []string // candidate files tried in order
	Err      error
}

func (e *ModuleLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load module %q: %v (searched %v)", e.Name, e.Err, e.Searched)
	}

	return fmt.Sprintf("load module %q from %s: %v", e.Name, e.Path, e.Err)
}

// Is matches errorcodes.ErrModuleLoad.
func (e *ModuleLoadError) Is(target error) bool {
	return target == errorcodes.ErrModuleLoad
}

func (e *ModuleLoadError) Unwrap() error {
	return e.Err
}

// InterpreterStartError reports an engine that failed to start.
type InterpreterStartError struct {
	Err error
}

func (e *InterpreterStartError) Error() string {
	return fmt.Sprintf("start interpreter: %v", e.Err)
}

// Is matches errorcodes.ErrInterpreterStart.
func (e *InterpreterStartError) Is(target error) bool {
	return target == errorcodes.ErrInterpreterStart
}

func (e *InterpreterStartError) Unwrap() error {
	return e.Err
}

// ScriptError is a failure the script reported itself. Its message is
// passed to the host unchanged.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}
