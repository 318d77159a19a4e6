package dispatch

import (
	"fmt"

	"github.com/andrei-cloud/go_scriptbridge/internal/errorcodes"
)

// AttributeLookupError reports an entry point missing from the module.
type AttributeLookupError struct {
	Module string
	Name   string
}

func (e *AttributeLookupError) Error() string {
	return fmt.Sprintf("module %s has no attribute %q", e.Module, e.Name)
}

// Is matches errorcodes.ErrAttributeLookup.
func (e *AttributeLookupError) Is(target error) bool {
	return target == errorcodes.ErrAttributeLookup
}

// NotCallableError reports an entry point that exists but cannot be called.
type NotCallableError struct {
	Module   string
	Name     string
	TypeName string
}

func (e *NotCallableError) Error() string {
	return fmt.Sprintf("attribute %q of module %s is a %s, not a function", e.Name, e.Module, e.TypeName)
}

// Is matches errorcodes.ErrNotCallable.
func (e *NotCallableError) Is(target error) bool {
	return target == errorcodes.ErrNotCallable
}

// InvocationError reports an exception raised by the entry point.
type InvocationError struct {
	Name string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("call %s: %v", e.Name, e.Err)
}

// Is matches errorcodes.ErrInvocation.
func (e *InvocationError) Is(target error) bool {
	return target == errorcodes.ErrInvocation
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
