// Package errorcodes defines bridge errors using a structured type.
// BridgeError holds the two-character code and human-readable description.
package errorcodes

import "errors"

// Predefined bridge error instances.
var (
	ErrNone                 = BridgeError{"00", "No error"}
	ErrAllocation           = BridgeError{"10", "Host memory allocation failed"}
	ErrBlockState           = BridgeError{"11", "Memory block already released or handed to the host"}
	ErrInterpreterStart     = BridgeError{"20", "Interpreter failed to start"}
	ErrModuleLoad           = BridgeError{"21", "Plugin module could not be loaded"}
	ErrDoubleInitialization = BridgeError{"22", "Interpreter initialized twice"}
	ErrAttributeLookup      = BridgeError{"30", "Entry point not found in module"}
	ErrNotCallable          = BridgeError{"31", "Entry point is not callable"}
	ErrInvocation           = BridgeError{"32", "Entry point raised an exception"}
	ErrHostCall             = BridgeError{"33", "Host function call failed"}
	ErrOutput               = BridgeError{"40", "Result could not be returned to the host"}
)

// Status codes returned to the host.
const (
	StatusOK      int32 = 0
	StatusFailure int32 = 1
)

// BridgeError represents a bridge error with its code and description.
type BridgeError struct {
	Code        string // two-character error code
	Description string // human-readable description
}

// Error implements the Go error interface: "<Code>: <Description>".
func (e BridgeError) Error() string {
	return e.Code + ": " + e.Description
}

// CodeOnly returns only the error code (e.g., "21"), for log fields.
func (e BridgeError) CodeOnly() string {
	return e.Code
}

// Fatal reports whether the error must terminate the instance.
func (e BridgeError) Fatal() bool {
	return e == ErrDoubleInitialization
}

// Code returns the code of the first BridgeError in err's chain.
// A nil error is "00"; an error outside the taxonomy is "99".
func Code(err error) string {
	if err == nil {
		return ErrNone.Code
	}

	// The outermost match wins, so a wrapper that classifies its cause
	// takes precedence over the cause's own code.
	for e := err; e != nil; e = errors.Unwrap(e) {
		if be, ok := e.(BridgeError); ok {
			return be.Code
		}
		if matcher, ok := e.(interface{ Is(error) bool }); ok {
			for _, known := range all {
				if matcher.Is(known) {
					return known.Code
				}
			}
		}
	}

	for _, known := range all {
		if errors.Is(err, known) {
			return known.Code
		}
	}

	return "99"
}

// Status converts err into the status code returned to the host.
func Status(err error) int32 {
	if err == nil {
		return StatusOK
	}

	return StatusFailure
}

// IsFatal reports whether err carries a fatal bridge error.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDoubleInitialization)
}

var all = []BridgeError{
	ErrAllocation,
	ErrBlockState,
	ErrInterpreterStart,
	ErrModuleLoad,
	ErrDoubleInitialization,
	ErrAttributeLookup,
	ErrNotCallable,
	ErrInvocation,
	ErrHostCall,
	ErrOutput,
}
