// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Only element lookups surface to the caller as failed
// results; adapter and bridge failures downgrade to keyboard simulation.
var (
	ErrElementNotFound   = errors.New("element not found")
	ErrAdapterFailure    = errors.New("editor adapter failed")
	ErrBridgeFailure     = errors.New("page world unreachable")
	ErrActionUnsupported = errors.New("action type not supported")
)

// ElementNotFoundError carries the human readable reason reported back to the
// agent, e.g. "Input not found: #email".
type ElementNotFoundError struct {
	Reason string
	// Cause is set when the lookup itself failed, e.g. on an unparsable
	// selector.
	Cause error
}

// Error implements the error interface.
func (e *ElementNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%v)", e.Reason, e.Cause)
	}
	return e.Reason
}

// Is lets errors.Is match the sentinel.
func (e *ElementNotFoundError) Is(target error) bool {
	return target == ErrElementNotFound
}

// Unwrap exposes the lookup failure, if any.
func (e *ElementNotFoundError) Unwrap() error { return e.Cause }

func notFound(format string, args ...any) *ElementNotFoundError {
	return &ElementNotFoundError{Reason: fmt.Sprintf(format, args...)}
}
