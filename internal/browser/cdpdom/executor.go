// Package cdpdom implements dom.Document over a Chrome tab. Elements are
// remote objects living in an isolated world created for the engine; every
// action allocates them in its own object group, which is released when the
// action ends.
package cdpdom

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
)

// Executor is the slice of the DevTools protocol the document needs. The
// session package provides the production implementation; tests use a fake.
type Executor interface {
	// CallFunctionOn executes a JavaScript function.
	CallFunctionOn(ctx context.Context, params *runtime.CallFunctionOnParams) (*runtime.RemoteObject, *runtime.ExceptionDetails, error)
	// Evaluate evaluates an expression in the page's main world.
	Evaluate(ctx context.Context, params *runtime.EvaluateParams) (*runtime.RemoteObject, *runtime.ExceptionDetails, error)
	// CreateIsolatedWorld creates a fresh isolated world in the top frame.
	CreateIsolatedWorld(ctx context.Context, worldName string) (runtime.ExecutionContextID, error)
	ReleaseObjectGroup(ctx context.Context, group string) error
}

// ScriptException is an exception thrown by a function run in the tab.
type ScriptException struct {
	ClassName   string
	Description string
	Text        string
}

func (e *ScriptException) Error() string {
	switch {
	case e.Description != "":
		return e.Description
	case e.ClassName != "":
		return fmt.Sprintf("%s: %s", e.ClassName, e.Text)
	default:
		return e.Text
	}
}

// isSyntaxError reports whether the exception is the one querySelector
// throws for a malformed selector.
func (e *ScriptException) isSyntaxError() bool {
	return e.ClassName == "SyntaxError" || strings.HasPrefix(e.Description, "SyntaxError")
}

func exceptionError(exc *runtime.ExceptionDetails) *ScriptException {
	se := &ScriptException{Text: exc.Text}
	if exc.Exception != nil {
		se.ClassName = exc.Exception.ClassName
		se.Description = exc.Exception.Description
	}
	return se
}
