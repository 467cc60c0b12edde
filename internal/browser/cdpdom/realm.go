package cdpdom

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagepilot/internal/browser/pageworld"
)

// MainWorld is the pageworld.Realm of a Chrome tab: the page's own script
// context, where editor globals installed by the page are visible.
type MainWorld struct {
	exec Executor
}

// NewMainWorld creates a realm evaluating in the tab's main world.
func NewMainWorld(exec Executor) *MainWorld {
	return &MainWorld{exec: exec}
}

// Call evaluates (fn)(args) and awaits the result if it is a promise. The
// context deadline, when set, is also passed to the page as an evaluation
// timeout.
func (w *MainWorld) Call(ctx context.Context, fn string, args any) (json.RawMessage, error) {
	raw, err := jsoniter.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("cdpdom: failed to encode arguments: %w", err)
	}

	params := runtime.Evaluate("(" + fn + ")(" + string(raw) + ")").
		WithReturnByValue(true).
		WithAwaitPromise(true).
		WithSilent(true)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			params = params.WithTimeout(runtime.TimeDelta(remaining.Milliseconds()))
		}
	}

	res, exc, err := w.exec.Evaluate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("cdpdom: evaluate failed: %w", err)
	}
	if exc != nil {
		return nil, &pageworld.ScriptError{Message: exceptionError(exc).Error()}
	}
	if res == nil || len(res.Value) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(res.Value), nil
}

var _ pageworld.Realm = (*MainWorld)(nil)
