// internal/browser/session/cdp_executor.go
package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/cdpdom"
)

// cdpExecutor implements cdpdom.Executor by running protocol commands
// through the session's RunActions, which binds each call to the tab.
type cdpExecutor struct {
	logger         *zap.Logger
	runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error
}

var _ cdpdom.Executor = (*cdpExecutor)(nil)

func (e *cdpExecutor) CallFunctionOn(ctx context.Context, params *runtime.CallFunctionOnParams) (*runtime.RemoteObject, *runtime.ExceptionDetails, error) {
	var (
		res *runtime.RemoteObject
		exc *runtime.ExceptionDetails
	)
	err := e.runActionsFunc(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		res, exc, err = params.Do(ctx)
		return err
	}))
	return res, exc, err
}

func (e *cdpExecutor) Evaluate(ctx context.Context, params *runtime.EvaluateParams) (*runtime.RemoteObject, *runtime.ExceptionDetails, error) {
	var (
		res *runtime.RemoteObject
		exc *runtime.ExceptionDetails
	)
	err := e.runActionsFunc(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		res, exc, err = params.Do(ctx)
		return err
	}))
	return res, exc, err
}

// CreateIsolatedWorld creates the world in the top frame of the current
// document. Worlds die with the document, so callers create one per action.
func (e *cdpExecutor) CreateIsolatedWorld(ctx context.Context, worldName string) (runtime.ExecutionContextID, error) {
	var id runtime.ExecutionContextID
	err := e.runActionsFunc(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to get frame tree: %w", err)
		}
		if tree == nil || tree.Frame == nil {
			return fmt.Errorf("tab has no top frame")
		}
		id, err = page.CreateIsolatedWorld(tree.Frame.ID).WithWorldName(worldName).Do(ctx)
		return err
	}))
	if err != nil {
		e.logger.Debug("Isolated world creation failed.", zap.String("world", worldName), zap.Error(err))
	}
	return id, err
}

func (e *cdpExecutor) ReleaseObjectGroup(ctx context.Context, group string) error {
	return e.runActionsFunc(ctx, runtime.ReleaseObjectGroup(group))
}
