// internal/engine/adapters.go
package engine

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/pageworld"
)

var (
	//go:embed scripts/monaco.js
	monacoScript string
	//go:embed scripts/ckeditor.js
	ckeditorScript string
	//go:embed scripts/tinymce.js
	tinymceScript string
)

// Adapter replaces an editor's whole content through the editor's own API in
// the page world, so the editor's model and its rendering stay consistent.
type Adapter struct {
	Kind   schemas.EditorKind
	script string
}

// adapterArgs is the single argument every adapter script receives.
type adapterArgs struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// Adapters is the closed set of editor adapters, in the order they are tried.
var Adapters = []Adapter{
	{Kind: schemas.EditorMonaco, script: monacoScript},
	{Kind: schemas.EditorCKEditor, script: ckeditorScript},
	{Kind: schemas.EditorTinyMCE, script: tinymceScript},
}

// adapterFor returns the adapter for kind, if there is one.
func adapterFor(kind schemas.EditorKind) (Adapter, bool) {
	for _, a := range Adapters {
		if a.Kind == kind {
			return a, true
		}
	}
	return Adapter{}, false
}

// Apply runs the adapter. The returned error is ErrAdapterFailure when the
// script threw, ErrBridgeFailure when the page world could not be reached.
// A script that ran but found no editor returns false and no error.
func (a Adapter) Apply(ctx context.Context, bridge *pageworld.Bridge, selector, text string) (bool, error) {
	ok, err := bridge.CallBool(ctx, a.script, adapterArgs{Selector: selector, Text: text})
	if err == nil {
		return ok, nil
	}
	var scriptErr *pageworld.ScriptError
	if errors.As(err, &scriptErr) {
		return false, fmt.Errorf("%w: %s: %w", ErrAdapterFailure, a.Kind, err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, fmt.Errorf("%w: %s: %w", ErrBridgeFailure, a.Kind, err)
}

// tryAdapter attempts the adapter matching kind. Failures are logged and
// reported as false so the caller falls back to keyboard simulation.
func tryAdapter(ctx context.Context, logger *zap.Logger, bridge *pageworld.Bridge, kind schemas.EditorKind, selector, text string) bool {
	if bridge == nil {
		return false
	}
	adapter, ok := adapterFor(kind)
	if !ok {
		return false
	}
	applied, err := adapter.Apply(ctx, bridge, selector, text)
	if err != nil {
		logger.Debug("Editor adapter did not apply",
			zap.String("editor", string(kind)),
			zap.String("selector", selector),
			zap.Error(err))
		return false
	}
	return applied
}
