package cdpdom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

const (
	// DefaultWorldName names the isolated world when none is configured.
	DefaultWorldName = "pagepilot"

	releaseTimeout = 5 * time.Second
)

// ErrNoScope is returned by document calls made outside BeginAction.
var ErrNoScope = errors.New("cdpdom: document used outside an action scope")

// Document is a dom.Document backed by a Chrome tab.
type Document struct {
	exec      Executor
	worldName string
	logger    *zap.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithWorldName sets the name of the isolated world created for each action.
func WithWorldName(name string) Option {
	return func(d *Document) {
		if name != "" {
			d.worldName = name
		}
	}
}

// WithLogger sets the document's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Document that talks to a tab through exec.
func New(exec Executor, opts ...Option) *Document {
	d := &Document{
		exec:      exec,
		worldName: DefaultWorldName,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("cdpdom")
	return d
}

type scopeKey struct{}

// scope is the per-action state: the object group holding every handle the
// action creates, and the isolated world document calls run in.
type scope struct {
	group     string
	contextID runtime.ExecutionContextID
	err       error
}

// BeginAction creates a fresh isolated world and object group. A world is
// created per action because navigation discards the previous one.
func (d *Document) BeginAction(ctx context.Context) (context.Context, func()) {
	s := &scope{group: "pagepilot-" + uuid.NewString()}
	id, err := d.exec.CreateIsolatedWorld(ctx, d.worldName)
	if err != nil {
		s.err = fmt.Errorf("cdpdom: failed to create isolated world: %w", err)
		d.logger.Warn("Could not create isolated world.", zap.String("world", d.worldName), zap.Error(err))
	} else {
		s.contextID = id
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := d.exec.ReleaseObjectGroup(rctx, s.group); err != nil {
			d.logger.Debug("Failed to release object group.", zap.String("group", s.group), zap.Error(err))
		}
	}
	return context.WithValue(ctx, scopeKey{}, s), release
}

func scopeFrom(ctx context.Context) (*scope, error) {
	s, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok {
		return nil, ErrNoScope
	}
	return s, nil
}

// call runs fn with the object identified by this as receiver, or in the
// scope's isolated world when this is empty.
func (d *Document) call(ctx context.Context, this runtime.RemoteObjectID, fn string, byValue bool, args ...any) (*runtime.RemoteObject, error) {
	s, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	params := runtime.CallFunctionOn(fn).
		WithObjectGroup(s.group).
		WithReturnByValue(byValue).
		WithSilent(true)
	if this != "" {
		params = params.WithObjectID(this)
	} else {
		if s.err != nil {
			return nil, s.err
		}
		params = params.WithExecutionContextID(s.contextID)
	}

	if len(args) > 0 {
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, arg := range args {
			raw, err := jsoniter.Marshal(arg)
			if err != nil {
				return nil, fmt.Errorf("cdpdom: failed to encode argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: jsontext.Value(raw)})
		}
		params = params.WithArguments(callArgs)
	}

	res, exc, err := d.exec.CallFunctionOn(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("cdpdom: call failed: %w", err)
	}
	if exc != nil {
		return nil, exceptionError(exc)
	}
	return res, nil
}

// value runs fn and decodes its by-value result into out. An undefined
// result leaves out untouched.
func (d *Document) value(ctx context.Context, this runtime.RemoteObjectID, fn string, out any, args ...any) error {
	res, err := d.call(ctx, this, fn, true, args...)
	if err != nil {
		return err
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	if err := jsoniter.Unmarshal(res.Value, out); err != nil {
		return fmt.Errorf("cdpdom: failed to decode result: %w", err)
	}
	return nil
}

// element runs fn and wraps the returned node. A null result is a nil
// Element with a nil error.
func (d *Document) element(ctx context.Context, this runtime.RemoteObjectID, fn string, args ...any) (dom.Element, error) {
	res, err := d.call(ctx, this, fn, false, args...)
	if err != nil {
		return nil, err
	}
	if res == nil || res.ObjectID == "" {
		return nil, nil
	}
	return &Element{d: d, id: res.ObjectID}, nil
}

// selectorError turns the exception querySelector throws for a malformed
// selector into a dom.SelectorError.
func selectorError(selector string, err error) error {
	var se *ScriptException
	if errors.As(err, &se) && se.isSyntaxError() {
		return &dom.SelectorError{Selector: selector, Err: se}
	}
	return err
}

func (d *Document) URL(ctx context.Context) (string, error) {
	var url string
	err := d.value(ctx, "", urlJS, &url)
	return url, err
}

func (d *Document) Title(ctx context.Context) (string, error) {
	var title string
	err := d.value(ctx, "", titleJS, &title)
	return title, err
}

func (d *Document) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	el, err := d.element(ctx, "", querySelectorJS, selector)
	return el, selectorError(selector, err)
}

// QuerySelectorAll fetches matches one at a time; the protocol has no call
// that returns a list of handles. Each fetched handle stays pinned in the
// action's object group, so callers that keep only a prefix pass a limit.
func (d *Document) QuerySelectorAll(ctx context.Context, selector string, limit int) ([]dom.Element, error) {
	n, err := d.Count(ctx, selector)
	if err != nil {
		return nil, err
	}
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]dom.Element, 0, n)
	for i := 0; i < n; i++ {
		el, err := d.element(ctx, "", nthJS, selector, i)
		if err != nil {
			return nil, selectorError(selector, err)
		}
		// The page may have removed nodes between calls.
		if el == nil {
			break
		}
		out = append(out, el)
	}
	return out, nil
}

func (d *Document) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := d.value(ctx, "", countJS, &n, selector); err != nil {
		return 0, selectorError(selector, err)
	}
	return n, nil
}

func (d *Document) FindByText(ctx context.Context, selector, needle string) (dom.Element, error) {
	el, err := d.element(ctx, "", findByTextJS, selector, needle)
	return el, selectorError(selector, err)
}

func (d *Document) Body(ctx context.Context) (dom.Element, error) {
	return d.element(ctx, "", bodyJS)
}

// Navigate assigns location.href; the session waits for the load.
func (d *Document) Navigate(ctx context.Context, url string) error {
	return d.value(ctx, "", navigateJS, nil, url)
}

func (d *Document) ScrollBy(ctx context.Context, dy int) error {
	return d.value(ctx, "", scrollByJS, nil, dy)
}

var (
	_ dom.Document    = (*Document)(nil)
	_ dom.ActionScope = (*Document)(nil)
)
