// internal/engine/dispatcher.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/browser/pageworld"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// DefaultCharByCharLimit is the text length from which typing switches to a
// single bulk insertion.
const DefaultCharByCharLimit = 500

// Candidate sets searched, in order, when a click is described by its text.
var textSearchGroups = []string{
	"button, a, [role=button]",
	"li, span, div, h1, h2, h3, h4, h5, h6, p",
}

// Engine executes agent actions against one document. It keeps no state
// between actions; callers serialize actions on the same document.
type Engine struct {
	doc             dom.Document
	realm           pageworld.Realm
	bridge          *pageworld.Bridge
	bridgeTimeout   time.Duration
	classifier      *Classifier
	keyboard        *Keyboard
	snapshotter     *Snapshotter
	timing          Timing
	jitter          Jitter
	sleep           Sleeper
	charByCharLimit int
	logger          *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTiming overrides the settle pauses.
func WithTiming(t Timing) Option {
	return func(e *Engine) { e.timing = t }
}

// WithJitter overrides the keystroke jitter source.
func WithJitter(j Jitter) Option {
	return func(e *Engine) { e.jitter = j }
}

// WithSleeper replaces the pause implementation. Tests use it to record
// pauses instead of taking them.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// WithBridgeTimeout bounds each page world call.
func WithBridgeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.bridgeTimeout = d }
}

// WithCharByCharLimit sets the length from which typing is done in bulk.
func WithCharByCharLimit(n int) Option {
	return func(e *Engine) { e.charByCharLimit = n }
}

// WithConfig applies the engine section of the application configuration.
func WithConfig(cfg config.EngineConfig) Option {
	return func(e *Engine) {
		e.timing = TimingFromConfig(cfg.Settle)
		e.jitter = NewUniformJitter(cfg.JitterMin, cfg.JitterMax, time.Now().UnixNano())
		e.bridgeTimeout = cfg.BridgeTimeout
		e.charByCharLimit = cfg.CharByCharLimit
	}
}

// New creates an Engine over doc. realm may be nil, in which case editor
// adapters are skipped and typing always goes through keyboard simulation.
func New(doc dom.Document, realm pageworld.Realm, opts ...Option) *Engine {
	e := &Engine{
		doc:             doc,
		realm:           realm,
		bridgeTimeout:   pageworld.DefaultTimeout,
		timing:          DefaultTiming(),
		charByCharLimit: DefaultCharByCharLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("engine")
	if e.jitter == nil {
		e.jitter = DefaultJitter()
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if realm != nil {
		e.bridge = pageworld.NewBridge(realm, e.bridgeTimeout, e.logger)
	}
	e.classifier = NewClassifier(e.logger)
	e.keyboard = NewKeyboard(e.timing, e.jitter, e.sleep, e.logger)
	e.snapshotter = NewSnapshotter(doc)
	return e
}

// Snapshot returns the current page context.
func (e *Engine) Snapshot(ctx context.Context) (schemas.PageContext, error) {
	ctx, end := e.begin(ctx)
	defer end()
	return e.snapshotter.Snapshot(ctx)
}

// Execute runs one action and reports its outcome. It never returns an error:
// missing elements and transport failures become failed results.
func (e *Engine) Execute(ctx context.Context, action schemas.Action) schemas.ActionResult {
	if err := ctx.Err(); err != nil {
		return schemas.Failed(schemas.FailureExecution, err.Error())
	}
	// Once started, an action runs to completion. Cancellation takes effect
	// between actions.
	ctx = context.WithoutCancel(ctx)
	ctx, end := e.begin(ctx)
	defer end()

	logger := e.logger.With(zap.String("action", string(action.Kind())))
	payload, err := e.dispatch(ctx, action)
	if err != nil {
		var nf *ElementNotFoundError
		if errors.As(err, &nf) {
			logger.Info("Action target not found", zap.String("reason", nf.Reason))
			return schemas.Failed(schemas.FailureElementNotFound, nf.Reason)
		}
		logger.Warn("Action failed", zap.Error(err))
		return schemas.Failed(schemas.FailureExecution, err.Error())
	}
	logger.Debug("Action completed")
	return schemas.Succeeded(payload)
}

func (e *Engine) begin(ctx context.Context) (context.Context, func()) {
	if scope, ok := e.doc.(dom.ActionScope); ok {
		return scope.BeginAction(ctx)
	}
	return ctx, func() {}
}

func (e *Engine) dispatch(ctx context.Context, action schemas.Action) (any, error) {
	switch a := action.(type) {
	case schemas.Navigate:
		return e.navigate(ctx, a)
	case schemas.Click:
		return e.click(ctx, a)
	case schemas.Type:
		return e.typeText(ctx, a)
	case schemas.Select:
		return e.selectOption(ctx, a)
	case schemas.Wait:
		return e.wait(ctx, a)
	case schemas.Scroll:
		return e.scroll(ctx, a)
	case schemas.Extract:
		return e.extract(ctx, a)
	case schemas.Screenshot:
		return e.snapshotter.Snapshot(ctx)
	default:
		e.logger.Debug("Ignoring action", zap.String("type", string(action.Kind())), zap.Error(ErrActionUnsupported))
		return schemas.NoopResult{Noop: true}, nil
	}
}

func (e *Engine) navigate(ctx context.Context, a schemas.Navigate) (any, error) {
	if err := e.doc.Navigate(ctx, a.URL); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", a.URL, err)
	}
	return schemas.NavigateResult{Navigated: a.URL}, nil
}

func (e *Engine) click(ctx context.Context, a schemas.Click) (any, error) {
	var (
		el  dom.Element
		err error
	)
	if a.Selector != "" {
		if el, err = e.lookup(ctx, a.Selector); err != nil {
			return nil, err
		}
	}
	if el == nil && a.Text != "" {
		if el, err = e.findByText(ctx, a.Text); err != nil {
			return nil, err
		}
	}
	label := a.Selector
	if label == "" {
		label = a.Text
	}
	if el == nil {
		return nil, notFound("Element not found: %s", label)
	}

	if err := el.ScrollIntoView(ctx); err != nil {
		return nil, fmt.Errorf("failed to scroll to click target: %w", err)
	}
	if err := e.sleep(ctx, e.timing.Click); err != nil {
		return nil, err
	}
	if err := el.Click(ctx); err != nil {
		return nil, fmt.Errorf("failed to click %s: %w", label, err)
	}
	return schemas.ClickResult{Clicked: label}, nil
}

func (e *Engine) typeText(ctx context.Context, a schemas.Type) (any, error) {
	el, err := e.lookup(ctx, a.Selector)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, notFound("Input not found: %s", a.Selector)
	}
	if err := el.ScrollIntoView(ctx); err != nil {
		return nil, fmt.Errorf("failed to scroll to input: %w", err)
	}
	if err := e.sleep(ctx, e.timing.Type); err != nil {
		return nil, err
	}

	cls := e.classifier.Classify(ctx, el)
	logger := e.logger.With(zap.String("selector", a.Selector), zap.String("editor", string(cls.Kind)))

	method := schemas.MethodAPI
	if !tryAdapter(ctx, logger, e.bridge, cls.Kind, a.Selector, a.Text) {
		method = schemas.MethodKeyboard
		charByChar := utf8.RuneCountInString(a.Text) < e.charByCharLimit
		logger.Debug("Simulating keyboard input", zap.Bool("char_by_char", charByChar))
		if err := e.keyboard.SimulateTyping(ctx, cls.Target, a.Text, charByChar); err != nil {
			return nil, err
		}
	}
	if a.Submit {
		if err := e.submit(ctx, el, cls.Target); err != nil {
			return nil, err
		}
	}
	return schemas.TypeResult{Typed: a.Selector, Text: a.Text, Method: method, Editor: cls.Kind}, nil
}

// submit submits the enclosing form of el, or presses Enter on target when
// there is none.
func (e *Engine) submit(ctx context.Context, el, target dom.Element) error {
	if err := e.sleep(ctx, e.timing.Submit); err != nil {
		return err
	}
	form, err := el.Closest(ctx, "form")
	if err != nil {
		return fmt.Errorf("failed to find enclosing form: %w", err)
	}
	if form != nil {
		if err := form.RequestSubmit(ctx); err != nil {
			return fmt.Errorf("failed to submit form: %w", err)
		}
		return nil
	}
	for _, key := range dom.EnterKey() {
		if err := target.DispatchKey(ctx, key); err != nil {
			return fmt.Errorf("failed to dispatch %s: %w", key.Type, err)
		}
	}
	return nil
}

func (e *Engine) selectOption(ctx context.Context, a schemas.Select) (any, error) {
	el, err := e.lookup(ctx, a.Selector)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, notFound("Select not found: %s", a.Selector)
	}
	if err := el.SetValue(ctx, a.Value); err != nil {
		return nil, fmt.Errorf("failed to set value: %w", err)
	}
	if err := el.DispatchEvent(ctx, "change"); err != nil {
		return nil, fmt.Errorf("failed to dispatch change: %w", err)
	}
	return schemas.SelectResult{Selected: a.Value}, nil
}

func (e *Engine) wait(ctx context.Context, a schemas.Wait) (any, error) {
	if err := e.sleep(ctx, time.Duration(a.Ms)*time.Millisecond); err != nil {
		return nil, err
	}
	return schemas.WaitResult{Waited: a.Ms}, nil
}

func (e *Engine) scroll(ctx context.Context, a schemas.Scroll) (any, error) {
	dy := a.ScrollAmount()
	if a.Direction == schemas.ScrollUp {
		dy = -dy
	}
	if err := e.doc.ScrollBy(ctx, dy); err != nil {
		return nil, fmt.Errorf("failed to scroll: %w", err)
	}
	if err := e.sleep(ctx, e.timing.Scroll); err != nil {
		return nil, err
	}
	return schemas.ScrollResult{Scrolled: a.Direction}, nil
}

func (e *Engine) extract(ctx context.Context, a schemas.Extract) (any, error) {
	if a.Selector == "" {
		return e.snapshotter.bodyText(ctx, schemas.MaxExtractText)
	}
	els, err := e.doc.QuerySelectorAll(ctx, a.Selector, 0)
	if err != nil {
		var selErr *dom.SelectorError
		if errors.As(err, &selErr) {
			return nil, &ElementNotFoundError{Reason: "Element not found: " + a.Selector, Cause: err}
		}
		return nil, fmt.Errorf("failed to query %s: %w", a.Selector, err)
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.InnerText(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read text: %w", err)
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

// lookup resolves selector to its first match. A selector the document
// cannot parse matches nothing.
func (e *Engine) lookup(ctx context.Context, selector string) (dom.Element, error) {
	el, err := e.doc.QuerySelector(ctx, selector)
	if err != nil {
		var selErr *dom.SelectorError
		if errors.As(err, &selErr) {
			e.logger.Debug("Unparsable selector treated as no match", zap.String("selector", selector), zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	return el, nil
}

func (e *Engine) findByText(ctx context.Context, text string) (dom.Element, error) {
	for _, group := range textSearchGroups {
		el, err := e.doc.FindByText(ctx, group, text)
		if err != nil {
			return nil, fmt.Errorf("failed to search for %q: %w", text, err)
		}
		if el != nil {
			return el, nil
		}
	}
	return nil, nil
}
