package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/browser/jsexec"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
)

// sleepRecorder stands in for real pauses and remembers what was requested.
type sleepRecorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.pauses = append(r.pauses, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Pauses() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.pauses...)
}

// hangingRealm never answers.
type hangingRealm struct {
	release chan struct{}
}

func (h *hangingRealm) Call(ctx context.Context, fn string, args any) (json.RawMessage, error) {
	<-h.release
	return json.RawMessage("true"), nil
}

type fixture struct {
	doc    *memdom.Document
	realm  *jsexec.Realm
	engine *Engine
	sleeps *sleepRecorder
}

// newFixture parses page and wires an engine with a goja realm over it. Pauses
// are recorded, never taken.
func newFixture(t *testing.T, page string, opts ...memdom.Option) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	opts = append([]memdom.Option{memdom.WithURL("https://app.example/"), memdom.WithLogger(logger)}, opts...)
	doc, err := memdom.ParseString(page, opts...)
	require.NoError(t, err)

	realm := jsexec.NewRealm(doc, logger)
	sleeps := &sleepRecorder{}
	eng := New(doc, realm,
		WithLogger(logger),
		WithJitter(NoJitter{}),
		WithSleeper(sleeps.Sleep),
		WithBridgeTimeout(2*time.Second),
	)
	return &fixture{doc: doc, realm: realm, engine: eng, sleeps: sleeps}
}

func (f *fixture) mustQuery(t *testing.T, selector string) dom.Element {
	t.Helper()
	el, err := f.doc.QuerySelector(context.Background(), selector)
	require.NoError(t, err)
	require.NotNil(t, el, "no element for %s", selector)
	return el
}

// eval installs page globals the way a page's own scripts would.
func (f *fixture) eval(t *testing.T, script string) {
	t.Helper()
	require.NoError(t, f.realm.Eval(context.Background(), script))
}

// global reads window[name] back as JSON.
func (f *fixture) global(t *testing.T, name string) string {
	t.Helper()
	raw, err := f.realm.Call(context.Background(), `function(a) { return window[a.name]; }`, map[string]string{"name": name})
	require.NoError(t, err)
	return string(raw)
}
