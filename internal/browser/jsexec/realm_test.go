package jsexec_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/internal/browser/jsexec"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
	"github.com/xkilldash9x/pagepilot/internal/browser/pageworld"
)

// newTestRealm is a helper to set up a realm over a small document.
func newTestRealm(t *testing.T) (*jsexec.Realm, *memdom.Document) {
	t.Helper()
	doc, err := memdom.ParseString(`<html><body><div id="out">before</div><input id="in" value="v1"></body></html>`)
	require.NoError(t, err)
	return jsexec.NewRealm(doc, zaptest.NewLogger(t)), doc
}

func TestCall_WithArgs(t *testing.T) {
	realm, _ := newTestRealm(t)
	raw, err := realm.Call(context.Background(), `function(args) { return args.prefix + args.message; }`,
		map[string]string{"prefix": "Log: ", "message": "Hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `"Log: Hello"`, string(raw))
}

func TestCall_ReturnsObjectByValue(t *testing.T) {
	realm, _ := newTestRealm(t)
	raw, err := realm.Call(context.Background(), `function() { return {status: "success", code: 200}; }`, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","code":200}`, string(raw))

	raw, err = realm.Call(context.Background(), `function() {}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestCall_MutatesDocument(t *testing.T) {
	realm, doc := newTestRealm(t)
	raw, err := realm.Call(context.Background(), `function(a) {
		document.getElementById('out').textContent = a.text;
		document.getElementById('in').value = a.text;
		return true;
	}`, map[string]string{"text": "after"})
	require.NoError(t, err)
	assert.Equal(t, "true", string(raw))
	assert.Equal(t, "after", doc.TextContent(doc.Find("#out")))
	assert.Equal(t, "after", doc.Value(doc.Find("#in")))
}

func TestCall_GlobalsPersistAcrossCalls(t *testing.T) {
	realm, _ := newTestRealm(t)
	require.NoError(t, realm.Eval(context.Background(), `window.registry = {count: 41};`))
	raw, err := realm.Call(context.Background(), `function() { return ++window.registry.count; }`, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", string(raw))
}

func TestCall_ExceptionIsScriptError(t *testing.T) {
	realm, _ := newTestRealm(t)
	_, err := realm.Call(context.Background(), `function() { throw new Error("boom"); }`, nil)
	var scriptErr *pageworld.ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Contains(t, scriptErr.Message, "boom")

	_, err = realm.Call(context.Background(), `function( {`, nil)
	assert.ErrorAs(t, err, &scriptErr)
}

func TestCall_SettledPromise(t *testing.T) {
	realm, _ := newTestRealm(t)
	raw, err := realm.Call(context.Background(), `function() { return Promise.resolve(7); }`, nil)
	require.NoError(t, err)
	assert.Equal(t, "7", string(raw))

	_, err = realm.Call(context.Background(), `function() { return Promise.reject("nope"); }`, nil)
	var scriptErr *pageworld.ScriptError
	assert.ErrorAs(t, err, &scriptErr)
}

func TestCall_InterruptedByContext(t *testing.T) {
	realm, _ := newTestRealm(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := realm.Call(ctx, `function() { while (true) {} }`, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The VM is usable again after an interrupt.
	raw, err := realm.Call(context.Background(), `function() { return 1; }`, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", string(raw))
}

func TestRealm_ThroughBridgeTimeout(t *testing.T) {
	realm, _ := newTestRealm(t)
	b := pageworld.NewBridge(realm, 30*time.Millisecond, zaptest.NewLogger(t))
	ok, err := b.CallBool(context.Background(), `function() { while (true) {} }`, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, pageworld.ErrTimeout)
}
