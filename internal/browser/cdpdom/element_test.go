package cdpdom

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

func elementUnderTest(t *testing.T) (*mockExecutor, *Element, context.Context) {
	t.Helper()
	exec, doc, ctx := setup(t)
	return exec, &Element{d: doc, id: "el-1"}, ctx
}

func TestElement_Describe(t *testing.T) {
	exec, el, ctx := elementUnderTest(t)
	exec.MockCallFunctionOn = func(p *runtime.CallFunctionOnParams) (*runtime.RemoteObject, *runtime.ExceptionDetails, error) {
		return byValue(t, map[string]any{
			"tag":               "input",
			"attrs":             map[string]string{"name": "email", "type": "email"},
			"value":             "me@example.com",
			"type":              "email",
			"isTextControl":     true,
			"isContentEditable": false,
			"hasChildren":       false,
			"sameTagIndex":      2,
			"sameTagCount":      3,
		}), nil, nil
	}

	info, err := el.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, dom.Info{
		Tag:           "input",
		Attrs:         map[string]string{"name": "email", "type": "email"},
		Value:         "me@example.com",
		Type:          "email",
		IsTextControl: true,
		SameTagIndex:  2,
		SameTagCount:  3,
	}, info)
	assert.Equal(t, describeJS, exec.lastCall(t).FunctionDeclaration)
	assert.Equal(t, runtime.RemoteObjectID("el-1"), exec.lastCall(t).ObjectID)
}

func TestElement_DescribeWithoutAttributes(t *testing.T) {
	exec, el, ctx := elementUnderTest(t)
	exec.MockCallFunctionOn = func(p *runtime.CallFunctionOnParams) (*runtime.RemoteObject, *runtime.ExceptionDetails, error) {
		return byValue(t, map[string]any{"tag": "div"}), nil, nil
	}
	info, err := el.Describe(ctx)
	require.NoError(t, err)
	assert.NotNil(t, info.Attrs)
	assert.Equal(t, "", info.ID())
}

func TestElement_Navigation(t *testing.T) {
	exec, el, ctx := elementUnderTest(t)
	exec.MockCallFunctionOn = func(p *runtime.CallFunctionOnParams) (*runtime.RemoteObject, *runtime.ExceptionDetails, error) {
		switch p.FunctionDeclaration {
		case closestJS:
			return remote("form-1"), nil, nil
		case parentJS, frameBodyJS:
			return &runtime.RemoteObject{Subtype: "null"}, nil, nil
		}
		return remote("child"), nil, nil
	}

	form, err := el.Closest(ctx, "form")
	require.NoError(t, err)
	require.NotNil(t, form)
	assert.Equal(t, runtime.RemoteObjectID("form-1"), form.(*Element).ObjectID())
	assert.Equal(t, []string{`"form"`}, args(exec.lastCall(t)))

	parent, err := el.Parent(ctx)
	require.NoError(t, err)
	assert.Nil(t, parent)

	body, err := el.FrameBody(ctx)
	require.NoError(t, err)
	assert.Nil(t, body)

	child, err := el.QuerySelector(ctx, "p")
	require.NoError(t, err)
	assert.NotNil(t, child)
	assert.Equal(t, elemQueryJS, exec.lastCall(t).FunctionDeclaration)
}

func TestElement_Editing(t *testing.T) {
	exec, el, ctx := elementUnderTest(t)
	exec.MockCallFunctionOn = func(p *runtime.CallFunctionOnParams) (*runtime.RemoteObject, *runtime.ExceptionDetails, error) {
		switch p.FunctionDeclaration {
		case execCommandJS:
			return byValue(t, true), nil, nil
		case dispatchInputJS:
			return byValue(t, false), nil, nil
		}
		return &runtime.RemoteObject{Type: "undefined"}, nil, nil
	}

	ok, err := el.ExecCommand(ctx, "insertText", "hi")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{`"insertText"`, `"hi"`}, args(exec.lastCall(t)))

	notCanceled, err := el.DispatchInput(ctx, dom.InputEvent{Type: "beforeinput", InputType: "insertText", Data: "h", Cancelable: true})
	require.NoError(t, err)
	assert.False(t, notCanceled)
	assert.JSONEq(t, `{"type":"beforeinput","inputType":"insertText","data":"h","cancelable":true}`, args(exec.lastCall(t))[0])

	require.NoError(t, el.DispatchKey(ctx, dom.EnterKey()[0]))
	assert.JSONEq(t, `{"type":"keydown","key":"Enter","code":"Enter","keyCode":13}`, args(exec.lastCall(t))[0])

	require.NoError(t, el.SetValue(ctx, "typed"))
	assert.Equal(t, setValueJS, exec.lastCall(t).FunctionDeclaration)
	assert.Equal(t, []string{`"typed"`}, args(exec.lastCall(t)))

	steps := []struct {
		name string
		run  func() error
		fn   string
	}{
		{"scroll", func() error { return el.ScrollIntoView(ctx) }, scrollIntoViewJS},
		{"click", func() error { return el.Click(ctx) }, clickJS},
		{"focus", func() error { return el.Focus(ctx) }, focusJS},
		{"select text", func() error { return el.SelectText(ctx) }, selectTextJS},
		{"select contents", func() error { return el.SelectContents(ctx) }, selectContentsJS},
		{"event", func() error { return el.DispatchEvent(ctx, "change") }, dispatchEventJS},
		{"text content", func() error { return el.SetTextContent(ctx, "x") }, setTextJS},
		{"submit", func() error { return el.RequestSubmit(ctx) }, requestSubmitJS},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			require.NoError(t, step.run())
			call := exec.lastCall(t)
			assert.Equal(t, step.fn, call.FunctionDeclaration)
			assert.Equal(t, runtime.RemoteObjectID("el-1"), call.ObjectID)
		})
	}
}
