package cdpdom

import (
	"context"

	"github.com/chromedp/cdproto/runtime"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Element is a remote object handle. It is valid until the action that
// created it releases its object group.
type Element struct {
	d  *Document
	id runtime.RemoteObjectID
}

// ObjectID returns the remote object id of the handle.
func (e *Element) ObjectID() runtime.RemoteObjectID { return e.id }

type describeResult struct {
	Tag               string            `json:"tag"`
	Attrs             map[string]string `json:"attrs"`
	Value             string            `json:"value"`
	Href              string            `json:"href"`
	Type              string            `json:"type"`
	IsTextControl     bool              `json:"isTextControl"`
	IsContentEditable bool              `json:"isContentEditable"`
	HasChildren       bool              `json:"hasChildren"`
	SameTagIndex      int               `json:"sameTagIndex"`
	SameTagCount      int               `json:"sameTagCount"`
}

func (e *Element) Describe(ctx context.Context) (dom.Info, error) {
	var r describeResult
	if err := e.d.value(ctx, e.id, describeJS, &r); err != nil {
		return dom.Info{}, err
	}
	if r.Attrs == nil {
		r.Attrs = map[string]string{}
	}
	return dom.Info{
		Tag:               r.Tag,
		Attrs:             r.Attrs,
		Value:             r.Value,
		Href:              r.Href,
		Type:              r.Type,
		IsTextControl:     r.IsTextControl,
		IsContentEditable: r.IsContentEditable,
		HasChildren:       r.HasChildren,
		SameTagIndex:      r.SameTagIndex,
		SameTagCount:      r.SameTagCount,
	}, nil
}

func (e *Element) InnerText(ctx context.Context) (string, error) {
	var text string
	err := e.d.value(ctx, e.id, innerTextJS, &text)
	return text, err
}

func (e *Element) Parent(ctx context.Context) (dom.Element, error) {
	return e.d.element(ctx, e.id, parentJS)
}

func (e *Element) Closest(ctx context.Context, selector string) (dom.Element, error) {
	el, err := e.d.element(ctx, e.id, closestJS, selector)
	return el, selectorError(selector, err)
}

func (e *Element) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	el, err := e.d.element(ctx, e.id, elemQueryJS, selector)
	return el, selectorError(selector, err)
}

func (e *Element) FrameBody(ctx context.Context) (dom.Element, error) {
	return e.d.element(ctx, e.id, frameBodyJS)
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return e.d.value(ctx, e.id, scrollIntoViewJS, nil)
}

func (e *Element) Click(ctx context.Context) error {
	return e.d.value(ctx, e.id, clickJS, nil)
}

func (e *Element) Focus(ctx context.Context) error {
	return e.d.value(ctx, e.id, focusJS, nil)
}

func (e *Element) SelectText(ctx context.Context) error {
	return e.d.value(ctx, e.id, selectTextJS, nil)
}

func (e *Element) SelectContents(ctx context.Context) error {
	return e.d.value(ctx, e.id, selectContentsJS, nil)
}

func (e *Element) ExecCommand(ctx context.Context, command, value string) (bool, error) {
	var ok bool
	err := e.d.value(ctx, e.id, execCommandJS, &ok, command, value)
	return ok, err
}

type inputEventArg struct {
	Type       string `json:"type"`
	InputType  string `json:"inputType"`
	Data       string `json:"data"`
	Cancelable bool   `json:"cancelable"`
}

func (e *Element) DispatchInput(ctx context.Context, ev dom.InputEvent) (bool, error) {
	var notCanceled bool
	err := e.d.value(ctx, e.id, dispatchInputJS, &notCanceled, inputEventArg{
		Type:       ev.Type,
		InputType:  ev.InputType,
		Data:       ev.Data,
		Cancelable: ev.Cancelable,
	})
	return notCanceled, err
}

func (e *Element) DispatchEvent(ctx context.Context, eventType string) error {
	return e.d.value(ctx, e.id, dispatchEventJS, nil, eventType)
}

type keyEventArg struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int    `json:"keyCode"`
}

func (e *Element) DispatchKey(ctx context.Context, ev dom.KeyEvent) error {
	return e.d.value(ctx, e.id, dispatchKeyJS, nil, keyEventArg{
		Type:    ev.Type,
		Key:     ev.Key,
		Code:    ev.Code,
		KeyCode: ev.KeyCode,
	})
}

func (e *Element) SetValue(ctx context.Context, value string) error {
	return e.d.value(ctx, e.id, setValueJS, nil, value)
}

func (e *Element) SetTextContent(ctx context.Context, text string) error {
	return e.d.value(ctx, e.id, setTextJS, nil, text)
}

func (e *Element) RequestSubmit(ctx context.Context) error {
	return e.d.value(ctx, e.id, requestSubmitJS, nil)
}

var _ dom.Element = (*Element)(nil)
