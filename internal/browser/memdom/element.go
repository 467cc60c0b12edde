package memdom

import (
	"context"
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Element is a handle to a node of a Document.
type Element struct {
	d *Document
	n *html.Node
}

// Node returns the underlying parse-tree node.
func (e *Element) Node() *html.Node { return e.n }

// NodeOf unwraps a dom.Element created by this package. It returns nil for
// elements from other backends.
func NodeOf(el dom.Element) *html.Node {
	if e, ok := el.(*Element); ok && e != nil {
		return e.n
	}
	return nil
}

func (e *Element) Describe(ctx context.Context) (dom.Info, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n := e.n
	info := dom.Info{
		Tag:               n.Data,
		Attrs:             attrs(n),
		Type:              controlType(n),
		IsTextControl:     isTextControl(n),
		IsContentEditable: isContentEditable(n),
		HasChildren:       n.FirstChild != nil,
	}
	switch n.Data {
	case "input", "textarea", "select", "button", "option":
		info.Value = e.d.valueOf(n)
	case "a", "area":
		if href, ok := attr(n, "href"); ok {
			info.Href = e.d.resolve(href)
		}
	}
	if p := n.Parent; p != nil {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.Data != n.Data {
				continue
			}
			info.SameTagCount++
			if c == n {
				info.SameTagIndex = info.SameTagCount
			}
		}
	}
	return info, nil
}

func (e *Element) InnerText(ctx context.Context) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return innerText(e.n), nil
}

func (e *Element) Parent(ctx context.Context) (dom.Element, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, nil
	}
	return e.d.wrap(p), nil
}

func (e *Element) Closest(ctx context.Context, selector string) (dom.Element, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	sel, err := e.d.compile(selector)
	if err != nil {
		return nil, err
	}
	for c := e.n; c != nil; c = c.Parent {
		if c.Type == html.ElementNode && sel.Match(c) {
			return e.d.wrap(c), nil
		}
	}
	return nil, nil
}

func (e *Element) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	sel, err := e.d.compile(selector)
	if err != nil {
		return nil, err
	}
	return e.d.wrap(cascadia.Query(e.n, sel)), nil
}

func (e *Element) FrameBody(ctx context.Context) (dom.Element, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	doc := e.d.frameDocument(e.n)
	if doc == nil {
		return nil, nil
	}
	return e.d.wrap(htmlquery.FindOne(doc, "//body")), nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.d.scrolledTo = e.n
	return nil
}

// Click dispatches a click and runs the default action of submit buttons.
func (e *Element) Click(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if !e.d.dispatch(e.n, Event{Type: "click", Bubbles: true, Cancelable: true}) {
		return nil
	}
	if isSubmitter(e.n) {
		if form := closestTag(e.n, "form"); form != nil {
			e.d.submit(form)
		}
	}
	return nil
}

func (e *Element) Focus(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.d.focus(e.n)
	return nil
}

func (e *Element) SelectText(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if isTextControl(e.n) {
		e.d.selection[rootOf(e.n)] = e.n
	}
	return nil
}

func (e *Element) SelectContents(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.d.selection[rootOf(e.n)] = e.n
	return nil
}

func (e *Element) ExecCommand(ctx context.Context, command, value string) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.d.execCommand(e.n, command, value), nil
}

func (e *Element) DispatchInput(ctx context.Context, ev dom.InputEvent) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.d.dispatch(e.n, Event{
		Type:       ev.Type,
		InputType:  ev.InputType,
		Data:       ev.Data,
		Cancelable: ev.Cancelable,
		Bubbles:    true,
	}), nil
}

func (e *Element) DispatchEvent(ctx context.Context, eventType string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.d.dispatch(e.n, Event{Type: eventType, Bubbles: true})
	return nil
}

func (e *Element) DispatchKey(ctx context.Context, ev dom.KeyEvent) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.d.dispatch(e.n, Event{Type: ev.Type, Key: ev.Key, Bubbles: true, Cancelable: true})
	return nil
}

func (e *Element) SetValue(ctx context.Context, value string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.d.setValue(e.n, value)
	return nil
}

func (e *Element) SetTextContent(ctx context.Context, text string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	setTextContent(e.n, text)
	return nil
}

func (e *Element) RequestSubmit(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if e.n.Data != "form" {
		return fmt.Errorf("requestSubmit called on <%s>", e.n.Data)
	}
	e.d.submit(e.n)
	return nil
}

var _ dom.Element = (*Element)(nil)
