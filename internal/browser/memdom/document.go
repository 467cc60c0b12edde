// Package memdom implements dom.Document over a parsed HTML tree. It keeps
// enough browser state (form values, focus, selection, listeners) to run the
// engine's editing strategies without a browser, and records every event it
// dispatches so callers can inspect what a page would have observed.
package memdom

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// DefaultURL is the location reported for documents parsed without one.
const DefaultURL = "about:blank"

// Document is an in-memory dom.Document. It is safe for concurrent use.
type Document struct {
	mu     sync.Mutex
	logger *zap.Logger

	root *html.Node
	url  string

	execEnabled bool
	scrollY     int

	values    map[*html.Node]string
	focused   map[*html.Node]*html.Node // owner root -> active element
	selection map[*html.Node]*html.Node // owner root -> element whose contents are selected
	frames    map[*html.Node]*html.Node // iframe -> parsed srcdoc document
	listeners map[*html.Node]map[string][]Listener
	selectors map[string]cascadia.SelectorGroup

	events      []Event
	navigations []string
	submissions []*html.Node
	scrolledTo  *html.Node
}

// Option configures a Document.
type Option func(*Document)

// WithURL sets the document location used for URL() and href resolution.
func WithURL(u string) Option {
	return func(d *Document) { d.url = u }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithExecCommand enables or disables document.execCommand. Disabled, every
// command reports false, as it does in documents that dropped the legacy
// editing API.
func WithExecCommand(enabled bool) Option {
	return func(d *Document) { d.execEnabled = enabled }
}

// Parse builds a Document from HTML.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	d := &Document{
		logger:      zap.NewNop(),
		root:        root,
		url:         DefaultURL,
		execEnabled: true,
		values:      make(map[*html.Node]string),
		focused:     make(map[*html.Node]*html.Node),
		selection:   make(map[*html.Node]*html.Node),
		frames:      make(map[*html.Node]*html.Node),
		listeners:   make(map[*html.Node]map[string][]Listener),
		selectors:   make(map[string]cascadia.SelectorGroup),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("memdom")
	return d, nil
}

// ParseString is Parse for a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Tree is unlocked access to a Document's state. It is only valid inside the
// function passed to Exclusive.
type Tree struct {
	d *Document
}

// Exclusive runs fn while holding the document lock. Script realms use it to
// walk and mutate the tree without racing the engine.
func (d *Document) Exclusive(fn func(t *Tree)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&Tree{d: d})
}

func (t *Tree) Root() *html.Node { return t.d.root }
func (t *Tree) URL() string      { return t.d.url }

func (t *Tree) Value(n *html.Node) string       { return t.d.valueOf(n) }
func (t *Tree) SetValue(n *html.Node, v string) { t.d.setValue(n, v) }
func (t *Tree) InnerText(n *html.Node) string   { return innerText(n) }

// FrameDocument returns the document hosted by an iframe, or nil.
func (t *Tree) FrameDocument(n *html.Node) *html.Node { return t.d.frameDocument(n) }

// Dispatch sends ev to n and reports whether it was not canceled.
func (t *Tree) Dispatch(n *html.Node, ev Event) bool { return t.d.dispatch(n, ev) }

// -- Inspection helpers --

// Root returns the document node.
func (d *Document) Root() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root
}

// Find returns the first node matching selector, or nil.
func (d *Document) Find(selector string) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return nil
	}
	return cascadia.Query(d.root, sel)
}

// Value returns the current value of a form control.
func (d *Document) Value(n *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.valueOf(n)
}

// TextContent returns the concatenated text of n's descendants.
func (d *Document) TextContent(n *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return textContent(n)
}

// Focused returns the active element of the document that owns n.
func (d *Document) Focused(n *html.Node) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused[rootOf(n)]
}

// Events returns a copy of every event dispatched so far.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// EventsOfType filters Events by type.
func (d *Document) EventsOfType(eventType string) []Event {
	var out []Event
	for _, ev := range d.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Navigations returns the URLs requested through Navigate.
func (d *Document) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Submissions returns the forms submitted so far.
func (d *Document) Submissions() []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*html.Node(nil), d.submissions...)
}

// ScrollY returns the vertical scroll offset.
func (d *Document) ScrollY() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollY
}

// ScrolledIntoView returns the last element scrolled into view.
func (d *Document) ScrolledIntoView() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolledTo
}

// Render serializes the tree. Form values held outside attributes are not
// included.
func (d *Document) Render() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return ""
	}
	return buf.String()
}

// resolve turns an href into an absolute URL against the document location.
func (d *Document) resolve(href string) string {
	base, err := url.Parse(d.url)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (d *Document) frameDocument(n *html.Node) *html.Node {
	if n == nil || n.Type != html.ElementNode || n.Data != "iframe" {
		return nil
	}
	if doc, ok := d.frames[n]; ok {
		return doc
	}
	srcdoc, ok := attr(n, "srcdoc")
	if !ok {
		// A frame without inline content is treated as cross-origin.
		return nil
	}
	doc, err := html.Parse(strings.NewReader(srcdoc))
	if err != nil {
		d.logger.Debug("Failed to parse frame document", zap.Error(err))
		return nil
	}
	d.frames[n] = doc
	return doc
}

func rootOf(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func attrs(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		if a.Namespace == "" {
			m[a.Key] = a.Val
		}
	}
	return m
}

var _ dom.Document = (*Document)(nil)
