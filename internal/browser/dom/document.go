// browser/dom/document.go
package dom

import (
	"context"
	"fmt"
	"strings"
)

// Document is a live document the engine can query and mutate. Implementations
// exist for a Chrome tab (cdpdom) and for a parsed HTML tree (memdom).
//
// Lookups that find nothing return a nil Element and a nil error. A non-nil
// error always means the document itself could not be reached.
type Document interface {
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// QuerySelector returns the first match in document order.
	QuerySelector(ctx context.Context, selector string) (Element, error)
	// QuerySelectorAll returns up to limit matches in document order. A
	// non-positive limit returns every match.
	QuerySelectorAll(ctx context.Context, selector string, limit int) ([]Element, error)
	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)

	// FindByText returns the first element matching selector, in document
	// order, whose trimmed inner text contains needle (case-insensitive).
	FindByText(ctx context.Context, selector, needle string) (Element, error)

	// Body returns the top-level content container, or nil if the document
	// has none.
	Body(ctx context.Context) (Element, error)

	// Navigate requests a load of url and returns without waiting.
	Navigate(ctx context.Context, url string) error
	// ScrollBy scrolls the viewport vertically by dy pixels.
	ScrollBy(ctx context.Context, dy int) error
}

// ActionScope is implemented by documents whose element handles hold remote
// resources. BeginAction returns a context that scopes handles created under
// it, and a func that releases them.
type ActionScope interface {
	BeginAction(ctx context.Context) (context.Context, func())
}

// Element is a handle to one element of a Document. Handles are only valid for
// the duration of a single action.
type Element interface {
	// Describe reads the element's static properties in one round trip.
	Describe(ctx context.Context) (Info, error)
	InnerText(ctx context.Context) (string, error)

	// Parent returns the parent element, or nil at the top of the tree.
	Parent(ctx context.Context) (Element, error)
	// Closest returns the nearest inclusive ancestor matching selector.
	Closest(ctx context.Context, selector string) (Element, error)
	// QuerySelector searches the element's descendants.
	QuerySelector(ctx context.Context, selector string) (Element, error)
	// FrameBody returns the body of the document hosted by an iframe element.
	// It returns nil when the element is not a frame or its document is not
	// reachable from the caller's origin.
	FrameBody(ctx context.Context) (Element, error)

	ScrollIntoView(ctx context.Context) error
	Click(ctx context.Context) error
	Focus(ctx context.Context) error

	// SelectText selects the full value of a text control.
	SelectText(ctx context.Context) error
	// SelectContents places the document selection around the element's
	// children.
	SelectContents(ctx context.Context) error

	// ExecCommand runs a legacy editing command against the element's owner
	// document and reports whether the command was applied.
	ExecCommand(ctx context.Context, command, value string) (bool, error)

	// DispatchInput dispatches an InputEvent and reports whether it was not
	// canceled by a listener.
	DispatchInput(ctx context.Context, ev InputEvent) (bool, error)
	// DispatchEvent dispatches a plain bubbling Event of the given type.
	DispatchEvent(ctx context.Context, eventType string) error
	DispatchKey(ctx context.Context, ev KeyEvent) error

	SetValue(ctx context.Context, value string) error
	SetTextContent(ctx context.Context, text string) error
	// RequestSubmit submits a form element the way a submit button would.
	RequestSubmit(ctx context.Context) error
}

// Info is a snapshot of an element's static properties.
type Info struct {
	// Tag is the lowercase tag name.
	Tag   string
	Attrs map[string]string

	// Value is the current value of a form control.
	Value string
	// Href is the resolved absolute URL of an anchor.
	Href string
	// Type is the control type as the DOM reports it ("text", "textarea",
	// "select-one", ...). Empty for non-controls.
	Type string

	IsTextControl     bool
	IsContentEditable bool
	HasChildren       bool

	// SameTagIndex is the 1-based position among parent's children that
	// share the element's tag; SameTagCount is the size of that group.
	SameTagIndex int
	SameTagCount int
}

// Attr returns an attribute value, or "" when absent.
func (i Info) Attr(name string) string {
	return i.Attrs[name]
}

// ID returns the element's id attribute.
func (i Info) ID() string { return i.Attrs["id"] }

// InputEvent describes an InputEvent to dispatch. Events always bubble and
// are composed.
type InputEvent struct {
	Type       string
	InputType  string
	Data       string
	Cancelable bool
}

// KeyEvent describes a KeyboardEvent to dispatch.
type KeyEvent struct {
	Type    string
	Key     string
	Code    string
	KeyCode int
}

// EnterKey returns the keydown/keypress/keyup sequence for the Enter key.
func EnterKey() []KeyEvent {
	seq := make([]KeyEvent, 0, 3)
	for _, t := range []string{"keydown", "keypress", "keyup"} {
		seq = append(seq, KeyEvent{Type: t, Key: "Enter", Code: "Enter", KeyCode: 13})
	}
	return seq
}

// ContainsFold reports whether the trimmed text contains needle, ignoring
// case. Both document backends use it so text search behaves the same.
func ContainsFold(text, needle string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(text)), strings.ToLower(needle))
}

// SelectorError reports a selector the document could not parse.
type SelectorError struct {
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: %v", e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }
