package schemas

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// wire is the codec used for everything that crosses the message bus. It is
// configured to behave exactly like encoding/json.
var wire = jsoniter.ConfigCompatibleWithStandardLibrary

// ActionType is the discriminator carried in the "type" field of an action.
type ActionType string

const (
	ActionNavigate   ActionType = "navigate"
	ActionClick      ActionType = "click"
	ActionTypeText   ActionType = "type"
	ActionSelect     ActionType = "select"
	ActionWait       ActionType = "wait"
	ActionScroll     ActionType = "scroll"
	ActionExtract    ActionType = "extract"
	ActionScreenshot ActionType = "screenshot"
)

// ScrollDirection is the direction of a Scroll action.
type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

// DefaultScrollAmount is used when a Scroll action omits its amount.
const DefaultScrollAmount = 400

// Action is one instruction in the browser-control vocabulary. The set of
// implementations is closed; an unrecognized "type" decodes to Unknown.
type Action interface {
	Kind() ActionType
	isAction()
}

// Navigate loads a new URL in the current tab.
type Navigate struct {
	URL string `json:"url"`
}

// Click clicks an element located by selector, or by visible text when the
// selector does not resolve.
type Click struct {
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Type replaces the content of an input or rich-text editor.
type Type struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Submit   bool   `json:"submit,omitempty"`
}

// Select assigns the value of a select element.
type Select struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

// Wait suspends for Ms milliseconds.
type Wait struct {
	Ms int `json:"ms"`
}

// Scroll scrolls the viewport vertically.
type Scroll struct {
	Direction ScrollDirection `json:"direction"`
	Amount    *int            `json:"amount,omitempty"`
}

// Extract returns visible text, either of the matched elements or of the
// whole document. Description is free text from the caller and is not used
// during execution.
type Extract struct {
	Selector    string `json:"selector,omitempty"`
	Description string `json:"description,omitempty"`
}

// Screenshot returns the structured page snapshot. There is no bitmap capture
// at this layer.
type Screenshot struct{}

// Unknown carries an action whose type is not part of the vocabulary. It is
// executed as a no-op.
type Unknown struct {
	Type string `json:"type"`
}

func (Navigate) Kind() ActionType   { return ActionNavigate }
func (Click) Kind() ActionType      { return ActionClick }
func (Type) Kind() ActionType       { return ActionTypeText }
func (Select) Kind() ActionType     { return ActionSelect }
func (Wait) Kind() ActionType       { return ActionWait }
func (Scroll) Kind() ActionType     { return ActionScroll }
func (Extract) Kind() ActionType    { return ActionExtract }
func (Screenshot) Kind() ActionType { return ActionScreenshot }
func (u Unknown) Kind() ActionType  { return ActionType(u.Type) }

func (Navigate) isAction()   {}
func (Click) isAction()      {}
func (Type) isAction()       {}
func (Select) isAction()     {}
func (Wait) isAction()       {}
func (Scroll) isAction()     {}
func (Extract) isAction()    {}
func (Screenshot) isAction() {}
func (Unknown) isAction()    {}

// ScrollAmount returns the requested amount or the default.
func (s Scroll) ScrollAmount() int {
	if s.Amount == nil {
		return DefaultScrollAmount
	}
	return *s.Amount
}

// InvalidActionError reports an action that violates the vocabulary's
// invariants (a missing selector, an unknown scroll direction, ...).
type InvalidActionError struct {
	Type   string
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid %s action: %s", e.Type, e.Reason)
}

// Validate checks the invariants of a decoded action.
func Validate(a Action) error {
	invalid := func(reason string) error {
		return &InvalidActionError{Type: string(a.Kind()), Reason: reason}
	}
	switch v := a.(type) {
	case Navigate:
		if v.URL == "" {
			return invalid("url is required")
		}
	case Click:
		if v.Selector == "" && v.Text == "" {
			return invalid("selector or text is required")
		}
	case Type:
		if v.Selector == "" {
			return invalid("selector is required")
		}
	case Select:
		if v.Selector == "" {
			return invalid("selector is required")
		}
	case Wait:
		if v.Ms < 0 {
			return invalid("ms must not be negative")
		}
	case Scroll:
		if v.Direction != ScrollUp && v.Direction != ScrollDown {
			return invalid(fmt.Sprintf("direction must be %q or %q", ScrollUp, ScrollDown))
		}
		if v.Amount != nil && *v.Amount < 0 {
			return invalid("amount must not be negative")
		}
	}
	return nil
}

// DecodeAction decodes a single action from its JSON object form and
// validates it.
func DecodeAction(data []byte) (Action, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := wire.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}
	if head.Type == "" {
		return nil, &InvalidActionError{Type: "unknown", Reason: "type is required"}
	}

	var (
		action Action
		err    error
	)
	switch ActionType(head.Type) {
	case ActionNavigate:
		action, err = decodeAs[Navigate](data)
	case ActionClick:
		action, err = decodeAs[Click](data)
	case ActionTypeText:
		action, err = decodeAs[Type](data)
	case ActionSelect:
		action, err = decodeAs[Select](data)
	case ActionWait:
		action, err = decodeAs[Wait](data)
	case ActionScroll:
		action, err = decodeAs[Scroll](data)
	case ActionExtract:
		action, err = decodeAs[Extract](data)
	case ActionScreenshot:
		action = Screenshot{}
	default:
		action = Unknown{Type: head.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s action: %w", head.Type, err)
	}
	if err := Validate(action); err != nil {
		return nil, err
	}
	return action, nil
}

// DecodeActions accepts either a single action object or an array of them.
func DecodeActions(data []byte) ([]Action, error) {
	var raw []jsoniter.RawMessage
	if err := wire.Unmarshal(data, &raw); err != nil {
		one, oneErr := DecodeAction(data)
		if oneErr != nil {
			return nil, oneErr
		}
		return []Action{one}, nil
	}
	actions := make([]Action, 0, len(raw))
	for i, r := range raw {
		a, err := DecodeAction(r)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// EncodeAction renders an action in its wire form, including the type tag.
func EncodeAction(a Action) ([]byte, error) {
	if u, ok := a.(Unknown); ok {
		return wire.Marshal(u)
	}
	body, err := wire.Marshal(a)
	if err != nil {
		return nil, err
	}
	fields := map[string]jsoniter.RawMessage{}
	if err := wire.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := wire.Marshal(string(a.Kind()))
	fields["type"] = tag
	return wire.Marshal(fields)
}

func decodeAs[T Action](data []byte) (Action, error) {
	var v T
	if err := wire.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
