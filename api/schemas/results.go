package schemas

// EditorKind names the editing surface that owns a target element.
type EditorKind string

const (
	EditorNative          EditorKind = "native"
	EditorMonaco          EditorKind = "monaco"
	EditorCKEditor        EditorKind = "ckeditor"
	EditorTinyMCE         EditorKind = "tinymce"
	EditorProseMirror     EditorKind = "prosemirror"
	EditorContentEditable EditorKind = "contenteditable"
)

// InputMethod records which strategy actually set the content of a Type
// action.
type InputMethod string

const (
	MethodAPI      InputMethod = "api"
	MethodKeyboard InputMethod = "keyboard"
)

// FailureKind classifies a failed action.
type FailureKind string

const (
	// FailureElementNotFound means the selector (or text) resolved to nothing.
	FailureElementNotFound FailureKind = "ElementNotFound"
	// FailureExecution means the document could not be reached while the
	// action ran, e.g. the DevTools connection dropped.
	FailureExecution FailureKind = "ExecutionFailure"
)

// Failure is the failure half of an ActionResult.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// ActionResult is the outcome of one action. Exactly one of Payload and
// Failure is set.
type ActionResult struct {
	Payload any
	Failure *Failure
}

// Succeeded builds a successful result.
func Succeeded(payload any) ActionResult {
	return ActionResult{Payload: payload}
}

// Failed builds a failed result.
func Failed(kind FailureKind, reason string) ActionResult {
	return ActionResult{Failure: &Failure{Kind: kind, Reason: reason}}
}

// OK reports whether the action succeeded.
func (r ActionResult) OK() bool { return r.Failure == nil }

// Error returns the failure reason, or "" for a successful result.
func (r ActionResult) Error() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Reason
}

// -- Success payloads --

type NavigateResult struct {
	Navigated string `json:"navigated"`
}

type ClickResult struct {
	Clicked string `json:"clicked"`
}

type TypeResult struct {
	Typed  string      `json:"typed"`
	Text   string      `json:"text"`
	Method InputMethod `json:"method"`
	Editor EditorKind  `json:"editor"`
}

type SelectResult struct {
	Selected string `json:"selected"`
}

type WaitResult struct {
	Waited int `json:"waited"`
}

type ScrollResult struct {
	Scrolled ScrollDirection `json:"scrolled"`
}

// NoopResult is returned for actions outside the vocabulary so that a batch
// keeps running.
type NoopResult struct {
	Noop bool `json:"noop"`
}
