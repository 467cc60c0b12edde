package schemas

// Caps applied by the snapshotter. The snapshot is sent to a remote process
// with bounded context, so overflow is truncated rather than rejected.
const (
	MaxContextText     = 8000
	MaxContextInputs   = 50
	MaxContextEditable = 20
	MaxContextButtons  = 30
	MaxContextLinks    = 40

	// MaxExtractText caps a whole-document Extract.
	MaxExtractText = 10000
)

// PageContext is a bounded, structured summary of the current document.
type PageContext struct {
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	Text            string       `json:"text"`
	Inputs          []InputInfo  `json:"inputs"`
	EditableRegions []InputInfo  `json:"editableRegions"`
	Buttons         []ButtonInfo `json:"buttons"`
	Links           []LinkInfo   `json:"links"`
}

// InputInfo describes a form control or an editable region.
type InputInfo struct {
	Selector    string `json:"selector"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	Value       string `json:"value"`
}

// ButtonInfo describes a clickable control.
type ButtonInfo struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// LinkInfo describes an anchor with visible text.
type LinkInfo struct {
	Text string `json:"text"`
	Href string `json:"href"`
}
