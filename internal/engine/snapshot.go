// internal/engine/snapshot.go
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Candidate selectors for each part of the page context.
const (
	inputCandidates    = "input:not([type=hidden]), textarea, select"
	editableCandidates = "[contenteditable=true], [contenteditable=''], .monaco-editor, .ck-editor__editable, .ProseMirror, .tox-edit-area__iframe"
	buttonCandidates   = "button, [role=button], input[type=submit], input[type=button], a.btn, a.button"
	linkCandidates     = "a[href]"
)

const (
	maxEditableValue = 200
	maxButtonText    = 80
	maxLinkText      = 60
)

// Snapshotter summarizes the interactive surface of a page for the agent.
// It only reads; running it twice on an unchanged page yields the same
// context.
type Snapshotter struct {
	doc   dom.Document
	synth *Synthesizer
}

// NewSnapshotter creates a Snapshotter for doc.
func NewSnapshotter(doc dom.Document) *Snapshotter {
	return &Snapshotter{doc: doc, synth: NewSynthesizer(doc)}
}

// Snapshot builds a fresh PageContext.
func (s *Snapshotter) Snapshot(ctx context.Context) (schemas.PageContext, error) {
	var pc schemas.PageContext
	var err error

	if pc.URL, err = s.doc.URL(ctx); err != nil {
		return pc, fmt.Errorf("failed to read page url: %w", err)
	}
	if pc.Title, err = s.doc.Title(ctx); err != nil {
		return pc, fmt.Errorf("failed to read page title: %w", err)
	}
	if pc.Text, err = s.bodyText(ctx, schemas.MaxContextText); err != nil {
		return pc, err
	}
	if pc.Inputs, err = s.inputs(ctx); err != nil {
		return pc, err
	}
	if pc.EditableRegions, err = s.editables(ctx); err != nil {
		return pc, err
	}
	if pc.Buttons, err = s.buttons(ctx); err != nil {
		return pc, err
	}
	if pc.Links, err = s.links(ctx); err != nil {
		return pc, err
	}
	return pc, nil
}

// bodyText returns the body's rendered text cut to limit code points.
func (s *Snapshotter) bodyText(ctx context.Context, limit int) (string, error) {
	body, err := s.doc.Body(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find body: %w", err)
	}
	if body == nil {
		return "", nil
	}
	text, err := body.InnerText(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read body text: %w", err)
	}
	return truncate(text, limit), nil
}

func (s *Snapshotter) candidates(ctx context.Context, selector string, limit int) ([]dom.Element, error) {
	els, err := s.doc.QuerySelectorAll(ctx, selector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	return els, nil
}

func (s *Snapshotter) inputs(ctx context.Context) ([]schemas.InputInfo, error) {
	els, err := s.candidates(ctx, inputCandidates, schemas.MaxContextInputs)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.InputInfo, 0, len(els))
	for _, el := range els {
		info, err := el.Describe(ctx)
		if err != nil {
			return nil, err
		}
		sel, err := s.synth.Synthesize(ctx, el)
		if err != nil {
			return nil, err
		}
		typ := info.Type
		if info.Tag == "select" {
			typ = "select"
		} else if typ == "" {
			typ = "text"
		}
		out = append(out, schemas.InputInfo{
			Selector:    sel,
			Type:        typ,
			Name:        info.Attr("name"),
			Placeholder: info.Attr("placeholder"),
			Value:       info.Value,
		})
	}
	return out, nil
}

func (s *Snapshotter) editables(ctx context.Context) ([]schemas.InputInfo, error) {
	els, err := s.candidates(ctx, editableCandidates, schemas.MaxContextEditable)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.InputInfo, 0, len(els))
	for _, el := range els {
		info, err := el.Describe(ctx)
		if err != nil {
			return nil, err
		}
		sel, err := s.synth.Synthesize(ctx, el)
		if err != nil {
			return nil, err
		}
		text, err := el.InnerText(ctx)
		if err != nil {
			return nil, err
		}
		name := info.Attr("aria-label")
		if name == "" {
			name = info.Attr("role")
		}
		out = append(out, schemas.InputInfo{
			Selector:    sel,
			Type:        "contenteditable",
			Name:        name,
			Placeholder: info.Attr("data-placeholder"),
			Value:       truncate(text, maxEditableValue),
		})
	}
	return out, nil
}

func (s *Snapshotter) buttons(ctx context.Context) ([]schemas.ButtonInfo, error) {
	els, err := s.candidates(ctx, buttonCandidates, schemas.MaxContextButtons)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.ButtonInfo, 0, len(els))
	for _, el := range els {
		sel, err := s.synth.Synthesize(ctx, el)
		if err != nil {
			return nil, err
		}
		text, err := el.InnerText(ctx)
		if err != nil {
			return nil, err
		}
		text = truncate(strings.TrimSpace(text), maxButtonText)
		if text == "" {
			info, err := el.Describe(ctx)
			if err != nil {
				return nil, err
			}
			text = info.Attr("aria-label")
		}
		out = append(out, schemas.ButtonInfo{Selector: sel, Text: text})
	}
	return out, nil
}

func (s *Snapshotter) links(ctx context.Context) ([]schemas.LinkInfo, error) {
	els, err := s.candidates(ctx, linkCandidates, schemas.MaxContextLinks)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.LinkInfo, 0, len(els))
	for _, el := range els {
		text, err := el.InnerText(ctx)
		if err != nil {
			return nil, err
		}
		text = truncate(strings.TrimSpace(text), maxLinkText)
		if text == "" {
			continue
		}
		info, err := el.Describe(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, schemas.LinkInfo{Text: text, Href: info.Href})
	}
	return out, nil
}

// truncate cuts s to at most n code points.
func truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
