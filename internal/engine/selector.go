// internal/engine/selector.go
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// maxPathDepth bounds the structural fallback path.
const maxPathDepth = 5

// Synthesizer produces a CSS selector that re-identifies an element in the
// same document. Stable attributes are preferred over position.
type Synthesizer struct {
	doc dom.Document
}

// NewSynthesizer creates a Synthesizer for doc.
func NewSynthesizer(doc dom.Document) *Synthesizer {
	return &Synthesizer{doc: doc}
}

// Synthesize returns a selector for el. The result is a best effort: it may
// match more than one element when nothing stable distinguishes el.
func (s *Synthesizer) Synthesize(ctx context.Context, el dom.Element) (string, error) {
	info, err := el.Describe(ctx)
	if err != nil {
		return "", err
	}
	if id := info.ID(); id != "" {
		return "#" + dom.EscapeIdent(id), nil
	}
	if testID := info.Attr("data-testid"); testID != "" {
		return fmt.Sprintf(`[data-testid="%s"]`, dom.EscapeIdent(testID)), nil
	}
	if name := info.Attr("name"); name != "" {
		sel := fmt.Sprintf(`%s[name="%s"]`, info.Tag, dom.EscapeIdent(name))
		if ok, err := s.unique(ctx, sel); err != nil {
			return "", err
		} else if ok {
			return sel, nil
		}
	}
	if label := info.Attr("aria-label"); label != "" {
		sel := fmt.Sprintf(`[aria-label="%s"]`, dom.EscapeIdent(label))
		if ok, err := s.unique(ctx, sel); err != nil {
			return "", err
		} else if ok {
			return sel, nil
		}
	}
	return s.path(ctx, el, info)
}

func (s *Synthesizer) unique(ctx context.Context, sel string) (bool, error) {
	n, err := s.doc.Count(ctx, sel)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// path walks up from el, at most maxPathDepth levels, stopping at body or at
// the first ancestor carrying an id. A walk that reaches body is anchored
// there.
func (s *Synthesizer) path(ctx context.Context, el dom.Element, info dom.Info) (string, error) {
	var parts []string
	current := el
	for current != nil && len(parts) < maxPathDepth {
		if info.Tag == "body" {
			parts = append(parts, "body")
			break
		}
		if id := info.ID(); id != "" {
			parts = append(parts, "#"+dom.EscapeIdent(id))
			break
		}
		part := info.Tag
		if info.SameTagCount > 1 {
			part = fmt.Sprintf("%s:nth-of-type(%d)", part, info.SameTagIndex)
		}
		parts = append(parts, part)

		parent, err := current.Parent(ctx)
		if err != nil {
			return "", err
		}
		current = parent
		if current == nil {
			break
		}
		if info, err = current.Describe(ctx); err != nil {
			return "", err
		}
	}
	// The body anchor does not count against the depth budget.
	if len(parts) == maxPathDepth && current != nil && info.Tag == "body" {
		parts = append(parts, "body")
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > "), nil
}
