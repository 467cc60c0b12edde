// internal/engine/classifier.go
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Classification names the editing surface behind an element and the node
// that keyboard simulation should act on.
type Classification struct {
	Kind   schemas.EditorKind
	Target dom.Element
}

// Classifier recognizes rich-text editors from their DOM footprint.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger.Named("classifier")}
}

// Classify never fails and never mutates the document. Any lookup that errors
// or crosses an unreachable frame is treated as a miss and the next rule is
// tried.
func (c *Classifier) Classify(ctx context.Context, el dom.Element) Classification {
	if container := c.closest(ctx, el, ".monaco-editor"); container != nil {
		for _, sel := range []string{"textarea.inputarea", ".native-edit-context"} {
			if input := c.query(ctx, container, sel); input != nil {
				return Classification{Kind: schemas.EditorMonaco, Target: input}
			}
		}
		return Classification{Kind: schemas.EditorMonaco, Target: container}
	}

	if editable := c.closest(ctx, el, ".ck-editor__editable"); editable != nil {
		return Classification{Kind: schemas.EditorCKEditor, Target: editable}
	}
	if editable := c.query(ctx, el, ".ck-editor__editable"); editable != nil {
		return Classification{Kind: schemas.EditorCKEditor, Target: editable}
	}

	if wrapper := c.closest(ctx, el, "[id^=cke_]"); wrapper != nil {
		if body := c.frameBody(ctx, wrapper); body != nil {
			return Classification{Kind: schemas.EditorCKEditor, Target: body}
		}
	}

	if pm := c.closest(ctx, el, ".ProseMirror"); pm != nil {
		return Classification{Kind: schemas.EditorProseMirror, Target: pm}
	}

	if area := c.closest(ctx, el, ".tox-edit-area"); area != nil {
		if body := c.frameBody(ctx, area); body != nil {
			return Classification{Kind: schemas.EditorTinyMCE, Target: body}
		}
	}

	if host := c.editableAncestor(ctx, el); host != nil {
		return Classification{Kind: schemas.EditorContentEditable, Target: host}
	}
	return Classification{Kind: schemas.EditorNative, Target: el}
}

// editableAncestor returns el when it is editable, otherwise the nearest
// editable ancestor below body.
func (c *Classifier) editableAncestor(ctx context.Context, el dom.Element) dom.Element {
	info, err := el.Describe(ctx)
	if err != nil {
		c.miss("describe", err)
		return nil
	}
	if info.IsContentEditable {
		return el
	}
	current := el
	for {
		parent, err := current.Parent(ctx)
		if err != nil {
			c.miss("parent", err)
			return nil
		}
		if parent == nil {
			return nil
		}
		pinfo, err := parent.Describe(ctx)
		if err != nil {
			c.miss("describe", err)
			return nil
		}
		if pinfo.Tag == "body" {
			return nil
		}
		if pinfo.IsContentEditable {
			return parent
		}
		current = parent
	}
}

func (c *Classifier) frameBody(ctx context.Context, wrapper dom.Element) dom.Element {
	frame := c.query(ctx, wrapper, "iframe")
	if frame == nil {
		return nil
	}
	body, err := frame.FrameBody(ctx)
	if err != nil {
		c.miss("frame body", err)
		return nil
	}
	return body
}

func (c *Classifier) closest(ctx context.Context, el dom.Element, sel string) dom.Element {
	found, err := el.Closest(ctx, sel)
	if err != nil {
		c.miss(sel, err)
		return nil
	}
	return found
}

func (c *Classifier) query(ctx context.Context, el dom.Element, sel string) dom.Element {
	found, err := el.QuerySelector(ctx, sel)
	if err != nil {
		c.miss(sel, err)
		return nil
	}
	return found
}

func (c *Classifier) miss(step string, err error) {
	c.logger.Debug("Classifier lookup failed, treating as miss", zap.String("step", step), zap.Error(err))
}
