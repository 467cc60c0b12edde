package memdom

import (
	"context"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// compile parses a selector group, caching the result. Callers hold d.mu.
func (d *Document) compile(selector string) (cascadia.SelectorGroup, error) {
	if sel, ok := d.selectors[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, &dom.SelectorError{Selector: selector, Err: err}
	}
	d.selectors[selector] = sel
	return sel, nil
}

func (d *Document) wrap(n *html.Node) dom.Element {
	if n == nil {
		return nil
	}
	return &Element{d: d, n: n}
}

func (d *Document) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// Title mirrors document.title: the first title element's text with
// whitespace collapsed.
func (d *Document) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := htmlquery.FindOne(d.root, "//title")
	if n == nil {
		return "", nil
	}
	return strings.Join(strings.Fields(htmlquery.InnerText(n)), " "), nil
}

func (d *Document) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	return d.wrap(cascadia.Query(d.root, sel)), nil
}

func (d *Document) QuerySelectorAll(ctx context.Context, selector string, limit int) ([]dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	nodes := cascadia.QueryAll(d.root, sel)
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

func (d *Document) Count(ctx context.Context, selector string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return 0, err
	}
	return len(cascadia.QueryAll(d.root, sel)), nil
}

func (d *Document) FindByText(ctx context.Context, selector, needle string) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	for _, n := range cascadia.QueryAll(d.root, sel) {
		if dom.ContainsFold(innerText(n), needle) {
			return d.wrap(n), nil
		}
	}
	return nil, nil
}

func (d *Document) Body(ctx context.Context) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrap(htmlquery.FindOne(d.root, "//body")), nil
}

// Navigate records the request. The tree is left in place; callers that
// need the new page parse it into a fresh Document.
func (d *Document) Navigate(ctx context.Context, u string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigations = append(d.navigations, d.resolve(u))
	d.logger.Debug("Navigation requested", zap.String("url", u))
	return nil
}

func (d *Document) ScrollBy(ctx context.Context, dy int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollY += dy
	if d.scrollY < 0 {
		d.scrollY = 0
	}
	return nil
}
