package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
)

const selectorPage = `<html><body>
<div id="a.b:c">weird id</div>
<span data-testid="save-btn">Save</span>
<input name="email"><input name="dup"><input name="dup">
<button aria-label="Close dialog">x</button>
<button aria-label="same">1</button><button aria-label="same">2</button>
<div><ul><li>a</li><li>b</li></ul></div>
<div><ul><li>c</li></ul></div>
<section id="main"><p>one</p><p>two</p></section>
<div><div><div><div><div><div><em>deep</em></div></div></div></div></div></div>
</body></html>`

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		expected string
	}{
		{"Escaped id", `[id="a.b:c"]`, `#a\.b\:c`},
		{"Test id", `span`, `[data-testid="save-btn"]`},
		{"Unique name", `input[name=email]`, `input[name="email"]`},
		{"Unique aria label", `[aria-label="Close dialog"]`, `[aria-label="Close\ dialog"]`},
		{"Duplicate aria label falls back to path", `[aria-label=same]`, `body > button:nth-of-type(2)`},
		{"Duplicate name falls back to path", `input[name=dup]`, `body > input:nth-of-type(2)`},
		{"Structural path anchored at body", `div > ul > li:nth-child(2)`, `body > div:nth-of-type(2) > ul > li:nth-of-type(2)`},
		{"Path stops at id ancestor", `#main p + p`, `#main > p:nth-of-type(2)`},
		{"Path capped at depth", `em`, `div > div > div > div > em`},
	}

	f := newFixture(t, selectorPage)
	synth := NewSynthesizer(f.doc)
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := f.mustQuery(t, tt.target)
			sel, err := synth.Synthesize(ctx, el)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sel)
		})
	}
}

func TestSynthesize_RoundTripsToSameElement(t *testing.T) {
	f := newFixture(t, selectorPage)
	synth := NewSynthesizer(f.doc)
	ctx := context.Background()

	for _, target := range []string{`[id="a.b:c"]`, `input[name=email]`, `div > ul > li:nth-child(2)`, `#main p + p`, `[aria-label=same] + [aria-label=same]`} {
		el := f.mustQuery(t, target)
		sel, err := synth.Synthesize(ctx, el)
		require.NoError(t, err)

		n, err := f.doc.Count(ctx, sel)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "selector %s for %s is not unique", sel, target)

		back := f.mustQuery(t, sel)
		assert.Same(t, memdom.NodeOf(el), memdom.NodeOf(back), "selector %s resolved to a different element", sel)
	}
}
