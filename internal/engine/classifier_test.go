package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
)

const editorsPage = `<html><body>
<div class="monaco-editor" id="mon"><div class="lines"><span id="mon-line">x</span></div><textarea class="inputarea"></textarea></div>
<div class="monaco-editor" id="mon2"><div class="native-edit-context" id="mon2-input"></div></div>
<div class="monaco-editor" id="mon3"><span id="mon3-line">y</span></div>
<div class="ck ck-editor"><div class="ck-editor__main"><div class="ck-editor__editable" contenteditable="true" id="ck5"><p id="ck5-p">text</p></div></div></div>
<div id="ck5-wrapper"><div class="ck-editor__editable" contenteditable="true"></div></div>
<div id="cke_editor1"><iframe id="cke-frame" srcdoc="&lt;body contenteditable=true&gt;&lt;p&gt;four&lt;/p&gt;&lt;/body&gt;"></iframe></div>
<div id="cke_remote"><iframe src="https://cdn.example/frame"></iframe><span id="cke-remote-span">r</span></div>
<div class="ProseMirror" contenteditable="true"><p id="pm-p">prose</p></div>
<div class="tox-edit-area"><iframe class="tox-edit-area__iframe" srcdoc="&lt;body id=tinymce contenteditable=true&gt;&lt;p&gt;t&lt;/p&gt;&lt;/body&gt;"></iframe></div>
<div contenteditable="true" id="plain"><span contenteditable="false" id="locked">chip</span><b id="bold">b</b></div>
<input id="native" name="q">
</body></html>`

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		selector   string
		kind       schemas.EditorKind
		targetTag  string
		targetAttr [2]string
	}{
		{"Monaco line resolves to input area", "#mon-line", schemas.EditorMonaco, "textarea", [2]string{"class", "inputarea"}},
		{"Monaco container itself", "#mon", schemas.EditorMonaco, "textarea", [2]string{"class", "inputarea"}},
		{"Monaco native edit context", "#mon2-input", schemas.EditorMonaco, "div", [2]string{"id", "mon2-input"}},
		{"Monaco without input falls back to container", "#mon3-line", schemas.EditorMonaco, "div", [2]string{"id", "mon3"}},
		{"CKEditor 5 ancestor", "#ck5-p", schemas.EditorCKEditor, "div", [2]string{"id", "ck5"}},
		{"CKEditor 5 descendant", "#ck5-wrapper", schemas.EditorCKEditor, "div", [2]string{"class", "ck-editor__editable"}},
		{"CKEditor 4 frame body", "#cke_editor1", schemas.EditorCKEditor, "body", [2]string{"contenteditable", "true"}},
		{"CKEditor 4 unreachable frame is a miss", "#cke-remote-span", schemas.EditorNative, "span", [2]string{"id", "cke-remote-span"}},
		{"ProseMirror", "#pm-p", schemas.EditorProseMirror, "div", [2]string{"class", "ProseMirror"}},
		{"TinyMCE frame body", ".tox-edit-area", schemas.EditorTinyMCE, "body", [2]string{"id", "tinymce"}},
		{"Contenteditable self", "#bold", schemas.EditorContentEditable, "b", [2]string{"id", "bold"}},
		{"Contenteditable ancestor", "#locked", schemas.EditorContentEditable, "div", [2]string{"id", "plain"}},
		{"Native", "#native", schemas.EditorNative, "input", [2]string{"id", "native"}},
	}

	f := newFixture(t, editorsPage)
	c := NewClassifier(zaptest.NewLogger(t))
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := f.mustQuery(t, tt.selector)
			cls := c.Classify(ctx, el)
			assert.Equal(t, tt.kind, cls.Kind)
			require.NotNil(t, cls.Target)

			info, err := cls.Target.Describe(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.targetTag, info.Tag)
			assert.Contains(t, info.Attr(tt.targetAttr[0]), tt.targetAttr[1])
		})
	}
}

func TestClassify_IsIdempotentAndReadOnly(t *testing.T) {
	f := newFixture(t, editorsPage)
	c := NewClassifier(zaptest.NewLogger(t))
	ctx := context.Background()
	before := f.doc.Render()

	for _, sel := range []string{"#mon-line", "#ck5-p", "#cke_editor1", ".tox-edit-area", "#locked", "#native"} {
		el := f.mustQuery(t, sel)
		first := c.Classify(ctx, el)
		second := c.Classify(ctx, el)
		assert.Equal(t, first.Kind, second.Kind, sel)
		assert.Same(t, memdom.NodeOf(first.Target), memdom.NodeOf(second.Target), sel)
	}

	assert.Equal(t, before, f.doc.Render())
	assert.Empty(t, f.doc.Events())
}
