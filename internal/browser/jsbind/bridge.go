// internal/browser/jsbind/bridge.go
package jsbind

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
)

// Bridge exposes a memdom tree to a goja runtime as window and document.
// Wrappers are cached per node, so identity comparisons and expando
// properties set by scripts survive across calls.
//
// A Bridge is not safe for concurrent use. Bind must be called, inside
// memdom.Document.Exclusive, before any script touches the DOM.
type Bridge struct {
	vm     *goja.Runtime
	logger *zap.Logger
	tree   *memdom.Tree

	nodes     map[*html.Node]*goja.Object
	objects   map[*goja.Object]*html.Node
	documents map[*html.Node]*goja.Object
	selectors map[string]cascadia.SelectorGroup
}

// NewBridge installs the DOM globals on vm.
func NewBridge(vm *goja.Runtime, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		vm:        vm,
		logger:    logger.Named("dom_bridge"),
		nodes:     make(map[*html.Node]*goja.Object),
		objects:   make(map[*goja.Object]*html.Node),
		documents: make(map[*html.Node]*goja.Object),
		selectors: make(map[string]cascadia.SelectorGroup),
	}
	b.initializeRuntime()
	return b
}

// Bind points the bridge at the current tree. The tree is only valid for the
// duration of the enclosing Exclusive call.
func (b *Bridge) Bind(t *memdom.Tree) {
	b.tree = t
	global := b.vm.GlobalObject()
	b.set(global, "document", b.wrapDocument(t.Root()))
	location := b.vm.NewObject()
	b.set(location, "href", t.URL())
	b.set(global, "location", location)
}

// Unbind drops the tree reference.
func (b *Bridge) Unbind() {
	b.tree = nil
}

// initializeRuntime makes the global object double as window.
func (b *Bridge) initializeRuntime() {
	global := b.vm.GlobalObject()
	b.set(global, "window", global)
	b.set(global, "self", global)
	b.initConsole()
}

func (b *Bridge) set(obj *goja.Object, name string, value interface{}) {
	if err := obj.Set(name, value); err != nil {
		b.logger.Error("Failed to set property", zap.String("property", name), zap.Error(err))
	}
}

func (b *Bridge) getter(obj *goja.Object, name string, get func() interface{}) {
	b.accessor(obj, name, get, nil)
}

func (b *Bridge) accessor(obj *goja.Object, name string, get func() interface{}, put func(goja.Value)) {
	getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return b.vm.ToValue(get())
	})
	setter := goja.Undefined()
	if put != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			put(call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		b.logger.Error("Failed to define accessor", zap.String("property", name), zap.Error(err))
	}
}

// throw raises a JS error carrying err.
func (b *Bridge) throw(err error) {
	panic(b.vm.NewGoError(err))
}

func (b *Bridge) compile(selector string) cascadia.SelectorGroup {
	if sel, ok := b.selectors[selector]; ok {
		return sel
	}
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		b.throw(fmt.Errorf("SyntaxError: '%s' is not a valid selector", selector))
	}
	b.selectors[selector] = sel
	return sel
}

// Unwrap returns the node behind a wrapper created by this bridge.
func (b *Bridge) Unwrap(v goja.Value) (*html.Node, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	n, ok := b.objects[obj]
	return n, ok
}

func (b *Bridge) wrapList(nodes []*html.Node) *goja.Object {
	items := make([]interface{}, len(nodes))
	for i, n := range nodes {
		items[i] = b.WrapNode(n)
	}
	return b.vm.NewArray(items...)
}

// --- Document ---

func (b *Bridge) wrapDocument(root *html.Node) goja.Value {
	if root == nil {
		return goja.Null()
	}
	if obj, ok := b.documents[root]; ok {
		return obj
	}
	obj := b.vm.NewObject()
	b.documents[root] = obj
	b.objects[obj] = root

	b.set(obj, "nodeType", 9)
	b.set(obj, "querySelector", func(call goja.FunctionCall) goja.Value {
		return b.WrapNode(cascadia.Query(root, b.compile(call.Argument(0).String())))
	})
	b.set(obj, "querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.wrapList(cascadia.QueryAll(root, b.compile(call.Argument(0).String())))
	})
	b.set(obj, "getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		return b.WrapNode(findFirst(root, func(n *html.Node) bool {
			v, ok := getAttr(n, "id")
			return ok && v == id
		}))
	})
	b.set(obj, "getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(call.Argument(0).String())
		return b.wrapList(findAll(root, func(n *html.Node) bool { return tag == "*" || n.Data == tag }))
	})
	b.getter(obj, "documentElement", func() interface{} {
		return b.WrapNode(findFirst(root, func(n *html.Node) bool { return n.Data == "html" }))
	})
	b.getter(obj, "body", func() interface{} {
		return b.WrapNode(findFirst(root, func(n *html.Node) bool { return n.Data == "body" }))
	})
	b.getter(obj, "head", func() interface{} {
		return b.WrapNode(findFirst(root, func(n *html.Node) bool { return n.Data == "head" }))
	})
	b.getter(obj, "title", func() interface{} {
		t := findFirst(root, func(n *html.Node) bool { return n.Data == "title" })
		if t == nil {
			return ""
		}
		return strings.Join(strings.Fields(textContent(t)), " ")
	})
	return obj
}

// initConsole routes console output to the logger.
func (b *Bridge) initConsole() {
	console := b.vm.NewObject()
	logAt := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			b.logger.Debug("[JS Console]", zap.String("level", level), zap.String("message", strings.Join(parts, " ")))
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		b.set(console, level, logAt(level))
	}
	b.set(b.vm.GlobalObject(), "console", console)
}

func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && pred(c) {
				found = c
				return true
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return found
}

func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && pred(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}
