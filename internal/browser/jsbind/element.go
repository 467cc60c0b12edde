package jsbind

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
)

// WrapNode returns the JS object for n, creating it on first use.
func (b *Bridge) WrapNode(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if n.Type == html.DocumentNode {
		return b.wrapDocument(n)
	}
	if obj, ok := b.nodes[n]; ok {
		return obj
	}
	obj := b.vm.NewObject()
	b.nodes[n] = obj
	b.objects[obj] = n

	switch n.Type {
	case html.ElementNode:
		b.defineElement(obj, n)
	case html.TextNode:
		b.set(obj, "nodeType", 3)
		b.set(obj, "nodeName", "#text")
		b.accessor(obj, "textContent", func() interface{} { return n.Data }, func(v goja.Value) { n.Data = v.String() })
		b.accessor(obj, "data", func() interface{} { return n.Data }, func(v goja.Value) { n.Data = v.String() })
	default:
		b.set(obj, "nodeType", 8)
	}
	b.defineNode(obj, n)
	return obj
}

func (b *Bridge) defineNode(obj *goja.Object, n *html.Node) {
	b.getter(obj, "parentNode", func() interface{} { return b.WrapNode(n.Parent) })
	b.getter(obj, "parentElement", func() interface{} {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return b.WrapNode(n.Parent)
	})
	b.getter(obj, "firstChild", func() interface{} { return b.WrapNode(n.FirstChild) })
	b.getter(obj, "lastChild", func() interface{} { return b.WrapNode(n.LastChild) })
	b.getter(obj, "nextSibling", func() interface{} { return b.WrapNode(n.NextSibling) })
	b.getter(obj, "previousSibling", func() interface{} { return b.WrapNode(n.PrevSibling) })
	b.getter(obj, "childNodes", func() interface{} {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			kids = append(kids, c)
		}
		return b.wrapList(kids)
	})
	b.getter(obj, "ownerDocument", func() interface{} { return b.wrapDocument(rootOf(n)) })
	b.set(obj, "contains", func(call goja.FunctionCall) goja.Value {
		other, ok := b.Unwrap(call.Argument(0))
		if !ok {
			return b.vm.ToValue(false)
		}
		for c := other; c != nil; c = c.Parent {
			if c == n {
				return b.vm.ToValue(true)
			}
		}
		return b.vm.ToValue(false)
	})
	b.set(obj, "appendChild", func(call goja.FunctionCall) goja.Value {
		child, ok := b.Unwrap(call.Argument(0))
		if !ok {
			b.throw(fmt.Errorf("appendChild: argument is not a node"))
		}
		if child.Parent != nil {
			child.Parent.RemoveChild(child)
		}
		n.AppendChild(child)
		return call.Argument(0)
	})
	b.set(obj, "removeChild", func(call goja.FunctionCall) goja.Value {
		child, ok := b.Unwrap(call.Argument(0))
		if !ok || child.Parent != n {
			b.throw(fmt.Errorf("removeChild: node is not a child"))
		}
		n.RemoveChild(child)
		return call.Argument(0)
	})
}

func (b *Bridge) defineElement(obj *goja.Object, n *html.Node) {
	b.set(obj, "nodeType", 1)
	b.set(obj, "tagName", strings.ToUpper(n.Data))
	b.set(obj, "nodeName", strings.ToUpper(n.Data))

	attrProp := func(js, name string) {
		b.accessor(obj, js, func() interface{} {
			v, _ := getAttr(n, name)
			return v
		}, func(v goja.Value) { setAttr(n, name, v.String()) })
	}
	attrProp("id", "id")
	attrProp("className", "class")

	classList := b.vm.NewObject()
	b.set(classList, "contains", func(call goja.FunctionCall) goja.Value {
		class, _ := getAttr(n, "class")
		for _, c := range strings.Fields(class) {
			if c == call.Argument(0).String() {
				return b.vm.ToValue(true)
			}
		}
		return b.vm.ToValue(false)
	})
	b.set(obj, "classList", classList)

	b.set(obj, "getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := getAttr(n, call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return b.vm.ToValue(v)
	})
	b.set(obj, "hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := getAttr(n, call.Argument(0).String())
		return b.vm.ToValue(ok)
	})
	b.set(obj, "setAttribute", func(call goja.FunctionCall) goja.Value {
		setAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	b.set(obj, "removeAttribute", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if a.Key != name {
				kept = append(kept, a)
			}
		}
		n.Attr = kept
		return goja.Undefined()
	})

	b.set(obj, "querySelector", func(call goja.FunctionCall) goja.Value {
		return b.WrapNode(cascadia.Query(n, b.compile(call.Argument(0).String())))
	})
	b.set(obj, "querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.wrapList(cascadia.QueryAll(n, b.compile(call.Argument(0).String())))
	})
	b.set(obj, "matches", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(b.compile(call.Argument(0).String()).Match(n))
	})
	b.set(obj, "closest", func(call goja.FunctionCall) goja.Value {
		sel := b.compile(call.Argument(0).String())
		for c := n; c != nil; c = c.Parent {
			if c.Type == html.ElementNode && sel.Match(c) {
				return b.WrapNode(c)
			}
		}
		return goja.Null()
	})
	b.getter(obj, "children", func() interface{} {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		return b.wrapList(kids)
	})

	b.accessor(obj, "value", func() interface{} {
		if b.tree == nil {
			return ""
		}
		return b.tree.Value(n)
	}, func(v goja.Value) {
		if b.tree != nil {
			b.tree.SetValue(n, v.String())
		}
	})
	b.accessor(obj, "textContent", func() interface{} { return textContent(n) }, func(v goja.Value) {
		replaceChildren(n, &html.Node{Type: html.TextNode, Data: v.String()})
	})
	b.getter(obj, "innerText", func() interface{} {
		if b.tree == nil {
			return textContent(n)
		}
		return b.tree.InnerText(n)
	})
	b.accessor(obj, "innerHTML", func() interface{} {
		var buf bytes.Buffer
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				b.throw(err)
			}
		}
		return buf.String()
	}, func(v goja.Value) {
		nodes, err := html.ParseFragment(strings.NewReader(v.String()), n)
		if err != nil {
			b.throw(fmt.Errorf("innerHTML: %w", err))
		}
		replaceChildren(n, nodes...)
	})

	if n.Data == "iframe" {
		b.getter(obj, "contentDocument", func() interface{} {
			if b.tree == nil {
				return goja.Null()
			}
			return b.wrapDocument(b.tree.FrameDocument(n))
		})
	}

	// Listeners registered from scripts are accepted but never invoked;
	// events reach Go listeners through memdom.
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	b.set(obj, "addEventListener", noop)
	b.set(obj, "removeEventListener", noop)
	b.set(obj, "focus", func(goja.FunctionCall) goja.Value {
		if b.tree != nil {
			b.tree.Dispatch(n, memdom.Event{Type: "focus"})
		}
		return goja.Undefined()
	})
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func replaceChildren(n *html.Node, kids ...*html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, k := range kids {
		if k.Parent != nil {
			k.Parent.RemoveChild(k)
		}
		if k.Type == html.TextNode && k.Data == "" {
			continue
		}
		n.AppendChild(k)
	}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type == html.TextNode {
				sb.WriteString(ch.Data)
			}
			walk(ch)
		}
	}
	walk(n)
	return sb.String()
}

func rootOf(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}
