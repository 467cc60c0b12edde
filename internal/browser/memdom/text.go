package memdom

import (
	"strings"

	"golang.org/x/net/html"
)

// Elements whose content is never rendered.
var hiddenTags = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true,
	"template": true, "iframe": true, "input": true, "select": true,
	"option": true,
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tr": true, "td": true, "th": true, "ul": true, "body": true,
}

// innerText approximates HTMLElement.innerText without layout: hidden
// subtrees are skipped, block boundaries become line breaks and whitespace
// runs collapse to a single space.
func innerText(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.ElementNode && n.Data == "textarea" {
		return textContent(n)
	}
	var lines []string
	var cur strings.Builder
	flush := func() {
		line := strings.Join(strings.Fields(cur.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(*html.Node, bool)
	walk = func(c *html.Node, top bool) {
		switch c.Type {
		case html.TextNode:
			cur.WriteString(c.Data)
			return
		case html.ElementNode:
			if !top && (hiddenTags[c.Data] || hasAttr(c, "hidden")) {
				return
			}
			if c.Data == "br" {
				flush()
				return
			}
		case html.DocumentNode:
		default:
			return
		}
		block := c.Type == html.ElementNode && blockTags[c.Data]
		if block {
			flush()
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch, false)
		}
		if block {
			flush()
		}
	}
	walk(n, true)
	flush()
	return strings.Join(lines, "\n")
}

// textContent mirrors Node.textContent.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}

// setTextContent replaces n's children with a single text node.
func setTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func hasAttr(n *html.Node, name string) bool {
	_, ok := attr(n, name)
	return ok
}
