package memdom

import (
	"strings"

	"golang.org/x/net/html"
)

// valueOf returns the current value of a form control. Callers hold d.mu.
func (d *Document) valueOf(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if v, ok := d.values[n]; ok {
		return v
	}
	switch n.Data {
	case "input":
		v, _ := attr(n, "value")
		return v
	case "textarea":
		return textContent(n)
	case "select":
		var first *html.Node
		for _, opt := range options(n) {
			if first == nil {
				first = opt
			}
			if hasAttr(opt, "selected") {
				return optionValue(opt)
			}
		}
		if first != nil {
			return optionValue(first)
		}
	}
	return ""
}

func (d *Document) setValue(n *html.Node, v string) {
	if n.Data == "select" {
		// A select only takes values it has an option for.
		for _, opt := range options(n) {
			if optionValue(opt) == v {
				d.values[n] = v
				return
			}
		}
		d.values[n] = ""
		return
	}
	d.values[n] = v
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type == html.ElementNode && ch.Data == "option" {
				out = append(out, ch)
				continue
			}
			walk(ch)
		}
	}
	walk(sel)
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := attr(opt, "value"); ok {
		return v
	}
	return strings.Join(strings.Fields(textContent(opt)), " ")
}

func controlType(n *html.Node) string {
	switch n.Data {
	case "input":
		if t, ok := attr(n, "type"); ok && t != "" {
			return strings.ToLower(t)
		}
		return "text"
	case "textarea":
		return "textarea"
	case "select":
		if hasAttr(n, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	case "button":
		if t, ok := attr(n, "type"); ok && t != "" {
			return strings.ToLower(t)
		}
		return "submit"
	}
	return ""
}

func isTextControl(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && (n.Data == "input" || n.Data == "textarea")
}

// isContentEditable mirrors HTMLElement.isContentEditable: the nearest
// ancestor carrying a contenteditable state decides.
func isContentEditable(n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c.Type != html.ElementNode {
			continue
		}
		v, ok := attr(c, "contenteditable")
		if !ok {
			continue
		}
		switch strings.ToLower(v) {
		case "", "true", "plaintext-only":
			return true
		case "false":
			return false
		}
	}
	return false
}

// editingHost returns the outermost contiguous editable ancestor of n.
func editingHost(n *html.Node) *html.Node {
	if !isContentEditable(n) {
		return nil
	}
	host := n
	for p := n.Parent; p != nil && p.Type == html.ElementNode && isContentEditable(p); p = p.Parent {
		host = p
	}
	return host
}

func isFocusable(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if hasAttr(n, "disabled") {
		return false
	}
	switch n.Data {
	case "input", "textarea", "select", "button", "iframe":
		return true
	case "a":
		return hasAttr(n, "href")
	}
	return hasAttr(n, "tabindex") || isContentEditable(n)
}

func isSubmitter(n *html.Node) bool {
	switch n.Data {
	case "button":
		return controlType(n) == "submit"
	case "input":
		t := controlType(n)
		return t == "submit" || t == "image"
	}
	return false
}

func closestTag(n *html.Node, tag string) *html.Node {
	for c := n; c != nil; c = c.Parent {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

// focus moves the owner document's focus to n, or to its editing host.
func (d *Document) focus(n *html.Node) {
	if !isFocusable(n) {
		return
	}
	if host := editingHost(n); host != nil {
		n = host
	}
	d.focused[rootOf(n)] = n
	d.dispatch(n, Event{Type: "focus"})
}

func (d *Document) submit(form *html.Node) {
	if d.dispatch(form, Event{Type: "submit", Bubbles: true, Cancelable: true}) {
		d.submissions = append(d.submissions, form)
	}
}

// execCommand applies delete and insertText to whatever holds focus in the
// owner document of target. Like browsers, it fires input but never
// beforeinput.
func (d *Document) execCommand(target *html.Node, command, value string) bool {
	if !d.execEnabled {
		return false
	}
	root := rootOf(target)
	active := d.focused[root]
	if active == nil {
		return false
	}
	selected := d.selection[root]
	wholeSelected := selected != nil && (selected == active || contains(active, selected))

	var inputType string
	switch command {
	case "delete":
		inputType = "deleteContentBackward"
	case "insertText":
		inputType = "insertText"
	default:
		return false
	}

	switch {
	case isTextControl(active):
		cur := d.valueOf(active)
		if command == "delete" {
			if wholeSelected {
				cur = ""
			} else {
				cur = dropLastRune(cur)
			}
		} else if wholeSelected {
			cur = value
		} else {
			cur += value
		}
		d.values[active] = cur
	case isContentEditable(active):
		scope := active
		if wholeSelected {
			scope = selected
			setTextContent(scope, "")
		}
		if command == "delete" {
			if !wholeSelected {
				if t := lastText(active); t != nil {
					t.Data = dropLastRune(t.Data)
				}
			}
		} else {
			if t := lastText(scope); t != nil {
				t.Data += value
			} else {
				scope.AppendChild(&html.Node{Type: html.TextNode, Data: value})
			}
		}
	default:
		return false
	}

	delete(d.selection, root)
	ev := Event{Type: "input", InputType: inputType, Bubbles: true}
	if command == "insertText" {
		ev.Data = value
	}
	d.dispatch(active, ev)
	return true
}

func contains(ancestor, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == ancestor {
			return true
		}
	}
	return false
}

func lastText(n *html.Node) *html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.TextNode {
			return c
		}
		if c.Type == html.ElementNode {
			if t := lastText(c); t != nil {
				return t
			}
		}
	}
	return nil
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}
