package memdom

import (
	"golang.org/x/net/html"
)

// Event is a dispatched DOM event as recorded by the document.
type Event struct {
	Type       string
	Target     *html.Node
	InputType  string
	Data       string
	Key        string
	Cancelable bool
	// Bubbles is false for focus-style events that only reach the target.
	Bubbles bool

	canceled bool
}

// PreventDefault cancels a cancelable event.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.canceled = true
	}
}

// Canceled reports whether a listener canceled the event.
func (e *Event) Canceled() bool { return e.canceled }

// Listener observes events dispatched at or below the node it is attached to.
type Listener func(ev *Event)

// AddEventListener attaches fn to n for events of the given type.
func (d *Document) AddEventListener(n *html.Node, eventType string, fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byType, ok := d.listeners[n]
	if !ok {
		byType = make(map[string][]Listener)
		d.listeners[n] = byType
	}
	byType[eventType] = append(byType[eventType], fn)
}

// dispatch delivers ev to target and, if it bubbles, to each ancestor. It
// returns false when a listener canceled the event. Callers hold d.mu;
// listeners must not call back into locked Document methods.
func (d *Document) dispatch(target *html.Node, ev Event) bool {
	ev.Target = target
	for n := target; n != nil; n = n.Parent {
		for _, fn := range d.listeners[n][ev.Type] {
			fn(&ev)
		}
		if !ev.Bubbles {
			break
		}
	}
	d.events = append(d.events, ev)
	return !ev.canceled
}
