package script

import (
	"plover/pkg/geom"
	"plover/pkg/html"
	"plover/pkg/layout"
	"plover/pkg/msg"
	"plover/pkg/page"
)

// Event is a UI event carried by SendEventMsg. The closed set is
// ResizeEvent, ReflowEvent, ClickEvent, MouseDownEvent, MouseUpEvent and
// MouseMoveEvent.
type Event interface {
	isEvent()
}

// ResizeEvent establishes a new window size and reflows.
type ResizeEvent struct {
	Size geom.Size
}

// ReflowEvent forces a reflow of the current content.
type ReflowEvent struct{}

// ClickEvent is a mouse click at a window point.
type ClickEvent struct {
	Button uint
	Point  geom.Point
}

type MouseDownEvent struct {
	Button uint
	Point  geom.Point
}

type MouseUpEvent struct {
	Button uint
	Point  geom.Point
}

// MouseMoveEvent drives hover-state updates.
type MouseMoveEvent struct {
	Point geom.Point
}

func (ResizeEvent) isEvent()    {}
func (ReflowEvent) isEvent()    {}
func (ClickEvent) isEvent()     {}
func (MouseDownEvent) isEvent() {}
func (MouseUpEvent) isEvent()   {}
func (MouseMoveEvent) isEvent() {}

func (t *Task) handleEvent(pipeline msg.PipelineID, event Event) {
	p := t.page.Find(pipeline)
	if p == nil {
		// The pipeline may have been torn down while the event was in
		// flight.
		t.log.Info("dropping event for removed pipeline",
			"pipeline", int(pipeline))
		return
	}

	switch e := event.(type) {
	case ResizeEvent:
		p.SetWindowSize(e.Size)
		if frame := p.Frame(); frame != nil && frame.Document.Root != nil {
			p.AddDamage(frame.Document.Root, layout.ReflowDamage)
			p.Reflow(layout.ReflowForDisplay, t.port, t.compositor)
		}
		// A fragment scroll deferred from load fires once the window has
		// a size and the reflow has been requested.
		if n, ok := p.TakeFragmentNode(); ok {
			t.scrollToNode(p, n)
		}

	case ReflowEvent:
		if frame := p.Frame(); frame != nil && frame.Document.Root != nil {
			p.AddDamage(frame.Document.Root, layout.MatchSelectorsDamage)
			p.Reflow(layout.ReflowForDisplay, t.port, t.compositor)
		}

	case ClickEvent:
		t.handleClick(p, e.Point)

	case MouseDownEvent:
		t.dispatchAt(p, e.Point, "mousedown")

	case MouseUpEvent:
		t.dispatchAt(p, e.Point, "mouseup")

	case MouseMoveEvent:
		t.handleMouseMove(p, e.Point)
	}
}

// handleClick hit-tests the point, dispatches a click to content, and
// follows the nearest enclosing link if one was hit.
func (t *Task) handleClick(p *page.Page, pt geom.Point) {
	node, ok := p.HitTest(pt)
	if !ok {
		return
	}
	if frame := p.Frame(); frame != nil && frame.Context != nil {
		frame.Context.DispatchNodeEvent(node, "click")
		t.reflowIfDamaged(p)
	}
	if anchor := enclosingLink(node); anchor != nil {
		href, _ := anchor.GetAttribute("href")
		t.loadURLForPage(p, href)
	}
}

func (t *Task) dispatchAt(p *page.Page, pt geom.Point, event string) {
	node, ok := p.HitTest(pt)
	if !ok {
		return
	}
	if frame := p.Frame(); frame != nil && frame.Context != nil {
		frame.Context.DispatchNodeEvent(node, event)
		t.reflowIfDamaged(p)
	}
}

// handleMouseMove recomputes the hover set. Only a changed set costs
// anything: selectors are re-matched and the page reflowed.
func (t *Task) handleMouseMove(p *page.Page, pt geom.Point) {
	frame := p.Frame()
	if frame == nil || frame.Document.Root == nil {
		return
	}

	var targets []*html.Node
	seen := make(map[*html.Node]bool)
	for _, n := range p.NodesUnder(pt) {
		elem := n.ElementAncestorOrSelf()
		if elem != nil && !seen[elem] {
			seen[elem] = true
			targets = append(targets, elem)
		}
	}

	if sameNodes(targets, t.mouseOverTargets) {
		return
	}
	for _, n := range t.mouseOverTargets {
		n.SetHoverState(false)
	}
	for _, n := range targets {
		n.SetHoverState(true)
	}
	t.mouseOverTargets = targets

	p.AddDamage(frame.Document.Root, layout.MatchSelectorsDamage)
	p.Reflow(layout.ReflowForDisplay, t.port, t.compositor)
}

func sameNodes(a, b []*html.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// enclosingLink returns the nearest ancestor-or-self anchor element
// carrying an href.
func enclosingLink(n *html.Node) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.IsElement() && cur.TagName == "a" {
			if _, ok := cur.GetAttribute("href"); ok {
				return cur
			}
		}
	}
	return nil
}
