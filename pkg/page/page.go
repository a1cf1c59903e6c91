// Package page models the tree of browsing contexts owned by one script
// task: the root page plus one child page per subframe. A Page carries the
// per-context state the script task mutates between messages, most
// importantly the handle used to coordinate with its layout task. All
// access happens on the script task's goroutine; the only cross-goroutine
// edge is the join channel a layout task completes reflows on.
package page

import (
	"fmt"
	"log/slog"

	"plover/pkg/geom"
	"plover/pkg/html"
	"plover/pkg/js"
	"plover/pkg/layout"
	"plover/pkg/msg"
)

// LayoutDiedError is the panic value raised when a page's layout task
// closes its join channel without completing the outstanding reflow. The
// script task treats this as fatal for the whole task.
type LayoutDiedError struct {
	Pipeline msg.PipelineID
}

func (e *LayoutDiedError) Error() string {
	return fmt.Sprintf("pipeline %d: layout task died mid-reflow", int(e.Pipeline))
}

// Frame is the content currently presented in a page: the parsed document
// and the script context bound to it. A page without a frame has nothing
// loaded yet.
type Frame struct {
	Document *html.Document
	Context  *js.PageContext
}

type loadedURL struct {
	url         string
	needsReflow bool
}

// Page is one browsing context. The exported fields are fixed at
// construction; everything that changes over the page's life goes through
// methods so the coordination invariants stay in one place.
type Page struct {
	ID msg.PipelineID
	// Subpage is set on child pages: the id this context has within its
	// parent. Nil on the root.
	Subpage *msg.SubpageID
	// LayoutChan reaches this page's layout task.
	LayoutChan layout.Chan

	frame *Frame

	// lastReflowID is echoed by layout in its completion message; any
	// completion carrying an older id is stale and ignored.
	lastReflowID int
	// layoutJoin is non-nil exactly while a reflow is outstanding.
	layoutJoin <-chan struct{}

	damage *layout.DocumentDamage

	windowSize    geom.Size
	windowSizeSet bool
	resizeEvent   *geom.Size

	url          *loadedURL
	fragmentNode *html.Node

	nextSubpage msg.SubpageID
	children    []*Page

	log *slog.Logger
}

// New builds a page with no frame. Child pages additionally get a subpage
// id via SetSubpage before being attached to their parent.
func New(id msg.PipelineID, layoutChan layout.Chan, logger *slog.Logger) *Page {
	if logger == nil {
		logger = slog.Default()
	}
	return &Page{ID: id, LayoutChan: layoutChan, log: logger}
}

// SetSubpage records the id this page has within its parent.
func (p *Page) SetSubpage(id msg.SubpageID) {
	sub := id
	p.Subpage = &sub
}

// AddChild attaches a child browsing context.
func (p *Page) AddChild(child *Page) {
	p.children = append(p.children, child)
}

// Find locates the page with the given pipeline id in this subtree, or nil.
func (p *Page) Find(id msg.PipelineID) *Page {
	if p.ID == id {
		return p
	}
	for _, c := range p.children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Remove detaches the subtree rooted at the given pipeline id and returns
// it. The receiver itself cannot be removed; removing the root context is
// the owner's decision, not a tree operation.
func (p *Page) Remove(id msg.PipelineID) (*Page, bool) {
	for i, c := range p.children {
		if c.ID == id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return c, true
		}
		if removed, ok := c.Remove(id); ok {
			return removed, true
		}
	}
	return nil, false
}

// Iterator walks a page subtree in preorder: each page before its
// children, children in attachment order.
type Iterator struct {
	stack []*Page
}

// Iter starts a preorder walk rooted at p.
func (p *Page) Iter() *Iterator {
	return &Iterator{stack: []*Page{p}}
}

// Next returns the next page in preorder, or ok=false when the walk is
// done.
func (it *Iterator) Next() (*Page, bool) {
	if len(it.stack) == 0 {
		return nil, false
	}
	next := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	for i := len(next.children) - 1; i >= 0; i-- {
		it.stack = append(it.stack, next.children[i])
	}
	return next, true
}

// Frame returns the page's current content, or nil if nothing is loaded.
func (p *Page) Frame() *Frame {
	return p.frame
}

// SetFrame installs new content, returning the frame it replaced so the
// caller can release the old script context.
func (p *Page) SetFrame(f *Frame) *Frame {
	old := p.frame
	p.frame = f
	return old
}

// SetWindowSize records the window size for future reflows. Reflow refuses
// to run until a size has been established.
func (p *Page) SetWindowSize(size geom.Size) {
	p.windowSize = size
	p.windowSizeSet = true
}

// WindowSize returns the established window size, if any.
func (p *Page) WindowSize() (geom.Size, bool) {
	return p.windowSize, p.windowSizeSet
}

// SetResizeEvent stores a pending resize. Later stores replace earlier
// ones: only the newest size matters once layout is free to run again.
func (p *Page) SetResizeEvent(size geom.Size) {
	p.resizeEvent = &size
}

// TakeResizeEvent returns and clears the pending resize.
func (p *Page) TakeResizeEvent() (geom.Size, bool) {
	if p.resizeEvent == nil {
		return geom.Size{}, false
	}
	size := *p.resizeEvent
	p.resizeEvent = nil
	return size, true
}

// LoadedURL reports the url whose content this page currently holds, and
// whether revisiting it still requires a reflow.
func (p *Page) LoadedURL() (url string, needsReflow bool, ok bool) {
	if p.url == nil {
		return "", false, false
	}
	return p.url.url, p.url.needsReflow, true
}

// SetLoadedURL records the url backing the current frame.
func (p *Page) SetLoadedURL(url string, needsReflow bool) {
	p.url = &loadedURL{url: url, needsReflow: needsReflow}
}

// SetFragmentNode stores the anchor a just-loaded url's fragment named, to
// be scrolled to after the next reflow completes.
func (p *Page) SetFragmentNode(n *html.Node) {
	p.fragmentNode = n
}

// TakeFragmentNode returns and clears the pending fragment anchor.
func (p *Page) TakeFragmentNode() (*html.Node, bool) {
	if p.fragmentNode == nil {
		return nil, false
	}
	n := p.fragmentNode
	p.fragmentNode = nil
	return n, true
}

// NextSubpageID allocates the next subframe id for this page.
func (p *Page) NextSubpageID() msg.SubpageID {
	id := p.nextSubpage
	p.nextSubpage++
	return id
}

// AddDamage merges new damage into the pending damage for this page. The
// merged region keeps the most severe level seen. The root is simply
// replaced by the most recent one; computing a common ancestor would be
// tighter, but every reflow walks from the document root anyway.
func (p *Page) AddDamage(root *html.Node, level layout.DamageLevel) {
	if root == nil {
		return
	}
	if p.damage == nil {
		p.damage = &layout.DocumentDamage{Root: root, Level: level}
		return
	}
	p.damage.Root = root
	p.damage.Level = p.damage.Level.Add(level)
}

// PendingDamage reports the damage the next reflow would carry.
func (p *Page) PendingDamage() (layout.DocumentDamage, bool) {
	if p.damage == nil {
		return layout.DocumentDamage{}, false
	}
	return *p.damage, true
}

// LayoutBusy reports whether a reflow is still outstanding. A completed
// join is consumed as a side effect; a join channel closed without a value
// means the layout task died, which is fatal.
func (p *Page) LayoutBusy() bool {
	if p.layoutJoin == nil {
		return false
	}
	select {
	case _, ok := <-p.layoutJoin:
		p.layoutJoin = nil
		if !ok {
			panic(&LayoutDiedError{Pipeline: p.ID})
		}
		return false
	default:
		return true
	}
}

// JoinLayout blocks until the outstanding reflow, if any, has completed.
func (p *Page) JoinLayout() {
	if p.layoutJoin == nil {
		return
	}
	_, ok := <-p.layoutJoin
	p.layoutJoin = nil
	if !ok {
		panic(&LayoutDiedError{Pipeline: p.ID})
	}
}

// IsCurrentReflow reports whether a completion id matches the most recent
// reflow issued for this page. Older ids are stale.
func (p *Page) IsCurrentReflow(id int) bool {
	return id == p.lastReflowID
}

// Reflow sends the pending damage to layout and marks a reflow
// outstanding. It joins any previous reflow first, so at most one is ever
// in flight per page. No-op when the page has no content or the window
// size has not been established yet; in the latter case the damage stays
// pending for the reflow that follows the first resize.
func (p *Page) Reflow(goal layout.ReflowGoal, script chan<- any, compositor msg.Compositor) {
	frame := p.frame
	if frame == nil || frame.Document == nil || frame.Document.Root == nil {
		return
	}
	if !p.windowSizeSet {
		p.log.Info("deferring reflow until window size is established",
			"pipeline", int(p.ID))
		return
	}

	p.JoinLayout()

	if compositor != nil {
		compositor.SetReadyState(p.ID, msg.PerformingLayout)
	}

	damage := layout.DocumentDamage{
		Root:  frame.Document.Root,
		Level: layout.ContentChangedDamage,
	}
	if p.damage != nil {
		damage = *p.damage
		p.damage = nil
	}

	p.lastReflowID++
	join := make(chan struct{}, 1)
	p.layoutJoin = join

	p.LayoutChan <- layout.ReflowMsg{Reflow: &layout.Reflow{
		Pipeline:     p.ID,
		DocumentRoot: frame.Document.Root,
		URL:          frame.Document.URL,
		Goal:         goal,
		WindowSize:   p.windowSize,
		Script:       script,
		JoinChan:     join,
		Damage:       damage,
		ID:           p.lastReflowID,
	}}
}

// HitTest asks layout for the topmost node under a window point. Joins any
// outstanding reflow first so the answer reflects current geometry.
func (p *Page) HitTest(pt geom.Point) (*html.Node, bool) {
	frame := p.frame
	if frame == nil || frame.Document == nil || frame.Document.Root == nil {
		return nil, false
	}
	p.JoinLayout()
	reply := make(chan layout.HitTestReply, 1)
	p.LayoutChan <- layout.QueryMsg{Query: layout.HitTestQuery{
		Root:  frame.Document.Root,
		Point: pt,
		Reply: reply,
	}}
	r := <-reply
	return r.Node, r.Node != nil
}

// NodesUnder asks layout for every node under a window point, outermost
// first.
func (p *Page) NodesUnder(pt geom.Point) []*html.Node {
	frame := p.frame
	if frame == nil || frame.Document == nil || frame.Document.Root == nil {
		return nil
	}
	p.JoinLayout()
	reply := make(chan layout.MouseOverReply, 1)
	p.LayoutChan <- layout.QueryMsg{Query: layout.MouseOverQuery{
		Root:  frame.Document.Root,
		Point: pt,
		Reply: reply,
	}}
	return (<-reply).Nodes
}

// ContentBox asks layout for a node's border box.
func (p *Page) ContentBox(n *html.Node) (geom.Rect, bool) {
	if p.frame == nil || n == nil {
		return geom.Rect{}, false
	}
	p.JoinLayout()
	reply := make(chan layout.ContentBoxReply, 1)
	p.LayoutChan <- layout.QueryMsg{Query: layout.ContentBoxQuery{
		Node:  n,
		Reply: reply,
	}}
	r := <-reply
	return r.Rect, r.Found
}
