package page

import (
	"testing"
	"time"

	"plover/pkg/geom"
	"plover/pkg/html"
	"plover/pkg/layout"
	"plover/pkg/msg"
)

func makeTree(t *testing.T) *Page {
	t.Helper()
	root := New(1, make(layout.Chan, 8), nil)
	a := New(2, make(layout.Chan, 8), nil)
	b := New(3, make(layout.Chan, 8), nil)
	aa := New(4, make(layout.Chan, 8), nil)
	a.AddChild(aa)
	root.AddChild(a)
	root.AddChild(b)
	return root
}

func framed(t *testing.T, p *Page) *html.Document {
	t.Helper()
	doc, err := html.Parse(`<html><body><p id="x">hi</p></body></html>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	p.SetFrame(&Frame{Document: doc})
	return doc
}

func TestFindAndRemove(t *testing.T) {
	root := makeTree(t)

	if got := root.Find(4); got == nil || got.ID != 4 {
		t.Fatalf("Find(4) = %v", got)
	}
	if got := root.Find(99); got != nil {
		t.Fatalf("Find(99) = %v, want nil", got)
	}

	removed, ok := root.Remove(2)
	if !ok || removed.ID != 2 {
		t.Fatalf("Remove(2) = %v, %v", removed, ok)
	}
	// The whole subtree goes with it.
	if root.Find(4) != nil {
		t.Error("descendant of removed page still reachable")
	}
	if removed.Find(4) == nil {
		t.Error("removed subtree lost its descendant")
	}
	if _, ok := root.Remove(1); ok {
		t.Error("Remove must not detach the receiver itself")
	}
}

func TestIterPreorder(t *testing.T) {
	root := makeTree(t)

	var order []msg.PipelineID
	for it := root.Iter(); ; {
		p, ok := it.Next()
		if !ok {
			break
		}
		order = append(order, p.ID)
	}

	want := []msg.PipelineID{1, 2, 4, 3}
	if len(order) != len(want) {
		t.Fatalf("visited %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("visited %v, want %v", order, want)
		}
	}
}

func TestDamageMerge(t *testing.T) {
	p := New(1, make(layout.Chan, 8), nil)
	doc := framed(t, p)

	p.AddDamage(doc.GetElementById("x"), layout.ReflowDamage)
	p.AddDamage(doc.Root, layout.ContentChangedDamage)
	p.AddDamage(doc.GetElementById("x"), layout.MatchSelectorsDamage)

	damage, ok := p.PendingDamage()
	if !ok {
		t.Fatal("expected pending damage")
	}
	if damage.Level != layout.ContentChangedDamage {
		t.Errorf("merged level = %v, want ContentChangedDamage", damage.Level)
	}
	if damage.Root != doc.GetElementById("x") {
		t.Error("merged root should be the most recently damaged node")
	}
}

func TestResizeEventCoalesces(t *testing.T) {
	p := New(1, make(layout.Chan, 8), nil)
	p.SetResizeEvent(geom.Size{Width: 100, Height: 100})
	p.SetResizeEvent(geom.Size{Width: 300, Height: 200})

	size, ok := p.TakeResizeEvent()
	if !ok || size.Width != 300 || size.Height != 200 {
		t.Fatalf("TakeResizeEvent = %v, %v; want newest size", size, ok)
	}
	if _, ok := p.TakeResizeEvent(); ok {
		t.Error("resize event should be cleared after take")
	}
}

func TestSubpageIDAllocation(t *testing.T) {
	p := New(1, make(layout.Chan, 8), nil)
	for want := msg.SubpageID(0); want < 3; want++ {
		if got := p.NextSubpageID(); got != want {
			t.Fatalf("NextSubpageID = %v, want %v", got, want)
		}
	}
}

func TestReflowRequiresWindowSize(t *testing.T) {
	p := New(1, make(layout.Chan, 8), nil)
	framed(t, p)

	p.Reflow(layout.ReflowForDisplay, make(chan any, 1), nil)

	select {
	case m := <-p.LayoutChan:
		t.Fatalf("reflow sent %T before window size was established", m)
	default:
	}
	if p.LayoutBusy() {
		t.Error("no reflow should be outstanding")
	}
}

func TestReflowOneInFlight(t *testing.T) {
	p := New(1, make(layout.Chan, 8), nil)
	framed(t, p)
	p.SetWindowSize(geom.Size{Width: 800, Height: 600})

	script := make(chan any, 4)
	p.Reflow(layout.ReflowForDisplay, script, nil)

	first, ok := (<-p.LayoutChan).(layout.ReflowMsg)
	if !ok {
		t.Fatal("expected a ReflowMsg")
	}
	if first.Reflow.ID != 1 {
		t.Errorf("first reflow id = %d, want 1", first.Reflow.ID)
	}
	if !p.LayoutBusy() {
		t.Fatal("reflow should be outstanding")
	}

	// A second reflow must join the first before sending. Complete the
	// first from a fake layout side.
	done := make(chan struct{})
	go func() {
		first.Reflow.JoinChan <- struct{}{}
		close(done)
	}()
	p.Reflow(layout.ReflowForDisplay, script, nil)
	<-done

	second := (<-p.LayoutChan).(layout.ReflowMsg)
	if second.Reflow.ID != 2 {
		t.Errorf("second reflow id = %d, want 2", second.Reflow.ID)
	}
	if !p.IsCurrentReflow(2) || p.IsCurrentReflow(1) {
		t.Error("only the newest reflow id should be current")
	}

	second.Reflow.JoinChan <- struct{}{}
	if p.LayoutBusy() {
		t.Error("join should have been consumed")
	}
}

func TestReflowTakesPendingDamage(t *testing.T) {
	p := New(1, make(layout.Chan, 8), nil)
	doc := framed(t, p)
	p.SetWindowSize(geom.Size{Width: 800, Height: 600})
	p.AddDamage(doc.Root, layout.MatchSelectorsDamage)

	p.Reflow(layout.ReflowForDisplay, make(chan any, 1), nil)

	sent := (<-p.LayoutChan).(layout.ReflowMsg)
	if sent.Reflow.Damage.Level != layout.MatchSelectorsDamage {
		t.Errorf("reflow damage = %v, want MatchSelectorsDamage", sent.Reflow.Damage.Level)
	}
	if _, ok := p.PendingDamage(); ok {
		t.Error("pending damage should be consumed by reflow")
	}
}

func TestJoinLayoutPanicsWhenLayoutDies(t *testing.T) {
	p := New(7, make(layout.Chan, 8), nil)
	framed(t, p)
	p.SetWindowSize(geom.Size{Width: 800, Height: 600})
	p.Reflow(layout.ReflowForDisplay, make(chan any, 1), nil)

	sent := (<-p.LayoutChan).(layout.ReflowMsg)
	// A dying layout task closes the join channel without sending.
	join := sent.Reflow.JoinChan
	close(join)

	defer func() {
		r := recover()
		died, ok := r.(*LayoutDiedError)
		if !ok {
			t.Fatalf("recovered %v, want *LayoutDiedError", r)
		}
		if died.Pipeline != 7 {
			t.Errorf("pipeline = %d, want 7", died.Pipeline)
		}
	}()
	p.JoinLayout()
}

func TestHitTestJoinsFirst(t *testing.T) {
	p := New(1, make(layout.Chan, 8), nil)
	doc := framed(t, p)
	p.SetWindowSize(geom.Size{Width: 800, Height: 600})
	p.Reflow(layout.ReflowForDisplay, make(chan any, 1), nil)

	// Fake layout: finish the reflow, then answer the query.
	target := doc.GetElementById("x")
	go func() {
		reflow := (<-p.LayoutChan).(layout.ReflowMsg)
		reflow.Reflow.JoinChan <- struct{}{}
		query := (<-p.LayoutChan).(layout.QueryMsg).Query.(layout.HitTestQuery)
		query.Reply <- layout.HitTestReply{Node: target}
	}()

	deadline := time.After(2 * time.Second)
	result := make(chan *html.Node, 1)
	go func() {
		n, _ := p.HitTest(geom.Point{X: 10, Y: 10})
		result <- n
	}()
	select {
	case n := <-result:
		if n != target {
			t.Errorf("hit %v, want target node", n)
		}
	case <-deadline:
		t.Fatal("hit test never completed")
	}
}
