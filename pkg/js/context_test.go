package js

import (
	"testing"
	"time"

	"plover/pkg/html"
)

func newTestContext(t *testing.T, content string, hooks Hooks) (*PageContext, *html.Document) {
	t.Helper()
	doc, err := html.Parse(content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	rt := NewRuntime()
	ctx := NewPageContext(rt, doc, hooks, nil)
	t.Cleanup(ctx.Release)
	return ctx, doc
}

func TestGetElementByIdAndTextContent(t *testing.T) {
	ctx, doc := newTestContext(t, `<html><body><p id="msg">before</p></body></html>`, Hooks{})

	if err := ctx.RunScript(`document.getElementById("msg").textContent = "after";`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	p := doc.GetElementById("msg")
	if len(p.Children) != 1 || p.Children[0].Text != "after" {
		t.Errorf("expected textContent mutation, got %+v", p.Children)
	}
}

func TestContentMutationFiresHook(t *testing.T) {
	changed := 0
	ctx, _ := newTestContext(t, `<html><body><p id="msg">x</p></body></html>`, Hooks{
		PostContentChanged: func() { changed++ },
	})

	if err := ctx.RunScript(`document.getElementById("msg").setAttribute("class", "hot");`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("expected 1 content-changed notification, got %d", changed)
	}
}

func TestElementProxyIdentity(t *testing.T) {
	ctx, _ := newTestContext(t, `<html><body><p id="msg">x</p></body></html>`, Hooks{})

	if err := ctx.RunScript(`
		var a = document.getElementById("msg");
		var b = document.getElementById("msg");
		if (a !== b) { throw new Error("proxy identity broken"); }
	`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
}

func TestSetTimeoutPostsAndFires(t *testing.T) {
	posted := make(chan TimerID, 1)
	ctx, _ := newTestContext(t, `<html><body></body></html>`, Hooks{
		PostTimer: func(id TimerID) { posted <- id },
	})

	if err := ctx.RunScript(`
		var fired = false;
		window.setTimeout(function() { fired = true; }, 1);
	`); err != nil {
		t.Fatalf("script failed: %v", err)
	}

	var id TimerID
	select {
	case id = <-posted:
	case <-time.After(2 * time.Second):
		t.Fatal("timer expiry never posted")
	}

	// The callback must not have run yet: firing happens on our goroutine.
	ctx.FireTimer(id)
	if err := ctx.RunScript(`if (!fired) { throw new Error("callback did not run"); }`); err != nil {
		t.Fatalf("callback check failed: %v", err)
	}

	// One-shot timers are gone after firing.
	ctx.FireTimer(id)
}

func TestIntervalSurvivesFiring(t *testing.T) {
	posted := make(chan TimerID, 4)
	ctx, _ := newTestContext(t, `<html><body></body></html>`, Hooks{
		PostTimer: func(id TimerID) { posted <- id },
	})

	if err := ctx.RunScript(`
		var count = 0;
		window.setInterval(function() { count++; }, 1);
	`); err != nil {
		t.Fatalf("script failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case id := <-posted:
			ctx.FireTimer(id)
		case <-time.After(2 * time.Second):
			t.Fatalf("interval expiry %d never posted", i)
		}
	}
	if err := ctx.RunScript(`if (count !== 2) { throw new Error("expected 2 firings, got " + count); }`); err != nil {
		t.Fatalf("interval check failed: %v", err)
	}
}

func TestWindowCloseHook(t *testing.T) {
	closed := false
	ctx, _ := newTestContext(t, `<html><body></body></html>`, Hooks{
		PostClose: func() { closed = true },
	})
	if err := ctx.RunScript(`window.close();`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if !closed {
		t.Error("expected close hook to fire")
	}
}

func TestDispatchNodeEvent(t *testing.T) {
	ctx, doc := newTestContext(t, `<html><body><a id="link">go</a></body></html>`, Hooks{})

	if err := ctx.RunScript(`
		var clicked = false;
		document.getElementById("link").addEventListener("click", function() { clicked = true; });
	`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	ctx.DispatchNodeEvent(doc.GetElementById("link"), "click")
	if err := ctx.RunScript(`if (!clicked) { throw new Error("listener did not run"); }`); err != nil {
		t.Fatalf("listener check failed: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	doc, err := html.Parse(`<html><body></body></html>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	rt := NewRuntime()
	ctx := NewPageContext(rt, doc, Hooks{}, nil)
	if rt.LiveContexts() != 1 {
		t.Fatalf("expected 1 live context, got %d", rt.LiveContexts())
	}
	ctx.Release()
	ctx.Release()
	if rt.LiveContexts() != 0 {
		t.Errorf("expected 0 live contexts after double release, got %d", rt.LiveContexts())
	}
	if !ctx.Released() {
		t.Error("expected context to report released")
	}
	if err := ctx.RunScript(`1 + 1`); err == nil {
		t.Error("expected RunScript to fail after release")
	}
}
