package script

import (
	"strings"

	"plover/pkg/css"
	"plover/pkg/html"
	"plover/pkg/js"
	"plover/pkg/layout"
	"plover/pkg/msg"
	"plover/pkg/page"
	"plover/pkg/resource"
)

// load fetches a url into a pipeline: parse, hand stylesheets to layout,
// install the frame, reflow, run scripts, fire the load event, and report
// completion to the host. Loading the url a page already holds skips the
// fetch entirely; at most it scrolls to a fragment and, if the page was
// resized while inactive, reflows at the new size.
func (t *Task) load(pipeline msg.PipelineID, rawURL string) {
	p := t.page.Find(pipeline)
	if p == nil {
		panic(&InvariantError{Op: "load", Pipeline: pipeline})
	}

	base, fragment := resource.SplitFragment(rawURL)

	if loaded, needsReflow, ok := p.LoadedURL(); ok && loaded == base {
		if needsReflow {
			if frame := p.Frame(); frame != nil && frame.Document.Root != nil {
				p.AddDamage(frame.Document.Root, layout.ContentChangedDamage)
				p.Reflow(layout.ReflowForDisplay, t.port, t.compositor)
			}
			p.SetLoadedURL(loaded, false)
		}
		if fragment != "" {
			t.scrollToFragment(p, fragment)
		}
		return
	}

	if t.compositor != nil {
		t.compositor.SetReadyState(pipeline, msg.Loading)
	}
	t.log.Info("loading", "url", base)

	resp, err := t.fetcher.Fetch(base)
	if err != nil {
		t.log.Error("load failed", "url", base, "err", err)
		if t.compositor != nil {
			t.compositor.SetReadyState(pipeline, msg.FinishedLoading)
		}
		return
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		t.log.Error("parse failed", "url", base, "err", err)
		if t.compositor != nil {
			t.compositor.SetReadyState(pipeline, msg.FinishedLoading)
		}
		return
	}
	doc.URL = resp.URL

	t.sendStylesheets(p, doc, resp.URL)

	ctx := js.NewPageContext(t.rt, doc, t.hooksFor(pipeline), t.log)
	if old := p.SetFrame(&page.Frame{Document: doc, Context: ctx}); old != nil && old.Context != nil {
		old.Context.Release()
	}
	p.SetLoadedURL(base, false)

	if fragment != "" {
		if n := findFragmentNode(doc, fragment); n != nil {
			p.SetFragmentNode(n)
		}
	}

	p.AddDamage(doc.Root, layout.ContentChangedDamage)
	p.Reflow(layout.ReflowForDisplay, t.port, t.compositor)

	t.runScripts(p, doc, resp.URL)
	ctx.DispatchWindowEvent("load")
	t.reflowIfDamaged(p)

	// The fragment scroll needs layout output; without a window size it
	// stays pending and fires on the first resize.
	if _, sized := p.WindowSize(); sized {
		if n, ok := p.TakeFragmentNode(); ok {
			t.scrollToNode(p, n)
		}
	}

	if t.constellation != nil {
		t.constellation <- msg.LoadCompleteMsg{Pipeline: pipeline, URL: base}
	}
}

// sendStylesheets hands every stylesheet to layout: inline style elements
// first, then linked sheets in document order. A sheet that fails to fetch
// or parse is skipped; the page still renders with what it has.
func (t *Task) sendStylesheets(p *page.Page, doc *html.Document, baseURL string) {
	texts := append([]string(nil), doc.Stylesheets...)
	if doc.Root != nil {
		doc.Root.TraversePreorder(func(n *html.Node) bool {
			if !n.IsElement() || n.TagName != "link" {
				return true
			}
			rel, _ := n.GetAttribute("rel")
			href, ok := n.GetAttribute("href")
			if !ok || !strings.EqualFold(rel, "stylesheet") {
				return true
			}
			text, err := resource.FetchText(t.fetcher, resource.Resolve(baseURL, href))
			if err != nil {
				t.log.Warn("skipping stylesheet", "href", href, "err", err)
				return true
			}
			texts = append(texts, text)
			return true
		})
	}
	for _, text := range texts {
		sheet, err := css.Parse(text)
		if err != nil {
			t.log.Warn("skipping unparseable stylesheet", "err", err)
			continue
		}
		p.LayoutChan <- layout.AddStylesheetMsg{Sheet: sheet}
	}
}

// runScripts executes inline scripts in document order, then external
// scripts. Script errors are logged and do not stop later scripts.
func (t *Task) runScripts(p *page.Page, doc *html.Document, baseURL string) {
	frame := p.Frame()
	if frame == nil || frame.Context == nil {
		return
	}
	for _, src := range doc.Scripts {
		if err := frame.Context.RunScript(src); err != nil {
			t.log.Warn("script error", "url", baseURL, "err", err)
		}
	}
	for _, ref := range doc.ExternalScripts {
		body, err := resource.FetchText(t.fetcher, resource.Resolve(baseURL, ref))
		if err != nil {
			t.log.Warn("skipping external script", "src", ref, "err", err)
			continue
		}
		if err := frame.Context.RunScript(body); err != nil {
			t.log.Warn("script error", "src", ref, "err", err)
		}
	}
}

// hooksFor wires a page context's callbacks back into this task. Hooks
// invoked during script execution run on the task's own goroutine and must
// not block on the queue; the timer hook runs on a timer goroutine and
// posts normally.
func (t *Task) hooksFor(pipeline msg.PipelineID) js.Hooks {
	return js.Hooks{
		PostTimer: func(id js.TimerID) {
			t.port <- FireTimerMsg{Pipeline: pipeline, Timer: id}
		},
		PostClose: func() {
			if t.compositor != nil {
				t.compositor.Close()
			}
		},
		PostLoad: func(url string) {
			if t.constellation == nil {
				return
			}
			resolved := url
			if p := t.page.Find(pipeline); p != nil {
				if base, _, ok := p.LoadedURL(); ok {
					resolved = resource.Resolve(base, url)
				}
			}
			t.constellation <- msg.LoadURLMsg{Pipeline: pipeline, URL: resolved}
		},
		PostFragment: func(url string) {
			p := t.page.Find(pipeline)
			if p == nil {
				return
			}
			fragment := strings.TrimPrefix(url, "#")
			if i := strings.IndexByte(fragment, '#'); i >= 0 {
				fragment = fragment[i+1:]
			}
			t.scrollToFragment(p, fragment)
		},
		PostContentChanged: func() {
			p := t.page.Find(pipeline)
			if p == nil {
				return
			}
			if frame := p.Frame(); frame != nil && frame.Document.Root != nil {
				p.AddDamage(frame.Document.Root, layout.ContentChangedDamage)
			}
		},
		FetchText: func(url string, done func(string, error)) {
			resolved := url
			if p := t.page.Find(pipeline); p != nil {
				if base, _, ok := p.LoadedURL(); ok {
					resolved = resource.Resolve(base, url)
				}
			}
			go func() {
				body, err := resource.FetchText(t.fetcher, resolved)
				t.port <- postedTask{pipeline: pipeline, run: func() { done(body, err) }}
			}()
		},
	}
}

// triggerFragment scrolls an already-loaded page to the fragment named by
// the url. The pipeline may be gone by the time this arrives.
func (t *Task) triggerFragment(pipeline msg.PipelineID, rawURL string) {
	p := t.page.Find(pipeline)
	if p == nil {
		t.log.Info("dropping fragment navigation for removed pipeline",
			"target", int(pipeline))
		return
	}
	_, fragment := resource.SplitFragment(rawURL)
	if fragment == "" {
		return
	}
	t.scrollToFragment(p, fragment)
}

// loadURLForPage follows a link activated in content. Same-document
// fragments scroll in place; everything else goes to the host, which owns
// navigation.
func (t *Task) loadURLForPage(p *page.Page, href string) {
	if strings.HasPrefix(href, "#") {
		t.scrollToFragment(p, strings.TrimPrefix(href, "#"))
		return
	}
	if t.constellation == nil {
		return
	}
	base, _, _ := p.LoadedURL()
	t.constellation <- msg.LoadURLMsg{Pipeline: p.ID, URL: resource.Resolve(base, href)}
}

func (t *Task) scrollToFragment(p *page.Page, fragment string) {
	frame := p.Frame()
	if frame == nil {
		return
	}
	if n := findFragmentNode(frame.Document, fragment); n != nil {
		t.scrollToNode(p, n)
	}
}

// scrollToNode asks layout where the node landed and tells the compositor
// to bring that point into view.
func (t *Task) scrollToNode(p *page.Page, n *html.Node) {
	rect, ok := p.ContentBox(n)
	if !ok {
		return
	}
	if t.compositor != nil {
		t.compositor.ScrollFragmentPoint(p.ID, rect.Origin())
	}
}

// findFragmentNode resolves a fragment identifier: elements by id first,
// then named anchors.
func findFragmentNode(doc *html.Document, fragment string) *html.Node {
	if n := doc.GetElementById(fragment); n != nil {
		return n
	}
	return doc.FindAnchorByName(fragment)
}
