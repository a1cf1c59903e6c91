package js

import (
	"fmt"
	"log/slog"
	"time"

	"plover/pkg/html"

	"github.com/dop251/goja"
)

// TimerID identifies one window timer (setTimeout/setInterval).
type TimerID int32

// Hooks are the page context's only way to reach the rest of the system.
// Every hook is provided by the script task and either posts a message on
// the task's own queue or forwards to the host; none of them may block on
// that queue from the task's goroutine.
type Hooks struct {
	// PostTimer is called off-goroutine when a timer expires; it must
	// enqueue a fire-timer message.
	PostTimer func(TimerID)
	// PostClose handles window.close().
	PostClose func()
	// PostLoad handles a content-initiated load (location.assign).
	PostLoad func(url string)
	// PostFragment handles a fragment navigation (location.hash = ...).
	PostFragment func(url string)
	// PostContentChanged is called after script mutates the document.
	PostContentChanged func()
	// FetchText starts an asynchronous fetch; done is invoked on the
	// script task's goroutine when the body (or an error) is available.
	FetchText func(url string, done func(body string, err error))
}

type timerHandle struct {
	fn       goja.Callable
	interval bool
	duration time.Duration
	timer    *time.Timer
}

// PageContext is the script-visible half of one page: a goja runtime with
// window/document globals bound to the page's DOM.
type PageContext struct {
	rt    *Runtime
	vm    *goja.Runtime
	doc   *html.Document
	hooks Hooks
	log   *slog.Logger

	elements      map[*html.Node]*goja.Object
	nodeListeners map[*html.Node]map[string][]goja.Callable
	winListeners  map[string][]goja.Callable

	timers    map[TimerID]*timerHandle
	nextTimer TimerID

	released bool
}

// NewPageContext builds the context and registers the globals. The caller
// owns the context and must Release it exactly once during teardown.
func NewPageContext(rt *Runtime, doc *html.Document, hooks Hooks, logger *slog.Logger) *PageContext {
	if logger == nil {
		logger = slog.Default()
	}
	c := &PageContext{
		rt:            rt,
		vm:            goja.New(),
		doc:           doc,
		hooks:         hooks,
		log:           logger,
		elements:      make(map[*html.Node]*goja.Object),
		nodeListeners: make(map[*html.Node]map[string][]goja.Callable),
		winListeners:  make(map[string][]goja.Callable),
		timers:        make(map[TimerID]*timerHandle),
	}
	(&consoleAPI{log: logger}).register(c.vm)
	c.registerDocument()
	c.registerWindow()
	rt.contextCreated()
	return c
}

// RunScript evaluates one script. Errors are returned, not thrown; the
// caller logs and moves on to the next script, as a browser would.
func (c *PageContext) RunScript(src string) error {
	if c.released {
		return fmt.Errorf("script context already released")
	}
	if _, err := c.vm.RunString(src); err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}

// DispatchWindowEvent fires window-level listeners for the named event.
func (c *PageContext) DispatchWindowEvent(name string) {
	if c.released {
		return
	}
	for _, fn := range c.winListeners[name] {
		if _, err := fn(goja.Undefined()); err != nil {
			c.log.Warn("window event listener failed", "event", name, "err", err)
		}
	}
}

// DispatchNodeEvent fires listeners registered on the given node.
func (c *PageContext) DispatchNodeEvent(n *html.Node, name string) {
	if c.released {
		return
	}
	listeners := c.nodeListeners[n]
	if listeners == nil {
		return
	}
	target := c.elementProxy(n)
	for _, fn := range listeners[name] {
		if _, err := fn(target); err != nil {
			c.log.Warn("event listener failed", "event", name, "err", err)
		}
	}
}

// FireTimer runs the callback for an expired timer. One-shot timers are
// removed; intervals are rescheduled. Unknown ids are ignored (the timer
// may have been cleared after it fired).
func (c *PageContext) FireTimer(id TimerID) {
	if c.released {
		return
	}
	handle, ok := c.timers[id]
	if !ok {
		return
	}
	if handle.interval {
		handle.timer.Reset(handle.duration)
	} else {
		delete(c.timers, id)
	}
	if _, err := handle.fn(goja.Undefined()); err != nil {
		c.log.Warn("timer callback failed", "timer", int32(id), "err", err)
	}
}

// Release tears the context down: stops timers, drops every DOM and VM
// reference. Safe to call more than once; only the first call counts.
func (c *PageContext) Release() {
	if c.released {
		return
	}
	c.released = true
	for _, handle := range c.timers {
		handle.timer.Stop()
	}
	c.timers = nil
	c.elements = nil
	c.nodeListeners = nil
	c.winListeners = nil
	c.vm = nil
	c.doc = nil
	c.rt.contextReleased()
}

// Released reports whether the context has been torn down.
func (c *PageContext) Released() bool {
	return c.released
}

func (c *PageContext) registerWindow() {
	vm := c.vm
	win := vm.NewObject()

	win.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(int32(c.addTimer(call, false)))
	})
	win.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(int32(c.addTimer(call, true)))
	})
	clear := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			id := TimerID(call.Arguments[0].ToInteger())
			if handle, ok := c.timers[id]; ok {
				handle.timer.Stop()
				delete(c.timers, id)
			}
		}
		return goja.Undefined()
	}
	win.Set("clearTimeout", clear)
	win.Set("clearInterval", clear)

	win.Set("close", func(call goja.FunctionCall) goja.Value {
		if c.hooks.PostClose != nil {
			c.hooks.PostClose()
		}
		return goja.Undefined()
	})

	win.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		name := call.Arguments[0].String()
		if fn, ok := goja.AssertFunction(call.Arguments[1]); ok {
			c.winListeners[name] = append(c.winListeners[name], fn)
		}
		return goja.Undefined()
	})

	win.Set("httpGet", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 || c.hooks.FetchText == nil {
			return goja.Undefined()
		}
		url := call.Arguments[0].String()
		fn, ok := goja.AssertFunction(call.Arguments[1])
		if !ok {
			return goja.Undefined()
		}
		c.hooks.FetchText(url, func(body string, err error) {
			if c.released {
				return
			}
			errVal := goja.Value(goja.Null())
			if err != nil {
				errVal = vm.ToValue(err.Error())
			}
			if _, cbErr := fn(goja.Undefined(), vm.ToValue(body), errVal); cbErr != nil {
				c.log.Warn("httpGet callback failed", "err", cbErr)
			}
		})
		return goja.Undefined()
	})

	location := vm.NewObject()
	location.DefineAccessorProperty("href",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(c.doc.URL)
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 && c.hooks.PostLoad != nil {
				c.hooks.PostLoad(call.Arguments[0].String())
			}
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	location.Set("assign", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 && c.hooks.PostLoad != nil {
			c.hooks.PostLoad(call.Arguments[0].String())
		}
		return goja.Undefined()
	})
	location.DefineAccessorProperty("hash",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue("")
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 && c.hooks.PostFragment != nil {
				c.hooks.PostFragment(call.Arguments[0].String())
			}
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	win.Set("location", location)

	vm.Set("window", win)
	vm.Set("location", location)
	vm.GlobalObject().Set("self", win)
}

// addTimer registers a timer and schedules its expiry to be posted back
// through the script task's queue. The callback itself only ever runs on
// the script task's goroutine, via FireTimer.
func (c *PageContext) addTimer(call goja.FunctionCall, interval bool) TimerID {
	if len(call.Arguments) == 0 {
		return 0
	}
	fn, ok := goja.AssertFunction(call.Arguments[0])
	if !ok {
		return 0
	}
	ms := int64(0)
	if len(call.Arguments) > 1 {
		ms = call.Arguments[1].ToInteger()
	}
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond

	c.nextTimer++
	id := c.nextTimer
	handle := &timerHandle{fn: fn, interval: interval, duration: d}
	handle.timer = time.AfterFunc(d, func() {
		if c.hooks.PostTimer != nil {
			c.hooks.PostTimer(id)
		}
	})
	c.timers[id] = handle
	return id
}
