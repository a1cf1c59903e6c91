// Package js is the script-execution environment: a shared runtime plus one
// context per page. Contexts own the window/document globals and timers;
// the script task creates, drives, and releases them, always from its own
// goroutine. Only timer expiry crosses goroutines, and it does so by
// posting back through the script task's queue via a hook.
package js

import (
	"runtime"
	"sync"
)

// Runtime is the shared script engine owned by one script task. Page
// contexts are created from it and released into it; releasing the last
// references and forcing a collection is the Go analogue of tearing down
// the JS heap before layout exits.
type Runtime struct {
	mu       sync.Mutex
	contexts int
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

// ForceGC runs a full collection pass. Called during shutdown after every
// page context has been released, so that document reflectors held only by
// dropped contexts are actually finalized before layout is told to exit.
func (r *Runtime) ForceGC() {
	runtime.GC()
}

func (r *Runtime) contextCreated() {
	r.mu.Lock()
	r.contexts++
	r.mu.Unlock()
}

func (r *Runtime) contextReleased() {
	r.mu.Lock()
	r.contexts--
	r.mu.Unlock()
}

// LiveContexts reports how many page contexts are still un-released.
// Diagnostic only; used by shutdown tests.
func (r *Runtime) LiveContexts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contexts
}
