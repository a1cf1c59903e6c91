// Package script implements the script task: the actor that owns a tree of
// pages, executes their scripts, and serializes every mutation through a
// single message queue. One script task drives one pipeline tree; layout
// tasks and the host talk to it exclusively by sending on its queue.
package script

import (
	"fmt"

	"plover/pkg/geom"
	"plover/pkg/js"
	"plover/pkg/layout"
	"plover/pkg/msg"
)

// The script task's queue carries values of the types below, plus
// layout.ReflowComplete posted by layout tasks. Anything else on the queue
// is a programming error and fatal.

// NewLayoutInfo describes a subframe's freshly spawned layout task, to be
// attached under an existing page.
type NewLayoutInfo struct {
	OldPipeline msg.PipelineID
	NewPipeline msg.PipelineID
	Subpage     msg.SubpageID
	LayoutChan  layout.Chan
}

// AttachLayoutMsg attaches a new child page for a subframe.
type AttachLayoutMsg struct {
	Info NewLayoutInfo
}

// LoadMsg begins loading a url into the given pipeline.
type LoadMsg struct {
	Pipeline msg.PipelineID
	URL      string
}

// TriggerLoadMsg is a content-initiated load; the script task forwards it
// to the host, which decides whether and where to perform it.
type TriggerLoadMsg struct {
	Pipeline msg.PipelineID
	URL      string
}

// TriggerFragmentMsg scrolls an already-loaded page to a fragment anchor.
type TriggerFragmentMsg struct {
	Pipeline msg.PipelineID
	URL      string
}

// SendEventMsg delivers a UI event to a pipeline.
type SendEventMsg struct {
	Pipeline msg.PipelineID
	Event    Event
}

// ResizeMsg reports a new window size for an active pipeline. Resizes
// coalesce: only the newest size per pipeline is acted on, and only once
// that pipeline's layout is idle.
type ResizeMsg struct {
	Pipeline msg.PipelineID
	Size     geom.Size
}

// ResizeInactiveMsg records a new window size for a pipeline that is not
// currently displayed. No reflow happens now; the page is marked so that
// re-activating it reflows with the new size.
type ResizeInactiveMsg struct {
	Pipeline msg.PipelineID
	Size     geom.Size
}

// FireTimerMsg runs an expired timer's callback. Posted by the timer
// goroutine; this is the only message that originates inside the task's
// own pages.
type FireTimerMsg struct {
	Pipeline msg.PipelineID
	Timer    js.TimerID
}

// NavigateMsg forwards a session-history navigation to the host.
type NavigateMsg struct {
	Direction msg.NavigationDirection
}

// ExitWindowMsg asks the host surface owning the window to close.
type ExitWindowMsg struct {
	Pipeline msg.PipelineID
}

// ExitPipelineMsg shuts a pipeline down. For the root pipeline this tears
// down the whole page tree and stops the task; for any other pipeline only
// that subtree is torn down.
type ExitPipelineMsg struct {
	Pipeline msg.PipelineID
}

// postedTask is a closure delivered back to the task's goroutine, used for
// asynchronous fetch completions.
type postedTask struct {
	pipeline msg.PipelineID
	run      func()
}

// InvariantError is the panic value for messages that violate the queue's
// protocol: references to pipelines that were never attached, or message
// types the task does not speak.
type InvariantError struct {
	Op       string
	Pipeline msg.PipelineID
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: no such pipeline %d", e.Op, int(e.Pipeline))
}
