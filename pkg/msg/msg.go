// Package msg holds the identifiers and host-facing message types shared by
// the script task, the layout tasks, and the constellation (the owning
// host). It is the narrow waist between pipelines and the host: nothing in
// here knows about the DOM or about layout internals.
package msg

import "plover/pkg/geom"

// PipelineID uniquely identifies one browsing context (a page or subframe).
type PipelineID int

// SubpageID identifies a nested browsing context within its parent page.
// Allocated per parent, starting at zero.
type SubpageID int

// NavigationDirection is a request to move through session history.
type NavigationDirection int

const (
	Forward NavigationDirection = iota
	Back
)

func (d NavigationDirection) String() string {
	if d == Back {
		return "back"
	}
	return "forward"
}

// ReadyState describes what a pipeline is currently doing, for the benefit
// of UI surfaces like a throbber or status bar.
type ReadyState int

const (
	// Loading means the page is fetching or parsing content.
	Loading ReadyState = iota
	// PerformingLayout means a reflow has been handed to the layout task.
	PerformingLayout
	// FinishedLoading means the most recent load or reflow is done.
	FinishedLoading
)

func (s ReadyState) String() string {
	switch s {
	case Loading:
		return "loading"
	case PerformingLayout:
		return "performing-layout"
	default:
		return "finished-loading"
	}
}

// Compositor is the script task's view of the UI surface that owns the
// window. Calls arrive on the script task's goroutine and must not block
// on the script task's own queue.
type Compositor interface {
	// SetReadyState reports a pipeline's loading/layout status.
	SetReadyState(id PipelineID, state ReadyState)
	// ScrollFragmentPoint asks the surface to scroll so the given page
	// coordinate is visible.
	ScrollFragmentPoint(id PipelineID, point geom.Point)
	// Close asks the surface to close the window. The script task does not
	// tear itself down on window.close; the host decides what follows.
	Close()
}

// Failure identifies a pipeline whose script task terminated abnormally.
type Failure struct {
	Pipeline PipelineID
}

// ConstellationMsg is a message from a pipeline to the owning host.
// The closed set is the four concrete types below.
type ConstellationMsg interface {
	isConstellationMsg()
}

// LoadCompleteMsg reports that a document finished loading.
type LoadCompleteMsg struct {
	Pipeline PipelineID
	URL      string
}

// LoadURLMsg asks the host to begin a content-initiated load.
type LoadURLMsg struct {
	Pipeline PipelineID
	URL      string
}

// NavigateMsg asks the host to navigate through session history.
type NavigateMsg struct {
	Direction NavigationDirection
}

// FailureMsg reports abnormal termination of a pipeline's script task.
type FailureMsg struct {
	Failure Failure
}

func (LoadCompleteMsg) isConstellationMsg() {}
func (LoadURLMsg) isConstellationMsg()      {}
func (NavigateMsg) isConstellationMsg()     {}
func (FailureMsg) isConstellationMsg()      {}
