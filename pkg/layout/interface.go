// Package layout defines the message protocol spoken between the script
// task and a layout task, and provides a layout task that implements it
// with a simple block-stacking model. The script task only ever depends on
// the protocol: every interaction is a message on the task's channel, with
// dedicated reply channels where a response is needed.
package layout

import (
	"plover/pkg/css"
	"plover/pkg/geom"
	"plover/pkg/html"
	"plover/pkg/msg"
)

// Msg is a message accepted by a layout task. The closed set is
// AddStylesheetMsg, ReflowMsg, QueryMsg, PrepareToExitMsg and ExitNowMsg.
type Msg interface {
	isLayoutMsg()
}

// Chan carries messages to one layout task.
type Chan chan Msg

// AddStylesheetMsg hands a parsed stylesheet to layout. Sheets accumulate
// in arrival order and later sheets win on conflicting declarations.
type AddStylesheetMsg struct {
	Sheet *css.Stylesheet
}

// ReflowMsg requests a layout computation. Fire-and-forget: completion is
// reported through the reflow's script channel and join channel.
type ReflowMsg struct {
	Reflow *Reflow
}

// QueryMsg carries a synchronous layout query; the reply arrives on the
// query's own reply channel.
type QueryMsg struct {
	Query Query
}

// PrepareToExitMsg tells layout to drop its document references and
// acknowledge. After the ack, layout holds no node addresses and the
// script task may release the document.
type PrepareToExitMsg struct {
	Response chan<- struct{}
}

// ExitNowMsg terminates the layout task. No acknowledgement is sent.
type ExitNowMsg struct{}

func (AddStylesheetMsg) isLayoutMsg() {}
func (ReflowMsg) isLayoutMsg()        {}
func (QueryMsg) isLayoutMsg()         {}
func (PrepareToExitMsg) isLayoutMsg() {}
func (ExitNowMsg) isLayoutMsg()       {}

// DamageLevel says how much of the presentation is stale. Levels are
// ordered by severity; merging keeps the most severe.
type DamageLevel int

const (
	// ReflowDamage: geometry must be recomputed.
	ReflowDamage DamageLevel = iota
	// MatchSelectorsDamage: selector matching must rerun, then reflow.
	MatchSelectorsDamage
	// ContentChangedDamage: content changed, rebuild everything.
	ContentChangedDamage
)

// Add merges two damage levels, keeping the more severe one.
func (l DamageLevel) Add(other DamageLevel) DamageLevel {
	if other > l {
		return other
	}
	return l
}

// DocumentDamage is the dirty-region descriptor accumulated on a page
// between reflows.
type DocumentDamage struct {
	Root  *html.Node
	Level DamageLevel
}

// ReflowGoal distinguishes display-driven reflows from reflows forced by a
// synchronous script query.
type ReflowGoal int

const (
	ReflowForDisplay ReflowGoal = iota
	ReflowForScriptQuery
)

// Reflow is one layout request. IDs increase monotonically per page; the
// completion message echoes the ID so stale completions can be discarded.
type Reflow struct {
	Pipeline     msg.PipelineID
	DocumentRoot *html.Node
	URL          string
	Goal         ReflowGoal
	WindowSize   geom.Size
	// Script is the script task's mailbox; layout posts a ReflowComplete
	// on it when the computation is done.
	Script chan<- any
	// JoinChan receives exactly one value when the reflow has finished.
	// If the layout task dies mid-reflow the channel is closed without a
	// value, which the script side treats as fatal.
	JoinChan chan<- struct{}
	Damage   DocumentDamage
	ID       int
}

// ReflowComplete flows back through the script task's queue when a reflow
// has finished.
type ReflowComplete struct {
	Pipeline msg.PipelineID
	ReflowID int
}

// Query is a synchronous layout question. The closed set is HitTestQuery,
// MouseOverQuery, ContentBoxQuery and DisplayQuery.
type Query interface {
	isLayoutQuery()
}

// HitTestQuery asks for the topmost node under a point.
type HitTestQuery struct {
	Root  *html.Node
	Point geom.Point
	Reply chan<- HitTestReply
}

// HitTestReply carries the hit node, or nil if nothing was hit.
type HitTestReply struct {
	Node *html.Node
}

// MouseOverQuery asks for every node under a point.
type MouseOverQuery struct {
	Root  *html.Node
	Point geom.Point
	Reply chan<- MouseOverReply
}

// MouseOverReply carries all nodes under the query point, outermost first.
type MouseOverReply struct {
	Nodes []*html.Node
}

// ContentBoxQuery asks for the border box of a specific node, used for
// fragment scrolling.
type ContentBoxQuery struct {
	Node  *html.Node
	Reply chan<- ContentBoxReply
}

type ContentBoxReply struct {
	Rect  geom.Rect
	Found bool
}

// DisplayQuery asks for a snapshot of the current box list, plus the
// stylesheets that produced it, so a compositor can paint it.
type DisplayQuery struct {
	Reply chan<- DisplayList
}

// DisplayList is everything needed to paint the current layout.
type DisplayList struct {
	Boxes  []Box
	Sheets []*css.Stylesheet
}

func (HitTestQuery) isLayoutQuery()    {}
func (MouseOverQuery) isLayoutQuery()  {}
func (ContentBoxQuery) isLayoutQuery() {}
func (DisplayQuery) isLayoutQuery()    {}

// Box is one laid-out node: the unit of the display snapshot and of hit
// testing.
type Box struct {
	Node *html.Node
	Rect geom.Rect
}
