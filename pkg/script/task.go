package script

import (
	"log/slog"

	"plover/pkg/geom"
	"plover/pkg/html"
	"plover/pkg/js"
	"plover/pkg/layout"
	"plover/pkg/msg"
	"plover/pkg/page"
	"plover/pkg/resource"
)

// queueDepth bounds the task's mailbox. Hooks running on the task's own
// goroutine post here, so the queue must have slack; senders on other
// goroutines may simply block.
const queueDepth = 64

// Config assembles a script task's collaborators.
type Config struct {
	Pipeline      msg.PipelineID
	LayoutChan    layout.Chan
	Constellation chan<- msg.ConstellationMsg
	Compositor    msg.Compositor
	Fetcher       resource.Fetcher
	// WindowSize, when set, establishes the initial window size; otherwise
	// the first resize event establishes it.
	WindowSize *geom.Size
	Logger     *slog.Logger
}

// Task is the script task: single goroutine, single queue, sole owner of
// its page tree and every document in it.
type Task struct {
	page *page.Page
	port chan any

	constellation chan<- msg.ConstellationMsg
	compositor    msg.Compositor
	fetcher       resource.Fetcher
	rt            *js.Runtime

	mouseOverTargets []*html.Node

	done chan struct{}
	log  *slog.Logger
}

// NewTask builds the task around a root page. It does not start the
// goroutine; tests drive handleMsg directly, production code uses Spawn.
func NewTask(cfg Config) *Task {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("pipeline", int(cfg.Pipeline))

	root := page.New(cfg.Pipeline, cfg.LayoutChan, logger)
	if cfg.WindowSize != nil {
		root.SetWindowSize(*cfg.WindowSize)
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = resource.NewFetcher()
	}
	return &Task{
		page:          root,
		port:          make(chan any, queueDepth),
		constellation: cfg.Constellation,
		compositor:    cfg.Compositor,
		fetcher:       fetcher,
		rt:            js.NewRuntime(),
		done:          make(chan struct{}),
		log:           logger,
	}
}

// Spawn starts the task's goroutine and returns the task.
func Spawn(cfg Config) *Task {
	t := NewTask(cfg)
	go t.run()
	return t
}

// Chan is the task's mailbox. Layout tasks, the host, and the task's own
// timer hooks all send here.
func (t *Task) Chan() chan any {
	return t.port
}

// Done is closed when the task's goroutine has stopped, normally or not.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) run() {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("script task failed", "err", r)
			if t.constellation != nil {
				t.constellation <- msg.FailureMsg{
					Failure: msg.Failure{Pipeline: t.page.ID},
				}
			}
		}
	}()

	// If the loop unwinds, the failsafe releases every live script context
	// so document memory is reclaimed even though shutdown never ran. The
	// normal exit path neuters it: shutdown has already done the work.
	failsafe := &memoryFailsafe{task: t}
	defer failsafe.drop()

	t.handleMsgs()
	failsafe.neuter()
	t.log.Info("script task exited")
}

// handleMsgs is the actor loop: take one message (blocking), drain
// whatever else has arrived, then dispatch the batch in arrival order.
// Resizes never enter the batch; they coalesce on their page and are
// replayed as events at the top of the next iteration, once that page's
// layout is idle.
func (t *Task) handleMsgs() {
	for {
		t.replayResizes()

		batch := []any{<-t.port}
	drain:
		for {
			select {
			case m := <-t.port:
				batch = append(batch, m)
			default:
				break drain
			}
		}

		for _, m := range batch {
			if resize, ok := m.(ResizeMsg); ok {
				t.noteResize(resize)
				continue
			}
			if !t.handleMsg(m) {
				return
			}
		}
	}
}

// replayResizes turns coalesced resizes into resize events, but only for
// pages whose layout is idle. A page mid-reflow keeps its pending resize
// for a later iteration.
func (t *Task) replayResizes() {
	for it := t.page.Iter(); ; {
		p, ok := it.Next()
		if !ok {
			break
		}
		if p.LayoutBusy() {
			continue
		}
		if size, ok := p.TakeResizeEvent(); ok {
			t.handleEvent(p.ID, ResizeEvent{Size: size})
		}
	}
}

func (t *Task) noteResize(m ResizeMsg) {
	p := t.page.Find(m.Pipeline)
	if p == nil {
		t.log.Info("dropping resize for removed pipeline",
			"resized", int(m.Pipeline))
		return
	}
	p.SetResizeEvent(m.Size)
}

// handleMsg dispatches one message. Returns false when the task should
// stop.
func (t *Task) handleMsg(m any) bool {
	switch m := m.(type) {
	case AttachLayoutMsg:
		t.handleNewLayout(m.Info)
	case LoadMsg:
		t.load(m.Pipeline, m.URL)
	case TriggerLoadMsg:
		t.constellation <- msg.LoadURLMsg{Pipeline: m.Pipeline, URL: m.URL}
	case TriggerFragmentMsg:
		t.triggerFragment(m.Pipeline, m.URL)
	case SendEventMsg:
		t.handleEvent(m.Pipeline, m.Event)
	case FireTimerMsg:
		t.handleFireTimer(m.Pipeline, m.Timer)
	case NavigateMsg:
		t.constellation <- msg.NavigateMsg{Direction: m.Direction}
	case layout.ReflowComplete:
		t.handleReflowComplete(m.Pipeline, m.ReflowID)
	case ResizeInactiveMsg:
		t.handleResizeInactive(m.Pipeline, m.Size)
	case ExitWindowMsg:
		t.compositor.Close()
	case ExitPipelineMsg:
		return !t.handleExitPipeline(m.Pipeline)
	case postedTask:
		m.run()
		if p := t.page.Find(m.pipeline); p != nil {
			t.reflowIfDamaged(p)
		}
	default:
		panic(&InvariantError{Op: "unexpected message type on script queue", Pipeline: t.page.ID})
	}
	return true
}

// handleNewLayout attaches a child page for a freshly spawned subframe
// layout task. The parent pipeline must already be in the tree.
func (t *Task) handleNewLayout(info NewLayoutInfo) {
	parent := t.page.Find(info.OldPipeline)
	if parent == nil {
		panic(&InvariantError{Op: "attach layout", Pipeline: info.OldPipeline})
	}
	child := page.New(info.NewPipeline, info.LayoutChan, t.log)
	child.SetSubpage(info.Subpage)
	if size, ok := parent.WindowSize(); ok {
		child.SetWindowSize(size)
	}
	parent.AddChild(child)
}

// handleFireTimer runs an expired timer's callback and reflows if the
// callback dirtied the document. The pipeline may be gone: timers post
// from another goroutine and can lose the race with teardown.
func (t *Task) handleFireTimer(pipeline msg.PipelineID, id js.TimerID) {
	p := t.page.Find(pipeline)
	if p == nil {
		t.log.Info("dropping timer for removed pipeline", "fired", int(pipeline))
		return
	}
	frame := p.Frame()
	if frame == nil || frame.Context == nil {
		return
	}
	frame.Context.FireTimer(id)
	t.reflowIfDamaged(p)
}

// handleReflowComplete marks a pipeline's most recent reflow done. Stale
// ids happen when a newer reflow was issued before this completion was
// dequeued; they leave the in-flight state alone, but the host is told
// layout finished either way.
func (t *Task) handleReflowComplete(pipeline msg.PipelineID, reflowID int) {
	p := t.page.Find(pipeline)
	if p == nil {
		t.log.Info("dropping reflow completion for removed pipeline",
			"completed", int(pipeline))
		return
	}
	if !p.IsCurrentReflow(reflowID) {
		t.log.Debug("discarding stale reflow completion",
			"completed", int(pipeline), "reflow", reflowID)
	}
	if t.compositor != nil {
		t.compositor.SetReadyState(pipeline, msg.FinishedLoading)
	}
}

// handleResizeInactive records a size for a page that is not being
// displayed. The page's cached url is marked so that re-activating it
// forces a reflow at the new size.
func (t *Task) handleResizeInactive(pipeline msg.PipelineID, size geom.Size) {
	p := t.page.Find(pipeline)
	if p == nil {
		t.log.Info("dropping inactive resize for removed pipeline",
			"resized", int(pipeline))
		return
	}
	p.SetWindowSize(size)
	if url, _, ok := p.LoadedURL(); ok {
		p.SetLoadedURL(url, true)
	}
}

// reflowIfDamaged reflows a page if script execution left damage behind.
func (t *Task) reflowIfDamaged(p *page.Page) {
	if _, ok := p.PendingDamage(); ok {
		p.Reflow(layout.ReflowForDisplay, t.port, t.compositor)
	}
}

// memoryFailsafe releases every page's script context if the task unwinds
// before shutdown ran. Neutered on the normal exit path.
type memoryFailsafe struct {
	task     *Task
	neutered bool
}

func (f *memoryFailsafe) neuter() {
	f.neutered = true
}

func (f *memoryFailsafe) drop() {
	if f.neutered {
		return
	}
	for it := f.task.page.Iter(); ; {
		p, ok := it.Next()
		if !ok {
			break
		}
		if frame := p.Frame(); frame != nil && frame.Context != nil {
			frame.Context.Release()
		}
	}
}
