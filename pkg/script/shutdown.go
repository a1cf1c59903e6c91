package script

import (
	"plover/pkg/layout"
	"plover/pkg/msg"
	"plover/pkg/page"
)

// handleExitPipeline tears down one pipeline. Exiting the root tears down
// the whole tree and stops the task; exiting any other pipeline detaches
// and tears down just that subtree. Returns true when the task itself
// should stop.
func (t *Task) handleExitPipeline(pipeline msg.PipelineID) bool {
	if pipeline == t.page.ID {
		t.shutDownLayout(t.page)
		return true
	}
	subtree, ok := t.page.Remove(pipeline)
	if !ok {
		t.log.Info("dropping exit for removed pipeline", "exited", int(pipeline))
		return false
	}
	t.shutDownLayout(subtree)
	return false
}

// shutDownLayout tears down a page subtree in strict phases. Order
// matters: a layout task must have dropped every document reference before
// the script side releases the document, and every context must be gone
// before the final collection pass. Only then is layout told to exit.
func (t *Task) shutDownLayout(tree *page.Page) {
	for it := tree.Iter(); ; {
		p, ok := it.Next()
		if !ok {
			break
		}
		p.JoinLayout()
		resp := make(chan struct{})
		p.LayoutChan <- layout.PrepareToExitMsg{Response: resp}
		<-resp
	}

	var frames []*page.Frame
	for it := tree.Iter(); ; {
		p, ok := it.Next()
		if !ok {
			break
		}
		if old := p.SetFrame(nil); old != nil {
			frames = append(frames, old)
		}
	}
	for _, f := range frames {
		if f.Context != nil {
			f.Context.Release()
		}
	}

	t.rt.ForceGC()

	for it := tree.Iter(); ; {
		p, ok := it.Next()
		if !ok {
			break
		}
		p.LayoutChan <- layout.ExitNowMsg{}
	}
}
