package layout

import (
	"log/slog"
	"strconv"
	"strings"

	"plover/pkg/css"
	"plover/pkg/geom"
	"plover/pkg/html"
)

// lineHeight is the height given to a run of text. There is no font
// measurement here; one text node is one line.
const lineHeight = 16.0

// Task is a layout task: a single goroutine that owns the box tree for one
// pipeline. It never touches DOM nodes outside a reflow or query it was
// handed, and it drops all node references on prepare-to-exit.
type Task struct {
	port   Chan
	sheets []*css.Stylesheet
	boxes  []Box
	log    *slog.Logger
}

// NewTask creates a layout task. Call Start on its own goroutine.
func NewTask(logger *slog.Logger) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		port: make(Chan, 16),
		log:  logger,
	}
}

// Chan returns the channel on which the task accepts messages.
func (t *Task) Chan() Chan {
	return t.port
}

// Start services messages until exit-now arrives or the channel closes.
func (t *Task) Start() {
	for m := range t.port {
		switch m := m.(type) {
		case AddStylesheetMsg:
			t.sheets = append(t.sheets, m.Sheet)
			t.log.Debug("layout: stylesheet added", "rules", len(m.Sheet.Rules))
		case ReflowMsg:
			t.reflow(m.Reflow)
		case QueryMsg:
			t.query(m.Query)
		case PrepareToExitMsg:
			// Release every node address we hold before acknowledging, so
			// the script task can safely tear down the document.
			t.boxes = nil
			m.Response <- struct{}{}
		case ExitNowMsg:
			if len(t.boxes) != 0 {
				// Exit-now before prepare-to-exit means the shutdown
				// protocol was violated; report the leaked references.
				t.log.Error("layout: exiting with live document references", "boxes", len(t.boxes))
			}
			return
		}
	}
}

// reflow computes the box list and reports completion. If the computation
// panics, the join channel is closed without a value so the script task
// observes the death instead of blocking forever.
func (t *Task) reflow(r *Reflow) {
	done := false
	defer func() {
		if !done {
			close(r.JoinChan)
		}
	}()

	t.log.Debug("layout: reflow", "pipeline", int(r.Pipeline), "id", r.ID, "goal", int(r.Goal), "damage", int(r.Damage.Level))
	t.boxes = t.boxes[:0]
	if r.DocumentRoot != nil {
		t.layoutBlock(r.DocumentRoot, 0, 0, r.WindowSize.Width)
	}

	r.Script <- ReflowComplete{Pipeline: r.Pipeline, ReflowID: r.ID}
	r.JoinChan <- struct{}{}
	done = true
}

// layoutBlock lays out n at (x, y) within the given width and returns the
// height consumed. Blocks stack vertically; a text node is a single line;
// an explicit height declaration overrides the stacked height.
func (t *Task) layoutBlock(n *html.Node, x, y, width float64) float64 {
	if n.Type == html.TextNode {
		t.boxes = append(t.boxes, Box{
			Node: n,
			Rect: geom.Rect{X: x, Y: y, Width: width, Height: lineHeight},
		})
		return lineHeight
	}

	decls := t.declarationsFor(n)
	if decls["display"] == "none" {
		return 0
	}

	// Reserve the parent's slot before the children so the box list stays
	// in document order (hit testing relies on it).
	idx := len(t.boxes)
	t.boxes = append(t.boxes, Box{Node: n})

	cy := y
	for _, c := range n.Children {
		cy += t.layoutBlock(c, x, cy, width)
	}
	height := cy - y
	if h, ok := parsePx(decls["height"]); ok {
		height = h
	}
	t.boxes[idx].Rect = geom.Rect{X: x, Y: y, Width: width, Height: height}
	return height
}

func (t *Task) declarationsFor(n *html.Node) map[string]string {
	var merged map[string]string
	for _, sheet := range t.sheets {
		decls := sheet.DeclarationsFor(n)
		if decls == nil {
			continue
		}
		if merged == nil {
			merged = make(map[string]string, len(decls))
		}
		for k, v := range decls {
			merged[k] = v
		}
	}
	return merged
}

func (t *Task) query(q Query) {
	switch q := q.(type) {
	case HitTestQuery:
		q.Reply <- HitTestReply{Node: t.hitTest(q.Point)}
	case MouseOverQuery:
		q.Reply <- MouseOverReply{Nodes: t.nodesUnder(q.Point)}
	case ContentBoxQuery:
		rect, found := t.contentBox(q.Node)
		q.Reply <- ContentBoxReply{Rect: rect, Found: found}
	case DisplayQuery:
		snapshot := make([]Box, len(t.boxes))
		copy(snapshot, t.boxes)
		q.Reply <- DisplayList{
			Boxes:  snapshot,
			Sheets: append([]*css.Stylesheet(nil), t.sheets...),
		}
	}
}

// hitTest returns the topmost node containing the point. The box list is
// in document order, so the last containing box is the innermost.
func (t *Task) hitTest(p geom.Point) *html.Node {
	for i := len(t.boxes) - 1; i >= 0; i-- {
		if t.boxes[i].Rect.Contains(p) {
			return t.boxes[i].Node
		}
	}
	return nil
}

func (t *Task) nodesUnder(p geom.Point) []*html.Node {
	var nodes []*html.Node
	for _, b := range t.boxes {
		if b.Rect.Contains(p) {
			nodes = append(nodes, b.Node)
		}
	}
	return nodes
}

func (t *Task) contentBox(n *html.Node) (geom.Rect, bool) {
	for _, b := range t.boxes {
		if b.Node == n {
			return b.Rect, true
		}
	}
	return geom.Rect{}, false
}

func parsePx(v string) (float64, bool) {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
