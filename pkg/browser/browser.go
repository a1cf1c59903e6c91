// Package browser plays the host role above a pipeline: it assembles the
// script and layout tasks, owns session history, and services the messages
// pipelines send upward (the constellation side of the protocol).
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"plover/pkg/geom"
	"plover/pkg/layout"
	"plover/pkg/msg"
	"plover/pkg/resource"
	"plover/pkg/script"
)

const rootPipeline msg.PipelineID = 1

// Config assembles a browser.
type Config struct {
	Compositor msg.Compositor
	Fetcher    resource.Fetcher
	WindowSize geom.Size
	Logger     *slog.Logger
}

// Pipeline is one running script/layout pair.
type Pipeline struct {
	ID     msg.PipelineID
	Script *script.Task
	Layout *layout.Task
}

// Browser owns one root pipeline and its session history.
type Browser struct {
	compositor    msg.Compositor
	log           *slog.Logger
	constellation chan msg.ConstellationMsg
	pipeline      *Pipeline
	loaded        chan string

	mu      sync.Mutex
	history []string
	pos     int
}

// New builds the browser and starts its pipeline. Run must be called to
// service the pipeline's upward messages.
func New(cfg Config) *Browser {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	comp := cfg.Compositor
	if comp == nil {
		comp = NewLogCompositor(logger)
	}
	size := cfg.WindowSize
	if size.Width == 0 || size.Height == 0 {
		size = geom.Size{Width: 1024, Height: 768}
	}

	lt := layout.NewTask(logger)
	go lt.Start()

	constellation := make(chan msg.ConstellationMsg, 16)
	st := script.Spawn(script.Config{
		Pipeline:      rootPipeline,
		LayoutChan:    lt.Chan(),
		Constellation: constellation,
		Compositor:    comp,
		Fetcher:       cfg.Fetcher,
		WindowSize:    &size,
		Logger:        logger,
	})

	return &Browser{
		compositor:    comp,
		log:           logger,
		constellation: constellation,
		pipeline:      &Pipeline{ID: rootPipeline, Script: st, Layout: lt},
		loaded:        make(chan string, 8),
		pos:           -1,
	}
}

// Run services constellation messages until the context is cancelled or
// the pipeline stops. A pipeline failure is returned as an error.
func (b *Browser) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-b.pipeline.Script.Done():
				return nil
			case m := <-b.constellation:
				if err := b.handleConstellationMsg(m); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		b.Close()
		return nil
	})
	return g.Wait()
}

func (b *Browser) handleConstellationMsg(m msg.ConstellationMsg) error {
	switch m := m.(type) {
	case msg.LoadCompleteMsg:
		b.log.Info("load complete", "url", m.URL)
		select {
		case b.loaded <- m.URL:
		default:
		}
	case msg.LoadURLMsg:
		b.Open(m.URL)
	case msg.NavigateMsg:
		b.navigateHistory(m.Direction)
	case msg.FailureMsg:
		return fmt.Errorf("pipeline %d failed", int(m.Failure.Pipeline))
	}
	return nil
}

// Open loads a url as a new history entry, dropping any forward entries.
func (b *Browser) Open(url string) {
	b.mu.Lock()
	b.history = append(b.history[:b.pos+1], url)
	b.pos = len(b.history) - 1
	b.mu.Unlock()
	b.pipeline.Script.Chan() <- script.LoadMsg{Pipeline: b.pipeline.ID, URL: url}
}

// Navigate requests a history traversal through the pipeline, the same
// path content-initiated navigation takes.
func (b *Browser) Navigate(d msg.NavigationDirection) {
	b.pipeline.Script.Chan() <- script.NavigateMsg{Direction: d}
}

func (b *Browser) navigateHistory(d msg.NavigationDirection) {
	b.mu.Lock()
	moved := false
	switch d {
	case msg.Back:
		if b.pos > 0 {
			b.pos--
			moved = true
		}
	case msg.Forward:
		if b.pos < len(b.history)-1 {
			b.pos++
			moved = true
		}
	}
	var url string
	if moved {
		url = b.history[b.pos]
	}
	b.mu.Unlock()

	if url == "" {
		b.log.Info("history navigation ignored", "direction", d.String())
		return
	}
	b.pipeline.Script.Chan() <- script.LoadMsg{Pipeline: b.pipeline.ID, URL: url}
}

// CurrentURL is the active history entry.
func (b *Browser) CurrentURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos < 0 {
		return ""
	}
	return b.history[b.pos]
}

// SendEvent delivers a UI event to the root pipeline.
func (b *Browser) SendEvent(ev script.Event) {
	b.pipeline.Script.Chan() <- script.SendEventMsg{Pipeline: b.pipeline.ID, Event: ev}
}

// Resize reports a new window size to the root pipeline.
func (b *Browser) Resize(size geom.Size) {
	b.pipeline.Script.Chan() <- script.ResizeMsg{Pipeline: b.pipeline.ID, Size: size}
}

// WaitLoad blocks until a load completes and returns its url.
func (b *Browser) WaitLoad(ctx context.Context) (string, error) {
	select {
	case url := <-b.loaded:
		return url, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Snapshot asks layout for the current paintable state.
func (b *Browser) Snapshot() layout.DisplayList {
	reply := make(chan layout.DisplayList, 1)
	b.pipeline.Layout.Chan() <- layout.QueryMsg{Query: layout.DisplayQuery{Reply: reply}}
	return <-reply
}

// Close shuts the pipeline down and waits for the script task to stop.
// Safe to call when the task has already stopped.
func (b *Browser) Close() {
	select {
	case b.pipeline.Script.Chan() <- script.ExitPipelineMsg{Pipeline: b.pipeline.ID}:
	case <-b.pipeline.Script.Done():
		return
	}
	select {
	case <-b.pipeline.Script.Done():
	case <-time.After(5 * time.Second):
		b.log.Warn("script task did not exit in time")
	}
}
