// Command plovershow is the windowed shell: a fyne window around the
// engine, with a URL bar, history buttons, and input forwarding.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"plover/internal/config"
	"plover/pkg/browser"
	"plover/pkg/geom"
	"plover/pkg/msg"
	"plover/pkg/render"
	"plover/pkg/resource"
	"plover/pkg/script"
)

func main() {
	cfgPath := flag.String("config", "plover.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	width, height := cfg.Window.Width, cfg.Window.Height

	a := app.New()
	w := a.NewWindow("plover")
	w.Resize(fyne.NewSize(float32(width), float32(height)+80))

	canvasImg := canvas.NewImageFromImage(render.NewRenderer(width, height).Image())
	canvasImg.FillMode = canvas.ImageFillOriginal

	status := widget.NewLabel("Enter a URL and press Enter")

	fetchTimeout, err := cfg.HTTPTimeoutDuration()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	b := browser.New(browser.Config{
		Compositor: &uiCompositor{status: status, win: w},
		Fetcher:    resource.NewCustomFetcher(fetchTimeout, cfg.UserAgent),
		WindowSize: geom.Size{Width: float64(width), Height: float64(height)},
		Logger:     logger,
	})

	view := newPageView(canvasImg, b.SendEvent, b.Resize)

	urlEntry := widget.NewEntry()
	urlEntry.SetPlaceHolder("https://example.com")
	urlEntry.OnSubmitted = func(url string) {
		status.SetText("Loading " + url + "...")
		b.Open(url)
	}

	back := widget.NewButton("<", func() { b.Navigate(msg.Back) })
	forward := widget.NewButton(">", func() { b.Navigate(msg.Forward) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := b.Run(ctx); err != nil {
			logger.Error("browser stopped", "err", err)
		}
	}()

	// Repaint whenever a load completes.
	go func() {
		for {
			url, err := b.WaitLoad(ctx)
			if err != nil {
				return
			}
			list := b.Snapshot()
			r := render.NewRenderer(width, height)
			r.Render(list.Boxes, list.Sheets)
			canvasImg.Image = r.Image()
			canvasImg.Refresh()
			status.SetText(url)
			urlEntry.SetText(url)
			w.SetTitle("plover - " + url)
		}
	}()

	topBar := container.NewBorder(nil, nil, container.NewHBox(back, forward), nil, urlEntry)
	w.SetContent(container.NewBorder(topBar, status, nil, nil, view))
	w.SetOnClosed(func() {
		cancel()
		b.Close()
	})

	w.Canvas().Focus(urlEntry)
	if cfg.Homepage != "" {
		urlEntry.SetText(cfg.Homepage)
		b.Open(cfg.Homepage)
	}
	w.ShowAndRun()
}

// uiCompositor is the window's side of the compositor protocol.
type uiCompositor struct {
	status *widget.Label
	win    fyne.Window
}

func (c *uiCompositor) SetReadyState(id msg.PipelineID, state msg.ReadyState) {
	c.status.SetText(state.String())
}

func (c *uiCompositor) ScrollFragmentPoint(id msg.PipelineID, pt geom.Point) {
	c.status.SetText(fmt.Sprintf("scrolled to %.0f,%.0f", pt.X, pt.Y))
}

func (c *uiCompositor) Close() {
	c.win.Close()
}

// pageView displays the rendered page and forwards pointer input to the
// engine as events.
type pageView struct {
	widget.BaseWidget
	img      *canvas.Image
	onEvent  func(script.Event)
	onResize func(geom.Size)
}

func newPageView(img *canvas.Image, onEvent func(script.Event), onResize func(geom.Size)) *pageView {
	v := &pageView{img: img, onEvent: onEvent, onResize: onResize}
	v.ExtendBaseWidget(v)
	return v
}

// Resize forwards viewport size changes to the engine, which coalesces
// them and reflows when layout is idle.
func (v *pageView) Resize(size fyne.Size) {
	v.BaseWidget.Resize(size)
	if size.Width > 0 && size.Height > 0 {
		v.onResize(geom.Size{Width: float64(size.Width), Height: float64(size.Height)})
	}
}

func (v *pageView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.img)
}

func (v *pageView) Tapped(e *fyne.PointEvent) {
	v.onEvent(script.ClickEvent{Button: 0, Point: pointOf(e.Position)})
}

func (v *pageView) MouseIn(e *desktop.MouseEvent) {
	v.onEvent(script.MouseMoveEvent{Point: pointOf(e.Position)})
}

func (v *pageView) MouseMoved(e *desktop.MouseEvent) {
	v.onEvent(script.MouseMoveEvent{Point: pointOf(e.Position)})
}

func (v *pageView) MouseOut() {
	v.onEvent(script.MouseMoveEvent{Point: geom.Point{X: -1, Y: -1}})
}

func pointOf(p fyne.Position) geom.Point {
	return geom.Point{X: float64(p.X), Y: float64(p.Y)}
}
