// Command plover loads pages headlessly and writes them to PNG files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"plover/internal/config"
	"plover/pkg/browser"
	"plover/pkg/geom"
	"plover/pkg/render"
	"plover/pkg/resource"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "plover",
		Short:         "plover is a small browser engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "plover.yaml", "config file path")
	root.AddCommand(newRenderCmd(&cfgPath))
	return root
}

func newRenderCmd(cfgPath *string) *cobra.Command {
	var (
		output  string
		width   int
		height  int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "render <url>",
		Short: "Load a page headlessly and write it to a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if width <= 0 {
				width = cfg.Window.Width
			}
			if height <= 0 {
				height = cfg.Window.Height
			}
			return renderPage(args[0], output, width, height, timeout, cfg)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "output.png", "output PNG file path")
	cmd.Flags().IntVarP(&width, "width", "w", 0, "viewport width in pixels (defaults to config)")
	cmd.Flags().IntVar(&height, "height", 0, "viewport height in pixels (defaults to config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}

func renderPage(url, output string, width, height int, timeout time.Duration, cfg config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	fetchTimeout, err := cfg.HTTPTimeoutDuration()
	if err != nil {
		return err
	}
	b := browser.New(browser.Config{
		Fetcher:    resource.NewCustomFetcher(fetchTimeout, cfg.UserAgent),
		WindowSize: geom.Size{Width: float64(width), Height: float64(height)},
		Logger:     logger,
	})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- b.Run(ctx) }()

	b.Open(url)
	if _, err := b.WaitLoad(ctx); err != nil {
		return fmt.Errorf("loading %s: %w", url, err)
	}

	list := b.Snapshot()
	r := render.NewRenderer(width, height)
	r.Render(list.Boxes, list.Sheets)
	if err := r.SavePNG(output); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	logger.Info("rendered", "url", url, "boxes", len(list.Boxes), "output", output)

	cancel()
	return <-runDone
}
