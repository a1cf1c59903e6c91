package browser

import (
	"log/slog"

	"plover/pkg/geom"
	"plover/pkg/msg"
)

// LogCompositor is the headless UI surface: it records what a real surface
// would display. Used by the CLI and whenever no window exists.
type LogCompositor struct {
	log *slog.Logger
}

func NewLogCompositor(logger *slog.Logger) *LogCompositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCompositor{log: logger}
}

func (c *LogCompositor) SetReadyState(id msg.PipelineID, state msg.ReadyState) {
	c.log.Debug("ready state", "pipeline", int(id), "state", state.String())
}

func (c *LogCompositor) ScrollFragmentPoint(id msg.PipelineID, pt geom.Point) {
	c.log.Debug("scroll to fragment", "pipeline", int(id), "x", pt.X, "y", pt.Y)
}

func (c *LogCompositor) Close() {
	c.log.Info("window close requested")
}
