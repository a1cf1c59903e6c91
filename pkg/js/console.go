package js

import (
	"log/slog"
	"strings"

	"github.com/dop251/goja"
)

// consoleAPI implements console.log, console.warn, and console.error,
// routed through the owning task's logger.
type consoleAPI struct {
	log *slog.Logger
}

func (c *consoleAPI) register(vm *goja.Runtime) {
	console := vm.NewObject()
	console.Set("log", c.logFn)
	console.Set("warn", c.warnFn)
	console.Set("error", c.errorFn)
	vm.Set("console", console)
}

func (c *consoleAPI) logFn(call goja.FunctionCall) goja.Value {
	c.log.Info("console: " + formatArgs(call.Arguments))
	return goja.Undefined()
}

func (c *consoleAPI) warnFn(call goja.FunctionCall) goja.Value {
	c.log.Warn("console: " + formatArgs(call.Arguments))
	return goja.Undefined()
}

func (c *consoleAPI) errorFn(call goja.FunctionCall) goja.Value {
	c.log.Error("console: " + formatArgs(call.Arguments))
	return goja.Undefined()
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
