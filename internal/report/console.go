// Package report turns watcher events into output: coloured status lines
// for a terminal, or structured zap records for log collectors.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/lc/confwatch/internal/appconfig"
	"github.com/lc/confwatch/internal/watcher"
)

const indent = "   "

var (
	okColor     = color.New(color.FgGreen, color.Bold)
	updateColor = color.New(color.FgHiCyan, color.Bold)
	infoColor   = color.New(color.FgHiWhite)
	failColor   = color.New(color.FgHiRed, color.Bold)
	warnColor   = color.New(color.FgYellow, color.Bold)
	dimColor    = color.New(color.Faint)
)

// Console writes informational events to out and failures to errOut.
type Console struct {
	out    io.Writer
	errOut io.Writer
}

var _ watcher.Observer = (*Console)(nil)

// NewConsole returns a Console writing to the given streams.
func NewConsole(out, errOut io.Writer) *Console {
	return &Console{out: out, errOut: errOut}
}

// Start prints the banner shown before the initial load.
func (c *Console) Start(path string, interval time.Duration) {
	updateColor.Fprint(c.out, "Watching ")
	infoColor.Fprintln(c.out, path)
	dimColor.Fprintf(c.out, "%sCheck interval: %s\n", indent, interval)
	dimColor.Fprintf(c.out, "%sPress Ctrl+C to stop\n\n", indent)
}

// Stop prints the shutdown line.
func (c *Console) Stop() {
	fmt.Fprintln(c.out, "\nShutting down gracefully...")
}

// Observe prints one event.
func (c *Console) Observe(ev watcher.Event) {
	switch ev.Kind {
	case watcher.EventLoaded:
		okColor.Fprintln(c.out, "✓ Initial configuration loaded successfully")
		c.summary(ev.Config)

	case watcher.EventInitialLoadFailed:
		failColor.Fprint(c.errOut, "✗ Failed to load initial configuration: ")
		infoColor.Fprintln(c.errOut, ev.Err)
		dimColor.Fprintln(c.errOut, indent+"Waiting for a valid configuration...")
		io.WriteString(c.errOut, "\n")

	case watcher.EventUpdated:
		updateColor.Fprintln(c.out, "↻ Configuration has been updated")
		for _, line := range appconfig.Diff(ev.Previous, ev.Config) {
			dimColor.Fprintln(c.out, indent+"~ "+line)
		}
		c.summary(ev.Config)

	case watcher.EventContentUnchanged:
		infoColor.Fprintln(c.out, "• File modified but content unchanged")

	case watcher.EventReloadFailed:
		failColor.Fprint(c.errOut, "✗ Configuration reload failed: ")
		infoColor.Fprintln(c.errOut, ev.Err)
		dimColor.Fprintln(c.errOut, indent+"Keeping last valid configuration")
		io.WriteString(c.errOut, "\n")

	case watcher.EventCheckError:
		warnColor.Fprint(c.errOut, "! Error checking file: ")
		infoColor.Fprintln(c.errOut, ev.Err)
	}
}

func (c *Console) summary(cfg *appconfig.Config) {
	if cfg == nil {
		return
	}
	for _, line := range cfg.Summarize().Lines() {
		infoColor.Fprintln(c.out, indent+line)
	}
	io.WriteString(c.out, "\n")
}
