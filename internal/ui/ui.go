// Package ui renders progress and reports for terminals, with a plain
// fallback for pipes and CI.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/vulnscout/vulnscout/internal/run"
)

// Config selects output destination and styling.
type Config struct {
	Output  io.Writer
	NoColor bool
}

// Renderer displays run progress.
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles

	lastStage string
}

// NewRenderer picks styled or plain output. Styling is disabled when the
// writer is not a terminal or NoColor is set.
func NewRenderer(cfg Config) *Renderer {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	styled := !cfg.NoColor
	if f, ok := out.(*os.File); ok {
		if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			styled = false
		}
	}

	styles := NoColorStyles()
	if styled {
		styles = DefaultStyles()
	}
	return &Renderer{out: out, styles: styles}
}

// Watch consumes progress events until the channel closes. Run it in its
// own goroutine; event emission on the producer side never blocks on it.
func (r *Renderer) Watch(events <-chan run.ProgressEvent) {
	for ev := range events {
		r.Update(ev)
	}
}

// Update prints one progress line per stage change or significant tick.
func (r *Renderer) Update(ev run.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stage := r.styles.Stage.Render(fmt.Sprintf("%-14s", ev.Stage))
	pct := r.styles.Progress.Render(fmt.Sprintf("%3d%%", ev.Percent))
	if ev.Stage != r.lastStage || ev.Message != "" {
		fmt.Fprintf(r.out, "%s %s %s\n", pct, stage, r.styles.Label.Render(ev.Message))
	}
	r.lastStage = ev.Stage
}

// Successf prints a styled success line.
func (r *Renderer) Successf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints a styled error line.
func (r *Renderer) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.styles.Error.Render(fmt.Sprintf(format, args...)))
}
