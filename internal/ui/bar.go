package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// BarRenderer draws a single progress bar that advances once per document.
// Errors are printed above the bar.
type BarRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	bar    *progressbar.ProgressBar
	total  int
	done   map[string]bool
}

// NewBarRenderer creates a progress bar renderer.
func NewBarRenderer(cfg Config) *BarRenderer {
	return &BarRenderer{
		out:    cfg.Output,
		styles: GetStyles(cfg.NoColor || DetectNoColor()),
		done:   make(map[string]bool),
	}
}

func (r *BarRenderer) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Start implements Renderer.
func (r *BarRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. The bar is sized by the first event
// that carries a total, and a document counts as done when it reaches
// StageStore.
func (r *BarRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil && event.Total > 0 {
		r.total = event.Total
		r.bar = r.newBar(event.Total)
	}
	if r.bar == nil {
		return
	}

	if event.CurrentFile != "" {
		r.bar.Describe(fmt.Sprintf("%-5s %s", event.Stage.Icon(), event.CurrentFile))
	}
	if event.Stage == StageStore && event.CurrentFile != "" && !r.done[event.CurrentFile] {
		r.done[event.CurrentFile] = true
		_ = r.bar.Add(1)
	}
}

// AddError implements Renderer.
func (r *BarRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil {
		_ = r.bar.Clear()
	}
	style := r.styles.Error
	if event.IsWarn {
		style = r.styles.Warning
	}
	_, _ = fmt.Fprintln(r.out, style.Render(formatError(event)))
}

// Complete implements Renderer.
func (r *BarRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil {
		_ = r.bar.Finish()
	}
	writeSummary(r.out, stats)
}

// Stop implements Renderer.
func (r *BarRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil {
		return r.bar.Exit()
	}
	return nil
}
