// Package ui provides terminal UI components: ingestion progress renderers,
// the status report, and the interactive search screen.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a step of ingesting one document.
type Stage int

const (
	StageDiscover Stage = iota
	StageConvert
	StageEncode
	StageStore
	StageComplete
)

var stageNames = [...]struct{ name, icon string }{
	StageDiscover: {"Discovering", "SCAN"},
	StageConvert:  {"Converting", "CONV"},
	StageEncode:   {"Encoding", "EMBED"},
	StageStore:    {"Storing", "STORE"},
	StageComplete: {"Complete", "DONE"},
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s].name
}

// Icon is the fixed-width tag printed by the plain renderer.
func (s Stage) Icon() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "???"
	}
	return stageNames[s].icon
}

// ProgressEvent reports that CurrentFile reached Stage. Current and Total
// count documents, Total is 0 until discovery finishes.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent reports a document that failed (or was skipped, with IsWarn).
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats summarises an ingestion run.
type CompletionStats struct {
	Documents  int
	Sentences  int
	Skipped    int
	Failed     int
	Duration   time.Duration
	Model      string
	Dimensions int
}

// Renderer displays ingestion progress. Implementations must accept calls
// from several worker goroutines.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config selects and configures a Renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// NewConfig builds a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the progress bar on an interactive terminal and the
// plain renderer everywhere else.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || DetectCI() || !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}
	return NewBarRenderer(cfg)
}

// Nop is a Renderer that discards everything.
type Nop struct{}

func (Nop) Start(context.Context) error  { return nil }
func (Nop) UpdateProgress(ProgressEvent) {}
func (Nop) AddError(ErrorEvent)          {}
func (Nop) Complete(CompletionStats)     {}
func (Nop) Stop() error                  { return nil }

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set, whatever its value.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

var ciEnv = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE", "JENKINS_URL"}

// DetectCI reports whether a known CI variable is set.
func DetectCI() bool {
	for _, v := range ciEnv {
		if _, set := os.LookupEnv(v); set {
			return true
		}
	}
	return false
}
