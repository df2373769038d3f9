// Package output formats command results for the terminal and for scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/MerijnSC/RAG-project/internal/corpus"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// ValidFormat reports whether f is a supported output format.
func ValidFormat(f string) bool {
	return f == FormatText || f == FormatJSON
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints a block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// SearchResult is the serialized form of one hit.
type SearchResult struct {
	Rank     int     `json:"rank"`
	Score    float64 `json:"score"`
	Document string  `json:"document"`
	Span     [2]int  `json:"span"`
	Text     string  `json:"text"`
}

// SearchResponse is the JSON document written by Results.
type SearchResponse struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// Results writes search hits in the given format.
func (w *Writer) Results(query string, results []corpus.Result, format string) error {
	resp := SearchResponse{
		Query:   query,
		Count:   len(results),
		Results: make([]SearchResult, 0, len(results)),
	}
	for i, r := range results {
		resp.Results = append(resp.Results, SearchResult{
			Rank:     i + 1,
			Score:    math.Round(float64(r.Score)*1000) / 1000,
			Document: r.DocumentID,
			Span:     [2]int{r.Span.Start, r.Span.End},
			Text:     r.Text,
		})
	}

	switch format {
	case FormatJSON:
		return w.JSON(resp)
	case FormatText, "":
		w.resultsText(resp)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", format)
	}
}

func (w *Writer) resultsText(resp SearchResponse) {
	if resp.Count == 0 {
		w.Statusf("🔍", "No results for %q", resp.Query)
		return
	}
	noun := "results"
	if resp.Count == 1 {
		noun = "result"
	}
	w.Statusf("🔍", "%d %s for %q", resp.Count, noun, resp.Query)
	for _, r := range resp.Results {
		_, _ = fmt.Fprintf(w.out, "\n%d. %s [%d:%d] score %.3f\n", r.Rank, r.Document, r.Span[0], r.Span[1], r.Score)
		for _, line := range strings.Split(strings.TrimRight(r.Text, "\n"), "\n") {
			_, _ = fmt.Fprintf(w.out, "   %s\n", line)
		}
	}
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
