package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the state of a storage root.
type StatusInfo struct {
	StorageRoot string    `json:"storage_root"`
	Documents   int       `json:"documents"`
	Incomplete  int       `json:"incomplete"`
	Sentences   int       `json:"sentences"`
	Dimensions  int       `json:"dimensions"`
	Model       string    `json:"model,omitempty"`
	LastIngest  time.Time `json:"last_ingest"`
	LastRunID   string    `json:"last_run_id,omitempty"`
	Locked      bool      `json:"locked"`

	// Storage sizes (in bytes)
	TextSize    int64 `json:"text_size"`
	VectorSize  int64 `json:"vector_size"`
	CatalogSize int64 `json:"catalog_size"`
	TotalSize   int64 `json:"total_size"`

	// Component status
	EmbedderType   string `json:"embedder_type"`
	EmbedderStatus string `json:"embedder_status"` // "ready", "offline", "error"
	EmbedderModel  string `json:"embedder_model,omitempty"`
	EncoderMode    string `json:"encoder_mode"`
}

// StatusRenderer displays storage status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Corpus Status: "+info.StorageRoot))

	_, _ = fmt.Fprintf(r.out, "  Documents:    %d\n", info.Documents)
	if info.Incomplete > 0 {
		_, _ = fmt.Fprintf(r.out, "  Incomplete:   %s\n", r.styles.Warning.Render(fmt.Sprintf("%d", info.Incomplete)))
	}
	_, _ = fmt.Fprintf(r.out, "  Sentences:    %d\n", info.Sentences)
	if info.Dimensions > 0 {
		_, _ = fmt.Fprintf(r.out, "  Vectors:      %d dims (%s)\n", info.Dimensions, info.Model)
	}
	if !info.LastIngest.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last ingest:  %s\n", formatTime(info.LastIngest))
	}
	if info.Locked {
		_, _ = fmt.Fprintf(r.out, "  Writer:       %s\n", r.renderStatus("running"))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Text:       %s\n", FormatBytes(info.TextSize))
	_, _ = fmt.Fprintf(r.out, "    Vectors:    %s\n", FormatBytes(info.VectorSize))
	_, _ = fmt.Fprintf(r.out, "    Catalog:    %s\n", FormatBytes(info.CatalogSize))
	_, _ = fmt.Fprintf(r.out, "    Total:      %s\n", FormatBytes(info.TotalSize))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embedder:")
	_, _ = fmt.Fprintf(r.out, "    Type:   %s (%s mode)\n", info.EmbedderType, info.EncoderMode)
	_, _ = fmt.Fprintf(r.out, "    Status: %s\n", r.renderStatus(info.EmbedderStatus))
	if info.EmbedderModel != "" {
		_, _ = fmt.Fprintf(r.out, "    Model:  %s\n", info.EmbedderModel)
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
