package mcp

import (
	"fmt"
	"math"
	"strings"

	"github.com/MerijnSC/RAG-project/internal/corpus"
)

// roundScore rounds a similarity to 3 decimals.
func roundScore(score float32) float64 {
	return math.Round(float64(score)*1000) / 1000
}

// ToSearchResultOutput converts a corpus hit to the tool output format.
// file is the path of the stored document text.
func ToSearchResultOutput(r corpus.Result, file string) SearchResultOutput {
	return SearchResultOutput{
		Score: roundScore(r.Score),
		File:  file,
		Span:  [2]int{r.Span.Start, r.Span.End},
		Text:  r.Text,
	}
}

// FormatSearchResults formats passages as markdown.
func FormatSearchResults(query string, results []SearchResultOutput) string {
	if len(results) == 0 {
		return fmt.Sprintf("No passages found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Passages for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s [%d:%d] (score: %.3f)\n\n", i+1, r.File, r.Span[0], r.Span[1], r.Score)
		for _, line := range strings.Split(strings.TrimRight(r.Text, "\n"), "\n") {
			sb.WriteString("> ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
