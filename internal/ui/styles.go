package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette.
const (
	ColorAccent = "44"  // teal
	ColorMuted  = "30"  // dark teal
	ColorText   = "252" // near white
	ColorLabel  = "245"
	ColorFaint  = "240"
	ColorWarn   = "214" // amber
	ColorFail   = "203"
)

// Styles are the lipgloss styles shared by the renderers and the search
// screen.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Stage   lipgloss.Style
	Active  lipgloss.Style

	Panel lipgloss.Style
	Score lipgloss.Style
	Label lipgloss.Style
}

// GetStyles returns the colored styles, or plain ones when noColor is set.
func GetStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Header: plain, Success: plain, Warning: plain, Error: plain,
			Dim: plain, Stage: plain, Active: plain,
			Panel: plain, Score: plain, Label: plain,
		}
	}

	fg := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return Styles{
		Header:  fg(ColorAccent).Bold(true),
		Success: fg(ColorAccent),
		Warning: fg(ColorWarn),
		Error:   fg(ColorFail).Bold(true),
		Dim:     fg(ColorFaint),
		Stage:   fg(ColorMuted),
		Active:  fg(ColorText).Bold(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorMuted)).
			Padding(0, 1),
		Score: fg(ColorAccent).Bold(true),
		Label: fg(ColorLabel),
	}
}
