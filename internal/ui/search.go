package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Hit is one search result as shown on the search screen.
type Hit struct {
	Score    float32
	Document string
	Span     string
	Text     string
}

// SearchFunc runs a query and returns ranked hits.
type SearchFunc func(ctx context.Context, query string) ([]Hit, error)

type searchDoneMsg struct {
	query   string
	hits    []Hit
	err     error
	elapsed time.Duration
}

// SearchModel is the bubbletea model behind the interactive search screen.
type SearchModel struct {
	ctx     context.Context
	search  SearchFunc
	styles  Styles
	input   textinput.Model
	spinner spinner.Model

	searching bool
	query     string
	hits      []Hit
	err       error
	elapsed   time.Duration
	width     int
}

// NewSearchModel creates a search screen backed by fn.
func NewSearchModel(ctx context.Context, fn SearchFunc, noColor bool) SearchModel {
	ti := textinput.New()
	ti.Placeholder = "type a query and press enter"
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	styles := GetStyles(noColor)
	s.Style = styles.Active

	return SearchModel{
		ctx:     ctx,
		search:  fn,
		styles:  styles,
		input:   ti,
		spinner: s,
		width:   80,
	}
}

// Init implements tea.Model.
func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.searching {
				return m, nil
			}
			m.searching = true
			m.query = q
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.runSearch(q))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case searchDoneMsg:
		m.searching = false
		m.hits = msg.hits
		m.err = msg.err
		m.elapsed = msg.elapsed
		return m, nil

	case spinner.TickMsg:
		if !m.searching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m SearchModel) runSearch(query string) tea.Cmd {
	ctx, fn := m.ctx, m.search
	return func() tea.Msg {
		start := time.Now()
		hits, err := fn(ctx, query)
		return searchDoneMsg{query: query, hits: hits, err: err, elapsed: time.Since(start)}
	}
}

// View implements tea.Model.
func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Header.Render("nextor search"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.searching:
		b.WriteString(m.spinner.View() + " searching...\n")
	case m.err != nil:
		b.WriteString(m.styles.Error.Render("error: "+m.err.Error()) + "\n")
	case m.query != "" && len(m.hits) == 0:
		b.WriteString(m.styles.Dim.Render("no results") + "\n")
	case len(m.hits) > 0:
		b.WriteString(m.styles.Label.Render(fmt.Sprintf("%d results for %q in %s",
			len(m.hits), m.query, m.elapsed.Round(time.Millisecond))))
		b.WriteString("\n\n")
		panelWidth := m.width - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		for i, h := range m.hits {
			header := lipgloss.JoinHorizontal(lipgloss.Top,
				m.styles.Score.Render(fmt.Sprintf("%.3f", h.Score)), "  ",
				m.styles.Stage.Render(h.Document), " ",
				m.styles.Label.Render(h.Span))
			body := header + "\n" + strings.TrimSpace(h.Text)
			b.WriteString(m.styles.Panel.Width(panelWidth).Render(body))
			if i < len(m.hits)-1 {
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + m.styles.Dim.Render("enter: search  esc: quit"))
	return b.String()
}

// RunSearch starts the interactive search screen and blocks until the user
// quits or ctx is cancelled.
func RunSearch(ctx context.Context, fn SearchFunc, noColor bool) error {
	p := tea.NewProgram(NewSearchModel(ctx, fn, noColor), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
