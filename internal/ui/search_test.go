package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSearch(hits []Hit, err error) SearchFunc {
	return func(ctx context.Context, query string) ([]Hit, error) {
		return hits, err
	}
}

func TestSearchModel_EnterStartsSearch(t *testing.T) {
	// Given: a model with a typed query
	m := NewSearchModel(context.Background(), fixedSearch(nil, nil), true)
	m.input.SetValue("  quarterly revenue ")

	// When: pressing enter
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	sm := next.(SearchModel)

	// Then: a search is in flight for the trimmed query
	assert.True(t, sm.searching)
	assert.Equal(t, "quarterly revenue", sm.query)
	assert.NotNil(t, cmd)
	assert.Contains(t, sm.View(), "searching")
}

func TestSearchModel_EnterIgnoresBlankQuery(t *testing.T) {
	// Given: a model with only whitespace typed
	m := NewSearchModel(context.Background(), fixedSearch(nil, nil), true)
	m.input.SetValue("   ")

	// When: pressing enter
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	// Then: nothing happens
	assert.False(t, next.(SearchModel).searching)
	assert.Nil(t, cmd)
}

func TestSearchModel_RendersHits(t *testing.T) {
	// Given: a search function with two hits
	hits := []Hit{
		{Score: 0.912, Document: "report", Span: "[0, 20)", Text: "Revenue grew in Q3."},
		{Score: 0.5, Document: "notes", Span: "[4, 9)", Text: "other"},
	}
	m := NewSearchModel(context.Background(), fixedSearch(hits, nil), true)
	m.query = "revenue"
	m.searching = true

	// When: the search command completes
	msg := m.runSearch("revenue")()
	next, _ := m.Update(msg)
	view := next.(SearchModel).View()

	// Then: results are shown with scores and documents
	assert.Contains(t, view, "2 results")
	assert.Contains(t, view, "0.912")
	assert.Contains(t, view, "report")
	assert.Contains(t, view, "Revenue grew in Q3.")
}

func TestSearchModel_RendersError(t *testing.T) {
	// Given: a failing search function
	m := NewSearchModel(context.Background(), fixedSearch(nil, errors.New("query is empty")), true)
	m.query = "x"

	// When: the result arrives
	next, _ := m.Update(searchDoneMsg{query: "x", err: errors.New("query is empty"), elapsed: time.Millisecond})

	// Then: the error is shown
	assert.Contains(t, next.(SearchModel).View(), "error: query is empty")
}

func TestSearchModel_NoResults(t *testing.T) {
	m := NewSearchModel(context.Background(), fixedSearch(nil, nil), true)

	next, _ := m.Update(searchDoneMsg{query: "nothing"})
	sm := next.(SearchModel)
	sm.query = "nothing"

	assert.Contains(t, sm.View(), "no results")
}

func TestSearchModel_EscQuits(t *testing.T) {
	m := NewSearchModel(context.Background(), fixedSearch(nil, nil), true)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}
