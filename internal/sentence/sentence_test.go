package sentence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MerijnSC/RAG-project/internal/span"
)

func texts(text string, spans []span.Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Slice(text)
	}
	return out
}

func TestRuleSplitter_Split(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two sentences",
			text: "Cats sleep. Dogs run.",
			want: []string{"Cats sleep.", "Dogs run."},
		},
		{
			name: "mixed terminals and closers",
			text: `He asked "why?" She left! Done`,
			want: []string{`He asked "why?"`, "She left!", "Done"},
		},
		{
			name: "decimal point does not split",
			text: "Pi is 3.14 roughly. Yes.",
			want: []string{"Pi is 3.14 roughly.", "Yes."},
		},
		{
			name: "ellipsis run",
			text: "Wait... what?! Ok.",
			want: []string{"Wait...", "what?!", "Ok."},
		},
		{
			name: "markdown heading and paragraphs",
			text: "# Title\nFirst paragraph line\ncontinues here\n\nSecond para.",
			want: []string{"# Title", "First paragraph line\ncontinues here", "Second para."},
		},
		{
			name: "heading after text",
			text: "Intro text\n## Section\nBody.",
			want: []string{"Intro text", "## Section", "Body."},
		},
		{
			name: "full width punctuation",
			text: "猫は寝る。犬は走る。",
			want: []string{"猫は寝る。", "犬は走る。"},
		},
		{
			name: "whitespace only",
			text: "  \n\t ",
			want: nil,
		},
	}

	s := NewRuleSplitter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Split(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, texts(tt.text, got))
		})
	}
}

func TestRuleSplitter_SpansOrderedAndTrimmed(t *testing.T) {
	text := "  Rain falls.   Sun shines.  \n\n  Wind blows  "
	spans := NewRuleSplitter().Split(text)

	require.Len(t, spans, 3)
	for i, sp := range spans {
		assert.True(t, sp.Valid(len(text)))
		assert.NotEqual(t, ' ', text[sp.Start])
		assert.NotEqual(t, ' ', text[sp.End-1])
		if i > 0 {
			assert.LessOrEqual(t, spans[i-1].End, sp.Start)
		}
	}
	assert.Equal(t, span.New(2, 13), spans[0])
}
