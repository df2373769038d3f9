package pooling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/span"
)

func TestAggregate_MeanThenNormalize(t *testing.T) {
	// Given: two sentences over four tokens
	tokens := [][]float32{{2, 0}, {0, 2}, {3, 0}, {5, 0}}
	tokSpans := []span.Span{{Start: 0, End: 3}, {Start: 4, End: 7}, {Start: 10, End: 12}, {Start: 13, End: 15}}
	sentences := []span.Span{{Start: 0, End: 8}, {Start: 10, End: 16}}

	// When: aggregating
	res, err := NewAggregator(0, nil).Aggregate(tokens, tokSpans, sentences)
	require.NoError(t, err)

	// Then: each sentence is the normalized mean of its tokens
	require.Len(t, res.Embeddings, 2)
	assert.Equal(t, sentences, res.Spans)
	assert.InDelta(t, 0.70710677, res.Embeddings[0][0], 1e-6)
	assert.InDelta(t, 0.70710677, res.Embeddings[0][1], 1e-6)
	assert.InDelta(t, 1.0, res.Embeddings[1][0], 1e-6)
	assert.Zero(t, res.Skipped)
	assert.False(t, res.Truncated)
}

func TestAggregate_StraddlingTokenExcluded(t *testing.T) {
	// Given: a token crossing the sentence boundary
	tokens := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	tokSpans := []span.Span{{Start: 0, End: 2}, {Start: 3, End: 7}, {Start: 8, End: 9}}
	sentences := []span.Span{{Start: 0, End: 5}, {Start: 5, End: 10}}

	res, err := NewAggregator(0, nil).Aggregate(tokens, tokSpans, sentences)
	require.NoError(t, err)

	// Then: the straddling token counts for neither sentence
	require.Len(t, res.Embeddings, 2)
	assert.Equal(t, []float32{1, 0}, res.Embeddings[0])
	assert.InDelta(t, 0.70710677, res.Embeddings[1][1], 1e-6)
}

func TestAggregate_EmptySentenceSkipped(t *testing.T) {
	// Given: a middle sentence with no tokens in it
	tokens := [][]float32{{1, 0}, {0, 1}}
	tokSpans := []span.Span{{Start: 0, End: 2}, {Start: 10, End: 12}}
	sentences := []span.Span{{Start: 0, End: 3}, {Start: 4, End: 8}, {Start: 9, End: 13}}

	// When: aggregating
	res, err := NewAggregator(0, nil).Aggregate(tokens, tokSpans, sentences)
	require.NoError(t, err)

	// Then: the empty sentence is dropped from spans and embeddings
	assert.Equal(t, []span.Span{{Start: 0, End: 3}, {Start: 9, End: 13}}, res.Spans)
	assert.Len(t, res.Embeddings, 2)
	assert.Equal(t, 1, res.Skipped)
}

func TestAggregate_MaxSentences(t *testing.T) {
	tokens := [][]float32{{1}, {1}, {1}, {1}}
	tokSpans := []span.Span{{Start: 0, End: 1}, {Start: 2, End: 3}, {Start: 4, End: 5}, {Start: 6, End: 7}}
	sentences := []span.Span{{Start: 0, End: 1}, {Start: 2, End: 3}, {Start: 4, End: 5}, {Start: 6, End: 7}}

	res, err := NewAggregator(2, nil).Aggregate(tokens, tokSpans, sentences)
	require.NoError(t, err)

	assert.Len(t, res.Spans, 2)
	assert.True(t, res.Truncated)

	res, err = NewAggregator(4, nil).Aggregate(tokens, tokSpans, sentences)
	require.NoError(t, err)
	assert.Len(t, res.Spans, 4)
	assert.False(t, res.Truncated)
}

func TestAggregate_UnitNorm(t *testing.T) {
	enc := embed.NewStaticTokenEncoder(32, 64)
	ids := sequence(20)
	hidden, err := enc.EncodeWindows(t.Context(), [][]int{ids})
	require.NoError(t, err)

	tokSpans := make([]span.Span, 20)
	for i := range tokSpans {
		tokSpans[i] = span.New(i*5, i*5+4)
	}
	sentences := []span.Span{{Start: 0, End: 25}, {Start: 25, End: 60}, {Start: 60, End: 100}}

	res, err := NewAggregator(0, nil).Aggregate(hidden[0], tokSpans, sentences)
	require.NoError(t, err)
	for _, v := range res.Embeddings {
		assert.InDelta(t, 1.0, embed.Norm(v), 1e-5)
	}
}

func TestAggregate_LengthMismatch(t *testing.T) {
	_, err := NewAggregator(0, nil).Aggregate([][]float32{{1}}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeEncoderShape, nxerrors.GetCode(err))
}

func TestAggregate_NoSentences(t *testing.T) {
	res, err := NewAggregator(0, nil).Aggregate(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Spans)
	assert.Empty(t, res.Embeddings)
}
