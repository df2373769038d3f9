package encoder

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/pooling"
	"github.com/MerijnSC/RAG-project/internal/sentence"
	"github.com/MerijnSC/RAG-project/internal/tokenize"
)

const threeSentences = "The cat sat on the mat. Dogs bark at night! Where is the library?"

func newPooledForTest(t *testing.T, mode pooling.Mode) Encoder {
	t.Helper()
	reg := embed.NewRegistry(nil)
	t.Cleanup(func() { _ = reg.Close() })

	enc, err := New(context.Background(), reg, Config{
		Mode:  ModePooled,
		Embed: embed.Options{Provider: embed.ProviderStatic, Dimensions: 64, MaxLength: 32},
		Pooling: pooling.Options{
			ContextLength: 8,
			Stride:        4,
			BatchSize:     2,
			Mode:          mode,
		},
	}, nil)
	require.NoError(t, err)
	return enc
}

// recordingEmbedder records the batches it receives.
type recordingEmbedder struct {
	*embed.StaticEmbedder
	mu      sync.Mutex
	batches [][]string
}

func (r *recordingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), texts...))
	r.mu.Unlock()
	return r.StaticEmbedder.EmbedBatch(ctx, texts)
}

// fixedEmbedder answers every batch with the same vectors.
type fixedEmbedder struct {
	*embed.StaticEmbedder
	vecs [][]float32
}

func (f fixedEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return f.vecs, nil
}

// ============================================================================
// TS01: Pooled Mode
// ============================================================================

func TestPooled_EncodeDocument(t *testing.T) {
	// Given: a pooled encoder with windows shorter than the document
	enc := newPooledForTest(t, pooling.ModeSum)

	// When: encoding three sentences
	out, err := enc.EncodeDocument(context.Background(), threeSentences)
	require.NoError(t, err)

	// Then: one unit vector per sentence, spans in order
	require.Equal(t, 3, out.Len())
	require.Len(t, out.Embeddings, 3)
	assert.Equal(t, "The cat sat on the mat.", out.Spans[0].Slice(threeSentences))
	assert.Equal(t, "Where is the library?", out.Spans[2].Slice(threeSentences))
	for _, v := range out.Embeddings {
		assert.Len(t, v, 64)
		assert.InDelta(t, 1.0, embed.Norm(v), 1e-5)
	}
}

func TestPooled_EmptyDocument(t *testing.T) {
	enc := newPooledForTest(t, pooling.ModeSum)

	out, err := enc.EncodeDocument(context.Background(), "   \n ")
	require.NoError(t, err)
	assert.Zero(t, out.Len())
}

func TestPooled_QueryMatchesOwnSentence(t *testing.T) {
	// Given: token vectors that do not depend on context, weighted pooling
	enc := newPooledForTest(t, pooling.ModeWeighted)
	out, err := enc.EncodeDocument(context.Background(), threeSentences)
	require.NoError(t, err)

	// When: querying with the second sentence verbatim
	q, err := enc.EncodeQuery(context.Background(), "Dogs bark at night!")
	require.NoError(t, err)

	// Then: it scores highest against that sentence
	best, bestScore := -1, float32(-2)
	for i, v := range out.Embeddings {
		if s := embed.Dot(q, v); s > bestScore {
			best, bestScore = i, s
		}
	}
	assert.Equal(t, 1, best)
	assert.InDelta(t, 1.0, bestScore, 1e-4)
}

func TestPooled_QueryErrors(t *testing.T) {
	enc := newPooledForTest(t, pooling.ModeSum)

	_, err := enc.EncodeQuery(context.Background(), "  ")
	assert.Equal(t, nxerrors.ErrCodeQueryEmpty, nxerrors.GetCode(err))

	_, err = enc.EncodeQuery(context.Background(), "?!...")
	assert.Equal(t, nxerrors.ErrCodeInvalidQuery, nxerrors.GetCode(err))
}

// ============================================================================
// TS02: Sentence Mode
// ============================================================================

func TestDirect_TokenBudgetBatching(t *testing.T) {
	// Given: sentences of 3, 3, 5 and 1 tokens and a budget of 6
	tok := tokenize.NewWordTokenizer(0)
	rec := &recordingEmbedder{StaticEmbedder: embed.NewStaticEmbedder(32, tok)}
	d := NewDirect(rec, tok, sentence.NewRuleSplitter(), DirectOptions{MaxTokensPerBatch: 6}, nil)
	text := "One two three. Four five six. A b c d e. Done."

	// When: encoding
	out, err := d.EncodeDocument(context.Background(), text)
	require.NoError(t, err)

	// Then: sentences are packed greedily into two requests
	require.Equal(t, 4, out.Len())
	assert.Equal(t, [][]string{
		{"One two three.", "Four five six."},
		{"A b c d e.", "Done."},
	}, rec.batches)
	for _, v := range out.Embeddings {
		assert.InDelta(t, 1.0, embed.Norm(v), 1e-5)
	}
}

func TestDirect_OversizedSentenceGoesAlone(t *testing.T) {
	tok := tokenize.NewWordTokenizer(0)
	rec := &recordingEmbedder{StaticEmbedder: embed.NewStaticEmbedder(32, tok)}
	d := NewDirect(rec, tok, sentence.NewRuleSplitter(), DirectOptions{MaxTokensPerBatch: 2}, nil)

	out, err := d.EncodeDocument(context.Background(), "a b c d. e.")
	require.NoError(t, err)

	assert.Equal(t, 2, out.Len())
	assert.Equal(t, [][]string{{"a b c d."}, {"e."}}, rec.batches)
}

func TestDirect_SkipsAndCaps(t *testing.T) {
	tok := tokenize.NewWordTokenizer(0)
	d := NewDirect(embed.NewStaticEmbedder(32, tok), tok, sentence.NewRuleSplitter(),
		DirectOptions{MaxSentences: 2}, nil)

	out, err := d.EncodeDocument(context.Background(), "First one. ... Second one. Third one.")
	require.NoError(t, err)

	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 1, out.Skipped)
	assert.True(t, out.Truncated)
}

func TestDirect_EmbedderShapeMismatch(t *testing.T) {
	tok := tokenize.NewWordTokenizer(0)
	text := "First one. Second one."

	tests := []struct {
		name string
		vecs [][]float32
	}{
		{"too many", [][]float32{{1, 0}, {0, 1}, {1, 1}}},
		{"too few", [][]float32{{1, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: an embedder that answers with the wrong number of vectors
			e := fixedEmbedder{StaticEmbedder: embed.NewStaticEmbedder(2, tok), vecs: tt.vecs}
			d := NewDirect(e, tok, sentence.NewRuleSplitter(), DirectOptions{}, nil)

			// When: encoding two sentences
			_, err := d.EncodeDocument(context.Background(), text)

			// Then: the shape error is reported instead of a panic or a short record
			require.Error(t, err)
			assert.Equal(t, nxerrors.ErrCodeEncoderShape, nxerrors.GetCode(err))
		})
	}
}

func TestDirect_ZeroVectorIsSkipped(t *testing.T) {
	// Given: an embedder that maps the second sentence to a zero vector
	tok := tokenize.NewWordTokenizer(0)
	e := fixedEmbedder{
		StaticEmbedder: embed.NewStaticEmbedder(2, tok),
		vecs:           [][]float32{{3, 4}, {0, 0}},
	}
	d := NewDirect(e, tok, sentence.NewRuleSplitter(), DirectOptions{}, nil)

	// When: encoding
	out, err := d.EncodeDocument(context.Background(), "First one. Second one.")
	require.NoError(t, err)

	// Then: only the first sentence is kept, at unit norm
	require.Equal(t, 1, out.Len())
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, "First one.", out.Spans[0].Slice("First one. Second one."))
	assert.InDelta(t, 1.0, embed.Norm(out.Embeddings[0]), 1e-6)
}

func TestDirect_EmptyText(t *testing.T) {
	tok := tokenize.NewWordTokenizer(0)
	d := NewDirect(embed.NewStaticEmbedder(32, tok), tok, sentence.NewRuleSplitter(), DirectOptions{}, nil)

	out, err := d.EncodeDocument(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, out.Len())

	_, err = d.EncodeQuery(context.Background(), "")
	assert.Equal(t, nxerrors.ErrCodeQueryEmpty, nxerrors.GetCode(err))
}

// ============================================================================
// TS03: Construction
// ============================================================================

func TestNew_SentenceMode(t *testing.T) {
	reg := embed.NewRegistry(nil)
	defer func() { _ = reg.Close() }()

	enc, err := New(context.Background(), reg, Config{
		Mode:  ModeSentence,
		Embed: embed.Options{Dimensions: 48},
	}, nil)
	require.NoError(t, err)

	assert.IsType(t, &Direct{}, enc)
	assert.Equal(t, 48, enc.Dimensions())
	assert.Equal(t, embed.StaticModelName, enc.ModelName())
}

func TestNew_Errors(t *testing.T) {
	reg := embed.NewRegistry(nil)
	defer func() { _ = reg.Close() }()

	_, err := New(context.Background(), reg, Config{Mode: "bogus"}, nil)
	assert.Equal(t, nxerrors.ErrCodeConfigInvalid, nxerrors.GetCode(err))

	_, err = New(context.Background(), reg, Config{
		Mode:    ModePooled,
		Embed:   embed.Options{MaxLength: 64},
		Pooling: pooling.Options{ContextLength: 128, Stride: 64, BatchSize: 1},
	}, nil)
	assert.Equal(t, nxerrors.ErrCodeContextLength, nxerrors.GetCode(err))
}
