package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/tokenize"
)

// Weights for static text vectors
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// tokenVector returns the fixed pseudo-random unit vector of a token id.
// Ids are expanded with splitmix64 so neighbouring ids are uncorrelated.
func tokenVector(id, dims int) []float32 {
	v := make([]float32, dims)
	state := uint64(id)*0x9E3779B97F4A7C15 + 1
	for i := range v {
		state += 0x9E3779B97F4A7C15
		z := state
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		z ^= z >> 31
		// top 24 bits -> [-1, 1)
		v[i] = float32(z>>40)/float32(1<<23) - 1
	}
	return Normalize(v)
}

// StaticTokenEncoder is a TokenEncoder without a model: every token id maps
// to a fixed vector regardless of its window. Works offline and is
// deterministic, which makes pooled vectors reproducible in tests.
type StaticTokenEncoder struct {
	dims      int
	maxLength int

	mu     sync.RWMutex
	closed bool
}

// NewStaticTokenEncoder creates a static token encoder.
// Non-positive arguments fall back to StaticDimensions and DefaultMaxLength.
func NewStaticTokenEncoder(dims, maxLength int) *StaticTokenEncoder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &StaticTokenEncoder{dims: dims, maxLength: maxLength}
}

// EncodeWindows implements TokenEncoder.
func (e *StaticTokenEncoder) EncodeWindows(ctx context.Context, windows [][]int) ([][][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("encoder is closed")
	}

	out := make([][][]float32, len(windows))
	for w, ids := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(ids) > e.maxLength {
			return nil, nxerrors.Newf(nxerrors.ErrCodeInvalidInput,
				"window %d has %d tokens, encoder accepts at most %d", w, len(ids), e.maxLength)
		}
		hidden := make([][]float32, len(ids))
		for i, id := range ids {
			hidden[i] = tokenVector(id, e.dims)
		}
		out[w] = hidden
	}
	return out, nil
}

// MaxLength implements TokenEncoder.
func (e *StaticTokenEncoder) MaxLength() int { return e.maxLength }

// Dimensions implements TokenEncoder.
func (e *StaticTokenEncoder) Dimensions() int { return e.dims }

// ModelName implements TokenEncoder.
func (e *StaticTokenEncoder) ModelName() string { return StaticModelName }

// Close implements TokenEncoder.
func (e *StaticTokenEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// StaticEmbedder generates text embeddings from hashed token vectors plus
// character trigrams. No network, no model download; reduced semantic
// quality.
type StaticEmbedder struct {
	dims      int
	tokenizer *tokenize.WordTokenizer

	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder creates a static text embedder. tok may be nil.
func NewStaticEmbedder(dims int, tok *tokenize.WordTokenizer) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	if tok == nil {
		tok = tokenize.NewWordTokenizer(0)
	}
	return &StaticEmbedder{dims: dims, tokenizer: tok}
}

// Embed generates embedding for a single text. Blank text yields a zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}

	return Normalize(e.generateVector(trimmed)), nil
}

func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)

	ids, _ := e.tokenizer.Tokenize(text)
	for _, id := range ids {
		for i, x := range tokenVector(id, e.dims) {
			vector[i] += tokenWeight * x
		}
	}

	for _, ngram := range extractNgrams(normalizeForNgrams(text), ngramSize) {
		vector[hashToIndex(ngram, e.dims)] += ngramWeight
	}

	return vector
}

// normalizeForNgrams keeps lowercased letters and digits.
func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// extractNgrams extracts n-rune sliding windows.
func extractNgrams(text string, n int) []string {
	runes := []rune(text)
	if len(runes) < n {
		return []string{}
	}

	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i <= len(runes)-n; i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return StaticModelName
}

// Available reports whether the embedder is open.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

var (
	_ Embedder     = (*StaticEmbedder)(nil)
	_ TokenEncoder = (*StaticTokenEncoder)(nil)
)
