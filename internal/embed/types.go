// Package embed provides the embedding collaborators of the retrieval
// engine: text embedders that map a string to one unit vector, token
// encoders that map token windows to per-position hidden vectors, and the
// Registry that owns loaded models for the life of the process.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants
const (
	// DefaultBatchSize is the default batch size for remote embedding requests
	DefaultBatchSize = 32

	// DefaultTimeout is the default timeout for a single embedding request
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3

	// DefaultMaxLength is the maximum token window accepted by the default
	// encoder, matching BERT-family models.
	DefaultMaxLength = 512

	// DefaultMaxTokensPerBatch bounds the summed token count of one sentence
	// batch in direct sentence mode.
	DefaultMaxTokensPerBatch = 1024

	// NormEpsilon floors vector norms so degenerate vectors do not divide by zero.
	NormEpsilon = 1e-12
)

// Static embedder constants
const (
	// StaticDimensions is the default dimension of the static embedders
	StaticDimensions = 256

	// StaticModelName identifies vectors produced by the static embedders
	StaticModelName = "static-hash"
)

// Embedder maps text to a unit-normalized vector. Implementations must be
// deterministic for identical input and model, and safe for concurrent use.
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// TokenEncoder maps windows of token ids to per-token hidden vectors, the
// way a transformer's last hidden state does.
type TokenEncoder interface {
	// EncodeWindows returns, for each window, one vector per token.
	// No window may be longer than MaxLength.
	EncodeWindows(ctx context.Context, windows [][]int) ([][][]float32, error)

	// MaxLength is the longest window the encoder accepts.
	MaxLength() int

	// Dimensions returns the hidden vector dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Close releases resources
	Close() error
}

// Normalize returns v scaled to unit length. The norm is floored at
// NormEpsilon, so a zero vector stays zero instead of becoming NaN.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	norm := math.Max(math.Sqrt(sumSquares), NormEpsilon)

	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / norm)
	}
	return out
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
