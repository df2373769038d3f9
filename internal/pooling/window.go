// Package pooling turns token-level encoder output into sentence embeddings.
//
// A Pooler runs a token sequence of any length through an encoder that only
// accepts ContextLength tokens at a time, using overlapping windows, and
// returns one vector per token. An Aggregator then mean-pools those vectors
// over sentence spans.
package pooling

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// Mode selects how overlapping window contributions are combined.
type Mode string

const (
	// ModeSum adds every covering window's vector. The caller renormalizes.
	ModeSum Mode = "sum"

	// ModeWeighted weights contributions by position in the window and divides
	// by the accumulated weight.
	ModeWeighted Mode = "weighted"
)

// Defaults
const (
	DefaultContextLength = 512
	DefaultStride        = 256
	DefaultBatchSize     = 12

	// EdgeWeight is the weight of the first and last window position.
	EdgeWeight = 0.01
)

// Options configures a Pooler.
type Options struct {
	ContextLength int
	Stride        int
	BatchSize     int
	Mode          Mode
}

// DefaultOptions returns the default pooling options.
func DefaultOptions() Options {
	return Options{
		ContextLength: DefaultContextLength,
		Stride:        DefaultStride,
		BatchSize:     DefaultBatchSize,
		Mode:          ModeSum,
	}
}

// Window is a half-open token range [Start, End).
type Window struct {
	Start int
	End   int
}

// Windows returns the windows covering n tokens. A sequence that fits in
// one window gets a single window; longer ones get windows every stride
// tokens while they fit, plus a final window over the last length tokens.
// The final window is added even when the last regular window already ends
// at n, so in sum mode those tail positions are counted twice.
func Windows(n, length, stride int) []Window {
	if n <= 0 {
		return nil
	}
	if n <= length {
		return []Window{{Start: 0, End: n}}
	}

	var out []Window
	for start := 0; start+length <= n; start += stride {
		out = append(out, Window{Start: start, End: start + length})
	}
	return append(out, Window{Start: n - length, End: n})
}

// WeightProfile returns a triangular weight per window position, highest at
// the center and EdgeWeight at both ends, scaled into [EdgeWeight, 1].
func WeightProfile(length int) []float32 {
	if length <= 0 {
		return nil
	}
	w := make([]float64, length)
	center := float64(length-1) / 2
	for i := range w {
		if center == 0 {
			w[i] = 1
			continue
		}
		w[i] = 1 - math.Abs(float64(i)-center)/center
	}

	lo, hi := w[0], w[0]
	for _, x := range w {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}

	out := make([]float32, length)
	for i, x := range w {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = float32(EdgeWeight + (1-EdgeWeight)*(x-lo)/(hi-lo))
	}
	return out
}

// Pooler produces one vector per token position.
type Pooler struct {
	enc    embed.TokenEncoder
	opts   Options
	logger *slog.Logger
}

// NewPooler validates opts against the encoder.
func NewPooler(enc embed.TokenEncoder, opts Options, logger *slog.Logger) (*Pooler, error) {
	if enc == nil {
		return nil, nxerrors.ConfigError("pooler needs a token encoder", nil)
	}
	if opts.Mode == "" {
		opts.Mode = ModeSum
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case opts.ContextLength <= 0:
		return nil, nxerrors.ConfigError(fmt.Sprintf("context_length must be positive, got %d", opts.ContextLength), nil)
	case opts.ContextLength > enc.MaxLength():
		return nil, nxerrors.Newf(nxerrors.ErrCodeContextLength,
			"context_length %d exceeds encoder %s maximum of %d",
			opts.ContextLength, enc.ModelName(), enc.MaxLength()).
			WithSuggestion(fmt.Sprintf("set pooling.context_length to at most %d", enc.MaxLength()))
	case opts.Stride <= 0 || opts.Stride > opts.ContextLength:
		return nil, nxerrors.ConfigError(
			fmt.Sprintf("stride must be in (0, %d], got %d", opts.ContextLength, opts.Stride), nil)
	case opts.BatchSize <= 0:
		return nil, nxerrors.ConfigError(fmt.Sprintf("batch_size must be positive, got %d", opts.BatchSize), nil)
	case opts.Mode != ModeSum && opts.Mode != ModeWeighted:
		return nil, nxerrors.ConfigError(fmt.Sprintf("unknown pooling mode %q", opts.Mode), nil).
			WithSuggestion("use 'sum' or 'weighted'")
	}

	return &Pooler{enc: enc, opts: opts, logger: logger}, nil
}

// Options returns the validated options.
func (p *Pooler) Options() Options { return p.opts }

// Dimensions returns the vector dimension of the underlying encoder.
func (p *Pooler) Dimensions() int { return p.enc.Dimensions() }

// Pool returns len(ids) vectors. In sum mode vectors are not normalized.
func (p *Pooler) Pool(ctx context.Context, ids []int) ([][]float32, error) {
	n := len(ids)
	if n == 0 {
		return [][]float32{}, nil
	}

	dims := p.enc.Dimensions()
	windows := Windows(n, p.opts.ContextLength, p.opts.Stride)

	acc := make([][]float32, n)
	for i := range acc {
		acc[i] = make([]float32, dims)
	}
	var weights []float32
	if p.opts.Mode == ModeWeighted {
		weights = make([]float32, n)
	}

	for start := 0; start < len(windows); start += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := windows[start:min(start+p.opts.BatchSize, len(windows))]

		input := make([][]int, len(batch))
		for i, w := range batch {
			input[i] = ids[w.Start:w.End]
		}

		hidden, err := p.enc.EncodeWindows(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("encode windows %d-%d: %w", start, start+len(batch)-1, err)
		}
		if len(hidden) != len(batch) {
			return nil, nxerrors.Newf(nxerrors.ErrCodeEncoderShape,
				"encoder returned %d windows for %d inputs", len(hidden), len(batch))
		}

		for i, w := range batch {
			if err := p.accumulate(acc, weights, w, hidden[i], dims); err != nil {
				return nil, err
			}
		}
	}

	if weights != nil {
		for i, vec := range acc {
			if weights[i] == 0 {
				continue
			}
			for d := range vec {
				vec[d] /= weights[i]
			}
		}
	}

	p.logger.Debug("pooled token sequence",
		slog.Int("tokens", n),
		slog.Int("windows", len(windows)),
		slog.String("mode", string(p.opts.Mode)))

	return acc, nil
}

func (p *Pooler) accumulate(acc [][]float32, weights []float32, w Window, hidden [][]float32, dims int) error {
	if len(hidden) != w.End-w.Start {
		return nxerrors.Newf(nxerrors.ErrCodeEncoderShape,
			"encoder returned %d vectors for window [%d, %d)", len(hidden), w.Start, w.End)
	}

	var profile []float32
	if weights != nil {
		profile = WeightProfile(w.End - w.Start)
	}

	for j, vec := range hidden {
		if len(vec) != dims {
			return nxerrors.Newf(nxerrors.ErrCodeEncoderShape,
				"encoder returned %d dimensions, expected %d", len(vec), dims)
		}
		pos := w.Start + j
		scale := float32(1)
		if profile != nil {
			scale = profile[j]
			weights[pos] += scale
		}
		for d, x := range vec {
			acc[pos][d] += scale * x
		}
	}
	return nil
}
