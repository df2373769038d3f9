package pooling

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// countingEncoder wraps a static encoder and records calls.
type countingEncoder struct {
	*embed.StaticTokenEncoder
	calls   atomic.Int64
	windows atomic.Int64
	maxSeen atomic.Int64
}

func newCountingEncoder(dims, maxLength int) *countingEncoder {
	return &countingEncoder{StaticTokenEncoder: embed.NewStaticTokenEncoder(dims, maxLength)}
}

func (c *countingEncoder) EncodeWindows(ctx context.Context, windows [][]int) ([][][]float32, error) {
	c.calls.Add(1)
	c.windows.Add(int64(len(windows)))
	if int64(len(windows)) > c.maxSeen.Load() {
		c.maxSeen.Store(int64(len(windows)))
	}
	return c.StaticTokenEncoder.EncodeWindows(ctx, windows)
}

// shortEncoder drops the last vector of every window.
type shortEncoder struct {
	*embed.StaticTokenEncoder
}

func (s shortEncoder) EncodeWindows(ctx context.Context, windows [][]int) ([][][]float32, error) {
	out, err := s.StaticTokenEncoder.EncodeWindows(ctx, windows)
	for i := range out {
		out[i] = out[i][:len(out[i])-1]
	}
	return out, err
}

func sequence(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i*7 + 3
	}
	return ids
}

// ============================================================================
// TS01: Window Layout
// ============================================================================

func TestWindows(t *testing.T) {
	tests := []struct {
		name           string
		n, len, stride int
		want           []Window
	}{
		{"empty", 0, 512, 256, nil},
		{"shorter than context", 100, 512, 256, []Window{{0, 100}}},
		{"exactly context", 512, 512, 256, []Window{{0, 512}}},
		{"needs tail", 1000, 512, 256, []Window{{0, 512}, {256, 768}, {488, 1000}}},
		{"tail repeats last regular window", 1024, 512, 256, []Window{{0, 512}, {256, 768}, {512, 1024}, {512, 1024}}},
		{"stride equals length", 10, 4, 4, []Window{{0, 4}, {4, 8}, {6, 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Windows(tt.n, tt.len, tt.stride))
		})
	}
}

func TestWindows_CoverEveryPosition(t *testing.T) {
	for _, n := range []int{1, 7, 64, 65, 200, 999} {
		covered := make([]int, n)
		for _, w := range Windows(n, 64, 24) {
			assert.LessOrEqual(t, w.End-w.Start, 64)
			for i := w.Start; i < w.End; i++ {
				covered[i]++
			}
		}
		for i, c := range covered {
			assert.Positive(t, c, "n=%d position %d not covered", n, i)
		}
	}
}

func TestWeightProfile(t *testing.T) {
	assert.Equal(t, []float32{1}, WeightProfile(1))
	assert.Nil(t, WeightProfile(0))

	w := WeightProfile(5)
	require.Len(t, w, 5)
	assert.InDelta(t, 0.01, w[0], 1e-6)
	assert.InDelta(t, 0.505, w[1], 1e-6)
	assert.InDelta(t, 1.0, w[2], 1e-6)
	assert.InDelta(t, 0.505, w[3], 1e-6)
	assert.InDelta(t, 0.01, w[4], 1e-6)

	for _, x := range WeightProfile(512) {
		assert.GreaterOrEqual(t, x, float32(EdgeWeight))
		assert.LessOrEqual(t, x, float32(1))
	}
}

// ============================================================================
// TS02: Validation
// ============================================================================

func TestNewPooler_Validation(t *testing.T) {
	enc := embed.NewStaticTokenEncoder(8, 128)

	tests := []struct {
		name string
		opts Options
		code string
	}{
		{"context too long", Options{ContextLength: 256, Stride: 128, BatchSize: 1}, nxerrors.ErrCodeContextLength},
		{"zero context", Options{ContextLength: 0, Stride: 1, BatchSize: 1}, nxerrors.ErrCodeConfigInvalid},
		{"zero stride", Options{ContextLength: 64, Stride: 0, BatchSize: 1}, nxerrors.ErrCodeConfigInvalid},
		{"stride above context", Options{ContextLength: 64, Stride: 65, BatchSize: 1}, nxerrors.ErrCodeConfigInvalid},
		{"zero batch", Options{ContextLength: 64, Stride: 32, BatchSize: 0}, nxerrors.ErrCodeConfigInvalid},
		{"bad mode", Options{ContextLength: 64, Stride: 32, BatchSize: 1, Mode: "max"}, nxerrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPooler(enc, tt.opts, nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, nxerrors.GetCode(err))
		})
	}
}

func TestNewPooler_ContextLengthIsFatal(t *testing.T) {
	_, err := NewPooler(embed.NewStaticTokenEncoder(8, 16), Options{ContextLength: 32, Stride: 16, BatchSize: 1}, nil)
	assert.True(t, nxerrors.IsFatal(err))
}

// ============================================================================
// TS03: Pooling
// ============================================================================

func TestPool_Empty(t *testing.T) {
	enc := newCountingEncoder(8, 64)
	p, err := NewPooler(enc, Options{ContextLength: 64, Stride: 32, BatchSize: 4}, nil)
	require.NoError(t, err)

	out, err := p.Pool(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, enc.calls.Load())
}

func TestPool_CoverageAndBatching(t *testing.T) {
	// Given: 1000 tokens, windows of 100 every 50, batches of 4
	enc := newCountingEncoder(16, 128)
	p, err := NewPooler(enc, Options{ContextLength: 100, Stride: 50, BatchSize: 4}, nil)
	require.NoError(t, err)

	// When: pooling
	out, err := p.Pool(context.Background(), sequence(1000))
	require.NoError(t, err)

	// Then: one vector per token, every one non-zero
	require.Len(t, out, 1000)
	for i, v := range out {
		require.Len(t, v, 16)
		assert.Greater(t, embed.Norm(v), 0.0, "position %d", i)
	}

	// Then: 19 regular windows plus the tail went out in batches of at most 4
	assert.Equal(t, int64(20), enc.windows.Load())
	assert.Equal(t, int64(5), enc.calls.Load())
	assert.LessOrEqual(t, enc.maxSeen.Load(), int64(4))
}

func TestPool_SingleWindowReturnsEncoderOutput(t *testing.T) {
	enc := embed.NewStaticTokenEncoder(8, 64)
	p, err := NewPooler(enc, Options{ContextLength: 64, Stride: 32, BatchSize: 2}, nil)
	require.NoError(t, err)

	ids := sequence(10)
	out, err := p.Pool(context.Background(), ids)
	require.NoError(t, err)

	want, err := enc.EncodeWindows(context.Background(), [][]int{ids})
	require.NoError(t, err)
	assert.Equal(t, want[0], out)
}

func TestPool_SumAddsOverlaps(t *testing.T) {
	// Given: windows of 4 every 2 over 7 tokens: [0,4) [2,6) and tail [3,7)
	enc := embed.NewStaticTokenEncoder(8, 4)
	p, err := NewPooler(enc, Options{ContextLength: 4, Stride: 2, BatchSize: 8}, nil)
	require.NoError(t, err)

	// When: pooling
	out, err := p.Pool(context.Background(), sequence(7))
	require.NoError(t, err)

	// Then: each position's norm equals the number of windows covering it
	for i, want := range []float64{1, 1, 2, 3, 2, 2, 1} {
		assert.InDelta(t, want, embed.Norm(out[i]), 1e-5, "position %d", i)
	}
}

func TestPool_SumCountsTailWindowTwice(t *testing.T) {
	// Given: 1024 tokens, windows of 512 every 256, so the last regular
	// window [512,1024) coincides with the tail window
	enc := newCountingEncoder(8, 512)
	p, err := NewPooler(enc, Options{ContextLength: 512, Stride: 256, BatchSize: 8}, nil)
	require.NoError(t, err)

	// When: pooling in sum mode
	out, err := p.Pool(context.Background(), sequence(1024))
	require.NoError(t, err)

	// Then: four windows were encoded
	assert.Equal(t, int64(4), enc.windows.Load())

	// And: positions past 768 are covered by [512,1024) and the tail
	assert.InDelta(t, 2.0, embed.Norm(out[1000]), 1e-4)
	assert.InDelta(t, 1.0, embed.Norm(out[100]), 1e-4)
	assert.InDelta(t, 3.0, embed.Norm(out[600]), 1e-4)
}

func TestPool_WeightedReproducesIdenticalWindows(t *testing.T) {
	// Given: an encoder whose token vector does not depend on the window
	enc := embed.NewStaticTokenEncoder(8, 16)
	p, err := NewPooler(enc, Options{ContextLength: 16, Stride: 5, BatchSize: 3, Mode: ModeWeighted}, nil)
	require.NoError(t, err)
	ids := sequence(57)

	// When: pooling with the weighted profile
	out, err := p.Pool(context.Background(), ids)
	require.NoError(t, err)

	// Then: the weighted average equals the single-window vector
	for i, id := range ids {
		want, err := enc.EncodeWindows(context.Background(), [][]int{{id}})
		require.NoError(t, err)
		for d := range want[0][0] {
			assert.InDelta(t, want[0][0][d], out[i][d], 1e-5, "position %d dim %d", i, d)
		}
	}
}

func TestPool_ShapeMismatch(t *testing.T) {
	p, err := NewPooler(shortEncoder{embed.NewStaticTokenEncoder(8, 16)},
		Options{ContextLength: 16, Stride: 8, BatchSize: 2}, nil)
	require.NoError(t, err)

	_, err = p.Pool(context.Background(), sequence(20))
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeEncoderShape, nxerrors.GetCode(err))
}

func TestPool_ContextCancelled(t *testing.T) {
	p, err := NewPooler(embed.NewStaticTokenEncoder(8, 16), Options{ContextLength: 16, Stride: 8, BatchSize: 1}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Pool(ctx, sequence(100))
	assert.ErrorIs(t, err, context.Canceled)
}
