package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// fakeOllama serves /api/tags and /api/embed with 4-dim vectors.
type fakeOllama struct {
	models      []string
	embedCalls  atomic.Int64
	failFirst   int64 // number of /api/embed calls answered with 503
	embedStatus int
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		resp := OllamaModelListResponse{}
		for _, m := range f.models {
			resp.Models = append(resp.Models, OllamaModelInfo{Name: m})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		n := f.embedCalls.Add(1)
		if n <= f.failFirst {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		if f.embedStatus != 0 {
			http.Error(w, "nope", f.embedStatus)
			return
		}

		var req OllamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var inputs []any
		switch v := req.Input.(type) {
		case string:
			inputs = []any{v}
		case []any:
			inputs = v
		}
		resp := OllamaEmbedResponse{Model: req.Model}
		for i := range inputs {
			resp.Embeddings = append(resp.Embeddings, []float64{3, 4, 0, float64(i)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestOllama(t *testing.T, f *fakeOllama, cfg OllamaConfig) (*OllamaEmbedder, error) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	cfg.Host = srv.URL
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	return NewOllamaEmbedder(context.Background(), cfg, nil)
}

// ============================================================================
// TS01: Construction and Model Detection
// ============================================================================

func TestOllamaEmbedder_DetectsModelAndDimensions(t *testing.T) {
	// Given: a server with the model installed under a tagged name
	f := &fakeOllama{models: []string{"nomic-embed-text:latest"}}

	// When: creating the embedder with the untagged name
	e, err := newTestOllama(t, f, OllamaConfig{Model: "nomic-embed-text"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Then: the installed name and detected dimension are used
	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.Equal(t, 4, e.Dimensions())
	assert.True(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_MissingModel(t *testing.T) {
	// Given: a server without the requested model
	f := &fakeOllama{models: []string{"other-model"}}

	// When: creating the embedder
	_, err := newTestOllama(t, f, OllamaConfig{Model: "nomic-embed-text"})

	// Then: a model-not-found error with a pull suggestion is returned
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeModelNotFound, nxerrors.GetCode(err))
	ne, ok := nxerrors.As(err)
	require.True(t, ok)
	assert.Contains(t, ne.Suggestion, "ollama pull")
}

func TestOllamaEmbedder_SkipHealthCheckRequiresDimensions(t *testing.T) {
	// Given: no health check and no configured dimension
	f := &fakeOllama{}

	// When: creating the embedder
	_, err := newTestOllama(t, f, OllamaConfig{SkipHealthCheck: true})

	// Then: configuration is rejected
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeConfigInvalid, nxerrors.GetCode(err))
}

// ============================================================================
// TS02: Embedding
// ============================================================================

func TestOllamaEmbedder_EmbedNormalizes(t *testing.T) {
	f := &fakeOllama{}
	e, err := newTestOllama(t, f, OllamaConfig{Model: "m", Dimensions: 4, SkipHealthCheck: true})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
	assert.InDelta(t, 1.0, Norm(vec), 1e-6)
}

func TestOllamaEmbedder_EmbedBatchSplitsAndKeepsOrder(t *testing.T) {
	// Given: batch size 2 and five texts, one of them blank
	f := &fakeOllama{}
	e, err := newTestOllama(t, f, OllamaConfig{Model: "m", Dimensions: 4, BatchSize: 2, SkipHealthCheck: true})
	require.NoError(t, err)

	// When: embedding the batch
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "  ", "c", "d"})
	require.NoError(t, err)

	// Then: four non-blank texts need two requests and the blank one is zero
	require.Len(t, vecs, 5)
	assert.Equal(t, int64(2), f.embedCalls.Load())
	assert.Equal(t, []float32{0, 0, 0, 0}, vecs[2])
	for _, i := range []int{0, 1, 3, 4} {
		assert.InDelta(t, 1.0, Norm(vecs[i]), 1e-6)
	}
}

func TestOllamaEmbedder_ClosedRejects(t *testing.T) {
	f := &fakeOllama{}
	e, err := newTestOllama(t, f, OllamaConfig{Model: "m", Dimensions: 4, SkipHealthCheck: true})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

// ============================================================================
// TS03: Failure Classification and Retry
// ============================================================================

func TestOllamaEmbedder_RetriesServerErrors(t *testing.T) {
	// Given: a server that fails the first two embed calls
	f := &fakeOllama{failFirst: 2}
	e, err := newTestOllama(t, f, OllamaConfig{Model: "m", Dimensions: 4, MaxRetries: 3, SkipHealthCheck: true})
	require.NoError(t, err)

	// When: embedding
	vec, err := e.Embed(context.Background(), "hello")

	// Then: the third attempt succeeds
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, int64(3), f.embedCalls.Load())
}

func TestOllamaEmbedder_DoesNotRetryClientErrors(t *testing.T) {
	// Given: a server answering 400
	f := &fakeOllama{embedStatus: http.StatusBadRequest}
	e, err := newTestOllama(t, f, OllamaConfig{Model: "m", Dimensions: 4, MaxRetries: 3, SkipHealthCheck: true})
	require.NoError(t, err)

	// When: embedding
	_, err = e.Embed(context.Background(), "hello")

	// Then: the error is returned after one call
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeEmbeddingFailed, nxerrors.GetCode(err))
	assert.Equal(t, int64(1), f.embedCalls.Load())
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	f := &fakeOllama{}
	e, err := newTestOllama(t, f, OllamaConfig{Model: "m", Dimensions: 8, SkipHealthCheck: true})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeDimensionMismatch, nxerrors.GetCode(err))
	assert.True(t, nxerrors.IsFatal(err))
}

func TestOllamaEmbedder_UnreachableServer(t *testing.T) {
	// Given: a host nothing listens on
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: host, Model: "m", Dimensions: 4, MaxRetries: 1, RetryDelay: time.Millisecond, SkipHealthCheck: true,
	}, nil)
	require.NoError(t, err)

	// When: embedding
	_, err = e.Embed(context.Background(), "hello")

	// Then: a retryable network error surfaces
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeNetworkUnavailable, nxerrors.GetCode(err))
	assert.True(t, nxerrors.IsRetryable(err))
}
