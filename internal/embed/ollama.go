package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
// Transient failures are retried with backoff; a circuit breaker stops
// hammering a server that keeps failing.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	modelName string
	dims      int
	breaker   *nxerrors.Breaker
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewOllamaEmbedder creates a new Ollama embedder. Unless SkipHealthCheck is
// set it verifies the model is installed and detects its dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig, logger *slog.Logger) (*OllamaEmbedder, error) {
	def := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No client-level timeout: each request gets its own context deadline.
	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
		breaker:   nxerrors.NewBreaker("ollama", 5, 30*time.Second),
		logger:    logger,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		name, err := e.findModel(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
		e.modelName = name

		if e.dims == 0 {
			vecs, err := e.doEmbed(checkCtx, []string{"dimension check"})
			if err != nil {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("detect embedding dimensions: %w", err)
			}
			e.dims = len(vecs[0])
		}
	}

	if e.dims == 0 {
		return nil, nxerrors.ConfigError("ollama embedder needs embeddings.dimensions when the health check is skipped", nil)
	}

	return e, nil
}

// listModels gets installed models from Ollama
func (e *OllamaEmbedder) listModels(ctx context.Context) ([]OllamaModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var result OllamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, nxerrors.New(nxerrors.ErrCodeEmbeddingFailed, "decode /api/tags response", err)
	}
	return result.Models, nil
}

// findModel resolves the configured model against installed ones, matching
// with or without a tag.
func (e *OllamaEmbedder) findModel(ctx context.Context) (string, error) {
	models, err := e.listModels(ctx)
	if err != nil {
		return "", err
	}

	want := strings.ToLower(e.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == wantBase {
			return m.Name, nil
		}
	}

	return "", nxerrors.Newf(nxerrors.ErrCodeModelNotFound, "ollama model %q is not installed", e.config.Model).
		WithSuggestion(fmt.Sprintf("run: ollama pull %s", e.config.Model))
}

// Embed generates embedding for a single text. Blank text yields a zero vector.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, len(texts))
	var idx []int
	var pending []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		idx = append(idx, i)
		pending = append(pending, text)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(pending))

		vecs, err := e.embedWithRetry(ctx, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vecs {
			results[idx[start+j]] = v
		}
	}

	return results, nil
}

func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := nxerrors.Backoff{
		Retries: e.config.MaxRetries,
		Base:    e.config.RetryDelay,
		Max:     5 * time.Second,
		Jitter:  true,
	}

	return nxerrors.WithRetry(ctx, backoff, func(attempt int) ([][]float32, error) {
		return nxerrors.Guard(e.breaker, func() ([][]float32, error) {
			reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
			defer cancel()

			vecs, err := e.doEmbed(reqCtx, texts)
			if err != nil {
				e.logger.Debug("ollama embed attempt failed",
					slog.Int("attempt", attempt),
					slog.Int("texts", len(texts)),
					slog.String("error", err.Error()))
			}
			return vecs, err
		})
	})
}

// doEmbed performs one /api/embed request and normalizes the result.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(OllamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var apiResult OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
		return nil, nxerrors.New(nxerrors.ErrCodeEmbeddingFailed, "decode /api/embed response", err)
	}
	if len(apiResult.Embeddings) != len(texts) {
		return nil, nxerrors.Newf(nxerrors.ErrCodeEmbeddingFailed,
			"ollama returned %d embeddings for %d inputs", len(apiResult.Embeddings), len(texts))
	}

	out := make([][]float32, len(apiResult.Embeddings))
	for i, emb := range apiResult.Embeddings {
		if e.dims != 0 && len(emb) != e.dims {
			return nil, nxerrors.Newf(nxerrors.ErrCodeDimensionMismatch,
				"ollama returned %d dimensions, expected %d", len(emb), e.dims)
		}
		v := make([]float32, len(emb))
		for j, x := range emb {
			v[j] = float32(x)
		}
		out[i] = Normalize(v)
	}
	return out, nil
}

// classifyTransportError maps client errors to coded network errors.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return nxerrors.New(nxerrors.ErrCodeNetworkTimeout, "ollama request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return nxerrors.New(nxerrors.ErrCodeNetworkUnavailable, "cannot reach ollama", err).
		WithSuggestion("start Ollama with 'ollama serve' or set embeddings.provider: static")
}

// classifyStatus maps a non-200 response to a coded error. Server errors are
// retryable; client errors are not.
func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nxerrors.New(nxerrors.ErrCodeModelNotFound, msg, nil)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nxerrors.New(nxerrors.ErrCodeNetworkUnavailable, msg, nil)
	default:
		return nxerrors.New(nxerrors.ErrCodeEmbeddingFailed, msg, nil)
	}
}

// Dimensions returns the embedding dimension
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier
func (e *OllamaEmbedder) ModelName() string {
	return e.modelName
}

// Available checks if Ollama is running and the model is installed
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	_, err := e.findModel(ctx)
	return err == nil
}

// Close releases idle connections
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
