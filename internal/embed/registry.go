package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/tokenize"
)

// Provider names accepted in configuration.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
)

// Options selects and parameterizes the models of one encoder.
type Options struct {
	Provider   string
	Model      string
	Dimensions int
	VocabSize  int
	MaxLength  int

	OllamaHost string
	Timeout    time.Duration
	MaxRetries int

	// CacheSize wraps text embedders in an LRU cache when positive.
	CacheSize int
}

func (o Options) key() string {
	return fmt.Sprintf("%s|%s|%d|%d|%d|%s", o.Provider, o.Model, o.Dimensions, o.VocabSize, o.MaxLength, o.OllamaHost)
}

// Registry owns loaded tokenizers, token encoders and text embedders.
// Models are built once per distinct Options and shared until Close.
type Registry struct {
	logger *slog.Logger

	mu         sync.Mutex
	tokenizers map[int]*tokenize.WordTokenizer
	encoders   map[string]TokenEncoder
	embedders  map[string]Embedder
	closed     bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:     logger,
		tokenizers: make(map[int]*tokenize.WordTokenizer),
		encoders:   make(map[string]TokenEncoder),
		embedders:  make(map[string]Embedder),
	}
}

// Tokenizer returns the shared tokenizer for a vocabulary size.
func (r *Registry) Tokenizer(vocabSize int) *tokenize.WordTokenizer {
	if vocabSize <= 0 {
		vocabSize = tokenize.DefaultVocabSize
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tok, ok := r.tokenizers[vocabSize]; ok {
		return tok
	}
	tok := tokenize.NewWordTokenizer(vocabSize)
	r.tokenizers[vocabSize] = tok
	return tok
}

// TokenEncoder returns the token encoder for opts. Only the static provider
// exposes per-token hidden vectors.
func (r *Registry) TokenEncoder(opts Options) (TokenEncoder, error) {
	if opts.Provider == "" {
		opts.Provider = ProviderStatic
	}
	if opts.Provider != ProviderStatic {
		return nil, nxerrors.ConfigError(
			fmt.Sprintf("provider %q has no token encoder", opts.Provider), nil).
			WithSuggestion("use embeddings.mode: sentence with this provider, or embeddings.provider: static")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("registry is closed")
	}

	k := opts.key()
	if enc, ok := r.encoders[k]; ok {
		return enc, nil
	}
	enc := NewStaticTokenEncoder(opts.Dimensions, opts.MaxLength)
	r.encoders[k] = enc
	r.logger.Debug("token encoder loaded",
		slog.String("model", enc.ModelName()),
		slog.Int("dimensions", enc.Dimensions()),
		slog.Int("max_length", enc.MaxLength()))
	return enc, nil
}

// Embedder returns the text embedder for opts, creating it on first use.
func (r *Registry) Embedder(ctx context.Context, opts Options) (Embedder, error) {
	if opts.Provider == "" {
		opts.Provider = ProviderStatic
	}
	k := opts.key()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("registry is closed")
	}
	if e, ok := r.embedders[k]; ok {
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	// Built outside the lock: the Ollama health check does network I/O.
	var (
		e   Embedder
		err error
	)
	switch opts.Provider {
	case ProviderStatic:
		e = NewStaticEmbedder(opts.Dimensions, r.Tokenizer(opts.VocabSize))
	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		cfg.Host = opts.OllamaHost
		cfg.Dimensions = opts.Dimensions
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		if opts.MaxRetries > 0 {
			cfg.MaxRetries = opts.MaxRetries
		}
		e, err = NewOllamaEmbedder(ctx, cfg, r.logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, nxerrors.ConfigError(fmt.Sprintf("unknown embeddings provider %q", opts.Provider), nil).
			WithSuggestion("use 'static' or 'ollama'")
	}

	if opts.CacheSize > 0 {
		e = NewCachedEmbedder(e, opts.CacheSize)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.embedders[k]; ok {
		_ = e.Close()
		return existing, nil
	}
	r.embedders[k] = e
	r.logger.Debug("embedder loaded",
		slog.String("provider", opts.Provider),
		slog.String("model", e.ModelName()),
		slog.Int("dimensions", e.Dimensions()))
	return e, nil
}

// Close releases every model the registry created.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, enc := range r.encoders {
		errs = append(errs, enc.Close())
	}
	for _, e := range r.embedders {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
