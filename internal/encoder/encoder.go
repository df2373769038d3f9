// Package encoder turns document text into sentence spans with aligned unit
// embeddings, and query text into a single comparable vector.
//
// Two modes exist. Pooled mode runs the whole document through a token
// encoder with overlapping windows and averages token vectors per sentence.
// Sentence mode embeds every sentence on its own with a text embedder.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/pooling"
	"github.com/MerijnSC/RAG-project/internal/sentence"
	"github.com/MerijnSC/RAG-project/internal/span"
)

// Encoding modes
const (
	ModePooled   = "pooled"
	ModeSentence = "sentence"
)

// Encoding is the per-document output of an Encoder.
type Encoding struct {
	Spans      []span.Span
	Embeddings [][]float32

	// Skipped counts sentences that produced no vector.
	Skipped int

	// Truncated is set when the sentence cap cut the document short.
	Truncated bool
}

// Len returns the number of encoded sentences.
func (e Encoding) Len() int { return len(e.Spans) }

// Encoder produces sentence embeddings for documents and query vectors in
// the same space.
type Encoder interface {
	EncodeDocument(ctx context.Context, text string) (Encoding, error)
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// Config selects the encoder mode and its models.
type Config struct {
	Mode              string
	Embed             embed.Options
	Pooling           pooling.Options
	MaxSentences      int
	MaxTokensPerBatch int
}

// New builds the encoder selected by cfg, taking models from reg.
func New(ctx context.Context, reg *embed.Registry, cfg Config, logger *slog.Logger) (Encoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	splitter := sentence.NewRuleSplitter()
	tok := reg.Tokenizer(cfg.Embed.VocabSize)

	switch cfg.Mode {
	case ModePooled, "":
		enc, err := reg.TokenEncoder(cfg.Embed)
		if err != nil {
			return nil, err
		}
		pooler, err := pooling.NewPooler(enc, cfg.Pooling, logger)
		if err != nil {
			return nil, err
		}
		return NewPooled(tok, splitter, pooler, pooling.NewAggregator(cfg.MaxSentences, logger), enc.ModelName()), nil

	case ModeSentence:
		e, err := reg.Embedder(ctx, cfg.Embed)
		if err != nil {
			return nil, err
		}
		return NewDirect(e, tok, splitter, DirectOptions{
			MaxTokensPerBatch: cfg.MaxTokensPerBatch,
			MaxSentences:      cfg.MaxSentences,
		}, logger), nil

	default:
		return nil, nxerrors.ConfigError(fmt.Sprintf("unknown embeddings mode %q", cfg.Mode), nil).
			WithSuggestion("use 'pooled' or 'sentence'")
	}
}

// checkQuery rejects blank queries.
func checkQuery(text string) error {
	if strings.TrimSpace(text) == "" {
		return nxerrors.New(nxerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	return nil
}
