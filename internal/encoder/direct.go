package encoder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/sentence"
	"github.com/MerijnSC/RAG-project/internal/span"
	"github.com/MerijnSC/RAG-project/internal/tokenize"
)

// DirectOptions configures sentence mode.
type DirectOptions struct {
	// MaxTokensPerBatch bounds the summed token count of one embed request.
	// A sentence longer than the budget is sent alone.
	MaxTokensPerBatch int

	// MaxSentences caps sentences per document. 0 means no cap.
	MaxSentences int
}

// Direct embeds each sentence independently with a text embedder.
type Direct struct {
	embedder  embed.Embedder
	tokenizer tokenize.Tokenizer
	splitter  sentence.Splitter
	opts      DirectOptions
	logger    *slog.Logger
}

// NewDirect creates a sentence-mode encoder.
func NewDirect(e embed.Embedder, tok tokenize.Tokenizer, splitter sentence.Splitter, opts DirectOptions, logger *slog.Logger) *Direct {
	if opts.MaxTokensPerBatch <= 0 {
		opts.MaxTokensPerBatch = embed.DefaultMaxTokensPerBatch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Direct{embedder: e, tokenizer: tok, splitter: splitter, opts: opts, logger: logger}
}

// batch is a run of sentences sent in one EmbedBatch call.
type batch struct {
	spans []span.Span
	texts []string
}

// EncodeDocument splits text into sentences and embeds them in token-budget
// batches. Sentences without any token, and sentences the embedder maps to
// a zero vector, are skipped.
func (d *Direct) EncodeDocument(ctx context.Context, text string) (Encoding, error) {
	var out Encoding

	var batches []batch
	var cur batch
	budget := 0
	kept := 0

	sentences := d.splitter.Split(text)
	for i, s := range sentences {
		if d.opts.MaxSentences > 0 && kept == d.opts.MaxSentences {
			out.Truncated = true
			d.logger.Warn("sentence cap reached",
				slog.Int("max_sentences", d.opts.MaxSentences),
				slog.Int("dropped", len(sentences)-i))
			break
		}

		st := s.Slice(text)
		n := d.tokenizer.Count(st)
		if n == 0 {
			out.Skipped++
			d.logger.Warn("sentence has no tokens, skipped", slog.String("span", s.String()))
			continue
		}
		kept++

		if len(cur.spans) > 0 && budget+n > d.opts.MaxTokensPerBatch {
			batches = append(batches, cur)
			cur = batch{}
			budget = 0
		}
		cur.spans = append(cur.spans, s)
		cur.texts = append(cur.texts, st)
		budget += n
	}
	if len(cur.spans) > 0 {
		batches = append(batches, cur)
	}

	for i, b := range batches {
		vecs, err := d.embedder.EmbedBatch(ctx, b.texts)
		if err != nil {
			return Encoding{}, fmt.Errorf("embed sentence batch %d: %w", i, err)
		}
		if len(vecs) != len(b.texts) {
			return Encoding{}, nxerrors.Newf(nxerrors.ErrCodeEncoderShape,
				"embedder returned %d vectors for %d sentences", len(vecs), len(b.texts))
		}
		for j, v := range vecs {
			if embed.Norm(v) < embed.NormEpsilon {
				out.Skipped++
				d.logger.Warn("sentence embedded to a zero vector, skipped",
					slog.String("span", b.spans[j].String()))
				continue
			}
			out.Spans = append(out.Spans, b.spans[j])
			out.Embeddings = append(out.Embeddings, embed.Normalize(v))
		}
	}

	d.logger.Debug("encoded sentences",
		slog.Int("sentences", len(out.Spans)),
		slog.Int("batches", len(batches)))

	return out, nil
}

// EncodeQuery embeds the query text directly.
func (d *Direct) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	if err := checkQuery(text); err != nil {
		return nil, err
	}
	v, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return embed.Normalize(v), nil
}

// Dimensions returns the embedding dimension.
func (d *Direct) Dimensions() int { return d.embedder.Dimensions() }

// ModelName returns the embedder's model.
func (d *Direct) ModelName() string { return d.embedder.ModelName() }

var _ Encoder = (*Direct)(nil)
