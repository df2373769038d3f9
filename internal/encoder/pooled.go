package encoder

import (
	"context"
	"fmt"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/pooling"
	"github.com/MerijnSC/RAG-project/internal/sentence"
	"github.com/MerijnSC/RAG-project/internal/tokenize"
)

// Pooled encodes a document as one token sequence and pools per sentence.
type Pooled struct {
	tokenizer  tokenize.Tokenizer
	splitter   sentence.Splitter
	pooler     *pooling.Pooler
	aggregator *pooling.Aggregator
	model      string
}

// NewPooled assembles a pooled encoder from its parts.
func NewPooled(tok tokenize.Tokenizer, splitter sentence.Splitter, pooler *pooling.Pooler, agg *pooling.Aggregator, model string) *Pooled {
	return &Pooled{
		tokenizer:  tok,
		splitter:   splitter,
		pooler:     pooler,
		aggregator: agg,
		model:      model,
	}
}

// EncodeDocument tokenizes text, pools token vectors over the whole document
// and aggregates them per sentence.
func (p *Pooled) EncodeDocument(ctx context.Context, text string) (Encoding, error) {
	ids, offsets := p.tokenizer.Tokenize(text)
	if len(ids) == 0 {
		return Encoding{}, nil
	}

	hidden, err := p.pooler.Pool(ctx, ids)
	if err != nil {
		return Encoding{}, err
	}

	res, err := p.aggregator.Aggregate(hidden, offsets, p.splitter.Split(text))
	if err != nil {
		return Encoding{}, err
	}

	return Encoding{
		Spans:      res.Spans,
		Embeddings: res.Embeddings,
		Skipped:    res.Skipped,
		Truncated:  res.Truncated,
	}, nil
}

// EncodeQuery pools the query like a document and averages all token
// vectors into one unit vector.
func (p *Pooled) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	if err := checkQuery(text); err != nil {
		return nil, err
	}

	ids, _ := p.tokenizer.Tokenize(text)
	if len(ids) == 0 {
		return nil, nxerrors.Newf(nxerrors.ErrCodeInvalidQuery, "query %q has no searchable tokens", text)
	}

	hidden, err := p.pooler.Pool(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	mean := make([]float32, p.pooler.Dimensions())
	for _, v := range hidden {
		for d, x := range v {
			mean[d] += x
		}
	}
	for d := range mean {
		mean[d] /= float32(len(hidden))
	}
	return embed.Normalize(mean), nil
}

// Dimensions returns the embedding dimension.
func (p *Pooled) Dimensions() int { return p.pooler.Dimensions() }

// ModelName returns the token encoder's model.
func (p *Pooled) ModelName() string { return p.model }

var _ Encoder = (*Pooled)(nil)
