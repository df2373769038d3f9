package pooling

import (
	"log/slog"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/span"
)

// Result holds sentence embeddings aligned 1:1 with Spans.
type Result struct {
	Spans      []span.Span
	Embeddings [][]float32

	// Skipped counts sentences dropped because no token lies inside them.
	Skipped int

	// Truncated is set when sentences were cut off by MaxSentences.
	Truncated bool
}

// Aggregator mean-pools token vectors over sentence spans.
type Aggregator struct {
	// MaxSentences caps emitted sentences per document. 0 means no cap.
	MaxSentences int

	logger *slog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(maxSentences int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{MaxSentences: maxSentences, logger: logger}
}

// Aggregate returns one unit vector per sentence that contains at least one
// whole token. Tokens crossing a sentence boundary belong to neither side.
// Token spans and sentences must both be sorted by start offset.
func (a *Aggregator) Aggregate(tokens [][]float32, tokenSpans, sentences []span.Span) (Result, error) {
	if len(tokens) != len(tokenSpans) {
		return Result{}, nxerrors.Newf(nxerrors.ErrCodeEncoderShape,
			"%d token vectors for %d token spans", len(tokens), len(tokenSpans))
	}

	res := Result{
		Spans:      make([]span.Span, 0, len(sentences)),
		Embeddings: make([][]float32, 0, len(sentences)),
	}

	dims := 0
	if len(tokens) > 0 {
		dims = len(tokens[0])
	}

	first := 0
	for si, s := range sentences {
		if a.MaxSentences > 0 && len(res.Spans) == a.MaxSentences {
			res.Truncated = true
			a.logger.Warn("sentence cap reached",
				slog.Int("max_sentences", a.MaxSentences),
				slog.Int("dropped", len(sentences)-si))
			break
		}

		for first < len(tokenSpans) && tokenSpans[first].Start < s.Start {
			first++
		}

		sum := make([]float32, dims)
		count := 0
		for k := first; k < len(tokenSpans) && tokenSpans[k].Start < s.End; k++ {
			if !tokenSpans[k].Within(s) {
				continue
			}
			for d, x := range tokens[k] {
				sum[d] += x
			}
			count++
		}

		if count == 0 {
			res.Skipped++
			a.logger.Warn("sentence has no tokens, skipped",
				slog.Int("sentence", si),
				slog.String("span", s.String()))
			continue
		}

		for d := range sum {
			sum[d] /= float32(count)
		}
		res.Spans = append(res.Spans, s)
		res.Embeddings = append(res.Embeddings, embed.Normalize(sum))
	}

	return res, nil
}
