// Package tokenize maps text to token ids with byte offsets.
package tokenize

import (
	"hash/fnv"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"

	"github.com/MerijnSC/RAG-project/internal/span"
)

// DefaultVocabSize matches the vocabulary size of BERT-family tokenizers so
// ids stay in a familiar range.
const DefaultVocabSize = 30522

// Tokenizer maps text to token ids and the byte span each token came from.
// Implementations must be safe for concurrent use.
type Tokenizer interface {
	// Tokenize returns ids and offsets of equal length, in text order.
	Tokenize(text string) ([]int, []span.Span)

	// Count returns the number of tokens Tokenize would produce.
	Count(text string) int

	// VocabSize returns the exclusive upper bound of token ids.
	VocabSize() int
}

// WordTokenizer splits on Unicode word boundaries (UAX #29) with bleve's
// unicode tokenizer, lowercases, and hashes each term into [0, vocab).
// Punctuation and whitespace produce no tokens; CJK ideographs produce one
// token per character.
type WordTokenizer struct {
	vocab int
	words *unicode.UnicodeTokenizer
	lower *lowercase.LowerCaseFilter
}

// NewWordTokenizer returns a tokenizer with the given vocabulary size.
// Non-positive sizes fall back to DefaultVocabSize.
func NewWordTokenizer(vocabSize int) *WordTokenizer {
	if vocabSize <= 0 {
		vocabSize = DefaultVocabSize
	}
	return &WordTokenizer{
		vocab: vocabSize,
		words: unicode.NewUnicodeTokenizer(),
		lower: lowercase.NewLowerCaseFilter(),
	}
}

// Tokenize implements Tokenizer.
func (t *WordTokenizer) Tokenize(text string) ([]int, []span.Span) {
	stream := t.stream(text)

	ids := make([]int, 0, len(stream))
	offsets := make([]span.Span, 0, len(stream))
	for _, tok := range stream {
		ids = append(ids, t.id(tok.Term))
		offsets = append(offsets, span.New(tok.Start, tok.End))
	}
	return ids, offsets
}

// Count implements Tokenizer.
func (t *WordTokenizer) Count(text string) int {
	return len(t.words.Tokenize([]byte(text)))
}

// VocabSize implements Tokenizer.
func (t *WordTokenizer) VocabSize() int {
	return t.vocab
}

// Terms returns the lowercased terms, mostly for debugging and tests.
func (t *WordTokenizer) Terms(text string) []string {
	stream := t.stream(text)
	out := make([]string, len(stream))
	for i, tok := range stream {
		out[i] = string(tok.Term)
	}
	return out
}

func (t *WordTokenizer) stream(text string) analysis.TokenStream {
	if text == "" {
		return nil
	}
	return t.lower.Filter(t.words.Tokenize([]byte(text)))
}

// id hashes a term with FNV-1a into the vocabulary.
func (t *WordTokenizer) id(term []byte) int {
	h := fnv.New32a()
	_, _ = h.Write(term)
	return int(h.Sum32() % uint32(t.vocab))
}

var _ Tokenizer = (*WordTokenizer)(nil)
