// Package corpus holds every stored sentence embedding in one matrix and
// answers similarity queries over it.
//
// Rows are laid out document after document in the order documents were
// registered. A rangeindex maps each row back to its document, which bounds
// the context window returned around every hit.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MerijnSC/RAG-project/internal/encoder"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/rangeindex"
	"github.com/MerijnSC/RAG-project/internal/span"
	"github.com/MerijnSC/RAG-project/internal/store"
)

// Search backends
const (
	BackendExact = "exact"
	BackendHNSW  = "hnsw"
)

// Defaults
const (
	DefaultTopK          = 5
	DefaultSurroundingK  = 2
	DefaultTextCacheSize = 64
)

// Result is one search hit with its surrounding context.
type Result struct {
	Score      float32   `json:"score"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Span       span.Span `json:"span"`
	Text       string    `json:"text"`
}

// Stats summarizes the loaded corpus.
type Stats struct {
	Documents  int    `json:"documents"`
	Sentences  int    `json:"sentences"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model"`
	Backend    string `json:"backend"`
	Skipped    int    `json:"skipped"`
}

// Options configures a Corpus.
type Options struct {
	Backend       string
	TextCacheSize int
	Logger        *slog.Logger
}

// Corpus is the in-memory query engine over a storage root.
type Corpus struct {
	files   *store.FileStore
	encoder encoder.Encoder
	opts    Options
	logger  *slog.Logger
	texts   *lru.Cache[string, string]

	mu      sync.RWMutex
	dims    int
	vectors []float32 // row-major, len = rows*dims
	spans   []span.Span
	index   *rangeindex.Index
	ann     *store.HNSWIndex
	skipped int
}

// New creates an empty corpus. Call Reload to read the storage root.
func New(files *store.FileStore, enc encoder.Encoder, opts Options) (*Corpus, error) {
	if opts.Backend == "" {
		opts.Backend = BackendExact
	}
	if opts.Backend != BackendExact && opts.Backend != BackendHNSW {
		return nil, nxerrors.ConfigError(fmt.Sprintf("unknown search backend %q", opts.Backend), nil).
			WithSuggestion("use 'exact' or 'hnsw'")
	}
	if opts.TextCacheSize <= 0 {
		opts.TextCacheSize = DefaultTextCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	texts, err := lru.New[string, string](opts.TextCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create text cache: %w", err)
	}

	c := &Corpus{
		files:   files,
		encoder: enc,
		opts:    opts,
		logger:  opts.Logger,
		texts:   texts,
		dims:    enc.Dimensions(),
		index:   rangeindex.New(),
	}
	if opts.Backend == BackendHNSW {
		c.ann = store.NewHNSWIndex(store.HNSWConfig{Dimensions: c.dims})
	}
	return c, nil
}

// Load creates a corpus and fills it from storage.
func Load(ctx context.Context, files *store.FileStore, enc encoder.Encoder, opts Options) (*Corpus, error) {
	c, err := New(files, enc, opts)
	if err != nil {
		return nil, err
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds the corpus from the storage root, visiting document
// folders in name order. Incomplete and corrupt folders are skipped; a
// record whose dimension differs from the encoder's is fatal.
func (c *Corpus) Reload(ctx context.Context) error {
	ids, err := c.files.List()
	if err != nil {
		return err
	}
	if incomplete, err := c.files.Incomplete(); err == nil && len(incomplete) > 0 {
		c.logger.Warn("skipping incomplete documents", slog.Any("ids", incomplete))
	}

	next := &Corpus{dims: c.dims, index: rangeindex.New()}
	if c.opts.Backend == BackendHNSW {
		next.ann = store.NewHNSWIndex(store.HNSWConfig{Dimensions: c.dims})
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := c.files.Load(id)
		if err != nil {
			if nxerrors.GetCode(err) == nxerrors.ErrCodeFileCorrupt {
				next.skipped++
				c.logger.Error("skipping corrupt document",
					slog.String("id", id),
					slog.String("error", err.Error()))
				continue
			}
			return err
		}
		if rec.Model != c.encoder.ModelName() {
			c.logger.Warn("document encoded with a different model",
				slog.String("id", id),
				slog.String("stored", rec.Model),
				slog.String("current", c.encoder.ModelName()))
		}
		if err := next.appendRecord(rec); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.vectors, c.spans, c.index, c.ann, c.skipped = next.vectors, next.spans, next.index, next.ann, next.skipped
	c.mu.Unlock()
	c.texts.Purge()

	c.logger.Info("corpus loaded",
		slog.Int("documents", next.index.Len()),
		slog.Int("sentences", len(next.spans)),
		slog.String("backend", c.opts.Backend))
	return nil
}

// Add registers a stored record. It returns false without error when the
// document is already present.
func (c *Corpus) Add(rec *store.DocumentRecord) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index.Range(rec.ID); ok {
		return false, nil
	}
	if err := c.appendRecord(rec); err != nil {
		return false, err
	}
	c.texts.Add(rec.ID, rec.Text)
	return true, nil
}

// appendRecord registers the range, adds the rows to the graph and then
// appends them to the arrays. On error the corpus is left as it was.
// Caller holds the write lock or owns c exclusively.
func (c *Corpus) appendRecord(rec *store.DocumentRecord) error {
	for _, v := range rec.Embeddings {
		if len(v) != c.dims {
			return nxerrors.Newf(nxerrors.ErrCodeDimensionMismatch,
				"document %s has %d-dimensional embeddings, corpus uses %d", rec.ID, len(v), c.dims).
				WithSuggestion("re-ingest with --overwrite or switch back to the model the documents were built with")
		}
	}

	first := len(c.spans)
	if _, err := c.index.Append(rec.Len(), rec.ID); err != nil {
		return err
	}

	if c.ann != nil {
		if err := c.ann.Add(first, rec.Embeddings); err != nil {
			c.index.Remove(rec.ID)
			return nxerrors.New(nxerrors.ErrCodeSearchFailed, "add to hnsw index", err)
		}
	}

	for _, v := range rec.Embeddings {
		c.vectors = append(c.vectors, v...)
	}
	c.spans = append(c.spans, rec.Spans...)
	return nil
}

// Search embeds text and returns the topK best rows with up to surroundingK
// sentences of context on each side, never crossing a document boundary.
func (c *Corpus) Search(ctx context.Context, text string, topK, surroundingK int) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nxerrors.New(nxerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if surroundingK < 0 {
		return nil, nxerrors.Newf(nxerrors.ErrCodeInvalidInput, "surrounding_k must not be negative, got %d", surroundingK)
	}
	if topK <= 0 || c.Len() == 0 {
		return []Result{}, nil
	}

	q, err := c.encoder.EncodeQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return c.SearchVector(ctx, q, topK, surroundingK)
}

// SearchVector is Search for an already embedded, unit-length query.
func (c *Corpus) SearchVector(ctx context.Context, q []float32, topK, surroundingK int) ([]Result, error) {
	if surroundingK < 0 {
		return nil, nxerrors.Newf(nxerrors.ErrCodeInvalidInput, "surrounding_k must not be negative, got %d", surroundingK)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.spans)
	if topK <= 0 || n == 0 {
		return []Result{}, nil
	}
	if len(q) != c.dims {
		return nil, nxerrors.Newf(nxerrors.ErrCodeDimensionMismatch,
			"query has %d dimensions, corpus uses %d", len(q), c.dims)
	}
	topK = min(topK, n)

	var hits []hit
	if c.ann != nil {
		neighbors, err := c.ann.Search(q, topK)
		if err != nil {
			return nil, nxerrors.New(nxerrors.ErrCodeSearchFailed, "hnsw search", err)
		}
		hits = make([]hit, len(neighbors))
		for i, nb := range neighbors {
			hits[i] = hit{index: nb.Index, score: nb.Score}
		}
	} else {
		hits = c.exactTopK(q, topK)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := c.resolve(h, surroundingK)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// resolve clips the context window to the owning document and slices its
// text. Caller holds the read lock.
func (c *Corpus) resolve(h hit, k int) (Result, error) {
	entry, err := c.index.Lookup(h.index)
	if err != nil {
		return Result{}, nxerrors.IntegrityError(
			fmt.Sprintf("row %d of %d has no owning document", h.index, len(c.spans)), err)
	}

	lo := max(h.index-k, entry.Start)
	hi := min(h.index+k, entry.End-1)

	text, err := c.text(entry.DocumentID)
	if err != nil {
		return Result{}, err
	}

	sp := span.New(c.spans[lo].Start, c.spans[hi].End)
	if !sp.Valid(len(text)) {
		return Result{}, nxerrors.IntegrityError(
			fmt.Sprintf("context %s outside text of %s (%d bytes)", sp, entry.DocumentID, len(text)), nil)
	}

	return Result{
		Score:      h.score,
		DocumentID: entry.DocumentID,
		Index:      h.index,
		Span:       sp,
		Text:       text[sp.Start:sp.End],
	}, nil
}

// text returns a document's text through the LRU cache.
func (c *Corpus) text(id string) (string, error) {
	if t, ok := c.texts.Get(id); ok {
		return t, nil
	}
	t, err := c.files.LoadText(id)
	if err != nil {
		return "", err
	}
	c.texts.Add(id, t)
	return t, nil
}

// Len returns the number of rows.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.spans)
}

// Contains reports whether a document is registered.
func (c *Corpus) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index.Range(id)
	return ok
}

// Documents returns the registered non-empty ranges in row order.
func (c *Corpus) Documents() []rangeindex.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Ranges()
}

// Stats returns a summary of the loaded corpus.
func (c *Corpus) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Documents:  c.index.Len(),
		Sentences:  len(c.spans),
		Dimensions: c.dims,
		Model:      c.encoder.ModelName(),
		Backend:    c.opts.Backend,
		Skipped:    c.skipped,
	}
}
