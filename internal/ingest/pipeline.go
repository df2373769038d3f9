// Package ingest turns document files into stored DocumentRecords and
// registers them with the corpus.
//
// A document is converted to text, split and embedded by the configured
// encoder, written to its storage folder, recorded in the catalog and
// appended to the corpus. Per-document failures are isolated; batch
// ingestion reports them and carries on.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MerijnSC/RAG-project/internal/corpus"
	"github.com/MerijnSC/RAG-project/internal/encoder"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/store"
	"github.com/MerijnSC/RAG-project/internal/ui"
)

// Defaults
const (
	DefaultWorkers     = 4
	DefaultLockTimeout = 10 * time.Second
	lockRetryInterval  = 100 * time.Millisecond
)

// Outcome describes what ingestion did with one document.
type Outcome int

const (
	// OutcomeIngested means the document was encoded and stored.
	OutcomeIngested Outcome = iota
	// OutcomeSkipped means both artifacts already existed and overwrite was off.
	OutcomeSkipped
	// OutcomeFailed means the document could not be ingested.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIngested:
		return "ingested"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dependencies contains the injected collaborators of a Pipeline.
type Dependencies struct {
	// Files persists document folders (required).
	Files *store.FileStore

	// Encoder produces sentence embeddings (required).
	Encoder encoder.Encoder

	// Converter extracts text from files. Defaults to a CommandConverter
	// without an external command.
	Converter Converter

	// Corpus receives every stored record. Optional.
	Corpus *corpus.Corpus

	// Catalog records documents and runs. Optional.
	Catalog *store.Catalog

	// Renderer reports progress. Defaults to ui.Nop.
	Renderer ui.Renderer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Options tunes a Pipeline.
type Options struct {
	// Workers bounds concurrent documents in IngestAll.
	Workers int

	// LockTimeout bounds the wait for the storage writer lock.
	LockTimeout time.Duration
}

// Pipeline ingests documents into one storage root.
type Pipeline struct {
	files     *store.FileStore
	encoder   encoder.Encoder
	converter Converter
	corpus    *corpus.Corpus
	catalog   *store.Catalog
	renderer  ui.Renderer
	logger    *slog.Logger
	opts      Options

	lock *store.FileLock

	// lockMu guards holders; the file lock is held while holders > 0.
	lockMu  sync.Mutex
	holders int

	// writeMu serializes persistence and corpus registration.
	writeMu sync.Mutex
	runID   string
}

// New creates a Pipeline.
func New(deps Dependencies, opts Options) (*Pipeline, error) {
	if deps.Files == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if deps.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Converter == nil {
		deps.Converter = NewCommandConverter(nil, deps.Logger)
	}
	if deps.Renderer == nil {
		deps.Renderer = ui.Nop{}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}

	return &Pipeline{
		files:     deps.Files,
		encoder:   deps.Encoder,
		converter: deps.Converter,
		corpus:    deps.Corpus,
		catalog:   deps.Catalog,
		renderer:  deps.Renderer,
		logger:    deps.Logger,
		opts:      opts,
		lock:      store.NewFileLock(deps.Files.Root()),
	}, nil
}

// acquire takes the storage writer lock, or joins a holder in this process.
func (p *Pipeline) acquire(ctx context.Context) (func(), error) {
	p.lockMu.Lock()
	defer p.lockMu.Unlock()

	if p.holders == 0 {
		lctx, cancel := context.WithTimeout(ctx, p.opts.LockTimeout)
		defer cancel()
		if err := p.lock.LockContext(lctx, lockRetryInterval); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
	}
	p.holders++

	var once sync.Once
	return func() {
		once.Do(func() {
			p.lockMu.Lock()
			defer p.lockMu.Unlock()
			p.holders--
			if p.holders == 0 {
				if err := p.lock.Unlock(); err != nil {
					p.logger.Warn("failed to release writer lock", slog.String("error", err.Error()))
				}
			}
		})
	}, nil
}

// Ingest encodes text as document docID and stores it. Without overwrite,
// a document whose artifacts both exist is left untouched and its stored
// record is returned with OutcomeSkipped.
func (p *Pipeline) Ingest(ctx context.Context, text, docID string, overwrite bool) (*store.DocumentRecord, Outcome, error) {
	return p.ingest(ctx, text, docID, "", overwrite)
}

// ProcessDocument converts the file at path and ingests it under the id
// derived from its base name. The document folder is created before
// conversion.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string, overwrite bool) (*store.DocumentRecord, Outcome, error) {
	id := store.DocumentID(path)
	if err := p.files.EnsureDir(id); err != nil {
		return nil, OutcomeFailed, withPath(err, path)
	}

	if !overwrite && p.files.Exists(id) {
		return p.skip(ctx, id, path)
	}

	p.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageConvert, CurrentFile: path})
	text, err := p.converter.Convert(ctx, path)
	if err != nil {
		return nil, OutcomeFailed, withPath(err, path)
	}

	return p.ingest(ctx, text, id, path, overwrite)
}

func (p *Pipeline) ingest(ctx context.Context, text, id, source string, overwrite bool) (*store.DocumentRecord, Outcome, error) {
	if err := store.ValidateID(id); err != nil {
		return nil, OutcomeFailed, err
	}
	if source == "" {
		source = id
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	defer release()

	if !overwrite && p.files.Exists(id) {
		return p.skip(ctx, id, source)
	}

	start := time.Now()
	p.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEncode, CurrentFile: source})
	enc, err := p.encoder.EncodeDocument(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, OutcomeFailed, ctx.Err()
		}
		return nil, OutcomeFailed, withPath(err, source)
	}

	rec := &store.DocumentRecord{
		ID:         id,
		Text:       text,
		Spans:      enc.Spans,
		Embeddings: enc.Embeddings,
		Model:      p.encoder.ModelName(),
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	// another worker may have stored the same id while we were encoding
	if !overwrite && p.files.Exists(id) {
		return p.skipLocked(ctx, id, source)
	}

	p.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageStore, CurrentFile: source})
	if err := p.files.Save(rec); err != nil {
		return nil, OutcomeFailed, withPath(err, source)
	}

	if err := p.register(ctx, rec, overwrite); err != nil {
		return nil, OutcomeFailed, err
	}

	if p.catalog != nil {
		entry := store.CatalogEntry{
			ID:         id,
			Source:     source,
			Model:      rec.Model,
			Sentences:  rec.Len(),
			Dimensions: rec.Dimensions(),
			TextBytes:  len(text),
			Skipped:    enc.Skipped,
			Truncated:  enc.Truncated,
			RunID:      p.runID,
			IngestedAt: time.Now(),
		}
		if err := p.catalog.Upsert(ctx, entry); err != nil {
			p.logger.Warn("failed to update catalog",
				slog.String("document", id),
				slog.String("error", err.Error()))
		}
	}

	p.logger.Info("document ingested",
		slog.String("document", id),
		slog.String("source", source),
		slog.Int("sentences", rec.Len()),
		slog.Int("skipped_sentences", enc.Skipped),
		slog.Bool("truncated", enc.Truncated),
		slog.Duration("duration", time.Since(start)))

	return rec, OutcomeIngested, nil
}

// register makes rec visible to queries. An overwritten document that the
// corpus already holds forces a reload so its rows are replaced.
func (p *Pipeline) register(ctx context.Context, rec *store.DocumentRecord, overwrite bool) error {
	if p.corpus == nil {
		return nil
	}
	if overwrite && p.corpus.Contains(rec.ID) {
		return p.corpus.Reload(ctx)
	}
	_, err := p.corpus.Add(rec)
	return err
}

func (p *Pipeline) skip(ctx context.Context, id, source string) (*store.DocumentRecord, Outcome, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.skipLocked(ctx, id, source)
}

// skipLocked loads the stored record and makes sure the corpus has it.
// Caller holds writeMu.
func (p *Pipeline) skipLocked(ctx context.Context, id, source string) (*store.DocumentRecord, Outcome, error) {
	p.logger.Info("skipping document, already processed",
		slog.String("document", id),
		slog.String("source", source))

	rec, err := p.files.Load(id)
	if err != nil {
		return nil, OutcomeFailed, withPath(err, source)
	}
	if p.corpus != nil && !p.corpus.Contains(id) {
		if _, err := p.corpus.Add(rec); err != nil {
			return nil, OutcomeFailed, err
		}
	}
	return rec, OutcomeSkipped, nil
}

func withPath(err error, path string) error {
	if ne, ok := nxerrors.As(err); ok {
		ne.WithDetail("path", path)
	}
	return err
}
