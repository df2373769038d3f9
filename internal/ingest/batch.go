package ingest

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/ui"
)

// Failure is one document that could not be ingested.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes a batch ingestion.
type Report struct {
	RunID     string
	Ingested  []string
	Skipped   []string
	Failures  []Failure
	Sentences int
	Duration  time.Duration
}

// Failed returns the number of failed documents.
func (r *Report) Failed() int { return len(r.Failures) }

// IngestAll processes files with up to Options.Workers documents in flight.
// The writer lock is held for the whole batch. A failing document is
// recorded in the report and does not stop the others; fatal errors and
// cancellation abort the batch.
func (p *Pipeline) IngestAll(ctx context.Context, files []string, overwrite bool) (*Report, error) {
	start := time.Now()
	report := &Report{}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if p.catalog != nil {
		if id, err := p.catalog.BeginRun(ctx); err != nil {
			p.logger.Warn("failed to record ingestion run", slog.String("error", err.Error()))
		} else {
			report.RunID = id
			p.writeMu.Lock()
			p.runID = id
			p.writeMu.Unlock()
		}
	}

	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageDiscover,
		Total:   len(files),
		Message: "found documents",
	})

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rec, outcome, err := p.ProcessDocument(gctx, path, overwrite)

			mu.Lock()
			defer mu.Unlock()
			done++

			switch {
			case err != nil && (nxerrors.IsFatal(err) || gctx.Err() != nil):
				return err
			case err != nil:
				report.Failures = append(report.Failures, Failure{Path: path, Err: err})
				p.renderer.AddError(ui.ErrorEvent{File: path, Err: err})
				p.logger.Warn("document failed",
					slog.String("path", path),
					slog.String("code", nxerrors.GetCode(err)),
					slog.String("error", err.Error()))
			case outcome == OutcomeSkipped:
				report.Skipped = append(report.Skipped, path)
			default:
				report.Ingested = append(report.Ingested, path)
				report.Sentences += rec.Len()
			}

			p.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageStore,
				Current:     done,
				Total:       len(files),
				CurrentFile: path,
			})
			return nil
		})
	}

	waitErr := g.Wait()

	sort.Strings(report.Ingested)
	sort.Strings(report.Skipped)
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Path < report.Failures[j].Path })
	report.Duration = time.Since(start)

	if p.catalog != nil && report.RunID != "" {
		// record the run even when the batch was cancelled
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := p.catalog.FinishRun(fctx, report.RunID, len(report.Ingested), len(report.Skipped), report.Failed()); err != nil {
			p.logger.Warn("failed to finish ingestion run", slog.String("error", err.Error()))
		}
		cancel()
	}

	p.writeMu.Lock()
	p.runID = ""
	p.writeMu.Unlock()

	if waitErr != nil {
		return report, waitErr
	}

	p.renderer.Complete(ui.CompletionStats{
		Documents:  len(report.Ingested),
		Sentences:  report.Sentences,
		Skipped:    len(report.Skipped),
		Failed:     report.Failed(),
		Duration:   report.Duration,
		Model:      p.encoder.ModelName(),
		Dimensions: p.encoder.Dimensions(),
	})

	p.logger.Info("ingestion finished",
		slog.String("run_id", report.RunID),
		slog.Int("ingested", len(report.Ingested)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", report.Failed()),
		slog.Duration("duration", report.Duration))

	return report, nil
}
