package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// Handler ingests one file. overwrite is set when a file that was already
// present has changed.
type Handler func(ctx context.Context, path string, overwrite bool) error

// Inbox feeds the files reported by a Watcher to a Handler, one at a time
// in path order per batch.
type Inbox struct {
	watcher *Watcher
	handle  Handler
	logger  *slog.Logger
}

// NewInbox creates an inbox.
func NewInbox(w *Watcher, handle Handler, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{watcher: w, handle: handle, logger: logger}
}

// Run watches dir until ctx is cancelled. Handler failures are logged and
// do not stop the inbox unless they are fatal.
func (in *Inbox) Run(ctx context.Context, dir string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- in.watcher.Start(ctx, dir)
	}()

	in.logger.Info("watching inbox",
		slog.String("dir", dir),
		slog.String("mode", in.watcher.Mode()))

	errs := in.watcher.Errors()
	for {
		select {
		case <-ctx.Done():
			_ = in.watcher.Stop()
			return nil
		case err := <-watchErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			in.logger.Warn("watcher error", slog.String("error", err.Error()))
		case batch, ok := <-in.watcher.Batches():
			if !ok {
				return nil
			}
			if err := in.process(ctx, batch); err != nil {
				_ = in.watcher.Stop()
				return err
			}
		}
	}
}

func (in *Inbox) process(ctx context.Context, batch []FileEvent) error {
	root := in.watcher.Root()
	for _, ev := range batch {
		if ctx.Err() != nil {
			return nil
		}

		switch ev.Operation {
		case OpDelete, OpRename:
			// stored documents are immutable, removal from the inbox keeps them
			in.logger.Debug("file left inbox", slog.String("path", ev.Path))
			continue
		}

		path := filepath.Join(root, filepath.FromSlash(ev.Path))
		if _, err := os.Stat(path); err != nil {
			continue
		}

		err := in.handle(ctx, path, ev.Operation == OpModify)
		switch {
		case err == nil:
		case nxerrors.IsFatal(err):
			return err
		case ctx.Err() != nil:
			return nil
		default:
			in.logger.Warn("failed to ingest inbox file",
				slog.String("path", path),
				slog.String("code", nxerrors.GetCode(err)),
				slog.String("error", err.Error()))
		}
	}
	return nil
}
