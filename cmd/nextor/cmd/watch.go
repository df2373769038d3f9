package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/ingest"
	"github.com/MerijnSC/RAG-project/internal/output"
	"github.com/MerijnSC/RAG-project/internal/ui"
	"github.com/MerijnSC/RAG-project/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var polling bool

	cmd := &cobra.Command{
		Use:   "watch <inbox>",
		Short: "Ingest files dropped into a directory",
		Long: `Ingest every matching file already in the inbox, then keep watching it.
New files are ingested, changed files are re-ingested. Removing a file
from the inbox leaves its stored document in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd, args[0], polling)
		},
	}

	cmd.Flags().BoolVar(&polling, "poll", false, "Poll the inbox instead of using file system notifications")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, inbox string, polling bool) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openEncoder(ctx); err != nil {
		return err
	}
	if err := a.openCatalog(); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("👀", "Watching %s (storage %s)", inbox, a.cfg.Storage.Root)

	return a.watchInbox(ctx, inbox, polling, ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout())))
}

// watchInbox sweeps the inbox once and then ingests its changes until ctx
// is cancelled.
func (a *app) watchInbox(ctx context.Context, inbox string, polling bool, renderer ui.Renderer) error {
	dir, err := filepath.Abs(inbox)
	if err != nil {
		return nxerrors.New(nxerrors.ErrCodeInvalidPath, "resolve inbox "+inbox, err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nxerrors.New(nxerrors.ErrCodeFileNotFound, "inbox is not a directory: "+inbox, err)
	}
	if storage, err := filepath.Abs(a.cfg.Storage.Root); err == nil && isWithin(storage, dir) {
		return nxerrors.New(nxerrors.ErrCodeInvalidPath, "inbox must not contain the storage root", nil).
			WithDetail("storage", storage)
	}

	filter := ingest.Filter{Include: a.cfg.Paths.Include, Exclude: a.cfg.Paths.Exclude}

	p, err := a.pipeline(renderer, 0)
	if err != nil {
		return err
	}

	files, err := ingest.Discover(ctx, []string{dir}, filter)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		report, err := p.IngestAll(ctx, files, false)
		if err != nil {
			return err
		}
		a.logger.Info("inbox sweep finished",
			slog.Int("ingested", len(report.Ingested)),
			slog.Int("skipped", len(report.Skipped)),
			slog.Int("failed", report.Failed()))
	}

	w, err := watcher.New(watcher.Options{
		DebounceWindow: a.cfg.WatchDebounce(),
		Match:          filter.Match,
		ForcePolling:   polling,
	})
	if err != nil {
		return err
	}
	w = w.WithLogger(a.logger)

	return watcher.NewInbox(w, ingestFile(p), a.logger).Run(ctx, dir)
}

// isWithin reports whether path is dir or lies below it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
