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
)

type ingestOptions struct {
	overwrite bool
	include   []string
	exclude   []string
	workers   int
	plain     bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Ingest documents into the storage root",
		Long: `Convert, split and embed documents and store them under the storage root.

Directories are walked recursively and filtered by paths.include and
paths.exclude. Files named explicitly are always ingested. Documents that
are already stored are skipped unless --overwrite is given.`,
		Example: `  # Ingest the current directory
  nextor ingest

  # Ingest two folders with four workers
  nextor ingest docs/ papers/ --workers 4

  # Re-ingest a single file
  nextor ingest notes/meeting.md --overwrite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if len(args) == 0 {
				args = []string{"."}
			}
			return runIngest(ctx, cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Re-ingest documents that are already stored")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Glob of files to ingest, replaces paths.include (repeatable)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Glob of files to skip, added to paths.exclude (repeatable)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Documents processed concurrently (default performance.ingest_workers)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output without a progress bar")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, paths []string, opts ingestOptions) error {
	if opts.workers < 0 {
		return nxerrors.Newf(nxerrors.ErrCodeInvalidInput, "--workers must not be negative, got %d", opts.workers)
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	filter := ingest.Filter{Include: a.cfg.Paths.Include, Exclude: a.cfg.Paths.Exclude}
	if len(opts.include) > 0 {
		filter.Include = opts.include
	}
	filter.Exclude = append(append([]string(nil), filter.Exclude...), opts.exclude...)
	if err := ingest.ValidatePatterns(append(append([]string(nil), filter.Include...), filter.Exclude...)); err != nil {
		return err
	}

	files, err := ingest.Discover(ctx, paths, filter)
	if err != nil {
		return err
	}
	files = outsideRoot(files, a.cfg.Storage.Root)

	out := output.New(cmd.OutOrStdout())
	if len(files) == 0 {
		out.Warning("No documents found")
		return nil
	}

	a.logger.Info("ingest_started",
		slog.Int("files", len(files)),
		slog.String("storage", a.cfg.Storage.Root),
		slog.Bool("overwrite", opts.overwrite))

	if err := a.openEncoder(ctx); err != nil {
		return err
	}
	if err := a.openCatalog(); err != nil {
		return err
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(noColor || ui.DetectNoColor())))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	p, err := a.pipeline(renderer, opts.workers)
	if err != nil {
		return err
	}

	report, err := p.IngestAll(ctx, files, opts.overwrite)
	if err != nil {
		return err
	}
	if report.Failed() > 0 {
		return nxerrors.Newf(nxerrors.ErrCodeIngestFailed, "%d of %d documents failed", report.Failed(), len(files)).
			WithSuggestion("run with --debug for the individual errors")
	}
	return nil
}

// outsideRoot drops files that live inside the storage root, so ingesting
// a parent directory never feeds stored text back in.
func outsideRoot(files []string, root string) []string {
	prefix := filepath.Clean(root) + string(filepath.Separator)
	kept := files[:0]
	for _, f := range files {
		if !strings.HasPrefix(f, prefix) {
			kept = append(kept, f)
		}
	}
	return kept
}

// ingestFile is the watch handler: one file through the shared pipeline.
func ingestFile(p *ingest.Pipeline) func(ctx context.Context, path string, overwrite bool) error {
	return func(ctx context.Context, path string, overwrite bool) error {
		_, outcome, err := p.ProcessDocument(ctx, path, overwrite)
		if err != nil {
			return err
		}
		slog.Info("inbox file processed",
			slog.String("path", path),
			slog.String("outcome", outcome.String()))
		return nil
	}
}

