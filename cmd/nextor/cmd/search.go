package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK         int
	surroundingK int
	format       string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the stored documents",
		Long: `Embed the query and return the best matching sentences, each with
up to --surrounding-k sentences of context from the same document.`,
		Example: `  nextor search "how are windows pooled"
  nextor search "retry policy" -k 10 -s 0
  nextor search "storage layout" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of results (default search.top_k)")
	cmd.Flags().IntVarP(&opts.surroundingK, "surrounding-k", "s", -1, "Context sentences on each side (default search.surrounding_k)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatText, "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if !output.ValidFormat(opts.format) {
		return nxerrors.Newf(nxerrors.ErrCodeInvalidInput, "unknown output format %q", opts.format).
			WithSuggestion("use --format text or --format json")
	}
	if strings.TrimSpace(query) == "" {
		return nxerrors.New(nxerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	topK, surroundingK := a.searchParams(opts.topK, opts.surroundingK)

	if err := a.openCorpus(ctx); err != nil {
		return err
	}
	if a.corpus.Len() == 0 {
		return nxerrors.New(nxerrors.ErrCodeInvalidQuery, "no documents in "+a.cfg.Storage.Root, nil).
			WithSuggestion("run 'nextor ingest <path>' first")
	}

	start := time.Now()
	results, err := a.corpus.Search(ctx, query, topK, surroundingK)
	if err != nil {
		return err
	}
	a.logger.Info("search_complete",
		slog.String("query", query),
		slog.Int("top_k", topK),
		slog.Int("surrounding_k", surroundingK),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	return output.New(cmd.OutOrStdout()).Results(query, results, opts.format)
}

// searchParams fills unset flag values from the configuration. A negative
// surrounding-k means unset.
func (a *app) searchParams(topK, surroundingK int) (int, int) {
	if topK <= 0 {
		topK = a.cfg.Search.TopK
	}
	if surroundingK < 0 {
		surroundingK = a.cfg.Search.SurroundingK
	}
	return topK, surroundingK
}
