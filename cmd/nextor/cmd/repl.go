package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MerijnSC/RAG-project/internal/corpus"
	"github.com/MerijnSC/RAG-project/internal/ui"
)

func newReplCmd() *cobra.Command {
	var topK, surroundingK int

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Search interactively",
		Long: `Open an interactive search screen. The corpus is loaded once and every
query is answered from memory. Press esc or ctrl+c to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runRepl(ctx, topK, surroundingK)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (default search.top_k)")
	cmd.Flags().IntVarP(&surroundingK, "surrounding-k", "s", -1, "Context sentences on each side (default search.surrounding_k)")

	return cmd
}

func runRepl(ctx context.Context, topK, surroundingK int) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	topK, surroundingK = a.searchParams(topK, surroundingK)
	if err := a.openCorpus(ctx); err != nil {
		return err
	}

	return ui.RunSearch(ctx, replSearch(a.corpus, topK, surroundingK), noColor || ui.DetectNoColor())
}

// replSearch adapts corpus search to the search screen.
func replSearch(c *corpus.Corpus, topK, surroundingK int) ui.SearchFunc {
	return func(ctx context.Context, query string) ([]ui.Hit, error) {
		results, err := c.Search(ctx, query, topK, surroundingK)
		if err != nil {
			return nil, err
		}
		hits := make([]ui.Hit, len(results))
		for i, r := range results {
			hits[i] = ui.Hit{
				Score:    r.Score,
				Document: r.DocumentID,
				Span:     fmt.Sprintf("[%d:%d]", r.Span.Start, r.Span.End),
				Text:     r.Text,
			}
		}
		return hits, nil
	}
}
