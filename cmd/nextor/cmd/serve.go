package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MerijnSC/RAG-project/internal/mcp"
	"github.com/MerijnSC/RAG-project/internal/ui"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		inbox     string
		polling   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Serve the corpus to MCP clients over stdio.

Tools: vector_search, corpus_status.
Resources: nextor://documents and nextor://documents/{documentId}.

With --inbox, files dropped into the directory are ingested while the
server runs and become searchable without a restart.

Logs go to ~/.nextor/logs/nextor.log; stdout carries only the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, transport, inbox, polling)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport (stdio)")
	cmd.Flags().StringVar(&inbox, "inbox", "", "Directory to watch and ingest while serving")
	cmd.Flags().BoolVar(&polling, "poll", false, "Poll the inbox instead of using file system notifications")

	return cmd
}

func runServe(ctx context.Context, transport, inbox string, polling bool) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openCorpus(ctx); err != nil {
		return err
	}
	stats := a.corpus.Stats()
	a.logger.Info("corpus loaded",
		slog.Int("documents", stats.Documents),
		slog.Int("sentences", stats.Sentences),
		slog.Int("skipped", stats.Skipped),
		slog.String("model", stats.Model))

	srv, err := mcp.NewServer(a.corpus, a.files, mcp.Options{
		TopK:         a.cfg.Search.TopK,
		SurroundingK: a.cfg.Search.SurroundingK,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}

	if inbox == "" {
		return srv.Serve(ctx, transport)
	}

	if err := a.openCatalog(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.watchInbox(ctx, inbox, polling, ui.Nop{}); err != nil {
			a.logger.Error("inbox stopped", slog.String("error", err.Error()))
		}
	}()

	err = srv.Serve(ctx, transport)
	cancel()
	wg.Wait()
	return err
}
