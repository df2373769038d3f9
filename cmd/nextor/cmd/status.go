package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MerijnSC/RAG-project/internal/embed"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/output"
	"github.com/MerijnSC/RAG-project/internal/store"
	"github.com/MerijnSC/RAG-project/internal/ui"
)

const embedderCheckTimeout = 3 * time.Second

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show storage and corpus status",
		Long: `Display information about the storage root:
  - stored and incomplete documents
  - sentence count, vector dimensions and model
  - last ingestion run and whether a writer is active
  - storage sizes (text, vectors, catalog)
  - embedder configuration and availability`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, format string) error {
	if !output.ValidFormat(format) {
		return nxerrors.Newf(nxerrors.ErrCodeInvalidInput, "unknown output format %q", format)
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	root := a.cfg.Storage.Root
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nxerrors.New(nxerrors.ErrCodeFileNotFound, "no storage found at "+root, err).
			WithSuggestion("run 'nextor ingest <path>' to create it")
	}

	info, err := a.collectStatus(ctx)
	if err != nil {
		return err
	}

	r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
	if format == output.FormatJSON {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}

// collectStatus gathers the status of an existing storage root. Counts come
// from the catalog; documents it does not know are decoded from disk.
func (a *app) collectStatus(ctx context.Context) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		StorageRoot:  a.cfg.Storage.Root,
		EmbedderType: a.cfg.Embeddings.Provider,
		EncoderMode:  a.cfg.Embeddings.Mode,
	}

	ids, err := a.files.List()
	if err != nil {
		return info, err
	}
	incomplete, err := a.files.Incomplete()
	if err != nil {
		return info, err
	}
	info.Documents = len(ids)
	info.Incomplete = len(incomplete)

	if err := a.openCatalog(); err != nil {
		return info, err
	}
	entries, err := a.catalog.List(ctx)
	if err != nil {
		return info, err
	}
	known := make(map[string]store.CatalogEntry, len(entries))
	for _, e := range entries {
		known[e.ID] = e
	}

	for _, id := range ids {
		e, ok := known[id]
		if !ok {
			rec, err := a.files.Load(id)
			if err != nil {
				a.logger.Warn("unreadable document", slog.String("id", id), slog.String("error", err.Error()))
				continue
			}
			e = store.CatalogEntry{Sentences: rec.Len(), Dimensions: rec.Dimensions(), Model: rec.Model}
		}
		info.Sentences += e.Sentences
		if info.Dimensions == 0 {
			info.Dimensions, info.Model = e.Dimensions, e.Model
		}
		if e.IngestedAt.After(info.LastIngest) {
			info.LastIngest = e.IngestedAt
		}
	}

	if run, err := a.catalog.LastRun(ctx); err == nil && run != nil {
		info.LastRunID = run.ID
		if run.FinishedAt.After(info.LastIngest) {
			info.LastIngest = run.FinishedAt
		}
	}

	lock := store.NewFileLock(a.cfg.Storage.Root)
	if acquired, err := lock.TryLock(); err == nil {
		info.Locked = !acquired
		_ = lock.Unlock()
	}

	if err := a.storageSizes(&info); err != nil {
		return info, err
	}

	info.EmbedderStatus, info.EmbedderModel = a.checkEmbedder(ctx)
	return info, nil
}

// storageSizes sums the artifact sizes under the storage root.
func (a *app) storageSizes(info *ui.StatusInfo) error {
	err := filepath.WalkDir(a.cfg.Storage.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		switch name := d.Name(); {
		case name == store.TextFileName:
			info.TextSize += fi.Size()
		case name == store.DataFileName:
			info.VectorSize += fi.Size()
		case strings.HasPrefix(name, store.CatalogFileName):
			// includes the -wal and -shm files
			info.CatalogSize += fi.Size()
		}
		info.TotalSize += fi.Size()
		return nil
	})
	if err != nil {
		return nxerrors.New(nxerrors.ErrCodeFilePermission, "walk storage root", err)
	}
	return nil
}

// checkEmbedder reports whether the configured embedding model answers.
func (a *app) checkEmbedder(ctx context.Context) (status, model string) {
	opts := a.cfg.EmbedOptions()
	if opts.Provider == embed.ProviderStatic {
		return "ready", embed.StaticModelName
	}

	ctx, cancel := context.WithTimeout(ctx, embedderCheckTimeout)
	defer cancel()

	reg := embed.NewRegistry(a.logger)
	defer func() { _ = reg.Close() }()

	e, err := reg.Embedder(ctx, opts)
	if err != nil {
		return "offline", opts.Model
	}
	if !e.Available(ctx) {
		return "offline", e.ModelName()
	}
	return "ready", e.ModelName()
}
