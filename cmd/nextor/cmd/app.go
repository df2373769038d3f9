package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MerijnSC/RAG-project/internal/config"
	"github.com/MerijnSC/RAG-project/internal/corpus"
	"github.com/MerijnSC/RAG-project/internal/embed"
	"github.com/MerijnSC/RAG-project/internal/encoder"
	"github.com/MerijnSC/RAG-project/internal/ingest"
	"github.com/MerijnSC/RAG-project/internal/logging"
	"github.com/MerijnSC/RAG-project/internal/store"
	"github.com/MerijnSC/RAG-project/internal/ui"
)

// app holds the components shared by the commands. Fields are filled on
// demand by the open* methods; close releases whatever was opened.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	files    *store.FileStore
	registry *embed.Registry
	encoder  encoder.Encoder
	catalog  *store.Catalog
	corpus   *corpus.Corpus

	closers []func()
}

// loadConfig resolves the configuration from the global flags. A relative
// storage root in a config file is taken relative to that file.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cwd, werr := os.Getwd()
		if werr != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", werr)
		}
		cfg, err = config.Load(cwd)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case storageDir != "":
		cfg.Storage.Root = storageDir
	case !filepath.IsAbs(cfg.Storage.Root) && cfg.Source() != "":
		cfg.Storage.Root = filepath.Join(filepath.Dir(cfg.Source()), cfg.Storage.Root)
	}
	if abs, err := filepath.Abs(cfg.Storage.Root); err == nil {
		cfg.Storage.Root = abs
	}
	return cfg, nil
}

// newApp loads the configuration and sets up logging. serving keeps every
// log line off the standard streams.
func newApp(serving bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	switch {
	case serving:
		logCfg = logging.ServeConfig(cfg.Server.LogLevel)
		if debugMode {
			logCfg.Level = "debug"
		}
	case debugMode:
		logCfg = logging.DebugConfig()
	}

	a := &app{cfg: cfg, files: store.NewFileStore(cfg.Storage.Root)}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// the log directory is not essential
		logger, cleanup = logging.Discard(), func() {}
	}
	a.logger = logger
	a.closers = append(a.closers, cleanup)
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		slog.String("source", cfg.Source()),
		slog.String("storage", cfg.Storage.Root),
		slog.String("mode", cfg.Embeddings.Mode),
		slog.String("provider", cfg.Embeddings.Provider))
	return a, nil
}

// openEncoder builds the configured encoder.
func (a *app) openEncoder(ctx context.Context) error {
	if a.encoder != nil {
		return nil
	}
	a.registry = embed.NewRegistry(a.logger)
	a.closers = append(a.closers, func() { _ = a.registry.Close() })

	enc, err := encoder.New(ctx, a.registry, a.cfg.EncoderConfig(), a.logger)
	if err != nil {
		return err
	}
	a.encoder = enc
	return nil
}

// openCatalog opens the catalog, creating the storage root if needed.
func (a *app) openCatalog() error {
	if a.catalog != nil {
		return nil
	}
	catalog, err := store.OpenCatalog(a.cfg.Storage.Root)
	if err != nil {
		return err
	}
	a.catalog = catalog
	a.closers = append(a.closers, func() { _ = catalog.Close() })
	return nil
}

// openCorpus loads every stored document into memory.
func (a *app) openCorpus(ctx context.Context) error {
	if a.corpus != nil {
		return nil
	}
	if err := a.openEncoder(ctx); err != nil {
		return err
	}
	opts := a.cfg.CorpusOptions()
	opts.Logger = a.logger
	c, err := corpus.Load(ctx, a.files, a.encoder, opts)
	if err != nil {
		return err
	}
	a.corpus = c
	return nil
}

// pipeline builds an ingestion pipeline over the opened components.
func (a *app) pipeline(renderer ui.Renderer, workers int) (*ingest.Pipeline, error) {
	if workers <= 0 {
		workers = a.cfg.Performance.IngestWorkers
	}
	return ingest.New(ingest.Dependencies{
		Files:     a.files,
		Encoder:   a.encoder,
		Converter: ingest.NewCommandConverter(a.cfg.Converter.Command, a.logger),
		Corpus:    a.corpus,
		Catalog:   a.catalog,
		Renderer:  renderer,
		Logger:    a.logger,
	}, ingest.Options{Workers: workers})
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
