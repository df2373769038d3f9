// Package cmd provides the CLI commands for nextor.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/profiling"
	"github.com/MerijnSC/RAG-project/pkg/version"
)

// Global flags
var (
	configPath string
	storageDir string
	debugMode  bool
	noColor    bool

	profileOpts profiling.Options
	profile     *profiling.Session
)

// NewRootCmd creates the root command for the nextor CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nextor",
		Short: "Local retrieval over your documents",
		Long: `nextor ingests documents into a local vector store and answers
passage queries over them, from the terminal or as an MCP server.

Every document is split into sentences and embedded once at ingestion.
A query returns the best matching sentences together with their
surrounding context.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := loadDotEnv(".env"); err != nil {
				return err
			}
			return startProfiling()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return stopProfiling()
		},
	}

	cmd.SetVersionTemplate("nextor version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default .nextor.yaml in the working directory)")
	cmd.PersistentFlags().StringVar(&storageDir, "storage", "", "Storage root, overrides storage.root")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.nextor/logs/ and stderr")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&profileOpts.Mem, "profile-mem", "", "Write a heap profile to this file on exit")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write an execution trace to this file")
	for _, name := range []string{"profile-cpu", "profile-mem", "profile-trace"} {
		_ = cmd.PersistentFlags().MarkHidden(name)
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newReplCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadDotEnv reads NEXTOR_* overrides from a .env file. Variables already
// set in the environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return nxerrors.ConfigError(fmt.Sprintf("failed to read %s", path), err)
}

func startProfiling() error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodeWriteFailed, err)
	}
	profile = s
	return nil
}

// stopProfiling is also called from Execute because cobra skips post-run
// hooks when a command fails.
func stopProfiling() error {
	if profile == nil {
		return nil
	}
	err := profile.Stop()
	profile = nil
	if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodeWriteFailed, err)
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if stopErr := stopProfiling(); err == nil {
		err = stopErr
	}
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, nxerrors.FormatForCLI(err))
		slog.Debug("command failed", slog.Any("error", nxerrors.FormatForLog(err)))
		return 1
	}
	return 0
}
