package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/logging"
	"github.com/MerijnSC/RAG-project/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show nextor log output",
		Long: `Show the last lines of the nextor log (~/.nextor/logs/nextor.log).

Examples:
  nextor logs                     # last 50 entries
  nextor logs -f                  # follow new entries
  nextor logs --level warn        # warnings and errors only
  nextor logs --filter ingest     # entries matching a regex`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLogs(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show lines matching this regex")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Log file path")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	if opts.lines < 0 {
		return nxerrors.Newf(nxerrors.ErrCodeInvalidInput, "--lines must not be negative, got %d", opts.lines)
	}
	switch opts.level {
	case "", "debug", "info", "warn", "error":
	default:
		return nxerrors.Newf(nxerrors.ErrCodeInvalidInput, "unknown level %q", opts.level).
			WithSuggestion("Use one of: debug, info, warn, error")
	}

	cfg := logging.ViewerConfig{
		Level:   opts.level,
		NoColor: noColor || ui.DetectNoColor(),
	}
	if opts.filter != "" {
		re, err := regexp.Compile(opts.filter)
		if err != nil {
			return nxerrors.New(nxerrors.ErrCodeInvalidInput, fmt.Sprintf("invalid --filter pattern %q", opts.filter), err)
		}
		cfg.Pattern = re
	}

	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodeFileNotFound, err)
	}

	viewer := logging.NewViewer(cfg, cmd.OutOrStdout())
	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodeFilePermission, err)
	}
	viewer.Print(entries...)

	if !opts.follow {
		return nil
	}
	return viewer.Follow(ctx, path)
}
