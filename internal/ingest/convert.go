package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// sniffLen is the number of bytes http.DetectContentType considers.
const sniffLen = 512

// Converter turns a document file into UTF-8 text.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// CommandConverter reads text and markdown files directly and hands every
// other format to an external command, such as docling, that writes a
// markdown file into an output directory.
//
// Command arguments may contain the placeholders {input} and {outdir}.
// After the command exits, the first .md file in outdir is the result; if
// there is none, the command's stdout is used.
type CommandConverter struct {
	Command []string
	logger  *slog.Logger
}

// NewCommandConverter creates a converter. An empty command means only
// text formats are supported.
func NewCommandConverter(command []string, logger *slog.Logger) *CommandConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandConverter{Command: command, logger: logger}
}

// Convert implements Converter.
func (c *CommandConverter) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nxerrors.New(nxerrors.ErrCodeFileNotFound, fmt.Sprintf("document not found: %s", path), err)
		}
		return "", nxerrors.New(nxerrors.ErrCodeFilePermission, fmt.Sprintf("cannot open %s", path), err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nxerrors.New(nxerrors.ErrCodeFilePermission, fmt.Sprintf("cannot read %s", path), err)
	}
	mime := DetectMimeType(path, head[:n])

	if IsText(mime) {
		rest, err := io.ReadAll(f)
		if err != nil {
			return "", nxerrors.New(nxerrors.ErrCodeFilePermission, fmt.Sprintf("cannot read %s", path), err)
		}
		c.logger.Debug("reading text document", slog.String("path", path), slog.String("mime", mime))
		return toValidUTF8(append(head[:n], rest...)), nil
	}

	if len(c.Command) == 0 {
		return "", nxerrors.Newf(nxerrors.ErrCodeUnsupportedFormat,
			"cannot process %s files yet: %s", mime, filepath.Base(path)).
			WithDetail("mime", mime).
			WithSuggestion("Set converter.command in .nextor.yaml to convert this format to markdown")
	}

	_ = f.Close()
	return c.runCommand(ctx, path, mime)
}

func (c *CommandConverter) runCommand(ctx context.Context, path, mime string) (string, error) {
	outDir, err := os.MkdirTemp("", "nextor-convert-*")
	if err != nil {
		return "", nxerrors.New(nxerrors.ErrCodeConversionFailed, "create conversion directory", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	args := make([]string, len(c.Command))
	for i, a := range c.Command {
		a = strings.ReplaceAll(a, "{input}", path)
		a = strings.ReplaceAll(a, "{outdir}", outDir)
		args[i] = a
	}

	c.logger.Info("converting document",
		slog.String("path", path),
		slog.String("mime", mime),
		slog.String("command", args[0]))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return "", nxerrors.New(nxerrors.ErrCodeConversionFailed,
			fmt.Sprintf("converting %s failed: %v", filepath.Base(path), err), err).
			WithDetail("stderr", msg)
	}

	if md, ok, err := firstMarkdown(outDir); err != nil {
		return "", nxerrors.New(nxerrors.ErrCodeConversionFailed, "read converter output", err)
	} else if ok {
		return toValidUTF8(md), nil
	}

	if stdout.Len() == 0 {
		return "", nxerrors.Newf(nxerrors.ErrCodeConversionFailed,
			"converter produced no output for %s", filepath.Base(path))
	}
	return toValidUTF8(stdout.Bytes()), nil
}

func firstMarkdown(dir string) ([]byte, bool, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil || len(matches) == 0 {
		return nil, false, err
	}
	b, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// toValidUTF8 drops invalid byte sequences so that span offsets always index
// valid text.
func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "")
}

// ConverterFunc adapts a function to a Converter.
type ConverterFunc func(ctx context.Context, path string) (string, error)

// Convert implements Converter.
func (f ConverterFunc) Convert(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}
