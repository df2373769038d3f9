package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name string
		path string
		head string
		want string
	}{
		{"markdown by extension", "notes.md", "# Title\n", MimeMarkdown},
		{"text by extension", "a.txt", "hello", MimePlain},
		{"pdf by content", "report.pdf", "%PDF-1.7\n", MimePDF},
		{"pdf content with text extension", "renamed.txt", "%PDF-1.4\n", MimePDF},
		{"no extension sniffed as text", "README", "plain words", MimePlain},
		{"docx by extension", "memo.DOCX", "PK\x03\x04", mimeTypes[".docx"]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMimeType(tt.path, []byte(tt.head)))
		})
	}
}

func TestCommandConverter_ReadsTextDirectly(t *testing.T) {
	// Given: a markdown file
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.md", "# Heading\n\nCats sleep. Dogs run.\n")
	c := NewCommandConverter(nil, nil)

	// When: converting
	text, err := c.Convert(context.Background(), path)

	// Then: the content is returned unchanged
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nCats sleep. Dogs run.\n", text)
}

func TestCommandConverter_DropsInvalidUTF8(t *testing.T) {
	// Given: a text file with an invalid byte
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.txt", "ok\xffdone")
	c := NewCommandConverter(nil, nil)

	// When: converting
	text, err := c.Convert(context.Background(), path)

	// Then: the invalid byte is removed
	require.NoError(t, err)
	assert.Equal(t, "okdone", text)
}

func TestCommandConverter_UnsupportedWithoutCommand(t *testing.T) {
	// Given: a PDF and no converter command
	dir := t.TempDir()
	path := writeFile(t, dir, "report.pdf", "%PDF-1.4\nbinary")
	c := NewCommandConverter(nil, nil)

	// When: converting
	_, err := c.Convert(context.Background(), path)

	// Then: the format is reported as unsupported
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeUnsupportedFormat, nxerrors.GetCode(err))
	ne, _ := nxerrors.As(err)
	assert.Equal(t, MimePDF, ne.Details["mime"])
	assert.NotEmpty(t, ne.Suggestion)
}

func TestCommandConverter_MissingFile(t *testing.T) {
	c := NewCommandConverter(nil, nil)

	_, err := c.Convert(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))

	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeFileNotFound, nxerrors.GetCode(err))
}

func TestCommandConverter_RunsCommandIntoOutdir(t *testing.T) {
	// Given: a command that copies its input into outdir as markdown
	dir := t.TempDir()
	path := writeFile(t, dir, "report.pdf", "%PDF-1.4\nconverted body")
	c := NewCommandConverter([]string{"sh", "-c", `cp "$0" "$1/out.md"`, "{input}", "{outdir}"}, nil)

	// When: converting
	text, err := c.Convert(context.Background(), path)

	// Then: the markdown written to outdir is returned
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4\nconverted body", text)
}

func TestCommandConverter_FallsBackToStdout(t *testing.T) {
	// Given: a command that prints to stdout and writes no file
	dir := t.TempDir()
	path := writeFile(t, dir, "report.pdf", "%PDF-1.4\n")
	c := NewCommandConverter([]string{"sh", "-c", "printf 'from stdout'", "{input}"}, nil)

	// When: converting
	text, err := c.Convert(context.Background(), path)

	// Then: stdout is the text
	require.NoError(t, err)
	assert.Equal(t, "from stdout", text)
}

func TestCommandConverter_CommandFailure(t *testing.T) {
	// Given: a command that exits non-zero
	dir := t.TempDir()
	path := writeFile(t, dir, "report.pdf", "%PDF-1.4\n")
	c := NewCommandConverter([]string{"sh", "-c", "echo broken >&2; exit 3"}, nil)

	// When: converting
	_, err := c.Convert(context.Background(), path)

	// Then: a conversion failure carries stderr
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeConversionFailed, nxerrors.GetCode(err))
	ne, _ := nxerrors.As(err)
	assert.Equal(t, "broken", ne.Details["stderr"])
}

func TestCommandConverter_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.pdf", "%PDF-1.4\n")
	c := NewCommandConverter([]string{"true"}, nil)

	_, err := c.Convert(context.Background(), path)

	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeConversionFailed, nxerrors.GetCode(err))
}
