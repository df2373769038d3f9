package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/store"
)

// =============================================================================
// TS01: Ingest command
// =============================================================================

func TestIngestCmd_StoresMatchingDocuments(t *testing.T) {
	// Given: a folder with two documents and one non-matching file
	dir := setupEnv(t)
	docs := writeDocs(t, dir)

	// When: ingesting it
	_, err := execute(t, "ingest", docs, "--plain")

	// Then: one folder per matching document with both artifacts
	require.NoError(t, err)
	files := store.NewFileStore(filepath.Join(dir, "storage"))
	ids, err := files.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"animals", "physics"}, ids)

	text, err := files.LoadText("animals")
	require.NoError(t, err)
	assert.Contains(t, text, "The cat sat on the mat.")

	catalog, err := store.OpenCatalog(filepath.Join(dir, "storage"))
	require.NoError(t, err)
	defer func() { _ = catalog.Close() }()
	entries, err := catalog.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestIngestCmd_SecondRunSkips(t *testing.T) {
	dir := setupEnv(t)
	docs := writeDocs(t, dir)
	_, err := execute(t, "ingest", docs)
	require.NoError(t, err)
	dataPath := filepath.Join(dir, "storage", "animals", store.DataFileName)
	before, err := os.Stat(dataPath)
	require.NoError(t, err)

	_, err = execute(t, "ingest", docs)

	require.NoError(t, err)
	after, err := os.Stat(dataPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestIngestCmd_DefaultsToWorkingDirectoryAndSkipsStorage(t *testing.T) {
	// Given: documents in the working directory and an earlier ingest
	dir := setupEnv(t)
	writeDocs(t, dir)
	_, err := execute(t, "ingest")
	require.NoError(t, err)

	// When: ingesting again with overwrite
	_, err = execute(t, "ingest", "--overwrite")

	// Then: stored text.md files were not ingested as documents
	require.NoError(t, err)
	ids, err := store.NewFileStore(filepath.Join(dir, "storage")).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"animals", "physics"}, ids)
}

func TestIngestCmd_IncludeFlagReplacesConfig(t *testing.T) {
	dir := setupEnv(t)
	docs := writeDocs(t, dir)

	_, err := execute(t, "ingest", docs, "--include", "**/*.txt")

	require.NoError(t, err)
	ids, err := store.NewFileStore(filepath.Join(dir, "storage")).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"physics"}, ids)
}

func TestIngestCmd_ExcludeFlag(t *testing.T) {
	dir := setupEnv(t)
	docs := writeDocs(t, dir)

	_, err := execute(t, "ingest", docs, "--exclude", "physics.*")

	require.NoError(t, err)
	ids, err := store.NewFileStore(filepath.Join(dir, "storage")).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"animals"}, ids)
}

func TestIngestCmd_NoDocuments(t *testing.T) {
	dir := setupEnv(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))

	out, err := execute(t, "ingest", "empty")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents found")
}

func TestIngestCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing path", []string{"ingest", "nope"}, nxerrors.ErrCodeFileNotFound},
		{"bad glob", []string{"ingest", ".", "--include", "[unclosed"}, nxerrors.ErrCodeConfigInvalid},
		{"negative workers", []string{"ingest", "--workers", "-1"}, nxerrors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)

			_, err := execute(t, tt.args...)

			require.Error(t, err)
			assert.Equal(t, tt.code, nxerrors.GetCode(err))
		})
	}
}

func TestIngestCmd_UnsupportedFormatFailsDocument(t *testing.T) {
	// Given: a PDF-named file that is not text and no converter command
	dir := setupEnv(t)
	writeFile(t, filepath.Join(dir, "in", "good.md"), "A short note about tea.")
	writeFile(t, filepath.Join(dir, "in", "scan.pdf"), "%PDF-1.7\x00\x01\x02\x03binary")

	// When: ingesting the folder
	_, err := execute(t, "ingest", "in")

	// Then: the batch reports the failure but keeps the good document
	require.Error(t, err)
	assert.Equal(t, nxerrors.ErrCodeIngestFailed, nxerrors.GetCode(err))
	ids, err := store.NewFileStore(filepath.Join(dir, "storage")).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, ids)
}

func TestOutsideRoot(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "storage")
	files := []string{
		filepath.Join(root, "a", "text.md"),
		filepath.Join(string(filepath.Separator), "data", "storage2", "b.md"),
		filepath.Join(string(filepath.Separator), "data", "c.md"),
	}

	kept := outsideRoot(files, root)

	assert.Equal(t, files[1:], kept)
}
