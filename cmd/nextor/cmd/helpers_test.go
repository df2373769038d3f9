package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupEnv isolates a test from the user's home, config and NEXTOR_*
// environment and moves it into a fresh working directory.
func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{
		"NEXTOR_STORAGE", "NEXTOR_EMBEDDINGS_PROVIDER", "NEXTOR_EMBEDDINGS_MODEL",
		"NEXTOR_EMBEDDINGS_MODE", "NEXTOR_OLLAMA_HOST", "NEXTOR_LOG_LEVEL",
		"NEXTOR_SEARCH_BACKEND", "NEXTOR_TOP_K", "NEXTOR_SURROUNDING_K",
	} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// execute runs the CLI with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeDocs creates a small document folder under dir.
func writeDocs(t *testing.T, dir string) string {
	t.Helper()
	docs := filepath.Join(dir, "docs")
	writeFile(t, filepath.Join(docs, "animals.md"),
		"# Animals\n\nThe cat sat on the mat. Dogs chase cats through the park. Birds sing in the morning.\n")
	writeFile(t, filepath.Join(docs, "physics.txt"),
		"Quantum physics studies very small particles. Energy comes in discrete packets. Light behaves as a wave and as a particle.\n")
	writeFile(t, filepath.Join(docs, "ignored.go"), "package ignored\n")
	return docs
}
