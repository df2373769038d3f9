package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "nextor")
	for _, sub := range []string{"ingest", "search", "repl", "serve", "watch", "status", "init", "logs", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "--version")

	require.NoError(t, err)
	assert.Contains(t, out, "nextor version")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "compact")

	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	// Given: a .env file and an unset variable
	dir := setupEnv(t)
	writeFile(t, filepath.Join(dir, ".env"), "NEXTOR_TOP_K=1\n")
	require.NoError(t, os.Unsetenv("NEXTOR_TOP_K"))

	// When: loading it
	require.NoError(t, loadDotEnv(".env"))

	// Then: the variable is set
	assert.Equal(t, "1", os.Getenv("NEXTOR_TOP_K"))
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	setupEnv(t)

	assert.NoError(t, loadDotEnv(".env"))
}

func TestLoadDotEnv_ExistingVariablesWin(t *testing.T) {
	dir := setupEnv(t)
	writeFile(t, filepath.Join(dir, ".env"), "NEXTOR_LOG_LEVEL=debug\n")
	t.Setenv("NEXTOR_LOG_LEVEL", "warn")

	require.NoError(t, loadDotEnv(".env"))

	assert.Equal(t, "warn", os.Getenv("NEXTOR_LOG_LEVEL"))
}

func TestLoadConfig_StorageRelativeToConfigFile(t *testing.T) {
	// Given: a config file in another directory with a relative storage root
	setupEnv(t)
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "nextor.yaml"), "storage:\n  root: data\n")

	// When: resolving the config
	configPath = filepath.Join(other, "nextor.yaml")
	storageDir = ""
	t.Cleanup(func() { configPath = "" })
	cfg, err := loadConfig()

	// Then: the root sits next to the file
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(other, "data"), cfg.Storage.Root)
}

func TestLoadConfig_StorageFlagWins(t *testing.T) {
	dir := setupEnv(t)
	writeFile(t, filepath.Join(dir, ".nextor.yaml"), "storage:\n  root: from-file\n")

	configPath, storageDir = "", "flag-root"
	t.Cleanup(func() { storageDir = "" })
	cfg, err := loadConfig()

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flag-root"), cfg.Storage.Root)
}

func TestRootCmd_ProfileFlagsWriteFiles(t *testing.T) {
	// Given: CPU and heap profiles requested for a quick command
	dir := setupEnv(t)
	cpu := filepath.Join(dir, "cpu.prof")
	mem := filepath.Join(dir, "heap.prof")

	// When: running it
	_, err := execute(t, "version", "--short", "--profile-cpu", cpu, "--profile-mem", mem)

	// Then: both files were written when the command returned
	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, mem)
	assert.Nil(t, profile)
}

func TestRootCmd_ProfileBadPath(t *testing.T) {
	dir := setupEnv(t)

	_, err := execute(t, "version", "--profile-cpu", filepath.Join(dir, "missing", "cpu.prof"))

	assert.Error(t, err)
}
