package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MerijnSC/RAG-project/configs"
	"github.com/MerijnSC/RAG-project/internal/config"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/output"
)

// MCPServerConfig is one server entry in .mcp.json.
type MCPServerConfig struct {
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfig is the root of .mcp.json.
type MCPConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

const gitignoreEntry = "/storage/"

func newInitCmd() *cobra.Command {
	var force, withMCP bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .nextor.yaml for the current directory",
		Long: `Write the configuration template to .nextor.yaml (or the --config path).

An existing file is kept unless --force is given, in which case it is
backed up first. With --mcp the server is also registered in .mcp.json
so MCP clients started in this directory can find it.`,
		Example: `  nextor init
  nextor init --force --mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force, withMCP)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config (a backup is kept)")
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "Register the server in .mcp.json")

	return cmd
}

func runInit(cmd *cobra.Command, force, withMCP bool) error {
	out := output.New(cmd.OutOrStdout())

	path := configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(cwd, config.ProjectConfigName)
	}
	dir := filepath.Dir(path)

	if fileExists(path) {
		if !force {
			return nxerrors.New(nxerrors.ErrCodeInvalidInput, path+" already exists", nil).
				WithSuggestion("use --force to overwrite it")
		}
		backup, err := config.BackupConfig(path)
		if err != nil {
			return err
		}
		out.Statusf("💾", "Backed up existing config to %s", backup)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nxerrors.New(nxerrors.ErrCodeWriteFailed, "create "+dir, err)
	}
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return nxerrors.New(nxerrors.ErrCodeWriteFailed, "write "+path, err)
	}
	out.Statusf("📝", "Created %s", path)

	if added, err := ensureGitignore(dir); err != nil {
		out.Warningf("Could not update .gitignore: %v", err)
	} else if added {
		out.Statusf("📝", "Added %s to .gitignore", gitignoreEntry)
	}

	if withMCP {
		if err := configureMCPJSON(out, dir, force); err != nil {
			return err
		}
	}

	out.Newline()
	out.Success("Ready. Next steps:")
	out.Status("", "nextor ingest <path>      # add documents")
	out.Status("", "nextor search \"<query>\"   # ask a question")
	out.Status("", "nextor serve              # serve MCP clients")
	return nil
}

// ensureGitignore adds the default storage root to an existing .gitignore.
// Returns true if the file was changed.
func ensureGitignore(dir string) (bool, error) {
	path := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	for _, line := range strings.Split(string(content), "\n") {
		switch strings.TrimSpace(line) {
		case gitignoreEntry, "storage/", "/storage", "storage":
			return false, nil
		}
	}

	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, lineEnding...)
	}
	content = append(content, fmt.Sprintf("%s# nextor document storage%s%s%s",
		lineEnding, lineEnding, gitignoreEntry, lineEnding)...)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}
	return true, nil
}

// configureMCPJSON adds a nextor entry to .mcp.json, keeping other servers.
func configureMCPJSON(out *output.Writer, dir string, force bool) error {
	path := filepath.Join(dir, ".mcp.json")

	cfg := MCPConfig{MCPServers: make(map[string]MCPServerConfig)}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nxerrors.New(nxerrors.ErrCodeConfigInvalid, "failed to parse existing .mcp.json", err)
		}
		if cfg.MCPServers == nil {
			cfg.MCPServers = make(map[string]MCPServerConfig)
		}
		if _, exists := cfg.MCPServers["nextor"]; exists && !force {
			out.Status("ℹ️ ", "nextor already configured in .mcp.json")
			return nil
		}
	}

	bin, err := findBinary()
	if err != nil {
		return err
	}
	cfg.MCPServers["nextor"] = MCPServerConfig{
		Type:    "stdio",
		Command: bin,
		Args:    []string{"serve"},
		Cwd:     dir,
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal .mcp.json: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return nxerrors.New(nxerrors.ErrCodeWriteFailed, "write .mcp.json", err)
	}
	out.Statusf("📝", "Registered nextor in %s", path)
	return nil
}

// findBinary locates the running nextor executable, falling back to PATH.
func findBinary() (string, error) {
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			return resolved, nil
		}
		return execPath, nil
	}
	path, err := exec.LookPath("nextor")
	if err != nil {
		return "", fmt.Errorf("nextor not found in PATH: %w", err)
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
