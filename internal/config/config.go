// Package config loads nextor configuration from defaults, the user config,
// the project config and NEXTOR_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MerijnSC/RAG-project/internal/corpus"
	"github.com/MerijnSC/RAG-project/internal/embed"
	"github.com/MerijnSC/RAG-project/internal/encoder"
	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/pooling"
)

// Project config file names, in lookup order.
const (
	ProjectConfigName    = ".nextor.yaml"
	ProjectConfigAltName = ".nextor.yml"
)

// Config represents the complete nextor configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Pooling     PoolingConfig     `yaml:"pooling" json:"pooling"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Converter   ConverterConfig   `yaml:"converter" json:"converter"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`

	// path of the project config that was loaded, if any
	source string
}

// StorageConfig locates the document store.
type StorageConfig struct {
	Root string `yaml:"root" json:"root"`
}

// PathsConfig configures which files ingest picks up from directories.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// EmbeddingsConfig selects the encoder mode and embedding models.
type EmbeddingsConfig struct {
	// Mode is "pooled" (token encoder with window pooling) or "sentence"
	// (one text embedding per sentence).
	Mode string `yaml:"mode" json:"mode"`

	// Provider is "static" or "ollama".
	Provider string `yaml:"provider" json:"provider"`

	// Model and Dimensions left empty use the provider's defaults; Ollama
	// detects its dimension from the model.
	Model             string `yaml:"model" json:"model"`
	Dimensions        int    `yaml:"dimensions" json:"dimensions"`
	VocabSize         int    `yaml:"vocab_size" json:"vocab_size"`
	MaxLength         int    `yaml:"max_length" json:"max_length"`
	MaxTokensPerBatch int    `yaml:"max_tokens_per_batch" json:"max_tokens_per_batch"`
	OllamaHost        string `yaml:"ollama_host" json:"ollama_host"`
	Timeout           string `yaml:"timeout" json:"timeout"`
}

// PoolingConfig configures pooled mode.
type PoolingConfig struct {
	Mode          string `yaml:"mode" json:"mode"`
	ContextLength int    `yaml:"context_length" json:"context_length"`
	Stride        int    `yaml:"stride" json:"stride"`
	BatchSize     int    `yaml:"batch_size" json:"batch_size"`

	// MaxSentences caps sentences per document. 0 means no cap.
	MaxSentences int `yaml:"max_sentences" json:"max_sentences"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	TopK         int    `yaml:"top_k" json:"top_k"`
	SurroundingK int    `yaml:"surrounding_k" json:"surrounding_k"`
	Backend      string `yaml:"backend" json:"backend"`
}

// ConverterConfig configures the external converter for non-text formats.
// {input} and {outdir} in Command are replaced per document.
type ConverterConfig struct {
	Command []string `yaml:"command" json:"command"`
}

// PerformanceConfig contains tuning parameters.
type PerformanceConfig struct {
	IngestWorkers  int    `yaml:"ingest_workers" json:"ingest_workers"`
	QueryCacheSize int    `yaml:"query_cache_size" json:"query_cache_size"`
	TextCacheSize  int    `yaml:"text_cache_size" json:"text_cache_size"`
	WatchDebounce  string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures logging for long-running commands.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultInclude is the default set of ingested file patterns.
var DefaultInclude = []string{"**/*.md", "**/*.txt", "**/*.markdown", "**/*.pdf"}

// DefaultExclude is always excluded from directory walks.
var DefaultExclude = []string{"**/.git/**", "**/node_modules/**"}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{Root: "storage"},
		Paths: PathsConfig{
			Include: append([]string(nil), DefaultInclude...),
			Exclude: append([]string(nil), DefaultExclude...),
		},
		Embeddings: EmbeddingsConfig{
			Mode:              encoder.ModePooled,
			Provider:          embed.ProviderStatic,
			VocabSize:         30522,
			MaxLength:         embed.DefaultMaxLength,
			MaxTokensPerBatch: embed.DefaultMaxTokensPerBatch,
			OllamaHost:        "http://localhost:11434",
			Timeout:           "60s",
		},
		Pooling: PoolingConfig{
			Mode:          string(pooling.ModeSum),
			ContextLength: pooling.DefaultContextLength,
			Stride:        pooling.DefaultStride,
			BatchSize:     pooling.DefaultBatchSize,
		},
		Search: SearchConfig{
			TopK:         corpus.DefaultTopK,
			SurroundingK: corpus.DefaultSurroundingK,
			Backend:      corpus.BackendExact,
		},
		Performance: PerformanceConfig{
			IngestWorkers:  4,
			QueryCacheSize: 1000,
			TextCacheSize:  corpus.DefaultTextCacheSize,
			WatchDebounce:  "500ms",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/nextor/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/nextor/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nextor", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "nextor", "config.yaml")
	}
	return filepath.Join(home, ".config", "nextor", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	parsed, _, err := parseYAML(configPath)
	return parsed, err
}

// Load loads configuration for a project directory. It applies, in order
// of increasing precedence:
//  1. Defaults
//  2. User config (~/.config/nextor/config.yaml)
//  3. Project config (.nextor.yaml or .nextor.yml in dir)
//  4. Environment variables (NEXTOR_*)
func Load(dir string) (*Config, error) {
	path := ""
	for _, name := range []string{ProjectConfigName, ProjectConfigAltName} {
		if p := filepath.Join(dir, name); fileExists(p) {
			path = p
			break
		}
	}
	return load(path)
}

// LoadFile is Load with an explicit project config file, which must exist.
func LoadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, nxerrors.New(nxerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file %s not found", path), nil).
			WithSuggestion("run 'nextor init' to create one")
	}
	return load(path)
}

func load(projectPath string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if projectPath != "" {
		if err := cfg.mergeFile(projectPath); err != nil {
			return nil, err
		}
		cfg.source = projectPath
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Source returns the project config file that was loaded, or "".
func (c *Config) Source() string {
	return c.source
}

// zeroable lists settings whose zero value is meaningful, so presence in
// a file has to be detected separately from the value.
type zeroable struct {
	Search struct {
		SurroundingK *int `yaml:"surrounding_k"`
	} `yaml:"search"`
	Pooling struct {
		MaxSentences *int `yaml:"max_sentences"`
	} `yaml:"pooling"`
	Performance struct {
		QueryCacheSize *int `yaml:"query_cache_size"`
	} `yaml:"performance"`
}

func (c *Config) mergeFile(path string) error {
	parsed, explicit, err := parseYAML(path)
	if err != nil {
		return err
	}
	c.mergeWith(parsed)
	if v := explicit.Search.SurroundingK; v != nil {
		c.Search.SurroundingK = *v
	}
	if v := explicit.Pooling.MaxSentences; v != nil {
		c.Pooling.MaxSentences = *v
	}
	if v := explicit.Performance.QueryCacheSize; v != nil {
		c.Performance.QueryCacheSize = *v
	}
	return nil
}

func parseYAML(path string) (*Config, *zeroable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, nil, nxerrors.New(nxerrors.ErrCodeConfigPermission,
				fmt.Sprintf("cannot read config file %s", path), err)
		}
		return nil, nil, nxerrors.New(nxerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	var explicit zeroable
	err = yaml.Unmarshal(data, &parsed)
	if err == nil {
		err = yaml.Unmarshal(data, &explicit)
	}
	if err != nil {
		return nil, nil, nxerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return &parsed, &explicit, nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Storage.Root != "" {
		c.Storage.Root = other.Storage.Root
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		// added to the defaults rather than replacing them
		c.Paths.Exclude = appendUnique(c.Paths.Exclude, other.Paths.Exclude...)
	}

	e := other.Embeddings
	if e.Mode != "" {
		c.Embeddings.Mode = e.Mode
	}
	if e.Provider != "" {
		c.Embeddings.Provider = e.Provider
	}
	if e.Model != "" {
		c.Embeddings.Model = e.Model
	}
	if e.Dimensions != 0 {
		c.Embeddings.Dimensions = e.Dimensions
	}
	if e.VocabSize != 0 {
		c.Embeddings.VocabSize = e.VocabSize
	}
	if e.MaxLength != 0 {
		c.Embeddings.MaxLength = e.MaxLength
	}
	if e.MaxTokensPerBatch != 0 {
		c.Embeddings.MaxTokensPerBatch = e.MaxTokensPerBatch
	}
	if e.OllamaHost != "" {
		c.Embeddings.OllamaHost = e.OllamaHost
	}
	if e.Timeout != "" {
		c.Embeddings.Timeout = e.Timeout
	}

	p := other.Pooling
	if p.Mode != "" {
		c.Pooling.Mode = p.Mode
	}
	if p.ContextLength != 0 {
		c.Pooling.ContextLength = p.ContextLength
	}
	if p.Stride != 0 {
		c.Pooling.Stride = p.Stride
	}
	if p.BatchSize != 0 {
		c.Pooling.BatchSize = p.BatchSize
	}
	if p.MaxSentences != 0 {
		c.Pooling.MaxSentences = p.MaxSentences
	}

	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.SurroundingK != 0 {
		c.Search.SurroundingK = other.Search.SurroundingK
	}
	if other.Search.Backend != "" {
		c.Search.Backend = other.Search.Backend
	}

	if len(other.Converter.Command) > 0 {
		c.Converter.Command = other.Converter.Command
	}

	perf := other.Performance
	if perf.IngestWorkers != 0 {
		c.Performance.IngestWorkers = perf.IngestWorkers
	}
	if perf.QueryCacheSize != 0 {
		c.Performance.QueryCacheSize = perf.QueryCacheSize
	}
	if perf.TextCacheSize != 0 {
		c.Performance.TextCacheSize = perf.TextCacheSize
	}
	if perf.WatchDebounce != "" {
		c.Performance.WatchDebounce = perf.WatchDebounce
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies NEXTOR_* environment variable overrides.
// Unparseable numbers are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NEXTOR_STORAGE"); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv("NEXTOR_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("NEXTOR_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("NEXTOR_EMBEDDINGS_MODE"); v != "" {
		c.Embeddings.Mode = v
	}
	if v := os.Getenv("NEXTOR_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("NEXTOR_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("NEXTOR_SEARCH_BACKEND"); v != "" {
		c.Search.Backend = v
	}
	if v := os.Getenv("NEXTOR_TOP_K"); v != "" {
		if k, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Search.TopK = k
		}
	}
	if v := os.Getenv("NEXTOR_SURROUNDING_K"); v != "" {
		if k, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Search.SurroundingK = k
		}
	}
}

// Validate checks the configuration. Every problem is an
// ERR_102_CONFIG_INVALID error naming the offending key.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return nxerrors.ConfigError(fmt.Sprintf("%s: %s", key, fmt.Sprintf(format, args...)), nil).
			WithDetail("key", key)
	}

	if strings.TrimSpace(c.Storage.Root) == "" {
		return invalid("storage.root", "must not be empty")
	}

	switch strings.ToLower(c.Embeddings.Mode) {
	case encoder.ModePooled, encoder.ModeSentence:
	default:
		return invalid("embeddings.mode", "must be 'pooled' or 'sentence', got %q", c.Embeddings.Mode)
	}
	switch strings.ToLower(c.Embeddings.Provider) {
	case embed.ProviderStatic, embed.ProviderOllama:
	default:
		return invalid("embeddings.provider", "must be 'static' or 'ollama', got %q", c.Embeddings.Provider)
	}
	if strings.EqualFold(c.Embeddings.Mode, encoder.ModePooled) && !strings.EqualFold(c.Embeddings.Provider, embed.ProviderStatic) {
		return invalid("embeddings.mode", "pooled mode needs a token encoder; provider %q only embeds text, use mode 'sentence'", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return invalid("embeddings.dimensions", "must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.VocabSize <= 0 {
		return invalid("embeddings.vocab_size", "must be positive, got %d", c.Embeddings.VocabSize)
	}
	if c.Embeddings.MaxLength <= 0 {
		return invalid("embeddings.max_length", "must be positive, got %d", c.Embeddings.MaxLength)
	}
	if c.Embeddings.MaxTokensPerBatch <= 0 {
		return invalid("embeddings.max_tokens_per_batch", "must be positive, got %d", c.Embeddings.MaxTokensPerBatch)
	}
	if _, err := parseDuration(c.Embeddings.Timeout); err != nil {
		return invalid("embeddings.timeout", "%v", err)
	}

	switch pooling.Mode(strings.ToLower(c.Pooling.Mode)) {
	case pooling.ModeSum, pooling.ModeWeighted:
	default:
		return invalid("pooling.mode", "must be 'sum' or 'weighted', got %q", c.Pooling.Mode)
	}
	if c.Pooling.ContextLength <= 0 {
		return invalid("pooling.context_length", "must be positive, got %d", c.Pooling.ContextLength)
	}
	if c.Pooling.ContextLength > c.Embeddings.MaxLength {
		return nxerrors.New(nxerrors.ErrCodeContextLength,
			fmt.Sprintf("pooling.context_length %d exceeds embeddings.max_length %d", c.Pooling.ContextLength, c.Embeddings.MaxLength), nil).
			WithDetail("key", "pooling.context_length")
	}
	if c.Pooling.Stride <= 0 || c.Pooling.Stride > c.Pooling.ContextLength {
		return invalid("pooling.stride", "must be in [1, context_length], got %d", c.Pooling.Stride)
	}
	if c.Pooling.BatchSize <= 0 {
		return invalid("pooling.batch_size", "must be positive, got %d", c.Pooling.BatchSize)
	}
	if c.Pooling.MaxSentences < 0 {
		return invalid("pooling.max_sentences", "must be non-negative, got %d", c.Pooling.MaxSentences)
	}

	if c.Search.TopK <= 0 {
		return invalid("search.top_k", "must be positive, got %d", c.Search.TopK)
	}
	if c.Search.SurroundingK < 0 {
		return invalid("search.surrounding_k", "must be non-negative, got %d", c.Search.SurroundingK)
	}
	switch strings.ToLower(c.Search.Backend) {
	case corpus.BackendExact, corpus.BackendHNSW:
	default:
		return invalid("search.backend", "must be 'exact' or 'hnsw', got %q", c.Search.Backend)
	}

	if c.Performance.IngestWorkers <= 0 {
		return invalid("performance.ingest_workers", "must be positive, got %d", c.Performance.IngestWorkers)
	}
	if c.Performance.QueryCacheSize < 0 {
		return invalid("performance.query_cache_size", "must be non-negative, got %d", c.Performance.QueryCacheSize)
	}
	if c.Performance.TextCacheSize <= 0 {
		return invalid("performance.text_cache_size", "must be positive, got %d", c.Performance.TextCacheSize)
	}
	if _, err := parseDuration(c.Performance.WatchDebounce); err != nil {
		return invalid("performance.watch_debounce", "%v", err)
	}

	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("server.log_level", "must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// EmbedOptions returns the model options for the embed registry.
func (c *Config) EmbedOptions() embed.Options {
	timeout, _ := parseDuration(c.Embeddings.Timeout)
	return embed.Options{
		Provider:   strings.ToLower(c.Embeddings.Provider),
		Model:      c.Embeddings.Model,
		Dimensions: c.Embeddings.Dimensions,
		VocabSize:  c.Embeddings.VocabSize,
		MaxLength:  c.Embeddings.MaxLength,
		OllamaHost: c.Embeddings.OllamaHost,
		Timeout:    timeout,
		CacheSize:  c.Performance.QueryCacheSize,
	}
}

// EncoderConfig returns the encoder selection for encoder.New.
func (c *Config) EncoderConfig() encoder.Config {
	return encoder.Config{
		Mode:  strings.ToLower(c.Embeddings.Mode),
		Embed: c.EmbedOptions(),
		Pooling: pooling.Options{
			ContextLength: c.Pooling.ContextLength,
			Stride:        c.Pooling.Stride,
			BatchSize:     c.Pooling.BatchSize,
			Mode:          pooling.Mode(strings.ToLower(c.Pooling.Mode)),
		},
		MaxSentences:      c.Pooling.MaxSentences,
		MaxTokensPerBatch: c.Embeddings.MaxTokensPerBatch,
	}
}

// CorpusOptions returns the corpus construction options, without a logger.
func (c *Config) CorpusOptions() corpus.Options {
	return corpus.Options{
		Backend:       strings.ToLower(c.Search.Backend),
		TextCacheSize: c.Performance.TextCacheSize,
	}
}

// WatchDebounce returns the parsed watcher debounce window.
func (c *Config) WatchDebounce() time.Duration {
	d, _ := parseDuration(c.Performance.WatchDebounce)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s is negative", s)
	}
	return d, nil
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
