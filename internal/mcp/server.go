package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MerijnSC/RAG-project/internal/corpus"
	"github.com/MerijnSC/RAG-project/internal/rangeindex"
	"github.com/MerijnSC/RAG-project/internal/store"
	"github.com/MerijnSC/RAG-project/pkg/version"
)

// ServerName is reported to clients during initialization.
const ServerName = "nextor"

// Searcher is the part of the corpus the server needs.
type Searcher interface {
	Search(ctx context.Context, text string, topK, surroundingK int) ([]corpus.Result, error)
	Stats() corpus.Stats
	Documents() []rangeindex.Entry
}

// Options configures the server defaults.
type Options struct {
	// TopK is used when a call omits top_k.
	TopK int

	// SurroundingK is used when a call omits surrounding_k.
	SurroundingK int

	Logger *slog.Logger
}

// Server is the MCP server. It bridges language model clients with the
// corpus.
type Server struct {
	mcp      *mcp.Server
	searcher Searcher
	files    *store.FileStore
	opts     Options
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        ToolVectorSearch,
		Description: "Perform a RAG vector search to retrieve relevant passages from the ingested documents. Each result carries the source file, the byte span of the passage and its similarity score.",
	},
	{
		Name:        ToolCorpusStatus,
		Description: "Report how many documents and sentences are searchable and which embedding model produced them.",
	},
}

// NewServer creates a new MCP server.
func NewServer(searcher Searcher, files *store.FileStore, opts Options) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if files == nil {
		return nil, errors.New("file store is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = corpus.DefaultTopK
	}
	if opts.SurroundingK < 0 {
		opts.SurroundingK = corpus.DefaultSurroundingK
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		searcher: searcher,
		files:    files,
		opts:     opts,
		logger:   opts.Logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with decoded JSON arguments. vector_search
// answers with markdown, corpus_status with *CorpusStatusOutput.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolVectorSearch:
		input := VectorSearchInput{}
		query, ok := args["query"].(string)
		if !ok {
			return nil, NewInvalidParamsError("query parameter is required and must be a string")
		}
		input.Query = query
		if k, ok := args["top_k"].(float64); ok {
			input.TopK = int(k)
		}
		if k, ok := args["surrounding_k"].(float64); ok {
			sk := int(k)
			input.SurroundingK = &sk
		}
		out, err := s.vectorSearch(ctx, input)
		if err != nil {
			return nil, err
		}
		return FormatSearchResults(strings.TrimSpace(query), out.Results), nil
	case ToolCorpusStatus:
		return s.corpusStatus(), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// vectorSearch validates the arguments and runs one query.
func (s *Server) vectorSearch(ctx context.Context, input VectorSearchInput) (VectorSearchOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return VectorSearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	topK := clampLimit(input.TopK, s.opts.TopK, 1, MaxTopK)
	surroundingK := s.opts.SurroundingK
	if input.SurroundingK != nil {
		if *input.SurroundingK < 0 {
			return VectorSearchOutput{}, NewInvalidParamsError("surrounding_k must not be negative")
		}
		surroundingK = min(*input.SurroundingK, MaxSurroundingK)
	}

	s.logger.Info("vector_search started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("top_k", topK),
		slog.Int("surrounding_k", surroundingK))

	results, err := s.searcher.Search(ctx, query, topK, surroundingK)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("vector_search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return VectorSearchOutput{}, MapError(err)
	}

	s.logger.Info("vector_search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	output := VectorSearchOutput{
		Results: make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		output.Results = append(output.Results, ToSearchResultOutput(r, s.files.TextPath(r.DocumentID)))
	}
	return output, nil
}

func (s *Server) corpusStatus() *CorpusStatusOutput {
	stats := s.searcher.Stats()
	return &CorpusStatusOutput{
		Documents:  stats.Documents,
		Sentences:  stats.Sentences,
		Dimensions: stats.Dimensions,
		Model:      stats.Model,
		Backend:    stats.Backend,
		Storage:    s.files.Root(),
	}
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[0].Name,
		Description: tools[0].Description,
	}, s.mcpVectorSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.mcpCorpusStatusHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
}

// mcpVectorSearchHandler is the MCP SDK handler for the vector_search tool.
func (s *Server) mcpVectorSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input VectorSearchInput) (
	*mcp.CallToolResult,
	VectorSearchOutput,
	error,
) {
	output, err := s.vectorSearch(ctx, input)
	if err != nil {
		return nil, VectorSearchOutput{}, err
	}
	return nil, output, nil
}

// mcpCorpusStatusHandler is the MCP SDK handler for the corpus_status tool.
func (s *Server) mcpCorpusStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ CorpusStatusInput) (
	*mcp.CallToolResult,
	*CorpusStatusOutput,
	error,
) {
	return nil, s.corpusStatus(), nil
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
