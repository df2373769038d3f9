package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MerijnSC/RAG-project/internal/store"
)

const uriScheme = "nextor://"

// MaxResourceSize is the largest document text served as a resource (1MB).
const MaxResourceSize = 1024 * 1024

// DocumentInfo is one entry of the documents resource.
type DocumentInfo struct {
	ID        string `json:"id"`
	URI       string `json:"uri"`
	Sentences int    `json:"sentences"`
	Size      string `json:"size"`
}

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "Documents currently searchable",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-text",
		Description: "Extracted text of a stored document",
		MIMEType:    "text/markdown",
	}, s.handleDocumentTextResource)
}

// ListDocuments returns the searchable documents in row order.
func (s *Server) ListDocuments() []DocumentInfo {
	entries := s.searcher.Documents()
	infos := make([]DocumentInfo, 0, len(entries))
	for _, e := range entries {
		size := "?"
		if info, err := os.Stat(s.files.TextPath(e.DocumentID)); err == nil {
			size = humanSize(info.Size())
		}
		infos = append(infos, DocumentInfo{
			ID:        e.DocumentID,
			URI:       uriScheme + "documents/" + e.DocumentID,
			Sentences: e.Len(),
			Size:      size,
		})
	}
	return infos
}

func (s *Server) handleDocumentsResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(s.ListDocuments(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleDocumentTextResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return s.ReadDocument(ctx, req.Params.URI)
}

// ReadDocument serves the text of the document named by a
// nextor://documents/{id} URI.
func (s *Server) ReadDocument(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
	id, ok := strings.CutPrefix(uri, uriScheme+"documents/")
	if !ok || store.ValidateID(id) != nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	if !s.files.Exists(id) {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	path := s.files.TextPath(id)
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewResourceNotFoundError(uri)
	}
	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeResourceTooLarge,
			Message: fmt.Sprintf("document too large: %s (max %s)", humanSize(info.Size()), humanSize(MaxResourceSize)),
		}
	}

	text, err := s.files.LoadText(id)
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     text,
		}},
	}, nil
}
