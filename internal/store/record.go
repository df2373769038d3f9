// Package store persists ingested documents and the indexes built over them.
//
// Each document lives in its own folder under the storage root:
//
//	<root>/<id>/text.md   extracted text, UTF-8
//	<root>/<id>/data.bin  sentence spans and embeddings
//
// A folder holding text.md without data.bin is an interrupted ingest and is
// ignored by List. The root also holds the SQLite catalog and the writer
// lock.
package store

import (
	"fmt"
	"path/filepath"
	"strings"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/span"
)

// DocumentRecord is the persisted unit of ingestion. Spans and Embeddings are
// aligned 1:1 and spans index into Text.
type DocumentRecord struct {
	ID         string
	Text       string
	Spans      []span.Span
	Embeddings [][]float32
	Model      string
}

// Len returns the number of sentences.
func (r *DocumentRecord) Len() int {
	return len(r.Spans)
}

// Dimensions returns the embedding dimension, or 0 for an empty record.
func (r *DocumentRecord) Dimensions() int {
	if len(r.Embeddings) == 0 {
		return 0
	}
	return len(r.Embeddings[0])
}

// SentenceText returns the text of sentence i.
func (r *DocumentRecord) SentenceText(i int) string {
	return r.Spans[i].Slice(r.Text)
}

// Validate checks alignment, span order and a constant dimension.
func (r *DocumentRecord) Validate() error {
	if err := ValidateID(r.ID); err != nil {
		return err
	}
	if len(r.Spans) != len(r.Embeddings) {
		return nxerrors.Newf(nxerrors.ErrCodeFileCorrupt,
			"document %s has %d spans and %d embeddings", r.ID, len(r.Spans), len(r.Embeddings))
	}

	dims := r.Dimensions()
	prevEnd := 0
	for i, s := range r.Spans {
		if !s.Valid(len(r.Text)) {
			return nxerrors.Newf(nxerrors.ErrCodeFileCorrupt,
				"document %s span %d %s outside text of %d bytes", r.ID, i, s, len(r.Text))
		}
		if s.Start < prevEnd {
			return nxerrors.Newf(nxerrors.ErrCodeFileCorrupt,
				"document %s span %d %s overlaps the previous span", r.ID, i, s)
		}
		prevEnd = s.End

		if len(r.Embeddings[i]) != dims {
			return nxerrors.Newf(nxerrors.ErrCodeFileCorrupt,
				"document %s embedding %d has %d dimensions, expected %d", r.ID, i, len(r.Embeddings[i]), dims)
		}
	}
	return nil
}

// DocumentID derives a document identifier from a file path: the base name
// without its extension.
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValidateID rejects identifiers that cannot name a document folder.
func ValidateID(id string) error {
	switch {
	case id == "":
		return nxerrors.New(nxerrors.ErrCodeInvalidPath, "document id is empty", nil)
	case strings.HasPrefix(id, "."):
		return nxerrors.New(nxerrors.ErrCodeInvalidPath, fmt.Sprintf("document id %q starts with a dot", id), nil)
	case strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0):
		return nxerrors.New(nxerrors.ErrCodeInvalidPath, fmt.Sprintf("document id %q contains a path separator", id), nil)
	}
	return nil
}
