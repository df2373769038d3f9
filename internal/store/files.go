package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// Artifact file names inside a document folder.
const (
	TextFileName = "text.md"
	DataFileName = "data.bin"
)

// FileStore reads and writes document folders under a storage root.
// Callers serialize writers with FileLock; reads are safe at any time.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at root. The directory is created on
// first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the storage root.
func (s *FileStore) Root() string { return s.root }

// Dir returns the folder of a document.
func (s *FileStore) Dir(id string) string { return filepath.Join(s.root, id) }

// TextPath returns the path of a document's text.md.
func (s *FileStore) TextPath(id string) string { return filepath.Join(s.root, id, TextFileName) }

// DataPath returns the path of a document's data.bin.
func (s *FileStore) DataPath(id string) string { return filepath.Join(s.root, id, DataFileName) }

// Exists reports whether both artifacts of a document are present.
func (s *FileStore) Exists(id string) bool {
	return fileExists(s.TextPath(id)) && fileExists(s.DataPath(id))
}

// EnsureDir creates the document folder.
func (s *FileStore) EnsureDir(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir(id), 0755); err != nil {
		return writeError(fmt.Sprintf("create folder for %s", id), err)
	}
	return nil
}

// Save writes a record. An existing data.bin is removed first and text.md
// is written before the new data.bin, so an interrupted save leaves the
// folder incomplete rather than mismatched.
func (s *FileStore) Save(rec *DocumentRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.EnsureDir(rec.ID); err != nil {
		return err
	}

	if err := os.Remove(s.DataPath(rec.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return writeError(fmt.Sprintf("remove old data for %s", rec.ID), err)
	}

	if err := writeAtomic(s.TextPath(rec.ID), []byte(rec.Text)); err != nil {
		return writeError(fmt.Sprintf("write text for %s", rec.ID), err)
	}

	var buf bytes.Buffer
	if err := EncodeData(&buf, rec.Spans, rec.Embeddings, rec.Model); err != nil {
		return nxerrors.New(nxerrors.ErrCodeWriteFailed, fmt.Sprintf("encode data for %s", rec.ID), err)
	}
	if err := writeAtomic(s.DataPath(rec.ID), buf.Bytes()); err != nil {
		return writeError(fmt.Sprintf("write data for %s", rec.ID), err)
	}
	return nil
}

// Load reads a complete record.
func (s *FileStore) Load(id string) (*DocumentRecord, error) {
	text, err := s.LoadText(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.DataPath(id))
	if err != nil {
		return nil, readError(id, s.DataPath(id), err)
	}
	spans, embeddings, model, err := DecodeData(data)
	if err != nil {
		if ne, ok := nxerrors.As(err); ok {
			ne.WithDetail("document", id)
		}
		return nil, err
	}

	rec := &DocumentRecord{ID: id, Text: text, Spans: spans, Embeddings: embeddings, Model: model}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// LoadText reads a document's text.md.
func (s *FileStore) LoadText(id string) (string, error) {
	b, err := os.ReadFile(s.TextPath(id))
	if err != nil {
		return "", readError(id, s.TextPath(id), err)
	}
	return string(b), nil
}

// List returns the ids of complete documents in ascending name order.
func (s *FileStore) List() ([]string, error) {
	complete, _, err := s.scan()
	return complete, err
}

// Incomplete returns ids of folders with text.md but no data.bin.
func (s *FileStore) Incomplete() ([]string, error) {
	_, incomplete, err := s.scan()
	return incomplete, err
}

func (s *FileStore) scan() (complete, incomplete []string, err error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, nxerrors.New(nxerrors.ErrCodeFilePermission, "read storage root "+s.root, err)
	}

	for _, e := range entries {
		if !e.IsDir() || ValidateID(e.Name()) != nil {
			continue
		}
		switch {
		case s.Exists(e.Name()):
			complete = append(complete, e.Name())
		case fileExists(s.TextPath(e.Name())):
			incomplete = append(incomplete, e.Name())
		}
	}
	sort.Strings(complete)
	sort.Strings(incomplete)
	return complete, incomplete, nil
}

// Delete removes a document folder.
func (s *FileStore) Delete(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return writeError("delete "+id, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func writeError(msg string, err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return nxerrors.New(nxerrors.ErrCodeDiskFull, msg, err).
			WithSuggestion("free disk space under the storage root")
	}
	return nxerrors.New(nxerrors.ErrCodeWriteFailed, msg, err)
}

func readError(id, path string, err error) error {
	code := nxerrors.ErrCodeFilePermission
	if errors.Is(err, fs.ErrNotExist) {
		code = nxerrors.ErrCodeFileNotFound
	}
	return nxerrors.New(code, fmt.Sprintf("read %s", filepath.Base(path)), err).WithDetail("document", id)
}
