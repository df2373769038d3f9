package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// Filter decides which files under a directory are ingested. Patterns use
// doublestar syntax and match either the slash-separated path relative to
// the walked root or the base name.
type Filter struct {
	Include []string
	Exclude []string
}

// Match reports whether relPath passes the filter. An empty include list
// accepts everything that is not excluded.
func (f Filter) Match(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	base := filepath.Base(rel)

	for _, pattern := range f.Exclude {
		if matchPattern(pattern, rel, base) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if matchPattern(pattern, rel, base) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, rel, base string) bool {
	if matched, _ := doublestar.Match(pattern, rel); matched {
		return true
	}
	matched, _ := doublestar.Match(pattern, base)
	return matched
}

// ValidatePatterns rejects malformed glob patterns.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nxerrors.Newf(nxerrors.ErrCodeConfigInvalid, "invalid glob pattern %q", p)
		}
	}
	return nil
}

// Discover expands paths into a sorted, de-duplicated list of files.
// Files named explicitly are always kept; directories are walked and their
// contents filtered. Hidden directories are skipped.
func Discover(ctx context.Context, paths []string, filter Filter) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nxerrors.New(nxerrors.ErrCodeFileNotFound, "path not found: "+root, err)
			}
			return nil, nxerrors.New(nxerrors.ErrCodeFilePermission, "cannot stat "+root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if filter.Match(rel) {
				add(path)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, nxerrors.New(nxerrors.ErrCodeFilePermission, "walk "+root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
