// Package rangeindex maps global embedding positions to the document that
// owns them.
//
// Ranges are half-open [Start, End), sorted by Start and pairwise disjoint.
// The index is not safe for concurrent mutation; the corpus serializes
// writers and lets readers share it.
package rangeindex

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
)

// ErrNotFound is returned by Lookup when no range covers the position.
var ErrNotFound = errors.New("rangeindex: position not covered by any range")

// Entry is one registered range.
type Entry struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	DocumentID string `json:"document_id"`
}

// Len returns the number of positions covered.
func (e Entry) Len() int {
	return e.End - e.Start
}

// Contains reports whether pos lies in [Start, End).
func (e Entry) Contains(pos int) bool {
	return e.Start <= pos && pos < e.End
}

// Index is a sorted interval map.
type Index struct {
	entries []Entry
	byDoc   map[string]Entry
	end     int
}

// New returns an empty index.
func New() *Index {
	return &Index{byDoc: make(map[string]Entry)}
}

// Insert registers [start, end) for docID.
//
// It fails if start > end, if docID is already registered, or if the range
// overlaps an existing one. Empty ranges (start == end) are remembered for
// the document but cover no positions.
func (ix *Index) Insert(start, end int, docID string) error {
	if start > end {
		return nxerrors.Newf(nxerrors.ErrCodeInvalidRange, "invalid range [%d, %d) for %q: start after end", start, end, docID)
	}
	if start < 0 {
		return nxerrors.Newf(nxerrors.ErrCodeInvalidRange, "invalid range [%d, %d) for %q: negative start", start, end, docID)
	}
	if _, dup := ix.byDoc[docID]; dup {
		return nxerrors.Newf(nxerrors.ErrCodeInvalidRange, "document %q already registered", docID)
	}

	e := Entry{Start: start, End: end, DocumentID: docID}
	if e.Len() > 0 {
		// rightmost insertion point, like bisect_right on starts
		i := sort.Search(len(ix.entries), func(i int) bool {
			return ix.entries[i].Start > start
		})
		if i > 0 && ix.entries[i-1].End > start {
			return overlapError(e, ix.entries[i-1])
		}
		if i < len(ix.entries) && ix.entries[i].Start < end {
			return overlapError(e, ix.entries[i])
		}

		ix.entries = append(ix.entries, Entry{})
		copy(ix.entries[i+1:], ix.entries[i:])
		ix.entries[i] = e
	}

	ix.byDoc[docID] = e
	if end > ix.end {
		ix.end = end
	}
	return nil
}

// Append registers a range of n positions starting right after the current
// maximum end and returns it.
func (ix *Index) Append(n int, docID string) (Entry, error) {
	start := ix.end
	if err := ix.Insert(start, start+n, docID); err != nil {
		return Entry{}, err
	}
	return ix.byDoc[docID], nil
}

// Remove drops the range of docID and reports whether it was registered.
// The maximum end is recomputed, so the next Append reuses freed positions
// at the tail.
func (ix *Index) Remove(docID string) bool {
	e, ok := ix.byDoc[docID]
	if !ok {
		return false
	}
	delete(ix.byDoc, docID)
	if i := slices.Index(ix.entries, e); i >= 0 {
		ix.entries = slices.Delete(ix.entries, i, i+1)
	}

	ix.end = 0
	for _, r := range ix.byDoc {
		ix.end = max(ix.end, r.End)
	}
	return true
}

// Lookup returns the range containing pos, or ErrNotFound.
func (ix *Index) Lookup(pos int) (Entry, error) {
	i := sort.Search(len(ix.entries), func(i int) bool {
		return ix.entries[i].Start > pos
	}) - 1
	if i < 0 || !ix.entries[i].Contains(pos) {
		return Entry{}, fmt.Errorf("%w: %d", ErrNotFound, pos)
	}
	return ix.entries[i], nil
}

// Range returns the range registered for docID.
func (ix *Index) Range(docID string) (Entry, bool) {
	e, ok := ix.byDoc[docID]
	return e, ok
}

// Len returns the number of registered documents, including empty ones.
func (ix *Index) Len() int {
	return len(ix.byDoc)
}

// End returns one past the largest registered end, 0 when empty.
func (ix *Index) End() int {
	return ix.end
}

// Covered returns the number of positions covered by all ranges.
func (ix *Index) Covered() int {
	n := 0
	for _, e := range ix.entries {
		n += e.Len()
	}
	return n
}

// Ranges returns a copy of the non-empty ranges in start order.
func (ix *Index) Ranges() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

func overlapError(e, existing Entry) error {
	return nxerrors.Newf(nxerrors.ErrCodeInvalidRange,
		"range [%d, %d) for %q overlaps [%d, %d) of %q",
		e.Start, e.End, e.DocumentID, existing.Start, existing.End, existing.DocumentID)
}
