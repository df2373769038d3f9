package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig tunes the approximate index.
type HNSWConfig struct {
	Dimensions int
	M          int
	EfSearch   int
}

// Neighbor is one approximate search hit.
type Neighbor struct {
	Index int
	Score float32
}

// HNSWIndex is an approximate nearest-neighbour graph over corpus rows,
// keyed by global sentence index. Vectors must already be unit length, so
// cosine distance ranks the same way as the dot product.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int]
	config HNSWConfig
}

// NewHNSWIndex creates an empty graph.
func NewHNSWIndex(cfg HNSWConfig) *HNSWIndex {
	if cfg.M == 0 {
		cfg.M = 16 // coder/hnsw default recommendation
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{graph: graph, config: cfg}
}

// Add inserts rows first, first+1, ... for vectors.
func (x *HNSWIndex) Add(first int, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	nodes := make([]hnsw.Node[int], len(vectors))
	for i, v := range vectors {
		if len(v) != x.config.Dimensions {
			return ErrDimensionMismatch{Expected: x.config.Dimensions, Got: len(v)}
		}
		vec := make([]float32, len(v))
		copy(vec, v)
		nodes[i] = hnsw.MakeNode(first+i, vec)
	}
	x.graph.Add(nodes...)
	return nil
}

// Search returns up to k rows nearest to query, best first. Equal scores
// are ordered by ascending row.
func (x *HNSWIndex) Search(query []float32, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(query) != x.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: x.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || x.graph.Len() == 0 {
		return []Neighbor{}, nil
	}

	nodes := x.graph.Search(query, k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		// cosine distance is 1 - cos for unit vectors
		out = append(out, Neighbor{Index: n.Key, Score: 1 - x.graph.Distance(query, n.Value)})
	}
	sortNeighbors(out)
	return out, nil
}

// Len returns the number of rows in the graph.
func (x *HNSWIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.graph.Len()
}

// Dimensions returns the configured vector dimension.
func (x *HNSWIndex) Dimensions() int { return x.config.Dimensions }

func sortNeighbors(ns []Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Score != ns[j].Score {
			return ns[i].Score > ns[j].Score
		}
		return ns[i].Index < ns[j].Index
	})
}

// ErrDimensionMismatch is returned when a vector has the wrong dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
