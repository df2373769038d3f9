package corpus

import (
	"container/heap"
	"sort"
)

type hit struct {
	index int
	score float32
}

// worse orders hits so the heap root is the weakest kept hit: lower score,
// or on equal scores the higher row.
func worse(a, b hit) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.index > b.index
}

type hitHeap []hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// exactTopK scores every row by dot product and keeps the k best, ordered
// by descending score then ascending row. Caller holds the read lock.
func (c *Corpus) exactTopK(q []float32, k int) []hit {
	n := len(c.spans)
	h := make(hitHeap, 0, k)

	for i := 0; i < n; i++ {
		row := c.vectors[i*c.dims : (i+1)*c.dims]
		var s float32
		for d, x := range row {
			s += x * q[d]
		}
		cand := hit{index: i, score: s}

		if h.Len() < k {
			heap.Push(&h, cand)
		} else if worse(h[0], cand) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	out := []hit(h)
	sort.Slice(out, func(i, j int) bool { return worse(out[j], out[i]) })
	return out
}
