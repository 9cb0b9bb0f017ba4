package hnsw

import (
	"container/heap"
	"math"
)

// candidate pairs a node with its distance to the current query, used
// in both the frontier (min-heap) and best-so-far (max-heap) during
// beam search.
type candidate struct {
	node NodeId
	dist float32
}

// minHeap pops the closest candidate first; it implements the beam
// search frontier C.
type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

// maxHeap pops the farthest candidate first; it implements the
// best-so-far set W, capped at ef, so the worst entry is evicted when
// a closer candidate is found.
type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

// worst returns the current largest distance in w, or math.MaxFloat32
// if empty.
func worst(w maxHeap) float32 {
	if len(w) == 0 {
		return math.MaxFloat32
	}

	return w[0].dist
}

// sortedAscending drains a max-heap copy into ascending-distance order,
// breaking ties by ascending VectorId is the caller's responsibility
// (it has the VectorId, the heap only has NodeId).
func sortedAscending(w maxHeap) []candidate {
	cp := make(maxHeap, len(w))
	copy(cp, w)

	out := make([]candidate, len(cp))
	for i := len(cp) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&cp).(candidate)
	}

	return out
}
