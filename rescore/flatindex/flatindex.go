// Package flatindex implements the brute-force half of EVEC's C8
// component: an exact binary (Hamming) index for corpora too small to
// justify HNSW's build cost (spec.md §4.8, §1 Non-goals — "a flat
// index is provided only for small sets"). Insert is O(1) append;
// search is a full O(n) SIMD-dispatched Hamming scan, optionally
// fanned out across shards, with a partial selection pass instead of a
// full sort when k is small relative to n.
package flatindex

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/evec/distance"
	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/storage"
)

// partialSelectRatioDenominator: when k < n/partialSelectRatioDenominator,
// Search uses a partial
// selection (partition around the kth element) instead of sorting the
// whole candidate list, per spec.md §4.8 ("partial-select for top-k
// when k < n/10").
const partialSelectRatioDenominator = 10

// Index is a flat packed-bit arena searched by exhaustive Hamming
// distance. It carries no graph, so Insert never triggers neighbor
// maintenance; that is the whole point of the escape hatch.
type Index struct {
	arena  *storage.BinaryArena
	shards int
}

// DefaultShards is used when no Shards option is passed to New.
const DefaultShards = 4

// Option configures an Index at construction.
type Option func(*Index)

// Shards sets the number of goroutines Search fans its scan across.
// n == 1 disables parallelism; n <= 0 is ignored and DefaultShards
// stays in effect.
func Shards(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.shards = n
		}
	}
}

// New returns an empty flat index over bit-dimension dim, which must
// be a multiple of 8.
func New(dim int, opts ...Option) (*Index, error) {
	arena, err := storage.NewBinaryArena(dim)
	if err != nil {
		return nil, err
	}

	idx := &Index{arena: arena, shards: DefaultShards}
	for _, opt := range opts {
		opt(idx)
	}

	return idx, nil
}

// Insert appends an already bit-packed record in O(1).
func (idx *Index) Insert(packed []byte) (storage.VectorId, error) {
	return idx.arena.InsertPacked(packed)
}

// SoftDelete tombstones id; it remains addressable but is skipped by
// Search.
func (idx *Index) SoftDelete(id storage.VectorId) (bool, error) {
	return idx.arena.MarkDeleted(id)
}

// Len returns the number of ids ever inserted (including tombstoned).
func (idx *Index) Len() int { return idx.arena.Len() }

// Result is a single flat-index hit.
type Result struct {
	VectorId storage.VectorId
	Distance uint32
}

// minScanForParallel is the smallest corpus size worth sharding; below
// it goroutine dispatch overhead dominates the scan itself.
const minScanForParallel = 1024

// Search runs an exhaustive Hamming scan over every live record against
// the packed query, returning the k nearest ascending by distance
// (ties broken by ascending VectorId). For k < n/10 it uses a partial
// selection instead of a full sort.
func (idx *Index) Search(ctx context.Context, query []byte, k int) ([]Result, error) {
	if len(query) != idx.arena.Dim()/8 {
		return nil, &errs.DimensionMismatchError{Expected: idx.arena.Dim() / 8, Actual: len(query)}
	}

	n := idx.arena.Len()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	hits, err := idx.scan(ctx, query)
	if err != nil {
		return nil, err
	}

	if k < len(hits)/partialSelectRatioDenominator {
		return partialTopK(hits, k), nil
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}

		return hits[i].VectorId < hits[j].VectorId
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	return hits, nil
}

// scan computes the Hamming distance of query against every live
// record, fanning the work out across idx.shards goroutines when the
// corpus is large enough to benefit.
func (idx *Index) scan(ctx context.Context, query []byte) ([]Result, error) {
	n := idx.arena.Len()

	shards := idx.shards
	if shards < 1 || n < minScanForParallel {
		shards = 1
	}

	out := make([]Result, n)
	live := make([]bool, n)

	group, ctx := errgroup.WithContext(ctx)

	chunk := (n + shards - 1) / shards

	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}

		start, end := start, end

		group.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				id := storage.VectorId(i + 1)

				deleted, err := idx.arena.IsDeleted(id)
				if err != nil || deleted {
					continue
				}

				rec, err := idx.arena.GetPacked(id)
				if err != nil {
					continue
				}

				out[i] = Result{VectorId: id, Distance: distance.Hamming(query, rec)}
				live[i] = true
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	hits := out[:0]
	for i, ok := range live {
		if ok {
			hits = append(hits, out[i])
		}
	}

	return hits, nil
}

// partialTopK partitions hits around the kth smallest element instead
// of sorting the whole slice, then sorts only the k-sized head.
func partialTopK(hits []Result, k int) []Result {
	if k >= len(hits) {
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].Distance != hits[j].Distance {
				return hits[i].Distance < hits[j].Distance
			}

			return hits[i].VectorId < hits[j].VectorId
		})

		return hits
	}

	quickselect(hits, 0, len(hits)-1, k)

	top := hits[:k]
	sort.Slice(top, func(i, j int) bool {
		if top[i].Distance != top[j].Distance {
			return top[i].Distance < top[j].Distance
		}

		return top[i].VectorId < top[j].VectorId
	})

	return top
}

// quickselect partitions hits[lo:hi+1] in place so the k smallest
// elements (by the same ascending order partialTopK sorts with) occupy
// hits[:k], using the Lomuto partition scheme (last element as pivot).
func quickselect(hits []Result, lo, hi, k int) {
	for lo < hi {
		p := partition(hits, lo, hi)

		switch {
		case p == k:
			return
		case p < k:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

func partition(hits []Result, lo, hi int) int {
	pivot := hits[hi]
	i := lo

	less := func(a, b Result) bool {
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}

		return a.VectorId < b.VectorId
	}

	for j := lo; j < hi; j++ {
		if less(hits[j], pivot) {
			hits[i], hits[j] = hits[j], hits[i]
			i++
		}
	}

	hits[i], hits[hi] = hits[hi], hits[i]

	return i
}
