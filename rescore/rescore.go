// Package rescore implements EVEC's C8 component: exact re-ranking of
// approximate-search candidates, and (in the flatindex subpackage) a
// brute-force binary flat index for small corpora. It sits downstream
// of C5's approximate beam search: a binary-quantized or otherwise
// lossy search overfetches, then rescore trims back to k using the
// full-precision vectors (spec.md §4.8).
package rescore

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/evec/distance"
	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/storage"
)

// Source supplies full-precision f32 vectors for exact re-ranking. A
// caller typically passes its storage.Float32Arena here even when the
// graph it searched was built over a quantized VectorSource.
type Source interface {
	IsDeleted(id storage.VectorId) (bool, error)
	Get(id storage.VectorId) ([]float32, error)
}

// Shards bounds the number of goroutines Rescore fans out across. A
// value of 1 means unsharded; values <= 0 are ignored and DefaultShards
// is used.
type Shards int

// DefaultShards is used when Rescore is called without an explicit
// Shards option and the candidate set is large enough to bother
// parallelizing.
const DefaultShards = 4

// minParallel is the smallest candidate count worth splitting across
// goroutines; below it the dispatch overhead would dwarf the work.
const minParallel = 256

// Rescore recomputes exact L2² distance between query and every live,
// valid candidate, drops tombstoned or invalid ids, sorts ascending by
// distance (ties broken by ascending VectorId), and truncates to k. It
// is the exact-rerank step called after an overfetching approximate
// search (e.g. candidates = 3*k results from a binary-quantized
// search).
func Rescore(ctx context.Context, candidates []hnsw.Result, query []float32, src Source, k int, opts ...Shards) ([]hnsw.Result, error) {
	shards := DefaultShards
	for _, s := range opts {
		if s > 0 {
			shards = int(s)
		}
	}

	rescored, err := rescoreAll(ctx, candidates, query, src, shards)
	if err != nil {
		return nil, err
	}

	sort.Slice(rescored, func(i, j int) bool {
		if rescored[i].Distance != rescored[j].Distance {
			return rescored[i].Distance < rescored[j].Distance
		}

		return rescored[i].VectorId < rescored[j].VectorId
	})

	if len(rescored) > k {
		rescored = rescored[:k]
	}

	return rescored, nil
}

// rescoreAll recomputes distances for every candidate, skipping
// tombstoned or invalid ids, fanned out across up to shards goroutines
// when the candidate count makes that worthwhile.
func rescoreAll(ctx context.Context, candidates []hnsw.Result, query []float32, src Source, shards int) ([]hnsw.Result, error) {
	if shards < 1 {
		shards = 1
	}

	if len(candidates) < minParallel {
		shards = 1
	}

	out := make([]hnsw.Result, len(candidates))
	live := make([]bool, len(candidates))

	group, ctx := errgroup.WithContext(ctx)

	chunk := (len(candidates) + shards - 1) / shards

	for start := 0; start < len(candidates); start += chunk {
		end := start + chunk
		if end > len(candidates) {
			end = len(candidates)
		}

		start, end := start, end

		group.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				id := candidates[i].VectorId

				deleted, err := src.IsDeleted(id)
				if err != nil {
					continue // invalid id: drop, not an error
				}

				if deleted {
					continue
				}

				vec, err := src.Get(id)
				if err != nil {
					continue
				}

				out[i] = hnsw.Result{VectorId: id, Distance: distance.L2Squared(query, vec)}
				live[i] = true
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := out[:0]
	for i, ok := range live {
		if ok {
			result = append(result, out[i])
		}
	}

	return result, nil
}
