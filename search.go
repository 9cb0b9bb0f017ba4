package evec

import (
	"context"

	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/rescore"
)

// Result is a single search hit.
type Result = hnsw.Result

// Filter is a post-search predicate over candidate ids, used by
// SearchFiltered. Composing predicates (and/or/not combinators) is
// explicitly out of scope (spec.md §5.3): callers build their own
// closures.
type Filter = hnsw.Filter

// defaultRescoreOverfetch is the candidate multiplier used after a
// StorageQuantizedU8 search when Config.RescoreOverfetch is zero
// (spec.md §4.8: "e.g., 3x k").
const defaultRescoreOverfetch = 3

// Search runs an approximate nearest-neighbor query and returns up to
// k results ascending by distance. When the index is configured with
// StorageQuantizedU8, results are overfetched from the graph and then
// exactly re-ranked by rescore.Rescore against the dequantized f32
// vectors (spec.md §4.8).
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if idx.cfg.Storage != StorageQuantizedU8 {
		return idx.graph.Search(query, k, idx.space)
	}

	overfetch := idx.cfg.RescoreOverfetch
	if overfetch <= 0 {
		overfetch = defaultRescoreOverfetch
	}

	candidates, err := idx.graph.Search(query, k*overfetch, idx.space)
	if err != nil {
		return nil, err
	}

	return rescore.Rescore(ctx, candidates, query, idx.u8, k)
}

// SearchFiltered runs Search with a post-filter predicate and the
// adaptive overfetch hnsw.Graph.SearchFiltered implements. On
// StorageQuantizedU8, the filtered candidates are additionally exact-
// rescored, same as Search.
func (idx *Index) SearchFiltered(ctx context.Context, query []float32, k int, filter Filter) ([]Result, error) {
	if idx.cfg.Storage != StorageQuantizedU8 {
		return idx.graph.SearchFiltered(query, k, filter, idx.space)
	}

	overfetch := idx.cfg.RescoreOverfetch
	if overfetch <= 0 {
		overfetch = defaultRescoreOverfetch
	}

	candidates, err := idx.graph.SearchFiltered(query, k*overfetch, filter, idx.space)
	if err != nil {
		return nil, err
	}

	return rescore.Rescore(ctx, candidates, query, idx.u8, k)
}
