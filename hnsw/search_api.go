package hnsw

import (
	"sort"

	"github.com/calvinalkan/evec/storage"
)

// Result is a single search hit: a stored vector and its distance to
// the query under the graph's configured metric.
type Result struct {
	VectorId storage.VectorId
	Distance float32
}

// Search descends the graph from the global entry point with beam=1
// down to layer 1, then runs a full beam of width ef_search at layer
// 0, drops tombstoned hits, and returns up to k results ascending by
// distance (ties broken by ascending VectorId).
func (g *Graph) Search(query []float32, k int, vs VectorSource) ([]Result, error) {
	if g.entryPoint == InvalidNodeId {
		return nil, nil
	}

	ef := g.cfg.EfSearch
	if k > ef {
		ef = k
	}

	out, err := g.searchWithEf(query, ef, vs)
	if err != nil {
		return nil, err
	}

	if len(out) > k {
		out = out[:k]
	}

	return out, nil
}

// Filter is a post-filter predicate plugged into SearchFiltered; it
// reports whether a candidate VectorId should be kept.
type Filter func(storage.VectorId) bool

// SearchFiltered runs Search with an adaptive overfetch: it starts at
// an overfetch factor of 2*k and doubles (capped at 32*k or
// ef_search, whichever is larger) while the post-filter result count
// is short of k and the beam still has room to grow, per spec.md §6's
// "adaptive overfetch" requirement.
func (g *Graph) SearchFiltered(query []float32, k int, filter Filter, vs VectorSource) ([]Result, error) {
	if g.entryPoint == InvalidNodeId {
		return nil, nil
	}

	maxFactor := 32 * k
	if g.cfg.EfSearch > maxFactor {
		maxFactor = g.cfg.EfSearch
	}

	for factor := 2 * k; ; factor *= 2 {
		if factor > maxFactor {
			factor = maxFactor
		}

		raw, err := g.searchWithEf(query, factor, vs)
		if err != nil {
			return nil, err
		}

		filtered := make([]Result, 0, len(raw))

		for _, r := range raw {
			if filter(r.VectorId) {
				filtered = append(filtered, r)
			}
		}

		if len(filtered) >= k || factor >= maxFactor || factor >= len(g.nodes) {
			if len(filtered) > k {
				filtered = filtered[:k]
			}

			return filtered, nil
		}
	}
}

func (g *Graph) searchWithEf(query []float32, ef int, vs VectorSource) ([]Result, error) {
	distTo := func(n NodeId) (float32, error) {
		return vs.DistanceToQuery(query, g.vectorID(n))
	}

	cur := g.entryPoint

	for layer := g.maxLayer; layer >= 1; layer-- {
		next, err := g.greedyDescend(cur, distTo, layer)
		if err != nil {
			return nil, err
		}

		cur = next
	}

	w, err := g.searchLayer([]NodeId{cur}, distTo, ef, 0)
	if err != nil {
		return nil, err
	}

	sorted := sortedAscending(w)

	out := make([]Result, 0, len(sorted))

	for _, c := range sorted {
		id := g.vectorID(c.node)

		deleted, err := vs.IsDeleted(id)
		if err != nil {
			return nil, err
		}

		if deleted {
			continue
		}

		out = append(out, Result{VectorId: id, Distance: c.dist})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}

		return out[i].VectorId < out[j].VectorId
	})

	return out, nil
}

// ResolveEntryNode validates n is a current node id, returning
// errs.ErrNodeIDOutOfBounds otherwise. Exposed for the persist package
// to validate a loaded header's implied entry point.
func (g *Graph) ResolveEntryNode(n NodeId) error {
	return g.checkNodeID(n)
}
