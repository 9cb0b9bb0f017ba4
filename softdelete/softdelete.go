// Package softdelete implements EVEC's C6 component: the tombstone
// lifecycle on top of a storage arena, batch deletion reporting, and
// the compaction procedure that renumbers live vectors to a dense id
// space and translates the graph's entry point and neighbor lists
// through the resulting permutation.
package softdelete

import (
	"errors"

	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/storage"
)

// Arena is the subset of storage.Arena's contract soft-delete needs;
// satisfied by storage.Float32Arena, storage.QuantizedU8Arena, and
// storage.BinaryArena.
type Arena interface {
	Len() int
	IsDeleted(id storage.VectorId) (bool, error)
	MarkDeleted(id storage.VectorId) (bool, error)
}

// SoftDelete tombstones a single vector. It is idempotent: the second
// call on an already-deleted id returns false and leaves state
// unchanged.
func SoftDelete(a Arena, id storage.VectorId) (bool, error) {
	return a.MarkDeleted(id)
}

// BatchReport summarizes a SoftDeleteBatch call: how many distinct ids
// were requested, how many were newly tombstoned, how many were
// already tombstoned, and how many did not exist.
type BatchReport struct {
	Unique         int
	Deleted        int
	AlreadyDeleted int
	Invalid        int
}

// SoftDeleteBatch deduplicates ids and tombstones each, reporting the
// outcome breakdown.
func SoftDeleteBatch(a Arena, ids []storage.VectorId) (BatchReport, error) {
	seen := make(map[storage.VectorId]struct{}, len(ids))

	var report BatchReport

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		report.Unique++

		deleted, err := a.MarkDeleted(id)
		switch {
		case err == nil && deleted:
			report.Deleted++
		case err == nil && !deleted:
			report.AlreadyDeleted++
		case errIsNotFound(err):
			report.Invalid++
		default:
			return report, err
		}
	}

	return report, nil
}

func errIsNotFound(err error) bool {
	return err != nil && errors.Is(err, errs.ErrNotFound)
}

// TombstoneRatio returns deleted/total for an arena with the given
// tombstone count (callers expose a TombstoneCount accessor on each
// concrete arena type; this helper just centralizes the division).
func TombstoneRatio(deleted, total int) float64 {
	if total == 0 {
		return 0
	}

	return float64(deleted) / float64(total)
}

// ShouldCompact reports whether the caller-chosen compaction policy
// thresholds are met: ratio >= 0.25 or deleted count >= 10000.
func ShouldCompact(deleted, total int) bool {
	return TombstoneRatio(deleted, total) >= 0.25 || deleted >= 10_000
}

// CompactReport summarizes a completed compaction.
type CompactReport struct {
	TombstonesRemoved int
	NodesMigrated     int
}

// CompactGraph rebuilds graph into a fresh hnsw.Graph containing only
// live nodes, translating neighbor lists through the storage
// permutation perm (old VectorId -> new VectorId, 0 for removed). It
// preserves each surviving node's sampled max_layer (no re-sampling),
// re-selects the new entry point if the old one was deleted (highest
// remaining layer, ties broken by lowest new id), and returns a
// migration report.
//
// The caller is responsible for compacting the storage arena itself
// (via its own Compact method) and constructing the VectorSource over
// the resulting fresh arena before calling CompactGraph.
func CompactGraph(g *hnsw.Graph, cfg hnsw.Config, perm []storage.VectorId) (*hnsw.Graph, map[hnsw.NodeId]hnsw.NodeId, CompactReport, error) {
	newGraph, err := hnsw.New(cfg)
	if err != nil {
		return nil, nil, CompactReport{}, err
	}

	oldToNew := make(map[hnsw.NodeId]hnsw.NodeId)

	var report CompactReport

	// First pass: determine which old nodes survive and assign them
	// fresh NodeIds in old-id order, preserving relative order.
	type survivor struct {
		old      hnsw.NodeId
		vid      storage.VectorId
		maxLayer int
	}

	var survivors []survivor

	for old := 0; old < g.Len(); old++ {
		oldID := hnsw.NodeId(old)

		oldVid, err := g.VectorIdOf(oldID)
		if err != nil {
			return nil, nil, report, err
		}

		if int(oldVid) >= len(perm) || perm[oldVid] == 0 {
			report.TombstonesRemoved++
			continue
		}

		maxLayer, err := g.MaxLayerOf(oldID)
		if err != nil {
			return nil, nil, report, err
		}

		survivors = append(survivors, survivor{old: oldID, vid: perm[oldVid], maxLayer: maxLayer})
	}

	newGraph, err = newGraph.WithPreservedNodes(survivors2NodeSpecs(survivors))
	if err != nil {
		return nil, nil, report, err
	}

	for i, s := range survivors {
		oldToNew[s.old] = hnsw.NodeId(i)
	}

	report.NodesMigrated = len(survivors)

	// Second pass: translate each surviving node's neighbor lists.
	for i, s := range survivors {
		newID := hnsw.NodeId(i)

		for layer := 0; layer <= s.maxLayer; layer++ {
			oldNeighbors, err := g.Neighbors(s.old, layer)
			if err != nil {
				return nil, nil, report, err
			}

			translated := make([]hnsw.NodeId, 0, len(oldNeighbors))

			for _, on := range oldNeighbors {
				if nn, ok := oldToNew[on]; ok {
					translated = append(translated, nn)
				}
			}

			if err := newGraph.SetNeighborsForCompaction(newID, layer, translated); err != nil {
				return nil, nil, report, err
			}
		}
	}

	// Translate the entry point.
	oldEntry := g.EntryPoint()

	if oldEntry != hnsw.InvalidNodeId {
		if newEntry, ok := oldToNew[oldEntry]; ok {
			newGraph.SetEntryPointForCompaction(newEntry, g.MaxLayer())
		} else {
			newGraph.PickHighestLayerEntryPoint()
		}
	}

	return newGraph, oldToNew, report, nil
}

func survivors2NodeSpecs(survivors []struct {
	old      hnsw.NodeId
	vid      storage.VectorId
	maxLayer int
}) []hnsw.NodeSpec {
	out := make([]hnsw.NodeSpec, len(survivors))
	for i, s := range survivors {
		out[i] = hnsw.NodeSpec{VectorId: s.vid, MaxLayer: s.maxLayer}
	}

	return out
}
