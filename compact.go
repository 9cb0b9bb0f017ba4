package evec

import (
	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/persist"
	"github.com/calvinalkan/evec/softdelete"
	"github.com/calvinalkan/evec/storage"
)

// CompactReport summarizes a completed Compact call.
type CompactReport = softdelete.CompactReport

// ShouldCompact reports whether spec.md §9's chosen compaction policy
// (tombstone ratio >= 0.25, or >= 10,000 deleted ids) is met.
func (idx *Index) ShouldCompact() bool {
	return softdelete.ShouldCompact(idx.tombstoneCount(), idx.Len())
}

// Compact rebuilds the arena and graph with tombstoned vectors
// removed, renumbering surviving VectorIds densely (spec.md §4.6: the
// sole renumbering step). Metadata is deliberately *not* carried
// across compaction (spec.md §9's resolved open question). The
// old-to-new id permutation is not returned; surviving ids keep their
// relative order and are renumbered densely from 1.
//
// On a persisted Index, Compact also writes a RecordCompactMarker
// immediately after reassigning state, so WAL replay against a stale
// pre-compaction snapshot stops cleanly rather than re-applying
// records against the wrong id space (spec.md §5.2).
func (idx *Index) Compact() (CompactReport, error) {
	var (
		perm   []storage.VectorId
		report CompactReport
		err    error
	)

	switch idx.cfg.Storage {
	case StorageFloat32:
		var out *storage.Float32Arena
		out, perm = idx.f32.Compact()
		idx.f32 = out
		idx.space = hnsw.NewFloat32Space(idx.f32, idx.cfg.Metric)
	case StorageQuantizedU8:
		var out *storage.QuantizedU8Arena
		out, perm = idx.u8.Compact()
		idx.u8 = out
		idx.space = hnsw.NewQuantizedSpace(idx.u8, idx.cfg.Metric)
	default:
		var out *storage.BinaryArena
		out, perm = idx.bin.Compact()
		idx.bin = out
		idx.space = hnsw.NewBinarySpace(idx.bin)
	}

	newGraph, _, report, err := softdelete.CompactGraph(idx.graph, idx.cfg.toHNSW(), perm)
	if err != nil {
		return report, err
	}

	idx.graph = newGraph
	idx.metadata = nil

	if idx.wal != nil {
		if _, err := idx.wal.Append(persist.RecordCompactMarker, nil); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (idx *Index) tombstoneCount() int {
	switch idx.cfg.Storage {
	case StorageFloat32:
		return idx.f32.TombstoneCount()
	case StorageQuantizedU8:
		return idx.u8.TombstoneCount()
	default:
		return idx.bin.TombstoneCount()
	}
}
