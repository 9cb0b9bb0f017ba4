package evec

import "github.com/calvinalkan/evec/softdelete"

// Stats is a read-only operational snapshot, the supplemented feature
// spec.md §6's external interfaces section omits but does not forbid.
type Stats struct {
	NodeCount      int
	TombstoneCount int
	TombstoneRatio float64
	MaxLayer       int
	// PoolFragmentation is free neighbor-pool bytes divided by total
	// allocated pool bytes (0 for an empty pool).
	PoolFragmentation float64
}

// Stats reports the index's current size, tombstone pressure, and
// neighbor-pool fragmentation.
func (idx *Index) Stats() Stats {
	tombstones := idx.tombstoneCount()
	total := idx.Len()

	poolLen := len(idx.graph.PoolBytes())

	var frag float64
	if poolLen > 0 {
		frag = float64(idx.graph.PoolFreeBytes()) / float64(poolLen)
	}

	return Stats{
		NodeCount:         total,
		TombstoneCount:    tombstones,
		TombstoneRatio:    softdelete.TombstoneRatio(tombstones, total),
		MaxLayer:          idx.graph.MaxLayer(),
		PoolFragmentation: frag,
	}
}
