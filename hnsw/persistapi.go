package hnsw

import (
	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/storage"
)

// NodeRecord is the on-disk shape of a single node table entry, used
// by the persist package to serialize and reconstitute a graph without
// re-sampling layers or re-running insertion. It mirrors node exactly.
type NodeRecord struct {
	VectorId         storage.VectorId
	NeighborOffset   uint32
	NeighborCapacity uint16
	MaxLayer         uint8
	Deleted          bool
}

// ExportNodes returns the node table in NodeId order, suitable for
// writing into a snapshot's index section.
func (g *Graph) ExportNodes() []NodeRecord {
	out := make([]NodeRecord, len(g.nodes))

	for i, n := range g.nodes {
		out[i] = NodeRecord{
			VectorId:         n.vectorID,
			NeighborOffset:   n.neighborOffset,
			NeighborCapacity: n.neighborCapacity,
			MaxLayer:         n.maxLayer,
			Deleted:          n.deleted,
		}
	}

	return out
}

// PoolBytes returns the neighbor pool's backing buffer, byte-exact,
// for writing into a snapshot. Callers must not mutate the result.
func (g *Graph) PoolBytes() []byte {
	return g.pool.Bytes()
}

// PoolFreeBytes returns the neighbor pool's currently free capacity,
// for an Index.Stats() fragmentation ratio.
func (g *Graph) PoolFreeBytes() int {
	return g.pool.FreeBytes()
}

// LoadRaw reconstructs a graph directly from a snapshot's decoded node
// table and pool bytes, bypassing insertion entirely: no layer is
// re-sampled, no neighbor list is re-selected. The pool is rebuilt as
// one contiguous, freelist-free buffer sized to exactly contain
// poolBytes (a loaded graph has no free slots until the next
// mutation forces a reallocation).
func LoadRaw(cfg Config, entryPoint NodeId, maxLayer int, records []NodeRecord, poolBytes []byte) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, err := New(cfg)
	if err != nil {
		return nil, err
	}

	g.pool.LoadBytes(poolBytes)

	g.nodes = make([]node, len(records))
	for i, r := range records {
		g.nodes[i] = node{
			vectorID:         r.VectorId,
			neighborOffset:   r.NeighborOffset,
			neighborCapacity: r.NeighborCapacity,
			maxLayer:         r.MaxLayer,
			deleted:          r.Deleted,
		}
	}

	g.visitedStamp = make([]uint32, len(g.nodes))
	g.entryPoint = entryPoint
	g.maxLayer = maxLayer

	if entryPoint != InvalidNodeId {
		if err := g.checkNodeID(entryPoint); err != nil {
			return nil, err
		}
	}

	for i := range g.nodes {
		if err := g.checkNeighborsInBounds(NodeId(i)); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// checkNeighborsInBounds decodes every layer of n's neighbor list and
// verifies each entry is a valid NodeId, per spec.md §7's
// NodeIdOutOfBounds contract for a loaded snapshot.
func (g *Graph) checkNeighborsInBounds(n NodeId) error {
	rec := g.nodes[n]

	for layer := 0; layer <= int(rec.maxLayer); layer++ {
		ids, err := g.getNeighbors(n, layer)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if int(id) >= len(g.nodes) {
				return errs.ErrNodeIDOutOfBounds
			}
		}
	}

	return nil
}
