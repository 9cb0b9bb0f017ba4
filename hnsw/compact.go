package hnsw

import "github.com/calvinalkan/evec/storage"

// NodeSpec describes a surviving node's identity for graph
// reconstruction after compaction: its new VectorId and its
// previously-sampled max layer, which compaction never re-samples.
type NodeSpec struct {
	VectorId storage.VectorId
	MaxLayer int
}

// WithPreservedNodes populates an empty graph (as returned by New)
// with one node per spec, in order, each starting with empty neighbor
// lists at every layer up to its preserved MaxLayer. It is used only
// by the compaction procedure (see the softdelete package), which
// fills in translated neighbor lists afterward via
// SetNeighborsForCompaction.
func (g *Graph) WithPreservedNodes(specs []NodeSpec) (*Graph, error) {
	for _, spec := range specs {
		emptyLayers := make([][]NodeId, spec.MaxLayer+1)
		block := encodeLayers(emptyLayers)

		handle, err := g.pool.Alloc(len(block))
		if err != nil {
			return nil, err
		}

		if err := g.pool.Write(handle, block); err != nil {
			return nil, err
		}

		g.nodes = append(g.nodes, node{
			vectorID:         spec.VectorId,
			neighborOffset:   uint32(handle.Offset),
			neighborCapacity: handle.Capacity,
			maxLayer:         uint8(spec.MaxLayer),
		})
		g.visitedStamp = append(g.visitedStamp, 0)
	}

	return g, nil
}

// SetNeighborsForCompaction overwrites node n's neighbor list at layer
// directly, bypassing the heuristic trim: compaction only ever
// removes entries from an already-valid list (translating through the
// id permutation), so the result can never exceed the layer's cap.
func (g *Graph) SetNeighborsForCompaction(n NodeId, layer int, ids []NodeId) error {
	if err := g.checkNodeID(n); err != nil {
		return err
	}

	return g.setNeighbors(n, layer, ids)
}

// SetEntryPointForCompaction sets the graph's entry point and max
// layer directly, used when the old entry point survived compaction.
func (g *Graph) SetEntryPointForCompaction(n NodeId, maxLayer int) {
	g.entryPoint = n
	g.maxLayer = maxLayer
}

// PickHighestLayerEntryPoint sets the entry point to the node with the
// highest max layer (ties broken by lowest NodeId), used when the old
// entry point did not survive compaction. It is a no-op on an empty
// graph.
func (g *Graph) PickHighestLayerEntryPoint() {
	if len(g.nodes) == 0 {
		g.entryPoint = InvalidNodeId
		g.maxLayer = -1

		return
	}

	best := NodeId(0)
	bestLayer := int(g.nodes[0].maxLayer)

	for i := 1; i < len(g.nodes); i++ {
		if int(g.nodes[i].maxLayer) > bestLayer {
			best = NodeId(i)
			bestLayer = int(g.nodes[i].maxLayer)
		}
	}

	g.entryPoint = best
	g.maxLayer = bestLayer
}
