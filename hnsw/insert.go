package hnsw

import "github.com/calvinalkan/evec/storage"

// Insert adds vid (already appended to storage by the caller) to the
// graph: it samples a layer, links the new node into the existing
// structure via greedy descent + beam search + the neighbor-selection
// heuristic, and updates the global entry point if the new node's
// layer exceeds the current maximum.
func (g *Graph) Insert(vid storage.VectorId, vs VectorSource) (NodeId, error) {
	if len(g.nodes) >= MaxNodes {
		return InvalidNodeId, errCapacity()
	}

	level := g.sampleLayer()

	newID := NodeId(len(g.nodes))

	emptyLayers := make([][]NodeId, level+1)
	block := encodeLayers(emptyLayers)

	handle, err := g.pool.Alloc(len(block))
	if err != nil {
		return InvalidNodeId, err
	}

	if err := g.pool.Write(handle, block); err != nil {
		return InvalidNodeId, err
	}

	g.nodes = append(g.nodes, node{
		vectorID:         vid,
		neighborOffset:   uint32(handle.Offset),
		neighborCapacity: handle.Capacity,
		maxLayer:         uint8(level),
	})
	g.visitedStamp = append(g.visitedStamp, 0)

	if g.entryPoint == InvalidNodeId {
		g.entryPoint = newID
		g.maxLayer = level

		return newID, nil
	}

	distTo := func(n NodeId) (float32, error) {
		return vs.Distance(vid, g.vectorID(n))
	}

	cur := g.entryPoint

	for layer := g.maxLayer; layer > level; layer-- {
		next, err := g.greedyDescend(cur, distTo, layer)
		if err != nil {
			return InvalidNodeId, err
		}

		cur = next
	}

	start := level
	if g.maxLayer < start {
		start = g.maxLayer
	}

	entry := []NodeId{cur}

	for layer := start; layer >= 0; layer-- {
		w, err := g.searchLayer(entry, distTo, g.cfg.EfConstruction, layer)
		if err != nil {
			return InvalidNodeId, err
		}

		sorted := sortedAscending(w)

		distBetween := func(a, b NodeId) (float32, error) {
			return vs.Distance(g.vectorID(a), g.vectorID(b))
		}

		selected, err := selectHeuristic(sorted, g.capForLayer(layer), distBetween)
		if err != nil {
			return InvalidNodeId, err
		}

		selectedIDs := make([]NodeId, len(selected))
		for i, s := range selected {
			selectedIDs[i] = s.node
		}

		if err := g.setNeighbors(newID, layer, selectedIDs); err != nil {
			return InvalidNodeId, err
		}

		for _, nb := range selectedIDs {
			if err := g.link(nb, newID, layer, vs); err != nil {
				return InvalidNodeId, err
			}
		}

		if len(sorted) > 0 {
			entry = make([]NodeId, len(sorted))
			for i, s := range sorted {
				entry[i] = s.node
			}
		}
	}

	if level > g.maxLayer {
		g.maxLayer = level
		g.entryPoint = newID
	}

	return newID, nil
}

// link bidirectionally connects newID into nb's adjacency list at
// layer, re-running the heuristic trim on nb's list (including newID)
// if it now exceeds its layer cap.
func (g *Graph) link(nb NodeId, newID NodeId, layer int, vs VectorSource) error {
	existing, err := g.getNeighbors(nb, layer)
	if err != nil {
		return err
	}

	for _, id := range existing {
		if id == newID {
			return nil
		}
	}

	capN := g.capForLayer(layer)
	updated := append(existing, newID)

	if len(updated) <= capN {
		return g.setNeighbors(nb, layer, updated)
	}

	cands := make([]candidate, len(updated))

	for i, n := range updated {
		d, err := vs.Distance(g.vectorID(nb), g.vectorID(n))
		if err != nil {
			return err
		}

		cands[i] = candidate{n, d}
	}

	sortCandidatesAscending(cands)

	distBetween := func(a, b NodeId) (float32, error) {
		return vs.Distance(g.vectorID(a), g.vectorID(b))
	}

	trimmed, err := selectHeuristic(cands, capN, distBetween)
	if err != nil {
		return err
	}

	trimmedIDs := make([]NodeId, len(trimmed))
	for i, c := range trimmed {
		trimmedIDs[i] = c.node
	}

	return g.setNeighbors(nb, layer, trimmedIDs)
}

func sortCandidatesAscending(cands []candidate) {
	for i := 1; i < len(cands); i++ {
		v := cands[i]

		j := i - 1
		for j >= 0 && cands[j].dist > v.dist {
			cands[j+1] = cands[j]
			j--
		}

		cands[j+1] = v
	}
}
