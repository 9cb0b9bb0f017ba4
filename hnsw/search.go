package hnsw

import "container/heap"

// distFunc computes the distance from a fixed reference point (the
// query, or the node being inserted) to candidate node n.
type distFunc func(n NodeId) (float32, error)

// searchLayer runs the beam search described in spec.md §4.5 on a
// single layer: a min-heap frontier C expands outward from entry,
// feeding a max-heap best-so-far W capped at ef. Tombstoned nodes are
// traversed (their adjacency may route to live nodes) but never
// emitted into W.
func (g *Graph) searchLayer(entry []NodeId, dist distFunc, ef int, layer int) (maxHeap, error) {
	g.newVisitGeneration()

	var (
		c minHeap
		w maxHeap
	)

	for _, e := range entry {
		if g.visited(e) {
			continue
		}

		g.markVisited(e)

		d, err := dist(e)
		if err != nil {
			return nil, err
		}

		heap.Push(&c, candidate{e, d})

		if !g.isDeleted(e) {
			heap.Push(&w, candidate{e, d})
		}
	}

	for c.Len() > 0 {
		cur := heap.Pop(&c).(candidate)

		if cur.dist > worst(w) {
			break
		}

		neighbors, err := g.getNeighbors(cur.node, layer)
		if err != nil {
			return nil, err
		}

		for _, n := range neighbors {
			if g.visited(n) {
				continue
			}

			g.markVisited(n)

			d, err := dist(n)
			if err != nil {
				return nil, err
			}

			if len(w) < ef || d < worst(w) {
				heap.Push(&c, candidate{n, d})

				if !g.isDeleted(n) {
					heap.Push(&w, candidate{n, d})
					if len(w) > ef {
						heap.Pop(&w)
					}
				}
			}
		}
	}

	return w, nil
}

// greedyDescend implements the "greedy-1" descent used above the
// insertion layer: beam width 1, ef=1. current moves to its best
// neighbor-or-itself until no improvement is found.
func (g *Graph) greedyDescend(cur NodeId, dist distFunc, layer int) (NodeId, error) {
	curDist, err := dist(cur)
	if err != nil {
		return InvalidNodeId, err
	}

	for {
		neighbors, err := g.getNeighbors(cur, layer)
		if err != nil {
			return InvalidNodeId, err
		}

		best, bestDist := cur, curDist

		for _, n := range neighbors {
			d, err := dist(n)
			if err != nil {
				return InvalidNodeId, err
			}

			if d < bestDist {
				best, bestDist = n, d
			}
		}

		if best == cur {
			return cur, nil
		}

		cur, curDist = best, bestDist
	}
}
