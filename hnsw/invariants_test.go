package hnsw_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/storage"
)

// TestNeighborListInvariants asserts spec invariant 3: after any
// sequence of inserts, every node's neighbor list at every layer it
// lives on is strictly increasing, self-loop free, within its layer's
// cap, and every entry addresses a valid node.
func TestNeighborListInvariants(t *testing.T) {
	t.Parallel()

	cfg := hnsw.DefaultConfig()
	cfg.M = 8
	cfg.M0 = 16

	g, err := hnsw.New(cfg)
	require.NoError(t, err)

	arena := storage.NewFloat32Arena(2)
	space := hnsw.NewFloat32Space(arena, hnsw.MetricL2)

	rng := rand.New(rand.NewSource(123))

	const n = 200

	for i := 0; i < n; i++ {
		vec := []float32{rng.Float32() * 100, rng.Float32() * 100}

		vid, err := arena.Insert(vec)
		require.NoError(t, err)

		_, err = g.Insert(vid, space)
		require.NoError(t, err)
	}

	for nodeID := 0; nodeID < g.Len(); nodeID++ {
		id := hnsw.NodeId(nodeID)

		maxLayer, err := g.MaxLayerOf(id)
		require.NoError(t, err)

		for layer := 0; layer <= maxLayer; layer++ {
			neighbors, err := g.Neighbors(id, layer)
			require.NoError(t, err)

			capN := cfg.M
			if layer == 0 {
				capN = cfg.M0
			}

			require.LessOrEqual(t, len(neighbors), capN)

			for i, nb := range neighbors {
				require.NotEqual(t, id, nb, "self-loop at node %d layer %d", nodeID, layer)
				require.Less(t, int(nb), g.Len())

				if i > 0 {
					require.Less(t, neighbors[i-1], nb, "neighbor list not strictly increasing")
				}
			}
		}
	}
}
