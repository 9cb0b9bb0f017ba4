package hnsw_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/storage"
)

func newTestGraph(t *testing.T) (*hnsw.Graph, *storage.Float32Arena, hnsw.VectorSource) {
	t.Helper()

	cfg := hnsw.DefaultConfig()

	g, err := hnsw.New(cfg)
	require.NoError(t, err)

	arena := storage.NewFloat32Arena(2)
	space := hnsw.NewFloat32Space(arena, hnsw.MetricL2)

	return g, arena, space
}

func insertVec(t *testing.T, g *hnsw.Graph, arena *storage.Float32Arena, space hnsw.VectorSource, vec []float32) storage.VectorId {
	t.Helper()

	vid, err := arena.Insert(vec)
	require.NoError(t, err)

	_, err = g.Insert(vid, space)
	require.NoError(t, err)

	return vid
}

// TestDiamondRoutingThroughTombstone implements spec scenario S1: a
// tombstoned middle node must still be traversable so the query can
// reach a live node beyond it, while the tombstoned node itself is
// never emitted in results.
func TestDiamondRoutingThroughTombstone(t *testing.T) {
	t.Parallel()

	g, arena, space := newTestGraph(t)

	a := insertVec(t, g, arena, space, []float32{0, 0})
	b := insertVec(t, g, arena, space, []float32{10, 0})
	c := insertVec(t, g, arena, space, []float32{20, 0})

	results, err := g.Search([]float32{20, 0}, 2, space)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, c, results[0].VectorId)
	require.InDelta(t, 0, results[0].Distance, 1e-6)

	deleted, err := arena.MarkDeleted(b)
	require.NoError(t, err)
	require.True(t, deleted)

	results, err = g.Search([]float32{20, 0}, 2, space)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var ids []storage.VectorId
	for _, r := range results {
		ids = append(ids, r.VectorId)
	}

	require.Contains(t, ids, a)
	require.Contains(t, ids, c)
	require.NotContains(t, ids, b)
}

func TestSearch_EmptyIndexReturnsEmpty(t *testing.T) {
	t.Parallel()

	g, _, space := newTestGraph(t)

	results, err := g.Search([]float32{1, 1}, 5, space)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearch_KGreaterThanLiveCountReturnsLiveCount(t *testing.T) {
	t.Parallel()

	g, arena, space := newTestGraph(t)

	insertVec(t, g, arena, space, []float32{0, 0})
	insertVec(t, g, arena, space, []float32{1, 1})
	insertVec(t, g, arena, space, []float32{2, 2})

	results, err := g.Search([]float32{0, 0}, 100, space)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestSearch_ReturnsNearestFirst(t *testing.T) {
	t.Parallel()

	g, arena, space := newTestGraph(t)

	for i := 0; i < 30; i++ {
		insertVec(t, g, arena, space, []float32{float32(i), float32(i)})
	}

	results, err := g.Search([]float32{15, 15}, 3, space)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		require.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSearchFiltered_RespectsPredicate(t *testing.T) {
	t.Parallel()

	g, arena, space := newTestGraph(t)

	var ids []storage.VectorId

	for i := 0; i < 20; i++ {
		ids = append(ids, insertVec(t, g, arena, space, []float32{float32(i), 0}))
	}

	even := func(id storage.VectorId) bool { return id%2 == 0 }

	results, err := g.SearchFiltered([]float32{0, 0}, 3, even, space)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		require.True(t, even(r.VectorId))
	}
}

func TestMarkDeleted_Idempotent(t *testing.T) {
	t.Parallel()

	_, arena, _ := newTestGraph(t)

	id, err := arena.Insert([]float32{1, 1})
	require.NoError(t, err)

	first, err := arena.MarkDeleted(id)
	require.NoError(t, err)
	require.True(t, first)

	second, err := arena.MarkDeleted(id)
	require.NoError(t, err)
	require.False(t, second)
}
