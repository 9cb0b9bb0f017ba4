package rescore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/rescore"
	"github.com/calvinalkan/evec/storage"
)

func buildArena(t *testing.T, n, dim int) *storage.Float32Arena {
	t.Helper()

	arena := storage.NewFloat32Arena(dim)

	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for d := range vec {
			vec[d] = float32(i)
		}

		_, err := arena.Insert(vec)
		require.NoError(t, err)
	}

	return arena
}

func TestRescoreSortsAscendingAndTruncates(t *testing.T) {
	t.Parallel()

	arena := buildArena(t, 10, 4)

	candidates := make([]hnsw.Result, 0, 10)
	for i := 1; i <= 10; i++ {
		candidates = append(candidates, hnsw.Result{VectorId: storage.VectorId(i)})
	}

	query := []float32{7, 7, 7, 7}

	got, err := rescore.Rescore(context.Background(), candidates, query, arena, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, storage.VectorId(7), got[0].VectorId)

	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}
}

func TestRescoreDropsTombstonedAndInvalidCandidates(t *testing.T) {
	t.Parallel()

	arena := buildArena(t, 5, 4)

	_, err := arena.MarkDeleted(2)
	require.NoError(t, err)

	candidates := []hnsw.Result{
		{VectorId: 1}, {VectorId: 2}, {VectorId: 3}, {VectorId: 999},
	}

	got, err := rescore.Rescore(context.Background(), candidates, []float32{0, 0, 0, 0}, arena, 10)
	require.NoError(t, err)

	ids := make(map[storage.VectorId]bool)
	for _, r := range got {
		ids[r.VectorId] = true
	}

	require.True(t, ids[1])
	require.True(t, ids[3])
	require.False(t, ids[2])
	require.False(t, ids[999])
}

// TestRescoreLargeCandidateSetIsShardConsistent exercises the
// bounded-parallel path (candidate count above the parallel threshold)
// and checks the result is identical regardless of shard count.
func TestRescoreLargeCandidateSetIsShardConsistent(t *testing.T) {
	t.Parallel()

	const n = 1000

	arena := buildArena(t, n, 4)

	candidates := make([]hnsw.Result, 0, n)
	for i := 1; i <= n; i++ {
		candidates = append(candidates, hnsw.Result{VectorId: storage.VectorId(i)})
	}

	query := []float32{500, 500, 500, 500}

	single, err := rescore.Rescore(context.Background(), candidates, query, arena, 5, rescore.Shards(1))
	require.NoError(t, err)

	sharded, err := rescore.Rescore(context.Background(), candidates, query, arena, 5, rescore.Shards(8))
	require.NoError(t, err)

	require.Equal(t, single, sharded)
}
