package flatindex_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/rescore/flatindex"
	"github.com/calvinalkan/evec/storage"
)

func packed(dim int, setBits ...int) []byte {
	buf := make([]byte, dim/8)
	for _, b := range setBits {
		buf[b/8] |= 1 << uint(b%8)
	}

	return buf
}

func TestSearchReturnsExactNearestByHammingDistance(t *testing.T) {
	t.Parallel()

	idx, err := flatindex.New(64)
	require.NoError(t, err)

	zero := packed(64)
	oneBit := packed(64, 0)
	allBits := make([]byte, 8)
	for i := range allBits {
		allBits[i] = 0xFF
	}

	_, err = idx.Insert(zero)
	require.NoError(t, err)
	_, err = idx.Insert(oneBit)
	require.NoError(t, err)
	_, err = idx.Insert(allBits)
	require.NoError(t, err)

	got, err := idx.Search(context.Background(), zero, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, storage.VectorId(1), got[0].VectorId)
	require.EqualValues(t, 0, got[0].Distance)
	require.Equal(t, storage.VectorId(2), got[1].VectorId)
	require.EqualValues(t, 1, got[1].Distance)
	require.Equal(t, storage.VectorId(3), got[2].VectorId)
	require.EqualValues(t, 64, got[2].Distance)
}

// TestSearchSkipsSoftDeleted confirms tombstoned records never appear
// in results even though they remain addressable.
func TestSearchSkipsSoftDeleted(t *testing.T) {
	t.Parallel()

	idx, err := flatindex.New(8)
	require.NoError(t, err)

	id1, err := idx.Insert(packed(8))
	require.NoError(t, err)
	_, err = idx.Insert(packed(8, 0))
	require.NoError(t, err)

	_, err = idx.SoftDelete(id1)
	require.NoError(t, err)

	got, err := idx.Search(context.Background(), packed(8), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotEqual(t, id1, got[0].VectorId)
}

// TestSearchDimensionMismatch verifies a wrong-length query is
// rejected rather than silently scanned.
func TestSearchDimensionMismatch(t *testing.T) {
	t.Parallel()

	idx, err := flatindex.New(64)
	require.NoError(t, err)

	_, err = idx.Insert(packed(64))
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), packed(32), 1)
	require.Error(t, err)
}

// TestPartialSelectMatchesFullSortForSmallK exercises the partial
// selection path (k < n/10) against a large corpus and checks it
// agrees exactly with a full sort over the same data.
func TestPartialSelectMatchesFullSortForSmallK(t *testing.T) {
	t.Parallel()

	const dim = 64

	idx, err := flatindex.New(dim)
	require.NoError(t, err)

	const n = 200

	for i := 0; i < n; i++ {
		buf := make([]byte, dim/8)
		for b := 0; b < i%dim; b++ {
			buf[b/8] |= 1 << uint(b%8)
		}

		_, err := idx.Insert(buf)
		require.NoError(t, err)
	}

	query := packed(dim)

	small, err := idx.Search(context.Background(), query, 5) // 5 < 200/10
	require.NoError(t, err)
	require.Len(t, small, 5)

	full, err := idx.Search(context.Background(), query, n)
	require.NoError(t, err)
	require.Equal(t, full[:5], small)
}

// TestSearchShardedMatchesUnsharded confirms the bounded-parallel scan
// produces the same result set as a single-shard scan.
func TestSearchShardedMatchesUnsharded(t *testing.T) {
	t.Parallel()

	const dim = 64

	single, err := flatindex.New(dim, flatindex.Shards(1))
	require.NoError(t, err)

	sharded, err := flatindex.New(dim, flatindex.Shards(8))
	require.NoError(t, err)

	const n = 2000

	for i := 0; i < n; i++ {
		buf := make([]byte, dim/8)
		for b := 0; b < i%dim; b++ {
			buf[b/8] |= 1 << uint(b%8)
		}

		_, err := single.Insert(buf)
		require.NoError(t, err)
		_, err = sharded.Insert(buf)
		require.NoError(t, err)
	}

	query := packed(dim)

	want, err := single.Search(context.Background(), query, 10)
	require.NoError(t, err)

	got, err := sharded.Search(context.Background(), query, 10)
	require.NoError(t, err)

	require.Equal(t, want, got)
}

func TestSearchEmptyIndex(t *testing.T) {
	t.Parallel()

	idx, err := flatindex.New(8)
	require.NoError(t, err)

	got, err := idx.Search(context.Background(), packed(8), 5)
	require.NoError(t, err)
	require.Nil(t, got)
}
