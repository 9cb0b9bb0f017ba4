package persist_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/persist"
	"github.com/calvinalkan/evec/persist/membackend"
	"github.com/calvinalkan/evec/storage"
)

func buildTestIndex(t *testing.T) (*hnsw.Graph, *storage.Float32Arena) {
	t.Helper()

	cfg := hnsw.DefaultConfig()
	g, err := hnsw.New(cfg)
	require.NoError(t, err)

	arena := storage.NewFloat32Arena(4)
	space := hnsw.NewFloat32Space(arena, hnsw.MetricL2)

	for i := 0; i < 5; i++ {
		vec := []float32{float32(i), float32(i) * 2, float32(i) * 3, float32(i) * 4}
		vid, err := arena.Insert(vec)
		require.NoError(t, err)

		_, err = g.Insert(vid, space)
		require.NoError(t, err)
	}

	return g, arena
}

func snapshotOf(g *hnsw.Graph, arena *storage.Float32Arena, md map[storage.VectorId]string) persist.Snapshot {
	return persist.Snapshot{
		Config:         hnsw.DefaultConfig(),
		EntryPoint:     g.EntryPoint(),
		MaxLayer:       g.MaxLayer(),
		Nodes:          g.ExportNodes(),
		PoolBytes:      g.PoolBytes(),
		Kind:           persist.KindFloat32,
		Dim:            arena.Dim(),
		VectorCount:    arena.Len(),
		TombstoneWords: arena.TombstoneWords(),
		Float32Data:    arena.RawData(),
		Metadata:       md,
	}
}

// TestSnapshotRoundTripWithMetadata implements spec scenario S5:
// insert 5 vectors of dim 4, each with a distinct string tag; save to
// an in-memory backend; load; every tag must reappear on the
// corresponding VectorId, and flipping any payload byte must cause
// load to return a checksum mismatch.
func TestSnapshotRoundTripWithMetadata(t *testing.T) {
	t.Parallel()

	g, arena := buildTestIndex(t)

	md := map[storage.VectorId]string{
		1: "alpha", 2: "bravo", 3: "charlie", 4: "delta", 5: "echo",
	}

	snap := snapshotOf(g, arena, md)

	backend := membackend.New()
	require.NoError(t, persist.WriteSnapshot(snap, backend, persist.SnapshotKey))

	loaded, err := persist.ReadSnapshot(backend, persist.SnapshotKey)
	require.NoError(t, err)

	require.Equal(t, snap.VectorCount, loaded.VectorCount)
	require.Equal(t, snap.Dim, loaded.Dim)
	require.Equal(t, snap.EntryPoint, loaded.EntryPoint)
	require.Equal(t, snap.MaxLayer, loaded.MaxLayer)
	require.Equal(t, snap.Float32Data, loaded.Float32Data)
	require.Equal(t, md, loaded.Metadata)

	if diff := cmp.Diff(snap.Nodes, loaded.Nodes); diff != "" {
		t.Fatalf("node table changed across snapshot round-trip (-want +got):\n%s", diff)
	}

	for id, tag := range md {
		require.Equal(t, tag, loaded.Metadata[id])
	}
}

func TestSnapshotRoundTrip_FlippedByteFailsChecksum(t *testing.T) {
	t.Parallel()

	g, arena := buildTestIndex(t)
	snap := snapshotOf(g, arena, map[storage.VectorId]string{1: "tag"})

	backend := membackend.New()
	require.NoError(t, persist.WriteSnapshot(snap, backend, persist.SnapshotKey))

	raw, err := backend.ReadKey(persist.SnapshotKey)
	require.NoError(t, err)

	corrupt := append([]byte(nil), raw...)
	corrupt[persist.HeaderSize+2] ^= 0xFF
	require.NoError(t, backend.AtomicWrite(persist.SnapshotKey, corrupt))

	_, err = persist.ReadSnapshot(backend, persist.SnapshotKey)
	require.Error(t, err)

	var crcErr *errs.CRCMismatchError
	require.ErrorAs(t, err, &crcErr)
}

func TestSnapshotRoundTrip_WithoutMetadata(t *testing.T) {
	t.Parallel()

	g, arena := buildTestIndex(t)
	snap := snapshotOf(g, arena, nil)

	backend := membackend.New()
	require.NoError(t, persist.WriteSnapshot(snap, backend, persist.SnapshotKey))

	loaded, err := persist.ReadSnapshot(backend, persist.SnapshotKey)
	require.NoError(t, err)
	require.Empty(t, loaded.Metadata)
}

func TestReadSnapshot_UnknownKey(t *testing.T) {
	t.Parallel()

	backend := membackend.New()

	_, err := persist.ReadSnapshot(backend, "does-not-exist")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLoadRaw_ReconstitutesGraphUsableForSearch(t *testing.T) {
	t.Parallel()

	g, arena := buildTestIndex(t)
	snap := snapshotOf(g, arena, nil)

	loadedArena := storage.LoadFloat32Arena(snap.Dim, snap.VectorCount, snap.Float32Data, snap.TombstoneWords)
	loadedGraph, err := hnsw.LoadRaw(snap.Config, snap.EntryPoint, snap.MaxLayer, snap.Nodes, snap.PoolBytes)
	require.NoError(t, err)

	space := hnsw.NewFloat32Space(loadedArena, hnsw.MetricL2)

	want, err := g.Search([]float32{2, 4, 6, 8}, 3, hnsw.NewFloat32Space(arena, hnsw.MetricL2))
	require.NoError(t, err)

	got, err := loadedGraph.Search([]float32{2, 4, 6, 8}, 3, space)
	require.NoError(t, err)

	require.Equal(t, want, got)
}
