package evec

import (
	"errors"

	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/persist"
	"github.com/calvinalkan/evec/storage"
)

// Save atomically writes a full snapshot of the index under
// persist.SnapshotKey, then truncates the WAL: everything that
// happened since the last Save is now durable in the snapshot itself,
// so replaying old WAL records against it would double-apply them.
// Save requires a non-nil backend (the Index must have been built with
// one, see New).
func (idx *Index) Save() error {
	if idx.backend == nil {
		return errNoBackend()
	}

	snap := idx.toSnapshot()

	if err := persist.WriteSnapshot(snap, idx.backend, persist.SnapshotKey); err != nil {
		return err
	}

	type resetter interface{ ResetWAL() error }

	if r, ok := idx.backend.(resetter); ok {
		if err := r.ResetWAL(); err != nil {
			return err
		}
	}

	idx.wal = persist.NewWriter(idx.backend, 0)

	return nil
}

func (idx *Index) toSnapshot() persist.Snapshot {
	snap := persist.Snapshot{
		Config:     idx.cfg.toHNSW(),
		EntryPoint: idx.graph.EntryPoint(),
		MaxLayer:   idx.graph.MaxLayer(),
		Nodes:      idx.graph.ExportNodes(),
		PoolBytes:  idx.graph.PoolBytes(),
		Dim:        idx.cfg.Dim,
		Metadata:   idx.metadata,
	}

	switch idx.cfg.Storage {
	case StorageFloat32:
		snap.Kind = persist.KindFloat32
		snap.VectorCount = idx.f32.Len()
		snap.TombstoneWords = idx.f32.TombstoneWords()
		snap.Float32Data = idx.f32.RawData()
		snap.DeletedCount = idx.f32.TombstoneCount()
	case StorageQuantizedU8:
		snap.Kind = persist.KindQuantizedU8
		snap.VectorCount = idx.u8.Len()
		snap.TombstoneWords = idx.u8.TombstoneWords()
		snap.QuantizedData = idx.u8.RawData()
		snap.SQ8 = idx.u8.Quantizer()
		snap.DeletedCount = idx.u8.TombstoneCount()
	default:
		snap.Kind = persist.KindBinary
		snap.VectorCount = idx.bin.Len()
		snap.TombstoneWords = idx.bin.TombstoneWords()
		snap.BinaryData = idx.bin.RawData()
		snap.DeletedCount = idx.bin.TombstoneCount()
	}

	return snap
}

// Load reconstitutes an Index from backend's last snapshot, then
// replays any WAL records written since that snapshot (Insert,
// SoftDelete, and a stop on RecordCompactMarker — spec.md §5.2: a
// compact marker without a fresher snapshot behind it means replay
// must stop, since the pre-marker records target an id space the
// marker erased).
func Load(backend persist.Backend) (*Index, error) {
	snap, err := persist.ReadSnapshot(backend, persist.SnapshotKey)
	if err != nil {
		return nil, err
	}

	idx, err := indexFromSnapshot(snap, backend)
	if err != nil {
		return nil, err
	}

	walBytes, err := backend.ReadWAL()
	if err != nil {
		return nil, err
	}

	records, err := persist.ReplayAll(walBytes)
	if err != nil {
		return nil, err
	}

	lastSeq, err := idx.replay(records)
	if err != nil {
		return nil, err
	}

	idx.wal = persist.NewWriter(backend, lastSeq)

	return idx, nil
}

func indexFromSnapshot(snap persist.Snapshot, backend persist.Backend) (*Index, error) {
	cfg := Config{
		Dim:            snap.Dim,
		M:              snap.Config.M,
		M0:             snap.Config.M0,
		EfConstruction: snap.Config.EfConstruction,
		EfSearch:       snap.Config.EfSearch,
		Metric:         snap.Config.Metric,
		RngSeed:        snap.Config.RngSeed,
		SQ8:            snap.SQ8,
	}

	switch snap.Kind {
	case persist.KindQuantizedU8:
		cfg.Storage = StorageQuantizedU8
	case persist.KindBinary:
		cfg.Storage = StorageBinary
	default:
		cfg.Storage = StorageFloat32
	}

	graph, err := hnsw.LoadRaw(cfg.toHNSW(), snap.EntryPoint, snap.MaxLayer, snap.Nodes, snap.PoolBytes)
	if err != nil {
		return nil, err
	}

	idx := &Index{cfg: cfg, graph: graph, backend: backend, metadata: snap.Metadata}

	switch cfg.Storage {
	case StorageFloat32:
		idx.f32 = storage.LoadFloat32Arena(snap.Dim, snap.VectorCount, snap.Float32Data, snap.TombstoneWords)
		idx.space = hnsw.NewFloat32Space(idx.f32, cfg.Metric)
	case StorageQuantizedU8:
		idx.u8 = storage.LoadQuantizedU8Arena(snap.Dim, snap.VectorCount, snap.SQ8, snap.QuantizedData, snap.TombstoneWords)
		idx.space = hnsw.NewQuantizedSpace(idx.u8, cfg.Metric)
	default:
		bin, err := storage.LoadBinaryArena(snap.Dim, snap.VectorCount, snap.BinaryData, snap.TombstoneWords)
		if err != nil {
			return nil, err
		}

		idx.bin = bin
		idx.space = hnsw.NewBinarySpace(idx.bin)
	}

	return idx, nil
}

// replay re-applies WAL records written after the loaded snapshot. It
// returns the sequence number of the last record it applied, so the
// caller's new Writer resumes numbering gaplessly. A RecordCompactMarker
// encountered here means the snapshot on disk predates a compaction
// that has already happened; none of the records can be trusted
// against the current (pre-compaction) id space, so replay stops and
// surfaces what it recovered without erroring — matching Truncated's
// "normal terminator" policy for an analogous boundary condition.
func (idx *Index) replay(records []persist.Record) (uint64, error) {
	var lastSeq uint64

	for _, rec := range records {
		switch rec.Type {
		case persist.RecordInsert:
			id, vec := decodeInsertPayload(rec.Payload)
			if err := idx.replayInsert(id, vec); err != nil {
				return lastSeq, err
			}
		case persist.RecordSoftDelete:
			id := decodeSoftDeletePayload(rec.Payload)
			if _, err := idx.softDeleteArena(id); err != nil {
				return lastSeq, err
			}
		case persist.RecordCompactMarker:
			return lastSeq, nil
		}

		lastSeq = rec.Seq
	}

	return lastSeq, nil
}

// replayInsert re-applies a RecordInsert's vector without issuing a
// fresh VectorId: the WAL payload already carries the id the original
// Insert assigned, and the snapshot's arena already reserved every id
// up to its own VectorCount, so only ids beyond that need re-inserting.
func (idx *Index) replayInsert(id VectorId, vec []float32) error {
	if int(id) <= idx.Len() {
		return nil
	}

	switch idx.cfg.Storage {
	case StorageFloat32:
		if _, err := idx.f32.Insert(vec); err != nil {
			return err
		}
	case StorageQuantizedU8:
		if _, err := idx.u8.Insert(vec); err != nil {
			return err
		}
	default:
		if _, err := idx.insertBinary(vec); err != nil {
			return err
		}
	}

	_, err := idx.graph.Insert(id, idx.space)

	return err
}

func errNoBackend() error {
	return errors.New("evec: Save requires a non-nil persist.Backend")
}
