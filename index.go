package evec

import (
	"errors"

	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/persist"
	"github.com/calvinalkan/evec/softdelete"
	"github.com/calvinalkan/evec/storage"
)

// VectorId identifies a stored vector, 1-based and stable until a
// compaction renumbers it.
type VectorId = storage.VectorId

// Index is the facade spec.md §6 describes: an HNSW graph over one of
// the three vector arena variants, with a WAL-backed persistence
// manager. Mutation operations (Insert, SoftDelete*, Compact, Save)
// are not reentrant; per spec.md §5, callers sharing an Index across
// goroutines must provide their own lock.
type Index struct {
	cfg   Config
	graph *hnsw.Graph
	space hnsw.VectorSource

	f32 *storage.Float32Arena
	u8  *storage.QuantizedU8Arena
	bin *storage.BinaryArena

	metadata map[storage.VectorId]string

	backend persist.Backend
	wal     *persist.Writer
}

// New constructs an empty Index over a freshly allocated arena of the
// configured storage kind. Pass a persist.Backend (persist/membackend
// or persist/fsbackend) to enable Save/Load/WAL durability, or nil for
// a purely in-process index that is never persisted.
func New(cfg Config, backend persist.Backend) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	graph, err := hnsw.New(cfg.toHNSW())
	if err != nil {
		return nil, err
	}

	idx := &Index{cfg: cfg, graph: graph, backend: backend}

	switch cfg.Storage {
	case StorageFloat32:
		idx.f32 = storage.NewFloat32Arena(cfg.Dim)
		idx.space = hnsw.NewFloat32Space(idx.f32, cfg.Metric)
	case StorageQuantizedU8:
		idx.u8 = storage.NewQuantizedU8Arena(cfg.Dim, cfg.SQ8)
		idx.space = hnsw.NewQuantizedSpace(idx.u8, cfg.Metric)
	case StorageBinary:
		bin, err := storage.NewBinaryArena(cfg.Dim)
		if err != nil {
			return nil, err
		}

		idx.bin = bin
		idx.space = hnsw.NewBinarySpace(idx.bin)
	default:
		return nil, errInvalidConfig("unknown storage kind")
	}

	if backend != nil {
		idx.wal = persist.NewWriter(backend, 0)
	}

	return idx, nil
}

// Len returns the number of VectorIds ever issued (including
// tombstoned ones).
func (idx *Index) Len() int { return idx.space.Len() }

// Insert quantizes (if configured) and appends vec to the arena, then
// inserts the resulting VectorId into the graph. On a persisted
// Index, it also durably appends a WAL RecordInsert before returning
// success, so a crash after Insert but before the next Save still
// recovers the vector on restart.
func (idx *Index) Insert(vec []float32) (VectorId, error) {
	var (
		vid VectorId
		err error
	)

	switch idx.cfg.Storage {
	case StorageFloat32:
		vid, err = idx.f32.Insert(vec)
	case StorageQuantizedU8:
		vid, err = idx.u8.Insert(vec)
	case StorageBinary:
		vid, err = idx.insertBinary(vec)
	}

	if err != nil {
		return 0, err
	}

	if _, err := idx.graph.Insert(vid, idx.space); err != nil {
		return 0, err
	}

	if idx.wal != nil {
		if _, err := idx.wal.Append(persist.RecordInsert, encodeInsertPayload(vid, vec)); err != nil {
			return 0, err
		}
	}

	return vid, nil
}

func (idx *Index) insertBinary(vec []float32) (VectorId, error) {
	packed := make([]byte, idx.cfg.Dim/8)
	if err := binaryQuantizeInto(packed, vec); err != nil {
		return 0, err
	}

	return idx.bin.InsertPacked(packed)
}

// SoftDelete tombstones id; idempotent, per spec.md §7.
func (idx *Index) SoftDelete(id VectorId) (bool, error) {
	deleted, err := idx.softDeleteArena(id)
	if err != nil || !deleted {
		return deleted, err
	}

	if idx.wal != nil {
		if _, err := idx.wal.Append(persist.RecordSoftDelete, encodeSoftDeletePayload(id)); err != nil {
			return true, err
		}
	}

	return true, nil
}

func (idx *Index) softDeleteArena(id VectorId) (bool, error) {
	switch idx.cfg.Storage {
	case StorageFloat32:
		return softdelete.SoftDelete(idx.f32, id)
	case StorageQuantizedU8:
		return softdelete.SoftDelete(idx.u8, id)
	default:
		return softdelete.SoftDelete(idx.bin, id)
	}
}

// SoftDeleteBatch tombstones ids, deduplicating and reporting the
// outcome breakdown. It writes one WAL record per newly tombstoned id,
// matching the replay granularity of SoftDelete.
func (idx *Index) SoftDeleteBatch(ids []VectorId) (softdelete.BatchReport, error) {
	var arena softdelete.Arena

	switch idx.cfg.Storage {
	case StorageFloat32:
		arena = idx.f32
	case StorageQuantizedU8:
		arena = idx.u8
	default:
		arena = idx.bin
	}

	seen := make(map[VectorId]struct{}, len(ids))

	var report softdelete.BatchReport

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		report.Unique++

		deleted, err := arena.MarkDeleted(id)

		switch {
		case err != nil && isNotFound(err):
			report.Invalid++

			continue
		case err != nil:
			return report, err
		case deleted:
			report.Deleted++

			if idx.wal != nil {
				if _, err := idx.wal.Append(persist.RecordSoftDelete, encodeSoftDeletePayload(id)); err != nil {
					return report, err
				}
			}
		default:
			report.AlreadyDeleted++
		}
	}

	return report, nil
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, errs.ErrNotFound)
}
