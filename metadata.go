package evec

import "github.com/calvinalkan/evec/errs"

// SetMetadata attaches an opaque string tag to a VectorId, persisted
// alongside the index on Save/Load. Per spec.md §4.6 and §9, metadata
// does not survive Compact; callers must call SetMetadata again for
// any id they want tagged after compaction.
func (idx *Index) SetMetadata(id VectorId, tag string) error {
	deleted, err := idx.isDeleted(id)
	if err != nil {
		return err
	}

	if deleted {
		return errs.ErrAlreadyDeleted
	}

	if idx.metadata == nil {
		idx.metadata = make(map[VectorId]string)
	}

	idx.metadata[id] = tag

	return nil
}

// Metadata returns id's tag, if any.
func (idx *Index) Metadata(id VectorId) (string, bool) {
	tag, ok := idx.metadata[id]

	return tag, ok
}

func (idx *Index) isDeleted(id VectorId) (bool, error) {
	switch idx.cfg.Storage {
	case StorageFloat32:
		return idx.f32.IsDeleted(id)
	case StorageQuantizedU8:
		return idx.u8.IsDeleted(id)
	default:
		return idx.bin.IsDeleted(id)
	}
}
