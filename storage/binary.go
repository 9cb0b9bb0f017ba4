package storage

import "github.com/calvinalkan/evec/errs"

// BinaryArena is a flat dim/8-byte-per-record arena of sign-quantized
// bit vectors, used with Hamming distance. dim must be a multiple of 8.
type BinaryArena struct {
	dim       int // bit dimension
	bytesPer  int
	data      []byte
	tombstone tombstoneBitset
	n         int
}

// NewBinaryArena returns an empty BinaryArena for the given bit
// dimensionality, which must be a multiple of 8.
func NewBinaryArena(dim int) (*BinaryArena, error) {
	if dim%8 != 0 {
		return nil, errs.ErrInvalidConfig
	}

	return &BinaryArena{dim: dim, bytesPer: dim / 8}, nil
}

func (a *BinaryArena) Dim() int { return a.dim }
func (a *BinaryArena) Len() int { return a.n }

// InsertPacked appends an already bit-packed record (dim/8 bytes).
func (a *BinaryArena) InsertPacked(packed []byte) (VectorId, error) {
	if len(packed) != a.bytesPer {
		return 0, &errs.DimensionMismatchError{Expected: a.bytesPer, Actual: len(packed)}
	}

	a.data = append(a.data, packed...)
	a.n++
	a.tombstone.grow(a.n)

	return VectorId(a.n), nil
}

// GetPacked returns id's raw packed bits, zero-copy.
func (a *BinaryArena) GetPacked(id VectorId) ([]byte, error) {
	if err := checkID(id, a.n); err != nil {
		return nil, err
	}

	idx := int(id) - 1

	return a.data[idx*a.bytesPer : (idx+1)*a.bytesPer], nil
}

func (a *BinaryArena) MarkDeleted(id VectorId) (bool, error) {
	if err := checkID(id, a.n); err != nil {
		return false, err
	}

	idx := int(id) - 1
	if a.tombstone.get(idx) {
		return false, nil
	}

	a.tombstone.set(idx)

	return true, nil
}

func (a *BinaryArena) IsDeleted(id VectorId) (bool, error) {
	if err := checkID(id, a.n); err != nil {
		return false, err
	}

	return a.tombstone.get(int(id) - 1), nil
}

func (a *BinaryArena) TombstoneCount() int {
	return a.tombstone.count(a.n)
}

// Compact returns a fresh arena containing only the live records, plus
// the old->new VectorId permutation (0 for removed ids).
func (a *BinaryArena) Compact() (*BinaryArena, []VectorId) {
	perm := make([]VectorId, a.n+1)

	out, _ := NewBinaryArena(a.dim)

	for old := 1; old <= a.n; old++ {
		if a.tombstone.get(old - 1) {
			continue
		}

		rec := a.data[(old-1)*a.bytesPer : old*a.bytesPer]
		out.data = append(out.data, rec...)
		out.n++
		out.tombstone.grow(out.n)
		perm[old] = VectorId(out.n)
	}

	return out, perm
}
