package storage

import "github.com/calvinalkan/evec/quantize"

// QuantizedU8Arena is a flat count*dim arena of SQ8-quantized u8 codes.
// Get dequantizes into a fresh owned slice; GetQuantized exposes the
// raw codes zero-copy for distance kernels that operate directly on
// quantized components.
type QuantizedU8Arena struct {
	dim       int
	q         quantize.SQ8
	data      []uint8
	tombstone tombstoneBitset
	n         int
}

// NewQuantizedU8Arena returns an empty arena for the given
// dimensionality, quantizing future inserts with the trained range q.
func NewQuantizedU8Arena(dim int, q quantize.SQ8) *QuantizedU8Arena {
	return &QuantizedU8Arena{dim: dim, q: q}
}

func (a *QuantizedU8Arena) Dim() int { return a.dim }
func (a *QuantizedU8Arena) Len() int { return a.n }

func (a *QuantizedU8Arena) Insert(vec []float32) (VectorId, error) {
	if err := validateDim(a.dim, len(vec)); err != nil {
		return 0, err
	}

	codes := make([]uint8, a.dim)
	a.q.Quantize(codes, vec)
	a.data = append(a.data, codes...)
	a.n++
	a.tombstone.grow(a.n)

	return VectorId(a.n), nil
}

// Get dequantizes id's stored codes into a freshly allocated slice.
func (a *QuantizedU8Arena) Get(id VectorId) ([]float32, error) {
	if err := checkID(id, a.n); err != nil {
		return nil, err
	}

	idx := int(id) - 1
	codes := a.data[idx*a.dim : (idx+1)*a.dim]

	out := make([]float32, a.dim)
	a.q.Dequantize(out, codes)

	return out, nil
}

// GetQuantized returns id's raw u8 codes, zero-copy.
func (a *QuantizedU8Arena) GetQuantized(id VectorId) ([]uint8, error) {
	if err := checkID(id, a.n); err != nil {
		return nil, err
	}

	idx := int(id) - 1

	return a.data[idx*a.dim : (idx+1)*a.dim], nil
}

func (a *QuantizedU8Arena) MarkDeleted(id VectorId) (bool, error) {
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

func (a *QuantizedU8Arena) IsDeleted(id VectorId) (bool, error) {
	if err := checkID(id, a.n); err != nil {
		return false, err
	}

	return a.tombstone.get(int(id) - 1), nil
}

func (a *QuantizedU8Arena) TombstoneCount() int {
	return a.tombstone.count(a.n)
}

// Compact returns a fresh arena containing only the live codes, plus
// the old->new VectorId permutation (0 for removed ids).
func (a *QuantizedU8Arena) Compact() (*QuantizedU8Arena, []VectorId) {
	perm := make([]VectorId, a.n+1)

	out := NewQuantizedU8Arena(a.dim, a.q)

	for old := 1; old <= a.n; old++ {
		if a.tombstone.get(old - 1) {
			continue
		}

		codes := a.data[(old-1)*a.dim : old*a.dim]
		out.data = append(out.data, codes...)
		out.n++
		out.tombstone.grow(out.n)
		perm[old] = VectorId(out.n)
	}

	return out, perm
}
