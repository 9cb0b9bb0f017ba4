package storage

// Float32Arena is a flat count*dim arena of f32 components. Get is
// zero-copy: it returns a slice aliasing the arena's backing storage.
type Float32Arena struct {
	dim       int
	data      []float32 // len == len(tombstones)*dim, slot i at [i*dim:(i+1)*dim]
	tombstone tombstoneBitset
	n         int // number of ids ever issued
}

// NewFloat32Arena returns an empty Float32Arena for vectors of the
// given dimensionality.
func NewFloat32Arena(dim int) *Float32Arena {
	return &Float32Arena{dim: dim}
}

func (a *Float32Arena) Dim() int { return a.dim }
func (a *Float32Arena) Len() int { return a.n }

func (a *Float32Arena) Insert(vec []float32) (VectorId, error) {
	if err := validateDim(a.dim, len(vec)); err != nil {
		return 0, err
	}

	a.data = append(a.data, vec...)
	a.n++
	a.tombstone.grow(a.n)

	return VectorId(a.n), nil
}

// Get returns a zero-copy slice aliasing the arena's backing array.
// Callers must not retain it across a subsequent Insert, which may
// reallocate the backing slice.
func (a *Float32Arena) Get(id VectorId) ([]float32, error) {
	if err := checkID(id, a.n); err != nil {
		return nil, err
	}

	idx := int(id) - 1

	return a.data[idx*a.dim : (idx+1)*a.dim], nil
}

func (a *Float32Arena) MarkDeleted(id VectorId) (bool, error) {
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

func (a *Float32Arena) IsDeleted(id VectorId) (bool, error) {
	if err := checkID(id, a.n); err != nil {
		return false, err
	}

	return a.tombstone.get(int(id) - 1), nil
}

// TombstoneCount returns the number of soft-deleted ids.
func (a *Float32Arena) TombstoneCount() int {
	return a.tombstone.count(a.n)
}

// Compact returns a fresh arena containing only the live vectors, in
// their original relative order, plus the permutation mapping each
// surviving old 1-based VectorId to its new one (0 for removed ids).
func (a *Float32Arena) Compact() (*Float32Arena, []VectorId) {
	perm := make([]VectorId, a.n+1) // perm[oldID] = newID, perm[0] unused

	out := NewFloat32Arena(a.dim)

	for old := 1; old <= a.n; old++ {
		if a.tombstone.get(old - 1) {
			continue
		}

		vec := a.data[(old-1)*a.dim : old*a.dim]
		newID, _ := out.Insert(vec)
		perm[old] = newID
	}

	return out, perm
}
