package pool_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/pool"
)

func TestAlloc_RoundsToSizeClass(t *testing.T) {
	t.Parallel()

	p := pool.New()

	h, err := p.Alloc(1)
	require.NoError(t, err)
	require.EqualValues(t, pool.MinSizeClass, h.Capacity)

	h2, err := p.Alloc(17)
	require.NoError(t, err)
	require.EqualValues(t, 32, h2.Capacity)

	h3, err := p.Alloc(0)
	require.NoError(t, err)
	require.EqualValues(t, pool.MinSizeClass, h3.Capacity)
}

func TestAlloc_RejectsOversized(t *testing.T) {
	t.Parallel()

	p := pool.New()

	_, err := p.Alloc(pool.MaxCapacity + 1)
	require.Error(t, err)
}

func TestFree_ReusesSlot(t *testing.T) {
	t.Parallel()

	p := pool.New()

	h1, err := p.Alloc(20)
	require.NoError(t, err)

	p.Free(h1)

	before := p.Len()

	h2, err := p.Alloc(20)
	require.NoError(t, err)

	require.Equal(t, h1.Offset, h2.Offset)
	require.Equal(t, before, p.Len(), "reused slot must not grow the backing buffer")
}

func TestWriteRead_RoundTrip(t *testing.T) {
	t.Parallel()

	p := pool.New()

	h, err := p.Alloc(5)
	require.NoError(t, err)

	require.NoError(t, p.Write(h, []byte("hello")))

	got, err := p.Read(h)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got[:5])
}

func TestWrite_OverCapacityRejected(t *testing.T) {
	t.Parallel()

	p := pool.New()

	h, err := p.Alloc(4)
	require.NoError(t, err)

	err = p.Write(h, make([]byte, 100))
	require.Error(t, err)
}

// TestNonoverlap_ArbitraryTraces asserts that at any instant no two
// live handles' byte ranges overlap, across a randomized sequence of
// alloc/free/reallocate operations, per the pool's core invariant.
func TestNonoverlap_ArbitraryTraces(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(99))
	p := pool.New()

	live := map[int]pool.Handle{}
	nextID := 0

	for op := 0; op < 5000; op++ {
		switch {
		case len(live) == 0 || rng.Intn(3) != 0:
			size := rng.Intn(200) + 1

			h, err := p.Alloc(size)
			require.NoError(t, err)

			assertNoOverlap(t, live, h)

			live[nextID] = h
			nextID++

		default:
			// pick a random live handle, free it, then immediately
			// reallocate (simulating node reallocation), which must
			// free the old slot only after writing is logically done.
			for id, h := range live {
				p.Free(h)
				delete(live, id)

				newSize := rng.Intn(200) + 1

				nh, err := p.Alloc(newSize)
				require.NoError(t, err)

				assertNoOverlap(t, live, nh)

				live[nextID] = nh
				nextID++

				break
			}
		}
	}
}

func assertNoOverlap(t *testing.T, live map[int]pool.Handle, candidate pool.Handle) {
	t.Helper()

	cStart := candidate.Offset
	cEnd := candidate.Offset + uint64(candidate.Capacity)

	for _, h := range live {
		hStart := h.Offset
		hEnd := h.Offset + uint64(h.Capacity)

		overlap := cStart < hEnd && hStart < cEnd
		require.False(t, overlap, "handle %+v overlaps live handle %+v", candidate, h)
	}
}
