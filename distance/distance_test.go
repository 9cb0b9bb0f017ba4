package distance_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/distance"
)

func TestHamming_SymmetricAndIdentity(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	a := randomBytes(rng, 96)
	b := randomBytes(rng, 96)

	require.Equal(t, distance.Hamming(a, b), distance.Hamming(b, a))
	require.Zero(t, distance.Hamming(a, a))

	max := uint32(8 * len(a))
	require.LessOrEqual(t, distance.Hamming(a, b), max)
}

func TestHamming_Extremes(t *testing.T) {
	t.Parallel()

	// dim 768 -> 96 bytes; all +1 vs all -1 sign-quantizes to 0xFF vs 0x00.
	allOnes := make([]byte, 96)
	for i := range allOnes {
		allOnes[i] = 0xFF
	}

	allZeros := make([]byte, 96)

	require.Equal(t, uint32(768), distance.Hamming(allOnes, allZeros))
	require.Zero(t, distance.Hamming(allOnes, allOnes))
}

func TestHamming_AlternatingPattern(t *testing.T) {
	t.Parallel()

	a := []byte{0x55, 0x55, 0x55}
	b := []byte{0xAA, 0xAA, 0xAA}

	require.Equal(t, uint32(24), distance.Hamming(a, b))
}

func TestL2Squared_Symmetric(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(2))
	a := randomFloats(rng, 128)
	b := randomFloats(rng, 128)

	require.InDelta(t, distance.L2Squared(a, b), distance.L2Squared(b, a), 1e-3)
}

func TestL2Squared_ZeroForIdenticalVectors(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	a := randomFloats(rng, 64)

	require.Zero(t, distance.L2Squared(a, a))
}

func TestL2Squared_LengthMismatchPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		distance.L2Squared([]float32{1, 2}, []float32{1})
	})
}

func TestHamming_LengthMismatchPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		distance.Hamming([]byte{1, 2}, []byte{1})
	})
}

// TestSIMDMatchesScalar exercises the distance functions across a range
// of dimensions (including non-multiples of the kernel lane width) to
// confirm the dispatched kernel agrees with the scalar reference within
// tolerance, per spec.md invariant 6.
func TestSIMDMatchesScalar(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(4))

	for _, dim := range []int{1, 3, 4, 7, 8, 15, 16, 33, 128, 257} {
		a := randomFloats(rng, dim)
		b := randomFloats(rng, dim)

		got := distance.L2Squared(a, b)
		want := referenceL2Squared(a, b)
		require.InDelta(t, want, got, float64(distance.Tolerance(want)), "dim=%d", dim)

		gotDot := distance.Dot(a, b)
		wantDot := referenceDot(a, b)
		require.InDelta(t, wantDot, gotDot, float64(distance.Tolerance(wantDot)), "dim=%d", dim)
	}

	for _, n := range []int{1, 3, 4, 7, 8, 33, 96} {
		ba := randomBytes(rng, n)
		bb := randomBytes(rng, n)

		got := distance.Hamming(ba, bb)
		want := referenceHamming(ba, bb)
		require.Equal(t, want, got, "n=%d", n)
	}
}

func referenceL2Squared(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

func referenceDot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}

	return sum
}

func referenceHamming(a, b []byte) uint32 {
	var sum uint32
	for i := range a {
		x := a[i] ^ b[i]
		for x != 0 {
			sum++
			x &= x - 1
		}
	}

	return sum
}

func randomFloats(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}

	return out
}

func randomBytes(rng *rand.Rand, n int) []byte {
	out := make([]byte, n)
	_, _ = rng.Read(out)

	return out
}
