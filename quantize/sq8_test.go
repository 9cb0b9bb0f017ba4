package quantize_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/quantize"
)

func TestTrainSQ8_ElementwiseMinMax(t *testing.T) {
	t.Parallel()

	batch := [][]float32{
		{1, -5, 3},
		{-2, 10, 0},
	}

	q := quantize.TrainSQ8(batch)
	require.Equal(t, float32(-5), q.Min)
	require.Equal(t, float32(10), q.Max)
}

func TestQuantizeDequantize_RoundTripWithinStep(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))

	batch := make([][]float32, 20)
	for i := range batch {
		batch[i] = randomFloats(rng, 32, -10, 10)
	}

	q := quantize.TrainSQ8(batch)
	step := (q.Max - q.Min) / 255

	for _, vec := range batch {
		codes := make([]uint8, len(vec))
		q.Quantize(codes, vec)

		decoded := make([]float32, len(vec))
		q.Dequantize(decoded, codes)

		for i := range vec {
			require.InDelta(t, vec[i], decoded[i], float64(step)+1e-4)
		}
	}
}

func TestQuantize_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	q := quantize.SQ8{Min: 0, Max: 10}

	codes := make([]uint8, 3)
	q.Quantize(codes, []float32{-100, 5, 1000})

	require.Equal(t, uint8(0), codes[0])
	require.Equal(t, uint8(255), codes[2])
}

func TestQuantize_DegenerateRange(t *testing.T) {
	t.Parallel()

	q := quantize.SQ8{Min: 5, Max: 5}

	codes := make([]uint8, 3)
	q.Quantize(codes, []float32{1, 5, 9})

	require.Equal(t, []uint8{0, 0, 0}, codes)
}

func TestBinaryQuantize_SignRule(t *testing.T) {
	t.Parallel()

	src := []float32{1, -1, 0.5, -0.5, 0, 2, -2, 3}
	dst := make([]byte, 1)

	require.NoError(t, quantize.BinaryQuantize(dst, src))

	// bit i = 1 iff src[i] > 0; 0 is not > 0.
	require.Equal(t, byte(0b10100101), dst[0])
}

func TestBinaryQuantize_RejectsNonMultipleOf8(t *testing.T) {
	t.Parallel()

	err := quantize.BinaryQuantize(make([]byte, 1), make([]float32, 5))
	require.Error(t, err)
}

func randomFloats(rng *rand.Rand, n int, lo, hi float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = lo + rng.Float32()*(hi-lo)
	}

	return out
}
