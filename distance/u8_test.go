package distance_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/distance"
)

func TestL2SquaredU8(t *testing.T) {
	t.Parallel()

	a := []uint8{10, 200, 0, 255}
	b := []uint8{12, 190, 5, 0}

	// (10-12)^2 + (200-190)^2 + (0-5)^2 + (255-0)^2 = 4 + 100 + 25 + 65025
	require.Equal(t, uint32(65154), distance.L2SquaredU8(a, b))
	require.Zero(t, distance.L2SquaredU8(a, a))
}

func TestDotU8(t *testing.T) {
	t.Parallel()

	a := []uint8{1, 2, 3}
	b := []uint8{4, 5, 6}

	require.Equal(t, uint32(4+10+18), distance.DotU8(a, b))
}

func TestU8_LengthMismatchPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		distance.L2SquaredU8([]uint8{1, 2}, []uint8{1})
	})
	require.Panics(t, func() {
		distance.DotU8([]uint8{1, 2}, []uint8{1})
	})
}
