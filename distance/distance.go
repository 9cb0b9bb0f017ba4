// Package distance implements the L2-squared, dot-product, and Hamming
// distance kernels used by the HNSW graph, with SIMD-dispatched
// implementations selected once at package load.
//
// Contracts (spec.md §4.1): inputs to a pair distance must be equal
// length (fail-fast — panics, since a length mismatch is a programmer
// error, not a runtime condition to recover from); NaN in a float input
// is likewise a programmer error and panics. Results match the scalar
// reference within float reordering tolerance (see [Tolerance]).
package distance

import (
	"fmt"
	"math"

	"github.com/calvinalkan/evec/internal/simdcap"
)

// kernels holds the function pointers selected at package init, based on
// the CPU's SIMD capability. This is the single dispatch point used
// uniformly by every exported distance function: the AVX2 tier on
// amd64, the NEON tier on arm64, and the scalar reference kernels
// everywhere else, js/wasm included.
var kernels = selectKernels(simdcap.Detect())

type kernelSet struct {
	l2sq    func(a, b []float32) float32
	dot     func(a, b []float32) float32
	hamming func(a, b []byte) uint32
}

// selectKernels is implemented per-architecture (kernels_amd64.go,
// kernels_arm64.go, kernels_generic.go) so that each build only
// references symbols available on that GOARCH.

func requireEqualLen(a, b []float32) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("distance: length mismatch: %d vs %d", len(a), len(b)))
	}
}

func requireEqualLenBytes(a, b []byte) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("distance: length mismatch: %d vs %d", len(a), len(b)))
	}
}

func requireNoNaN(v []float32) {
	for _, x := range v {
		if math.IsNaN(float64(x)) {
			panic("distance: NaN input")
		}
	}
}

// L2Squared returns the squared Euclidean distance between a and b.
func L2Squared(a, b []float32) float32 {
	requireEqualLen(a, b)
	requireNoNaN(a)
	requireNoNaN(b)

	return kernels.l2sq(a, b)
}

// Dot returns the dot product of a and b.
func Dot(a, b []float32) float32 {
	requireEqualLen(a, b)
	requireNoNaN(a)
	requireNoNaN(b)

	return kernels.dot(a, b)
}

// Hamming returns the Hamming distance (in bits) between two equal-length
// packed-bit byte slices.
func Hamming(a, b []byte) uint32 {
	requireEqualLenBytes(a, b)

	return kernels.hamming(a, b)
}

// Tolerance returns the acceptable absolute error between a SIMD result
// and the scalar reference for a value of magnitude ref, per spec.md
// §4.1: max(eps, 1e-4*|ref|).
func Tolerance(ref float32) float32 {
	const eps = 1e-6

	t := 1e-4 * float32(math.Abs(float64(ref)))
	if t < eps {
		return eps
	}

	return t
}

// l2sqScalar is the reference implementation every SIMD kernel must match.
func l2sqScalar(a, b []float32) float32 {
	var sum float32

	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

func dotScalar(a, b []float32) float32 {
	var sum float32

	for i := range a {
		sum += a[i] * b[i]
	}

	return sum
}

func hammingScalar(a, b []byte) uint32 {
	var sum uint32

	for i := range a {
		sum += uint32(popcount8(a[i] ^ b[i]))
	}

	return sum
}

// popcountNibble is the 16-entry lookup table used by the "SIMD"
// kernels below, mirroring the PSHUFB nibble-lookup technique spec.md
// §4.1 calls for: popcount of a 4-bit nibble.
var popcountNibble = [16]uint8{
	0, 1, 1, 2, 1, 2, 2, 3,
	1, 2, 2, 3, 2, 3, 3, 4,
}

func popcount8(b byte) uint8 {
	return popcountNibble[b&0x0F] + popcountNibble[b>>4]
}
