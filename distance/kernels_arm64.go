//go:build arm64

package distance

import "github.com/calvinalkan/evec/internal/simdcap"

// The NEON tier processes 4 float32 lanes per iteration, matching NEON's
// native 128-bit vector width. As with the amd64 AVX2 tier, this is an
// unrolled Go loop rather than hand-written assembly (see DESIGN.md).

func selectKernels(caps simdcap.Caps) kernelSet {
	if caps.NEON {
		return kernelSet{l2sqNEON, dotNEON, hammingNEON}
	}

	return kernelSet{l2sqScalar, dotScalar, hammingScalar}
}

func l2sqNEON(a, b []float32) float32 {
	n := len(a)
	lanes := n - n%4

	var acc [4]float32

	for i := 0; i < lanes; i += 4 {
		for j := range 4 {
			d := a[i+j] - b[i+j]
			acc[j] += d * d
		}
	}

	sum := acc[0] + acc[1] + acc[2] + acc[3]
	for i := lanes; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

func dotNEON(a, b []float32) float32 {
	n := len(a)
	lanes := n - n%4

	var acc [4]float32

	for i := 0; i < lanes; i += 4 {
		for j := range 4 {
			acc[j] += a[i+j] * b[i+j]
		}
	}

	sum := acc[0] + acc[1] + acc[2] + acc[3]
	for i := lanes; i < n; i++ {
		sum += a[i] * b[i]
	}

	return sum
}

func hammingNEON(a, b []byte) uint32 {
	n := len(a)
	lanes := n - n%4

	var acc [4]uint32

	for i := 0; i < lanes; i += 4 {
		for j := range 4 {
			acc[j] += uint32(popcount8(a[i+j] ^ b[i+j]))
		}
	}

	sum := acc[0] + acc[1] + acc[2] + acc[3]
	for i := lanes; i < n; i++ {
		sum += uint32(popcount8(a[i] ^ b[i]))
	}

	return sum
}
