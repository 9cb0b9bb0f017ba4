//go:build !amd64 && !arm64

package distance

import "github.com/calvinalkan/evec/internal/simdcap"

// Every other GOARCH (including wasm, where real SIMD128 intrinsics would
// require assembly this module does not hand-author, see DESIGN.md) gets
// the scalar reference kernels directly.

func selectKernels(_ simdcap.Caps) kernelSet {
	return kernelSet{l2sqScalar, dotScalar, hammingScalar}
}
