// Package simdcap probes the CPU's SIMD feature set as a pure function.
//
// There is no global state: callers call [Detect] and dispatch on the
// returned [Caps]. This mirrors the dispatch-table idiom used by
// third-party SIMD packages in the ecosystem (e.g. minio/sha256-simd),
// adapted so the distance package's kernel selection stays testable
// without depending on process-wide init order.
package simdcap

// Caps reports which SIMD instruction sets the running CPU supports.
type Caps struct {
	AVX2    bool
	NEON    bool
	Generic bool // always true; the fallback every platform supports
}

// Detect returns the SIMD capabilities of the current CPU.
//
// On amd64, AVX2 is runtime-detected via [cpu.X86]. On arm64, NEON is
// part of the baseline ABI and is always available. Every other
// architecture reports only the generic (scalar) path.
func Detect() Caps {
	return Caps{
		AVX2:    hasAVX2(),
		NEON:    hasNEON(),
		Generic: true,
	}
}
