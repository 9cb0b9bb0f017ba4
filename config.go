// Package evec is the public facade of an embedded approximate nearest
// neighbor vector index: an HNSW graph (hnsw) over a vector arena
// (storage), with soft-delete/compaction (softdelete), crash-safe
// persistence (persist), and exact rescoring over quantized candidates
// (rescore). It composes those packages the way the teacher's root CLI
// composes pkg/slotcache and pkg/fs: a thin orchestration layer, no
// engine logic of its own.
package evec

import (
	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/quantize"
)

// StorageKind selects which of the three vector arena variants an
// Index is built over. This is a closed sum (spec.md §9 "Variant
// types"): every Index method that touches vectors switches on it
// once, at construction, rather than threading a generic type
// parameter through the whole package.
type StorageKind int

const (
	StorageFloat32 StorageKind = iota
	StorageQuantizedU8
	StorageBinary
)

// Config fixes an Index's tuning parameters and storage variant at
// construction; nothing in it changes afterward (spec.md §6
// "Environment/config": all configuration flows through this struct,
// no environment variables).
type Config struct {
	Dim            int
	M              int
	M0             int
	EfConstruction int
	EfSearch       int
	Metric         hnsw.Metric
	Storage        StorageKind
	RngSeed        int64

	// SQ8 is the trained quantization range for StorageQuantizedU8.
	// Train it ahead of time with quantize.TrainSQ8 over a
	// representative sample; EVEC does not train learned quantizers
	// itself (spec.md §1 Non-goals), but this elementwise min/max
	// range is not a learned parameter and must be supplied by the
	// caller before the first Insert.
	SQ8 quantize.SQ8

	// RescoreOverfetch is the candidate multiplier rescore.Rescore
	// uses after an approximate StorageQuantizedU8 search (spec.md
	// §4.8's "e.g., 3x k"). Zero selects the package default.
	RescoreOverfetch int
}

// DefaultConfig returns spec.md's defaults (M=16, M0=32,
// ef_construction=200, ef_search=50, RNG seed=42) for a Float32/L2
// index of the given dimensionality.
func DefaultConfig(dim int) Config {
	hc := hnsw.DefaultConfig()

	return Config{
		Dim:            dim,
		M:              hc.M,
		M0:             hc.M0,
		EfConstruction: hc.EfConstruction,
		EfSearch:       hc.EfSearch,
		Metric:         hc.Metric,
		Storage:        StorageFloat32,
		RngSeed:        hc.RngSeed,
	}
}

// toHNSW projects the subset of Config that hnsw.Graph itself
// validates and consumes.
func (c Config) toHNSW() hnsw.Config {
	return hnsw.Config{
		M:              c.M,
		M0:             c.M0,
		EfConstruction: c.EfConstruction,
		EfSearch:       c.EfSearch,
		Metric:         c.Metric,
		RngSeed:        c.RngSeed,
	}
}

// Validate checks spec.md §3's invariants (M > 1, M0 >= M, dim > 0,
// plus dim % 8 == 0 for binary storage) and returns errs.ErrInvalidConfig
// (wrapped with context) on failure.
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return errInvalidConfig("dim must be > 0")
	}

	if c.Storage == StorageBinary && c.Dim%8 != 0 {
		return errInvalidConfig("dim must be a multiple of 8 for binary storage")
	}

	return c.toHNSW().Validate()
}
