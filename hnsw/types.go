// Package hnsw implements EVEC's C5 component: the multi-layer
// navigable small-world graph, its deterministic layer sampling,
// greedy-descent + beam-search insertion, and the neighbor-selection
// heuristic from Malkov & Yashunin §4. Adjacency lists are persisted
// through the vbyte codec and pool allocator (see those packages);
// vector comparisons are delegated to a caller-supplied VectorSource so
// this package never depends on a specific storage variant.
package hnsw

import (
	"fmt"

	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/storage"
)

// NodeId is a graph-internal handle, dense and bijective with live or
// tombstoned VectorIds until a compaction renumbers them.
type NodeId uint32

// InvalidNodeId is the reserved sentinel for "no node".
const InvalidNodeId NodeId = 0xFFFFFFFF

// MaxNodes is the hard capacity ceiling: NodeId is 32-bit and
// InvalidNodeId reserves the top value.
const MaxNodes = 1<<32 - 1

// Metric selects the distance function used to compare vectors during
// insertion and search.
type Metric int

const (
	MetricL2 Metric = iota
	MetricDot
	MetricHamming
)

// Config fixes the graph's tuning parameters at construction.
type Config struct {
	M              int // max neighbors per node above layer 0
	M0             int // max neighbors at layer 0, default 2*M
	EfConstruction int
	EfSearch       int
	Metric         Metric
	RngSeed        int64
}

// DefaultConfig returns the spec's defaults: M=16, M0=2M,
// ef_construction=200, ef_search=50, seed=42.
func DefaultConfig() Config {
	return Config{
		M:              16,
		M0:             32,
		EfConstruction: 200,
		EfSearch:       50,
		Metric:         MetricL2,
		RngSeed:        42,
	}
}

// Validate checks the invariants from spec.md §3: M > 1, M0 >= M.
func (c Config) Validate() error {
	if c.M <= 1 {
		return errInvalidConfig("M must be > 1")
	}

	if c.M0 < c.M {
		return errInvalidConfig("M0 must be >= M")
	}

	if c.EfConstruction < 1 || c.EfSearch < 1 {
		return errInvalidConfig("ef_construction and ef_search must be >= 1")
	}

	return nil
}

// VectorSource abstracts the storage arena the graph compares against,
// so the graph never needs to know whether vectors are float32,
// SQ8-quantized, or binary.
type VectorSource interface {
	// Len returns the number of VectorIds ever issued.
	Len() int
	// IsDeleted reports whether id is tombstoned.
	IsDeleted(id storage.VectorId) (bool, error)
	// Distance returns the configured metric's distance between two
	// stored vectors.
	Distance(a, b storage.VectorId) (float32, error)
	// DistanceToQuery returns the configured metric's distance between
	// an external query vector and a stored vector.
	DistanceToQuery(query []float32, id storage.VectorId) (float32, error)
}

func errInvalidConfig(msg string) error {
	return fmt.Errorf("%s: %w", msg, errs.ErrInvalidConfig)
}
