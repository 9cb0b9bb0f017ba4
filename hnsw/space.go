package hnsw

import (
	"github.com/calvinalkan/evec/distance"
	"github.com/calvinalkan/evec/quantize"
	"github.com/calvinalkan/evec/storage"
)

// metricFn computes a metric distance between two equal-length f32
// vectors. Dot-product "distance" is negated so smaller is always
// better, matching the L2/Hamming convention the graph's heaps assume.
func metricFn(m Metric) func(a, b []float32) float32 {
	switch m {
	case MetricDot:
		return func(a, b []float32) float32 { return -distance.Dot(a, b) }
	default:
		return distance.L2Squared
	}
}

// float32Space adapts a Float32Arena into a VectorSource.
type float32Space struct {
	arena  *storage.Float32Arena
	metric func(a, b []float32) float32
}

// NewFloat32Space returns a VectorSource backed by a Float32Arena.
func NewFloat32Space(arena *storage.Float32Arena, metric Metric) VectorSource {
	return &float32Space{arena: arena, metric: metricFn(metric)}
}

func (s *float32Space) Len() int { return s.arena.Len() }

func (s *float32Space) IsDeleted(id storage.VectorId) (bool, error) {
	return s.arena.IsDeleted(id)
}

func (s *float32Space) Distance(a, b storage.VectorId) (float32, error) {
	va, err := s.arena.Get(a)
	if err != nil {
		return 0, err
	}

	vb, err := s.arena.Get(b)
	if err != nil {
		return 0, err
	}

	return s.metric(va, vb), nil
}

func (s *float32Space) DistanceToQuery(query []float32, id storage.VectorId) (float32, error) {
	v, err := s.arena.Get(id)
	if err != nil {
		return 0, err
	}

	return s.metric(query, v), nil
}

// quantizedSpace adapts a QuantizedU8Arena into a VectorSource,
// comparing dequantized f32 vectors.
type quantizedSpace struct {
	arena  *storage.QuantizedU8Arena
	metric func(a, b []float32) float32
}

// NewQuantizedSpace returns a VectorSource backed by a QuantizedU8Arena.
func NewQuantizedSpace(arena *storage.QuantizedU8Arena, metric Metric) VectorSource {
	return &quantizedSpace{arena: arena, metric: metricFn(metric)}
}

func (s *quantizedSpace) Len() int { return s.arena.Len() }

func (s *quantizedSpace) IsDeleted(id storage.VectorId) (bool, error) {
	return s.arena.IsDeleted(id)
}

func (s *quantizedSpace) Distance(a, b storage.VectorId) (float32, error) {
	va, err := s.arena.Get(a)
	if err != nil {
		return 0, err
	}

	vb, err := s.arena.Get(b)
	if err != nil {
		return 0, err
	}

	return s.metric(va, vb), nil
}

func (s *quantizedSpace) DistanceToQuery(query []float32, id storage.VectorId) (float32, error) {
	v, err := s.arena.Get(id)
	if err != nil {
		return 0, err
	}

	return s.metric(query, v), nil
}

// binarySpace adapts a BinaryArena into a VectorSource using Hamming
// distance. Query vectors arrive as f32 (the caller's external
// representation) and are sign-quantized on the fly before comparison.
type binarySpace struct {
	arena *storage.BinaryArena
}

// NewBinarySpace returns a VectorSource backed by a BinaryArena.
func NewBinarySpace(arena *storage.BinaryArena) VectorSource {
	return &binarySpace{arena: arena}
}

func (s *binarySpace) Len() int { return s.arena.Len() }

func (s *binarySpace) IsDeleted(id storage.VectorId) (bool, error) {
	return s.arena.IsDeleted(id)
}

func (s *binarySpace) Distance(a, b storage.VectorId) (float32, error) {
	pa, err := s.arena.GetPacked(a)
	if err != nil {
		return 0, err
	}

	pb, err := s.arena.GetPacked(b)
	if err != nil {
		return 0, err
	}

	return float32(distance.Hamming(pa, pb)), nil
}

func (s *binarySpace) DistanceToQuery(query []float32, id storage.VectorId) (float32, error) {
	packed := make([]byte, s.arena.Dim()/8)
	if err := quantize.BinaryQuantize(packed, query); err != nil {
		return 0, err
	}

	stored, err := s.arena.GetPacked(id)
	if err != nil {
		return 0, err
	}

	return float32(distance.Hamming(packed, stored)), nil
}
