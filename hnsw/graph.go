package hnsw

import (
	"math"
	"math/rand"

	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/pool"
	"github.com/calvinalkan/evec/storage"
)

// Graph is the multi-layer HNSW index over NodeIds. It owns the
// neighbor pool and node table; vector comparisons are delegated to a
// caller-supplied VectorSource so the graph never touches raw vector
// bytes directly.
type Graph struct {
	cfg        Config
	mL         float64
	nodes      []node
	pool       *pool.Pool
	entryPoint NodeId
	maxLayer   int
	rng        *rand.Rand

	visitedStamp []uint32
	visitedGen   uint32
}

// New returns an empty graph configured per cfg.
func New(cfg Config) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Graph{
		cfg:        cfg,
		mL:         1 / math.Log(float64(cfg.M)),
		pool:       pool.New(),
		entryPoint: InvalidNodeId,
		maxLayer:   -1,
		rng:        rand.New(rand.NewSource(cfg.RngSeed)),
	}, nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// EntryPoint returns the current global entry point, or InvalidNodeId
// if the graph is empty.
func (g *Graph) EntryPoint() NodeId { return g.entryPoint }

// MaxLayer returns the current global max layer, or -1 if empty.
func (g *Graph) MaxLayer() int { return g.maxLayer }

// sampleLayer draws a layer per spec.md §4.5: floor(-ln(U) * mL),
// U in (0,1], capped at 16.
func (g *Graph) sampleLayer() int {
	u := g.rng.Float64()
	for u == 0 {
		u = g.rng.Float64()
	}

	layer := int(math.Floor(-math.Log(u) * g.mL))
	if layer > 16 {
		layer = 16
	}

	return layer
}

func (g *Graph) capForLayer(layer int) int {
	if layer == 0 {
		return g.cfg.M0
	}

	return g.cfg.M
}

func (g *Graph) isDeleted(n NodeId) bool {
	return g.nodes[n].deleted
}

func (g *Graph) vectorID(n NodeId) storage.VectorId {
	return g.nodes[n].vectorID
}

func handleOf(rec node) pool.Handle {
	return pool.Handle{Offset: uint64(rec.neighborOffset), Capacity: rec.neighborCapacity}
}

func (g *Graph) checkNodeID(n NodeId) error {
	if n == InvalidNodeId || int(n) >= len(g.nodes) {
		return errs.ErrNodeIDOutOfBounds
	}

	return nil
}

func (g *Graph) newVisitGeneration() {
	g.visitedGen++

	if g.visitedGen == 0 { // wrapped; force a real clear
		g.visitedStamp = make([]uint32, len(g.nodes))
		g.visitedGen = 1
	}

	for len(g.visitedStamp) < len(g.nodes) {
		g.visitedStamp = append(g.visitedStamp, 0)
	}
}

func (g *Graph) visited(n NodeId) bool {
	return g.visitedStamp[n] == g.visitedGen
}

func (g *Graph) markVisited(n NodeId) {
	g.visitedStamp[n] = g.visitedGen
}

// Neighbors exposes a node's decoded neighbor list at layer, mainly
// for diagnostics and the persist package's snapshot writer.
func (g *Graph) Neighbors(n NodeId, layer int) ([]NodeId, error) {
	if err := g.checkNodeID(n); err != nil {
		return nil, err
	}

	return g.getNeighbors(n, layer)
}

// MaxLayerOf returns node n's sampled max layer.
func (g *Graph) MaxLayerOf(n NodeId) (int, error) {
	if err := g.checkNodeID(n); err != nil {
		return 0, err
	}

	return int(g.nodes[n].maxLayer), nil
}

// VectorIdOf returns node n's stored VectorId.
func (g *Graph) VectorIdOf(n NodeId) (storage.VectorId, error) {
	if err := g.checkNodeID(n); err != nil {
		return 0, err
	}

	return g.nodes[n].vectorID, nil
}

// getNeighbors decodes node n's neighbor list at layer, returning nil
// if n does not live at that layer.
func (g *Graph) getNeighbors(n NodeId, layer int) ([]NodeId, error) {
	rec := g.nodes[n]
	if layer > int(rec.maxLayer) {
		return nil, nil
	}

	block, err := g.pool.Read(handleOf(rec))
	if err != nil {
		return nil, err
	}

	layers, err := decodeAllLayers(block, rec.maxLayer)
	if err != nil {
		return nil, err
	}

	return layers[layer], nil
}

// setNeighbors replaces node n's neighbor list at layer, re-encoding
// the whole block (all layers are concatenated in one pool
// allocation) and reallocating if the new block no longer fits the
// old capacity.
func (g *Graph) setNeighbors(n NodeId, layer int, ids []NodeId) error {
	rec := g.nodes[n]
	oldHandle := handleOf(rec)

	block, err := g.pool.Read(oldHandle)
	if err != nil {
		return err
	}

	layers, err := decodeAllLayers(block, rec.maxLayer)
	if err != nil {
		return err
	}

	layers[layer] = ids

	newBlock := encodeLayers(layers)

	if len(newBlock) <= int(oldHandle.Capacity) {
		return g.pool.Write(oldHandle, newBlock)
	}

	newHandle, err := g.pool.Alloc(len(newBlock))
	if err != nil {
		return err
	}

	if err := g.pool.Write(newHandle, newBlock); err != nil {
		return err
	}

	g.pool.Free(oldHandle)
	g.nodes[n].neighborOffset = uint32(newHandle.Offset)
	g.nodes[n].neighborCapacity = newHandle.Capacity

	return nil
}
