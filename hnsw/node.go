package hnsw

import "github.com/calvinalkan/evec/storage"

// node is the 16-byte-equivalent record described in spec.md §3: a
// VectorId, the neighbor block's pool offset and allocated capacity
// (not logical length), the node's sampled max layer, and a
// soft-delete flag. Go doesn't need manual byte-packing for an
// in-memory struct, but the field set mirrors the persisted layout
// exactly so the persist package can serialize it without translation.
type node struct {
	vectorID         storage.VectorId
	neighborOffset   uint32
	neighborCapacity uint16
	maxLayer         uint8
	deleted          bool
}
