package hnsw

import "github.com/calvinalkan/evec/vbyte"

// encodeLayers concatenates the VByte-encoded neighbor block for each
// layer, ascending, matching the self-delimiting format spec.md §3
// describes: count + gaps per layer, layers back-to-back.
func encodeLayers(layers [][]NodeId) []byte {
	out := make([]byte, 0, 16*len(layers))

	for _, ids := range layers {
		out = append(out, vbyte.EncodeNeighbors(nodeIdsToUint32(ids))...)
	}

	return out
}

// decodeAllLayers decodes every layer's neighbor list out of a
// concatenated block, given the node's max layer (so layer 0..maxLayer
// inclusive, maxLayer+1 lists total).
func decodeAllLayers(block []byte, maxLayer uint8) ([][]NodeId, error) {
	out := make([][]NodeId, int(maxLayer)+1)

	offset := 0

	for layer := 0; layer <= int(maxLayer); layer++ {
		ids, n, err := vbyte.DecodeNeighbors(block[offset:])
		if err != nil {
			return nil, err
		}

		out[layer] = uint32sToNodeIds(ids)
		offset += n
	}

	return out, nil
}

func nodeIdsToUint32(ids []NodeId) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}

	return out
}

func uint32sToNodeIds(ids []uint32) []NodeId {
	if len(ids) == 0 {
		return nil
	}

	out := make([]NodeId, len(ids))
	for i, id := range ids {
		out[i] = NodeId(id)
	}

	return out
}
