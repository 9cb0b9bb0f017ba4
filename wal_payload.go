package evec

import (
	"encoding/binary"
	"math"

	"github.com/calvinalkan/evec/quantize"
	"github.com/calvinalkan/evec/storage"
)

// encodeInsertPayload packs a RecordInsert's payload: the assigned
// VectorId followed by the raw f32 components the caller passed to
// Insert. Replay re-derives the quantized/binary arena representation
// by re-running the same Insert path, so only the original f32 vector
// needs to survive in the WAL.
func encodeInsertPayload(id VectorId, vec []float32) []byte {
	out := make([]byte, 8+len(vec)*4)
	binary.LittleEndian.PutUint64(out[0:8], uint64(id))

	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[8+i*4:], math.Float32bits(v))
	}

	return out
}

func decodeInsertPayload(payload []byte) (VectorId, []float32) {
	id := storage.VectorId(binary.LittleEndian.Uint64(payload[0:8]))
	raw := payload[8:]
	vec := make([]float32, len(raw)/4)

	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return id, vec
}

func encodeSoftDeletePayload(id VectorId) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(id))

	return out
}

func decodeSoftDeletePayload(payload []byte) VectorId {
	return storage.VectorId(binary.LittleEndian.Uint64(payload))
}

func binaryQuantizeInto(dst []byte, src []float32) error {
	return quantize.BinaryQuantize(dst, src)
}
