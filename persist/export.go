package persist

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/calvinalkan/evec/hnsw"
)

// Sink receives one bounded-size chunk of a streamed snapshot, in
// order. It must not retain chunk past the call: StreamSnapshot reuses
// the backing buffer for the next chunk.
type Sink func(chunk []byte) error

// StreamSnapshot serializes s exactly like WriteSnapshot — same byte
// layout, same final file — but never materializes the full payload
// in memory: vector data, node records, and pool bytes (the three
// sections whose size scales with corpus size) are emitted directly
// from their source slices in chunkSize-bounded pieces. It is the sole
// producer behind the export package's host-I/O-facing streaming
// writer (spec.md §4.9).
//
// Because the trailing data CRC must cover the whole payload but
// precedes it in the header, StreamSnapshot makes two passes: the
// first hashes the payload without emitting anything, the second
// emits header+payload+trailer through sink. No chunk passed to sink
// is longer than chunkSize. Transient memory is not bounded by
// chunkSize everywhere: the tombstone and metadata sections are each
// encoded into one whole buffer before being cut into chunks, and the
// float32 and node-record staging buffers always hold at least one
// value or record.
func StreamSnapshot(s Snapshot, sink Sink, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	hasher := crc32.NewIEEE()

	if err := streamPayload(s, func(b []byte) error {
		_, err := hasher.Write(b)

		return err
	}, chunkSize); err != nil {
		return err
	}

	dataCRC := hasher.Sum32()

	vectorSectionLen := vectorSectionHeaderSize + s.VectorCount*s.elemSize()
	indexSectionLen := indexSectionHeaderLen(s.Nodes, s.PoolBytes)
	tombstoneLen := tombstoneByteLen(s.VectorCount)

	indexOffset := uint64(HeaderSize + vectorSectionLen)
	metadataOffset := uint64(0)

	flags := uint32(s.Kind)<<kindShift | uint32(s.Config.Metric)<<metricShift
	if len(s.Metadata) > 0 {
		flags |= FlagHasMetadata
		metadataOffset = indexOffset + uint64(indexSectionLen) + uint64(tombstoneLen)
	}

	header := headerFor(s, flags, indexOffset, metadataOffset, dataCRC)
	encoded := header.Encode()

	if err := chunkedEmit(encoded[:], chunkSize, sink); err != nil {
		return err
	}

	if err := streamPayload(s, sink, chunkSize); err != nil {
		return err
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], dataCRC)

	return chunkedEmit(trailer[:], chunkSize, sink)
}

// DefaultChunkSize is used when StreamSnapshot is called with a
// non-positive chunkSize.
const DefaultChunkSize = 1 << 20 // 1 MiB

func indexSectionHeaderLen(nodes []hnsw.NodeRecord, poolBytes []byte) int {
	return 20 + len(nodes)*nodeRecordSize + len(poolBytes)
}

// streamPayload emits every section after the header (vector, index,
// tombstone, optional metadata) through emit, in chunkSize-bounded
// pieces, without ever concatenating them into one buffer.
func streamPayload(s Snapshot, emit Sink, chunkSize int) error {
	if err := streamVectorSection(s, emit, chunkSize); err != nil {
		return err
	}

	if err := streamIndexSection(s.EntryPoint, s.MaxLayer, s.Nodes, s.PoolBytes, emit, chunkSize); err != nil {
		return err
	}

	tombstoneSection := encodeTombstoneSection(s.TombstoneWords, s.VectorCount)
	if err := chunkedEmit(tombstoneSection, chunkSize, emit); err != nil {
		return err
	}

	if len(s.Metadata) > 0 {
		metadataSection := encodeMetadataSection(s.Metadata)
		if err := chunkedEmit(metadataSection, chunkSize, emit); err != nil {
			return err
		}
	}

	return nil
}

func streamVectorSection(s Snapshot, emit Sink, chunkSize int) error {
	head := make([]byte, vectorSectionHeaderSize)
	head[0] = byte(s.Kind)
	binary.LittleEndian.PutUint32(head[8:12], math.Float32bits(s.SQ8.Min))
	binary.LittleEndian.PutUint32(head[12:16], math.Float32bits(s.SQ8.Max))

	if err := chunkedEmit(head, chunkSize, emit); err != nil {
		return err
	}

	switch s.Kind {
	case KindFloat32:
		return streamFloat32(s.Float32Data, emit, chunkSize)
	case KindQuantizedU8:
		return chunkedEmit(s.QuantizedData, chunkSize, emit)
	case KindBinary:
		return chunkedEmit(s.BinaryData, chunkSize, emit)
	default:
		return nil
	}
}

func streamFloat32(data []float32, emit Sink, chunkSize int) error {
	floatsPerChunk := chunkSize / 4
	if floatsPerChunk < 1 {
		floatsPerChunk = 1
	}

	buf := make([]byte, floatsPerChunk*4)

	for i := 0; i < len(data); i += floatsPerChunk {
		end := i + floatsPerChunk
		if end > len(data) {
			end = len(data)
		}

		chunk := buf[:(end-i)*4]

		for j, v := range data[i:end] {
			binary.LittleEndian.PutUint32(chunk[j*4:], math.Float32bits(v))
		}

		if err := chunkedEmit(chunk, chunkSize, emit); err != nil {
			return err
		}
	}

	return nil
}

func streamIndexSection(entryPoint hnsw.NodeId, maxLayer int, nodes []hnsw.NodeRecord, poolBytes []byte, emit Sink, chunkSize int) error {
	var head [20]byte
	binary.LittleEndian.PutUint32(head[0:4], uint32(entryPoint))
	binary.LittleEndian.PutUint32(head[4:8], uint32(int32(maxLayer)))
	binary.LittleEndian.PutUint32(head[8:12], uint32(len(nodes)))
	binary.LittleEndian.PutUint64(head[12:20], uint64(len(poolBytes)))

	if err := chunkedEmit(head[:], chunkSize, emit); err != nil {
		return err
	}

	recordsPerChunk := chunkSize / nodeRecordSize
	if recordsPerChunk < 1 {
		recordsPerChunk = 1
	}

	buf := make([]byte, recordsPerChunk*nodeRecordSize)

	for i := 0; i < len(nodes); i += recordsPerChunk {
		end := i + recordsPerChunk
		if end > len(nodes) {
			end = len(nodes)
		}

		n := end - i
		chunk := buf[:n*nodeRecordSize]

		for j, rec := range nodes[i:end] {
			out := chunk[j*nodeRecordSize : (j+1)*nodeRecordSize]
			binary.LittleEndian.PutUint64(out[0:8], uint64(rec.VectorId))
			binary.LittleEndian.PutUint32(out[8:12], rec.NeighborOffset)
			binary.LittleEndian.PutUint16(out[12:14], rec.NeighborCapacity)
			out[14] = rec.MaxLayer

			if rec.Deleted {
				out[15] = 1
			}
		}

		if err := chunkedEmit(chunk, chunkSize, emit); err != nil {
			return err
		}
	}

	return chunkedEmit(poolBytes, chunkSize, emit)
}

func chunkedEmit(data []byte, chunkSize int, emit Sink) error {
	if chunkSize < 1 {
		chunkSize = 1
	}

	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}

		if err := emit(data[i:end]); err != nil {
			return err
		}
	}

	return nil
}
