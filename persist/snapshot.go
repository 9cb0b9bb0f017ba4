package persist

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/hnsw"
	"github.com/calvinalkan/evec/quantize"
	"github.com/calvinalkan/evec/storage"
)

// VectorKind identifies which of storage's three arena variants a
// snapshot's vector section holds. It is a closed sum, per spec.md
// §9 "Variant types": every snapshot read/write path matches on it.
type VectorKind uint8

const (
	KindFloat32 VectorKind = iota
	KindQuantizedU8
	KindBinary
)

const kindMask = 0b110
const kindShift = 1

const metricMask = 0b11000
const metricShift = 3

// vectorSectionHeaderSize is a fixed 16-byte preamble to the vector
// section: the VectorKind (1 byte, padded) plus the trained SQ8
// (min, max) pair used by KindQuantizedU8 snapshots (ignored, zeroed,
// for the other two kinds). This is not named as a distinct section
// in spec.md §4.7's byte diagram, but is required to make the vector
// section self-describing without growing the fixed 64-byte header.
const vectorSectionHeaderSize = 16

// Snapshot is the in-memory shape of everything a full EVEC save/load
// round-trip needs: the graph's structural state (config, entry
// point, node table, neighbor pool) plus exactly one of the three
// vector arena variants, plus optional string metadata tags.
type Snapshot struct {
	Config     hnsw.Config
	EntryPoint hnsw.NodeId
	MaxLayer   int
	Nodes      []hnsw.NodeRecord
	PoolBytes  []byte

	Kind           VectorKind
	Dim            int
	VectorCount    int
	TombstoneWords []uint64

	Float32Data   []float32
	QuantizedData []uint8
	SQ8           quantize.SQ8
	BinaryData    []byte

	DeletedCount int

	// Metadata attaches an external string tag per VectorId. Per
	// spec.md §4.6, metadata is not carried across compaction;
	// callers must re-attach after CompactGraph.
	Metadata map[storage.VectorId]string
}

func (s Snapshot) elemSize() int {
	switch s.Kind {
	case KindFloat32:
		return s.Dim * 4
	case KindQuantizedU8:
		return s.Dim
	case KindBinary:
		return s.Dim / 8
	default:
		return 0
	}
}

// WriteSnapshot serializes s into the backend-agnostic byte layout
// of spec.md §4.7 and durably stores it under key via
// backend.AtomicWrite, so a crash mid-write never corrupts a
// previously readable snapshot.
func WriteSnapshot(s Snapshot, backend Backend, key string) error {
	vectorSection, err := encodeVectorSection(s)
	if err != nil {
		return err
	}

	indexSection := encodeIndexSection(s.EntryPoint, s.MaxLayer, s.Nodes, s.PoolBytes)
	tombstoneSection := encodeTombstoneSection(s.TombstoneWords, s.VectorCount)

	var metadataSection []byte
	if len(s.Metadata) > 0 {
		metadataSection = encodeMetadataSection(s.Metadata)
	}

	indexOffset := uint64(HeaderSize + len(vectorSection))
	metadataOffset := uint64(0)

	if metadataSection != nil {
		metadataOffset = indexOffset + uint64(len(indexSection)) + uint64(len(tombstoneSection))
	}

	flags := uint32(s.Kind)<<kindShift | uint32(s.Config.Metric)<<metricShift
	if metadataSection != nil {
		flags |= FlagHasMetadata
	}

	payload := make([]byte, 0, len(vectorSection)+len(indexSection)+len(tombstoneSection)+len(metadataSection))
	payload = append(payload, vectorSection...)
	payload = append(payload, indexSection...)
	payload = append(payload, tombstoneSection...)
	payload = append(payload, metadataSection...)

	dataCRC := crc32.ChecksumIEEE(payload)
	header := headerFor(s, flags, indexOffset, metadataOffset, dataCRC)
	encodedHeader := header.Encode()

	out := make([]byte, 0, HeaderSize+len(payload)+4)
	out = append(out, encodedHeader[:]...)
	out = append(out, payload...)
	out = binary.LittleEndian.AppendUint32(out, dataCRC)

	return backend.AtomicWrite(key, out)
}

// ReadSnapshot loads and validates the snapshot stored under key:
// magic, header CRC, version, and the trailing data CRC must all
// check out, or a typed *errs.CRCMismatchError / errs.ErrIncompatible
// is returned and no partial Snapshot is handed back.
func ReadSnapshot(backend Backend, key string) (Snapshot, error) {
	raw, err := backend.ReadKey(key)
	if err != nil {
		return Snapshot{}, err
	}

	if len(raw) < HeaderSize+4 {
		return Snapshot{}, errs.ErrCorrupt
	}

	header, err := DecodeHeader(raw[:HeaderSize])
	if err != nil {
		return Snapshot{}, err
	}

	payload := raw[HeaderSize : len(raw)-4]
	trailingCRC := binary.LittleEndian.Uint32(raw[len(raw)-4:])

	gotCRC := crc32.ChecksumIEEE(payload)
	if gotCRC != header.DataCRC || gotCRC != trailingCRC {
		return Snapshot{}, &errs.CRCMismatchError{Section: "data", Expected: header.DataCRC, Actual: gotCRC}
	}

	s := Snapshot{
		Config: hnsw.Config{
			M:              int(header.HnswM),
			M0:             int(header.HnswM0),
			EfConstruction: hnsw.DefaultConfig().EfConstruction,
			EfSearch:       hnsw.DefaultConfig().EfSearch,
			Metric:         hnsw.Metric((header.Flags & metricMask) >> metricShift),
			RngSeed:        header.RngSeed,
		},
		Kind:         VectorKind((header.Flags & kindMask) >> kindShift),
		Dim:          int(header.Dim),
		VectorCount:  int(header.VectorCount),
		DeletedCount: int(header.DeletedCount),
	}

	vectorSectionLen := int(header.IndexOffset) - HeaderSize

	if vectorSectionLen < 0 || vectorSectionLen > len(payload) {
		return Snapshot{}, errs.ErrCorrupt
	}

	if err := decodeVectorSection(&s, payload[:vectorSectionLen]); err != nil {
		return Snapshot{}, err
	}

	rest := payload[vectorSectionLen:]

	entryPoint, maxLayer, nodes, poolBytes, n, err := decodeIndexSection(rest)
	if err != nil {
		return Snapshot{}, err
	}

	s.EntryPoint = entryPoint
	s.MaxLayer = maxLayer
	s.Nodes = nodes
	s.PoolBytes = poolBytes
	rest = rest[n:]

	tombstoneLen := tombstoneByteLen(s.VectorCount)
	if tombstoneLen > len(rest) {
		return Snapshot{}, errs.ErrCorrupt
	}

	s.TombstoneWords = decodeTombstoneSection(rest[:tombstoneLen])
	rest = rest[tombstoneLen:]

	if header.Flags&FlagHasMetadata != 0 {
		md, err := decodeMetadataSection(rest)
		if err != nil {
			return Snapshot{}, err
		}

		s.Metadata = md
	}

	return s, nil
}

func headerFor(s Snapshot, flags uint32, indexOffset, metadataOffset uint64, dataCRC uint32) FileHeader {
	return FileHeader{
		Magic:          Magic,
		VersionMajor:   VersionMajor,
		VersionMinor:   VersionMinor,
		Flags:          flags,
		VectorCount:    uint64(s.VectorCount),
		IndexOffset:    indexOffset,
		MetadataOffset: metadataOffset,
		RngSeed:        s.Config.RngSeed,
		Dim:            uint32(s.Dim),
		HnswM:          uint16(s.Config.M),
		HnswM0:         uint16(s.Config.M0),
		DeletedCount:   uint32(s.DeletedCount),
		DataCRC:        dataCRC,
	}
}

func encodeVectorSection(s Snapshot) ([]byte, error) {
	head := make([]byte, vectorSectionHeaderSize)
	head[0] = byte(s.Kind)
	binary.LittleEndian.PutUint32(head[8:12], math.Float32bits(s.SQ8.Min))
	binary.LittleEndian.PutUint32(head[12:16], math.Float32bits(s.SQ8.Max))

	var data []byte

	switch s.Kind {
	case KindFloat32:
		data = make([]byte, len(s.Float32Data)*4)
		for i, v := range s.Float32Data {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		}
	case KindQuantizedU8:
		data = s.QuantizedData
	case KindBinary:
		data = s.BinaryData
	default:
		return nil, fmt.Errorf("persist: unknown vector kind %d", s.Kind)
	}

	return append(head, data...), nil
}

func decodeVectorSection(s *Snapshot, section []byte) error {
	if len(section) < vectorSectionHeaderSize {
		return errs.ErrCorrupt
	}

	data := section[vectorSectionHeaderSize:]
	s.SQ8.Min = math.Float32frombits(binary.LittleEndian.Uint32(section[8:12]))
	s.SQ8.Max = math.Float32frombits(binary.LittleEndian.Uint32(section[12:16]))

	elemSize := s.elemSize()
	want := s.VectorCount * elemSize

	if len(data) != want {
		return fmt.Errorf("%w: vector section: expected %d bytes, got %d", errs.ErrCorrupt, want, len(data))
	}

	switch s.Kind {
	case KindFloat32:
		out := make([]float32, s.VectorCount*s.Dim)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}

		s.Float32Data = out
	case KindQuantizedU8:
		s.QuantizedData = append([]byte(nil), data...)
	case KindBinary:
		s.BinaryData = append([]byte(nil), data...)
	default:
		return fmt.Errorf("persist: unknown vector kind %d", s.Kind)
	}

	return nil
}

const nodeRecordSize = 16

func encodeIndexSection(entryPoint hnsw.NodeId, maxLayer int, nodes []hnsw.NodeRecord, poolBytes []byte) []byte {
	out := make([]byte, 0, 4+4+4+8+len(nodes)*nodeRecordSize+len(poolBytes))
	out = binary.LittleEndian.AppendUint32(out, uint32(entryPoint))
	out = binary.LittleEndian.AppendUint32(out, uint32(int32(maxLayer)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(nodes)))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(poolBytes)))

	for _, n := range nodes {
		var rec [nodeRecordSize]byte
		binary.LittleEndian.PutUint64(rec[0:8], uint64(n.VectorId))
		binary.LittleEndian.PutUint32(rec[8:12], n.NeighborOffset)
		binary.LittleEndian.PutUint16(rec[12:14], n.NeighborCapacity)
		rec[14] = n.MaxLayer

		if n.Deleted {
			rec[15] = 1
		}

		out = append(out, rec[:]...)
	}

	out = append(out, poolBytes...)

	return out
}

// decodeIndexSection returns the decoded entry point, max layer, node
// records, pool bytes, and the number of bytes consumed from src.
func decodeIndexSection(src []byte) (hnsw.NodeId, int, []hnsw.NodeRecord, []byte, int, error) {
	if len(src) < 20 {
		return 0, 0, nil, nil, 0, errs.ErrCorrupt
	}

	entryPoint := hnsw.NodeId(binary.LittleEndian.Uint32(src[0:4]))
	maxLayer := int(int32(binary.LittleEndian.Uint32(src[4:8])))
	count := binary.LittleEndian.Uint32(src[8:12])
	poolLen := binary.LittleEndian.Uint64(src[12:20])

	offset := 20
	recordsEnd := offset + int(count)*nodeRecordSize

	if recordsEnd > len(src) {
		return 0, 0, nil, nil, 0, errs.ErrCorrupt
	}

	nodes := make([]hnsw.NodeRecord, count)

	for i := range nodes {
		rec := src[offset+i*nodeRecordSize : offset+(i+1)*nodeRecordSize]
		nodes[i] = hnsw.NodeRecord{
			VectorId:         storage.VectorId(binary.LittleEndian.Uint64(rec[0:8])),
			NeighborOffset:   binary.LittleEndian.Uint32(rec[8:12]),
			NeighborCapacity: binary.LittleEndian.Uint16(rec[12:14]),
			MaxLayer:         rec[14],
			Deleted:          rec[15] != 0,
		}
	}

	poolStart := recordsEnd
	poolEnd := poolStart + int(poolLen)

	if poolEnd > len(src) {
		return 0, 0, nil, nil, 0, errs.ErrCorrupt
	}

	pool := append([]byte(nil), src[poolStart:poolEnd]...)

	return entryPoint, maxLayer, nodes, pool, poolEnd, nil
}

func tombstoneByteLen(count int) int {
	return (count + 7) / 8
}

func encodeTombstoneSection(words []uint64, count int) []byte {
	out := make([]byte, tombstoneByteLen(count))

	for i := 0; i < count; i++ {
		word := 0

		if i/64 < len(words) {
			word = int((words[i/64] >> uint(i%64)) & 1)
		}

		if word != 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}

	return out
}

func decodeTombstoneSection(bits []byte) []uint64 {
	nWords := (len(bits)*8 + 63) / 64
	words := make([]uint64, nWords)

	for i := 0; i < len(bits)*8; i++ {
		byteVal := bits[i/8]
		if byteVal&(1<<uint(i%8)) != 0 {
			words[i/64] |= 1 << uint(i%64)
		}
	}

	return words
}

const metaMagic = "META"

func encodeMetadataSection(md map[storage.VectorId]string) []byte {
	out := make([]byte, 0, len(metaMagic)+4)
	out = append(out, metaMagic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(md)))

	ids := make([]storage.VectorId, 0, len(md))
	for id := range md {
		ids = append(ids, id)
	}

	sortVectorIds(ids)

	for _, id := range ids {
		out = binary.LittleEndian.AppendUint64(out, uint64(id))
		tag := md[id]
		out = binary.LittleEndian.AppendUint32(out, uint32(len(tag)))
		out = append(out, tag...)
	}

	return out
}

func decodeMetadataSection(src []byte) (map[storage.VectorId]string, error) {
	if len(src) < 8 || string(src[:4]) != metaMagic {
		return nil, fmt.Errorf("%w: bad metadata magic", errs.ErrCorrupt)
	}

	count := binary.LittleEndian.Uint32(src[4:8])
	offset := 8
	out := make(map[storage.VectorId]string, count)

	for i := uint32(0); i < count; i++ {
		if offset+12 > len(src) {
			return nil, errs.ErrCorrupt
		}

		id := storage.VectorId(binary.LittleEndian.Uint64(src[offset : offset+8]))
		taglen := binary.LittleEndian.Uint32(src[offset+8 : offset+12])
		offset += 12

		if offset+int(taglen) > len(src) {
			return nil, errs.ErrCorrupt
		}

		out[id] = string(src[offset : offset+int(taglen)])
		offset += int(taglen)
	}

	return out, nil
}

func sortVectorIds(ids []storage.VectorId) {
	for i := 1; i < len(ids); i++ {
		v := ids[i]

		j := i - 1
		for j >= 0 && ids[j] > v {
			ids[j+1] = ids[j]
			j--
		}

		ids[j+1] = v
	}
}
