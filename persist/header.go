// Package persist implements EVEC's C7 component: the versioned
// snapshot header, the snapshot section layout (vectors, index,
// tombstones, optional metadata, trailing CRC), and the write-ahead
// log described in spec.md §4.7. It is backend-agnostic: callers
// supply a Backend (see backend.go) implemented by the fsbackend or
// membackend packages.
package persist

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/calvinalkan/evec/errs"
)

// Magic identifies an EVEC snapshot file.
var Magic = [4]byte{'E', 'V', 'E', 'C'}

// Current snapshot format version. VersionMajor must match on load;
// VersionMinor may differ (forward-compatible additions only).
const (
	VersionMajor uint16 = 0
	VersionMinor uint16 = 4
)

// Flag bits for FileHeader.Flags.
const (
	FlagHasMetadata uint32 = 1 << 0
)

// HeaderSize is the fixed, 8-byte-aligned on-disk header size.
const HeaderSize = 64

// FileHeader is the snapshot's fixed 64-byte preamble, per spec.md
// §4.7. Field order and widths are chosen to sum to exactly
// HeaderSize with no implicit padding.
type FileHeader struct {
	Magic          [4]byte
	VersionMajor   uint16
	VersionMinor   uint16
	Flags          uint32
	VectorCount    uint64
	IndexOffset    uint64
	MetadataOffset uint64
	RngSeed        int64
	Dim            uint32
	HnswM          uint16
	HnswM0         uint16
	DeletedCount   uint32
	HeaderCRC      uint32
	DataCRC        uint32
}

// Encode writes h into a fresh HeaderSize-byte little-endian buffer,
// computing HeaderCRC over the header with that field zeroed.
func (h FileHeader) Encode() [HeaderSize]byte {
	h.HeaderCRC = 0

	var buf [HeaderSize]byte
	h.marshalInto(&buf)

	h.HeaderCRC = crc32.ChecksumIEEE(buf[:])
	h.marshalInto(&buf)

	return buf
}

func (h FileHeader) marshalInto(buf *[HeaderSize]byte) {
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.VersionMajor)
	binary.LittleEndian.PutUint16(buf[6:8], h.VersionMinor)
	binary.LittleEndian.PutUint32(buf[8:12], h.Flags)
	binary.LittleEndian.PutUint64(buf[12:20], h.VectorCount)
	binary.LittleEndian.PutUint64(buf[20:28], h.IndexOffset)
	binary.LittleEndian.PutUint64(buf[28:36], h.MetadataOffset)
	binary.LittleEndian.PutUint64(buf[36:44], uint64(h.RngSeed))
	binary.LittleEndian.PutUint32(buf[44:48], h.Dim)
	binary.LittleEndian.PutUint16(buf[48:50], h.HnswM)
	binary.LittleEndian.PutUint16(buf[50:52], h.HnswM0)
	binary.LittleEndian.PutUint32(buf[52:56], h.DeletedCount)
	binary.LittleEndian.PutUint32(buf[56:60], h.HeaderCRC)
	binary.LittleEndian.PutUint32(buf[60:64], h.DataCRC)
}

// DecodeHeader parses and validates a HeaderSize-byte header: magic,
// HeaderCRC (recomputed with the field zeroed), and VersionMajor.
func DecodeHeader(buf []byte) (FileHeader, error) {
	if len(buf) < HeaderSize {
		return FileHeader{}, &errs.OffsetOutOfBoundsError{Offset: HeaderSize, Length: uint64(len(buf))}
	}

	var h FileHeader

	copy(h.Magic[:], buf[0:4])

	if h.Magic != Magic {
		return FileHeader{}, errs.ErrCorrupt
	}

	h.VersionMajor = binary.LittleEndian.Uint16(buf[4:6])
	h.VersionMinor = binary.LittleEndian.Uint16(buf[6:8])
	h.Flags = binary.LittleEndian.Uint32(buf[8:12])
	h.VectorCount = binary.LittleEndian.Uint64(buf[12:20])
	h.IndexOffset = binary.LittleEndian.Uint64(buf[20:28])
	h.MetadataOffset = binary.LittleEndian.Uint64(buf[28:36])
	h.RngSeed = int64(binary.LittleEndian.Uint64(buf[36:44]))
	h.Dim = binary.LittleEndian.Uint32(buf[44:48])
	h.HnswM = binary.LittleEndian.Uint16(buf[48:50])
	h.HnswM0 = binary.LittleEndian.Uint16(buf[50:52])
	h.DeletedCount = binary.LittleEndian.Uint32(buf[52:56])
	h.HeaderCRC = binary.LittleEndian.Uint32(buf[56:60])
	h.DataCRC = binary.LittleEndian.Uint32(buf[60:64])

	zeroed := h
	zeroed.HeaderCRC = 0

	var check [HeaderSize]byte
	zeroed.marshalInto(&check)

	gotCRC := crc32.ChecksumIEEE(check[:])
	if gotCRC != h.HeaderCRC {
		return FileHeader{}, &errs.CRCMismatchError{Section: "header", Expected: h.HeaderCRC, Actual: gotCRC}
	}

	if h.VersionMajor != VersionMajor {
		return FileHeader{}, errs.ErrIncompatible
	}

	return h, nil
}
