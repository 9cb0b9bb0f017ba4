// Package vbyte implements the variable-byte integer codec used to
// compress HNSW adjacency lists: 7 payload bits per byte, continuation
// flagged in the MSB. It is the wire format for neighbor-pool blocks
// (see the pool package), not a general-purpose container; every list
// it encodes is sorted and deduplicated first.
package vbyte

import "github.com/calvinalkan/evec/errs"

// EncodeUvarint appends the VByte encoding of v to dst and returns the
// extended slice. Each byte carries 7 payload bits, low-group first;
// the continuation bit (0x80) is set on every byte except the last.
func EncodeUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}

	return append(dst, byte(v))
}

// DecodeUvarint reads a single VByte-encoded value from the front of
// src, returning the value and the number of bytes consumed. It
// returns errs.ErrTruncated if src ends before a terminating byte
// (MSB clear) is found.
func DecodeUvarint(src []byte) (uint64, int, error) {
	var (
		result uint64
		shift  uint
	)

	for i, b := range src {
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}

		shift += 7
		if shift >= 64 {
			return 0, 0, errs.ErrCorrupt
		}
	}

	return 0, 0, errs.ErrTruncated
}

// EncodeNeighbors sorts and deduplicates ids, then writes the layer's
// neighbor block: a VByte count followed by VByte-encoded successive
// gaps (the first gap is relative to zero). It is the inverse of
// DecodeNeighbors.
func EncodeNeighbors(ids []uint32) []byte {
	sorted := sortUniqueUint32(ids)

	out := make([]byte, 0, len(sorted)*2+1)
	out = EncodeUvarint(out, uint64(len(sorted)))

	var prev uint32
	for _, id := range sorted {
		out = EncodeUvarint(out, uint64(id-prev))
		prev = id
	}

	return out
}

// DecodeNeighbors decodes a single layer's neighbor block written by
// EncodeNeighbors, returning the sorted, deduplicated neighbor list and
// the number of bytes consumed. Trailing bytes beyond the decoded
// content are tolerated and not reported as an error — the pool's
// allocated capacity for a neighbor block may exceed its logical size.
func DecodeNeighbors(src []byte) ([]uint32, int, error) {
	count, n, err := DecodeUvarint(src)
	if err != nil {
		return nil, 0, err
	}

	offset := n
	ids := make([]uint32, 0, count)

	var prev uint32

	for range count {
		if offset >= len(src) {
			return nil, 0, errs.ErrTruncated
		}

		gap, gn, err := DecodeUvarint(src[offset:])
		if err != nil {
			return nil, 0, err
		}

		prev += uint32(gap)
		ids = append(ids, prev)
		offset += gn
	}

	return ids, offset, nil
}

// SkipLayer returns the byte length of the layer-count-prefixed block
// at the start of src, without allocating a result slice. It is used
// by DecodeLayer to skip over layers preceding the one requested.
func SkipLayer(src []byte) (int, error) {
	count, n, err := DecodeUvarint(src)
	if err != nil {
		return 0, err
	}

	offset := n

	for range count {
		if offset >= len(src) {
			return 0, errs.ErrTruncated
		}

		_, gn, err := DecodeUvarint(src[offset:])
		if err != nil {
			return 0, err
		}

		offset += gn
	}

	return offset, nil
}

// DecodeLayer decodes only the neighbor block for the given layer
// index (0-based) out of a concatenated multi-layer block, skipping
// over every preceding layer's bytes using its count prefix.
func DecodeLayer(src []byte, layer int) ([]uint32, error) {
	offset := 0

	for i := 0; i < layer; i++ {
		n, err := SkipLayer(src[offset:])
		if err != nil {
			return nil, err
		}

		offset += n
	}

	ids, _, err := DecodeNeighbors(src[offset:])

	return ids, err
}

func sortUniqueUint32(ids []uint32) []uint32 {
	if len(ids) == 0 {
		return nil
	}

	cp := make([]uint32, len(ids))
	copy(cp, ids)
	insertionSort(cp)

	out := cp[:1]

	for _, id := range cp[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}

	return out
}

// insertionSort keeps neighbor lists (typically tens of entries) sorted
// without pulling in sort.Slice's reflection-based comparator overhead
// for such small, hot-path inputs.
func insertionSort(xs []uint32) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]

		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}

		xs[j+1] = v
	}
}
