package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/calvinalkan/evec/errs"
)

// WAL record types, per spec.md §5.2's supplemented list. RecordInsert
// and RecordSoftDelete carry the payload the caller chooses to
// replay; RecordCompactMarker is a zero-payload marker that
// Index.Compact appends after rebuilding its in-memory state (Compact
// writes no snapshot). Replay stops at the marker, so records appended
// after a compaction are never applied to a snapshot that predates it.
const (
	RecordInsert uint8 = iota + 1
	RecordSoftDelete
	RecordCompactMarker
)

// recordHeaderSize is |8B seq|1B type|3B pad|4B payload_len|.
const recordHeaderSize = 16

// recordFooterSize is the trailing |4B CRC32|.
const recordFooterSize = 4

// MaxPayloadSize bounds a single WAL record's payload, preventing
// allocator exhaustion during fuzzing or replay of a corrupt log.
const MaxPayloadSize = 16 << 20 // 16 MiB

// Record is one decoded WAL entry.
type Record struct {
	Seq     uint64
	Type    uint8
	Payload []byte
}

// EncodeRecord serializes seq/typ/payload into the wire format spec.md
// §4.7 describes, returning errs.ErrCapacity if payload exceeds
// MaxPayloadSize.
func EncodeRecord(seq uint64, typ uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, errs.ErrCapacity
	}

	out := make([]byte, 0, recordHeaderSize+len(payload)+recordFooterSize)
	out = binary.LittleEndian.AppendUint64(out, seq)
	out = append(out, typ, 0, 0, 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)

	crc := crc32.ChecksumIEEE(out)
	out = binary.LittleEndian.AppendUint32(out, crc)

	return out, nil
}

// Writer appends records to a Backend's WAL stream, issuing strictly
// increasing, gapless sequence numbers.
type Writer struct {
	backend Backend
	nextSeq uint64
}

// NewWriter returns a Writer that continues numbering from afterSeq+1
// (pass the last snapshot's or last replayed record's sequence).
func NewWriter(backend Backend, afterSeq uint64) *Writer {
	return &Writer{backend: backend, nextSeq: afterSeq + 1}
}

// Append encodes and durably appends a record, returning its assigned
// sequence number.
func (w *Writer) Append(typ uint8, payload []byte) (uint64, error) {
	seq := w.nextSeq

	encoded, err := EncodeRecord(seq, typ, payload)
	if err != nil {
		return 0, err
	}

	if err := w.backend.Append(encoded); err != nil {
		return 0, err
	}

	w.nextSeq++

	return seq, nil
}

// TruncatedError reports a clean, boundary-respecting cut in the WAL
// tail: the reader stopped because fewer bytes remained than a full
// record, which is the normal end-of-log state after a crash mid-append.
type TruncatedError struct {
	Recovered int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("evec: wal truncated after %d records", e.Recovered)
}

func (e *TruncatedError) Unwrap() error { return errs.ErrTruncated }

// ChecksumMismatchError reports genuine corruption within a record
// (byte flip, not just a short tail): either every byte the record's
// header declares is present but its CRC does not match, or the header
// declares a payload longer than MaxPayloadSize (Expected and Actual
// are then zero).
type ChecksumMismatchError struct {
	Recovered int
	Seq       uint64
	Expected  uint32
	Actual    uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("evec: wal checksum mismatch at seq %d after %d records: expected %#08x, got %#08x",
		e.Seq, e.Recovered, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return errs.ErrChecksumMismatch }

// Iterator is a restartable reader over a WAL byte stream, yielding
// one Record per Next call.
type Iterator struct {
	data []byte
	pos  int
	n    int
}

// NewIterator returns an Iterator over the full WAL stream (e.g. from
// Backend.ReadWAL).
func NewIterator(data []byte) *Iterator {
	return &Iterator{data: data}
}

// Next returns the next record, io.EOF at a clean end of stream
// (pos == len(data)), *TruncatedError at a boundary-respecting short
// tail, or *ChecksumMismatchError on a corrupt record.
func (it *Iterator) Next() (Record, error) {
	if it.pos == len(it.data) {
		return Record{}, io.EOF
	}

	remaining := it.data[it.pos:]

	if len(remaining) < recordHeaderSize {
		return Record{}, &TruncatedError{Recovered: it.n}
	}

	seq := binary.LittleEndian.Uint64(remaining[0:8])
	typ := remaining[8]
	payloadLen := binary.LittleEndian.Uint32(remaining[12:16])

	if payloadLen > MaxPayloadSize {
		return Record{}, &ChecksumMismatchError{Recovered: it.n, Seq: seq}
	}

	total := recordHeaderSize + int(payloadLen) + recordFooterSize
	if len(remaining) < total {
		return Record{}, &TruncatedError{Recovered: it.n}
	}

	payload := remaining[recordHeaderSize : recordHeaderSize+int(payloadLen)]
	wantCRC := binary.LittleEndian.Uint32(remaining[recordHeaderSize+int(payloadLen) : total])
	gotCRC := crc32.ChecksumIEEE(remaining[:recordHeaderSize+int(payloadLen)])

	if gotCRC != wantCRC {
		return Record{}, &ChecksumMismatchError{Recovered: it.n, Seq: seq, Expected: wantCRC, Actual: gotCRC}
	}

	it.pos += total
	it.n++

	return Record{Seq: seq, Type: typ, Payload: append([]byte(nil), payload...)}, nil
}

// ReplayAll reads every well-formed record from data in order. A
// clean end of stream or a boundary-respecting Truncated tail both
// return the recovered records with a nil error, per spec.md §7's
// replay policy ("Truncated is a normal terminator"). A
// ChecksumMismatch returns the records recovered before the bad one
// alongside the error, so the caller can decide whether to proceed
// with a partial recovery or refuse.
func ReplayAll(data []byte) ([]Record, error) {
	it := NewIterator(data)

	var records []Record

	for {
		rec, err := it.Next()
		switch {
		case err == nil:
			records = append(records, rec)
		case err == io.EOF:
			return records, nil
		default:
			var truncated *TruncatedError
			if errors.As(err, &truncated) {
				return records, nil
			}

			return records, err
		}
	}
}
