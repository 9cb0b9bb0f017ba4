// Package export implements EVEC's C9 component: the bounded-memory
// snapshot streaming writer and its reassembly reader, the sole
// producer behind hosted (e.g. browser) storage backends that cannot
// buffer an entire snapshot in memory. The wire format is identical to
// persist.WriteSnapshot's; reassembling a stream's chunks produces a
// byte-identical snapshot (spec.md §4.7, §4.9).
package export

import (
	"io"

	"github.com/calvinalkan/evec/persist"
)

// DefaultChunkSize is used by WriteTo when chunkSize is non-positive.
const DefaultChunkSize = persist.DefaultChunkSize

// WriteTo streams snap to w in chunkSize-bounded writes. No single
// write exceeds chunkSize; the tombstone and metadata sections are
// encoded whole before being chunked (see persist.StreamSnapshot).
func WriteTo(snap persist.Snapshot, w io.Writer, chunkSize int) error {
	return persist.StreamSnapshot(snap, func(chunk []byte) error {
		_, err := w.Write(chunk)

		return err
	}, chunkSize)
}

// WriteChunks streams snap through sink, one bounded-size chunk at a
// time, for callers (e.g. an IndexedDB adapter) that write chunks
// through an API that isn't io.Writer-shaped.
func WriteChunks(snap persist.Snapshot, sink persist.Sink, chunkSize int) error {
	return persist.StreamSnapshot(snap, sink, chunkSize)
}

// Reassemble collects every chunk read from r into a single buffer and
// returns those snapshot bytes unparsed; decoding them is left to
// persist.ReadSnapshot through a Backend. It exists for the common case where the
// host can reassemble chunks faster than it can re-derive the graph;
// true bounded-memory *loading* is out of scope (spec.md's working set
// is memory-resident once loaded, per the Non-goals on-disk paging
// exclusion).
func Reassemble(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
