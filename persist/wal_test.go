package persist_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/evec/persist"
	"github.com/calvinalkan/evec/persist/membackend"
)

// TestWALTornWrite implements spec scenario S4: truncating the WAL to
// the byte before the last CRC byte of the third record must yield
// the first two records cleanly, then a Truncated terminator.
func TestWALTornWrite(t *testing.T) {
	t.Parallel()

	backend := membackend.New()
	w := persist.NewWriter(backend, 0)

	for _, payload := range [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")} {
		_, err := w.Append(persist.RecordInsert, payload)
		require.NoError(t, err)
	}

	full, err := backend.ReadWAL()
	require.NoError(t, err)

	torn := full[:len(full)-1]

	it := persist.NewIterator(torn)

	rec1, err := it.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("a"), rec1.Payload)

	rec2, err := it.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("bb"), rec2.Payload)

	_, err = it.Next()
	var truncated *persist.TruncatedError
	require.ErrorAs(t, err, &truncated)
	require.Equal(t, 2, truncated.Recovered)
}

func TestWALWriteAndIterate_NRecordsInOrder(t *testing.T) {
	t.Parallel()

	backend := membackend.New()
	w := persist.NewWriter(backend, 0)

	const n = 50

	for i := 0; i < n; i++ {
		_, err := w.Append(persist.RecordInsert, []byte{byte(i)})
		require.NoError(t, err)
	}

	data, err := backend.ReadWAL()
	require.NoError(t, err)

	records, err := persist.ReplayAll(data)
	require.NoError(t, err)
	require.Len(t, records, n)

	for i, r := range records {
		require.EqualValues(t, i+1, r.Seq)
		require.Equal(t, byte(i), r.Payload[0])
	}
}

func TestWALIterator_CleanEmptyEOF(t *testing.T) {
	t.Parallel()

	it := persist.NewIterator(nil)

	_, err := it.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestWALIterator_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	backend := membackend.New()
	w := persist.NewWriter(backend, 0)

	_, err := w.Append(persist.RecordInsert, []byte("payload"))
	require.NoError(t, err)

	data, err := backend.ReadWAL()
	require.NoError(t, err)

	corrupt := append([]byte(nil), data...)
	corrupt[20] ^= 0xFF // flip a payload byte, leaving length intact

	it := persist.NewIterator(corrupt)

	_, err = it.Next()
	var mismatch *persist.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestWALPayloadCap(t *testing.T) {
	t.Parallel()

	_, err := persist.EncodeRecord(1, persist.RecordInsert, make([]byte, persist.MaxPayloadSize))
	require.NoError(t, err)

	_, err = persist.EncodeRecord(1, persist.RecordInsert, make([]byte, persist.MaxPayloadSize+1))
	require.Error(t, err)
}

func TestWriterSequenceIsGaplessAfterResume(t *testing.T) {
	t.Parallel()

	backend := membackend.New()
	w1 := persist.NewWriter(backend, 0)

	seq1, err := w1.Append(persist.RecordInsert, []byte("x"))
	require.NoError(t, err)

	w2 := persist.NewWriter(backend, seq1)

	seq2, err := w2.Append(persist.RecordInsert, []byte("y"))
	require.NoError(t, err)
	require.Equal(t, seq1+1, seq2)
}
