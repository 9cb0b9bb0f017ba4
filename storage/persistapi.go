package storage

import "github.com/calvinalkan/evec/quantize"

// Words returns the tombstone bitset's backing words, byte-exact, for
// writing into a snapshot's tombstone section.
func (b *tombstoneBitset) Words() []uint64 {
	return b.words
}

func loadTombstoneBitset(words []uint64, n int) tombstoneBitset {
	b := tombstoneBitset{words: words}
	b.grow(n)

	return b
}

// RawData returns the arena's backing float32 slice, zero-copy, for
// writing into a snapshot's vector section.
func (a *Float32Arena) RawData() []float32 { return a.data }

// TombstoneWords returns the arena's tombstone bitset words.
func (a *Float32Arena) TombstoneWords() []uint64 { return a.tombstone.Words() }

// LoadFloat32Arena reconstructs an arena directly from a snapshot's
// decoded vector section and tombstone bitset, without re-validating
// dimensions per insert.
func LoadFloat32Arena(dim, n int, data []float32, tombstoneWords []uint64) *Float32Arena {
	return &Float32Arena{
		dim:       dim,
		n:         n,
		data:      data,
		tombstone: loadTombstoneBitset(tombstoneWords, n),
	}
}

// RawData returns the arena's backing quantized-code slice, zero-copy.
func (a *QuantizedU8Arena) RawData() []uint8 { return a.data }

// TombstoneWords returns the arena's tombstone bitset words.
func (a *QuantizedU8Arena) TombstoneWords() []uint64 { return a.tombstone.Words() }

// Quantizer returns the arena's trained SQ8 range, persisted in the
// snapshot's 16-byte vector-section preamble.
func (a *QuantizedU8Arena) Quantizer() quantize.SQ8 { return a.q }

// LoadQuantizedU8Arena reconstructs an arena directly from a
// snapshot's decoded sections.
func LoadQuantizedU8Arena(dim, n int, q quantize.SQ8, data []uint8, tombstoneWords []uint64) *QuantizedU8Arena {
	return &QuantizedU8Arena{
		dim:       dim,
		n:         n,
		q:         q,
		data:      data,
		tombstone: loadTombstoneBitset(tombstoneWords, n),
	}
}

// RawData returns the arena's backing packed-bit slice, zero-copy.
func (a *BinaryArena) RawData() []byte { return a.data }

// TombstoneWords returns the arena's tombstone bitset words.
func (a *BinaryArena) TombstoneWords() []uint64 { return a.tombstone.Words() }

// LoadBinaryArena reconstructs an arena directly from a snapshot's
// decoded sections.
func LoadBinaryArena(dim, n int, data []byte, tombstoneWords []uint64) (*BinaryArena, error) {
	a, err := NewBinaryArena(dim)
	if err != nil {
		return nil, err
	}

	a.n = n
	a.data = data
	a.tombstone = loadTombstoneBitset(tombstoneWords, n)

	return a, nil
}
