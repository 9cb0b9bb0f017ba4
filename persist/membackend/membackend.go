// Package membackend implements an in-memory persist.Backend, used by
// tests and by hosted (e.g. browser/IndexedDB-adapter) deployments that
// keep the working set off the local filesystem, per spec.md §4.7's
// "in-memory variant for test and browser storage".
package membackend

import (
	"sync"

	"github.com/calvinalkan/evec/errs"
)

// Backend is a persist.Backend backed entirely by process memory.
// Append never blocks; AtomicWrite is atomic only in the sense that a
// reader never observes a partially-written value (the old byte slice
// is swapped for the new one under lock), not in the crash-durability
// sense the filesystem backend provides.
type Backend struct {
	mu   sync.Mutex
	wal  []byte
	keys map[string][]byte
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{keys: make(map[string][]byte)}
}

func (b *Backend) Append(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wal = append(b.wal, p...)

	return nil
}

func (b *Backend) ReadWAL() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]byte(nil), b.wal...), nil
}

func (b *Backend) AtomicWrite(key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := append([]byte(nil), data...)
	b.keys[key] = cp

	return nil
}

func (b *Backend) ReadKey(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.keys[key]
	if !ok {
		return nil, errs.ErrNotFound
	}

	return append([]byte(nil), data...), nil
}

// ResetWAL truncates the WAL stream to empty, called after a
// successful Save once its contents are subsumed by the new snapshot.
func (b *Backend) ResetWAL() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wal = nil

	return nil
}
