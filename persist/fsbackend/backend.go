package fsbackend

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/calvinalkan/evec/errs"
	"github.com/calvinalkan/evec/persist"
)

// FileBackend is the local-filesystem persist.Backend: WAL appends go
// to a plain append-mode file, snapshots are written through
// AtomicWriter (temp file + fsync + rename + best-effort parent-dir
// fsync), matching spec.md §5's durability requirement that a crash
// observes either the old or the full new snapshot content, never a
// torn state.
type FileBackend struct {
	fs      FS
	dir     string
	walPath string
	writer  *AtomicWriter
}

// NewFileBackend returns a FileBackend rooted at dir, which must
// already exist. The WAL lives at dir/wal.log; snapshot keys are
// joined onto dir.
func NewFileBackend(fsys FS, dir string) *FileBackend {
	return &FileBackend{
		fs:      fsys,
		dir:     dir,
		walPath: filepath.Join(dir, "wal.log"),
		writer:  NewAtomicWriter(fsys),
	}
}

func (b *FileBackend) Append(p []byte) error {
	f, err := b.fs.OpenFile(b.walPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Join(errs.ErrIO, err)
	}

	_, writeErr := f.Write(p)

	var syncErr error
	if writeErr == nil {
		syncErr = f.Sync()
	}

	closeErr := f.Close()

	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		return errors.Join(errs.ErrIO, err)
	}

	return nil
}

func (b *FileBackend) ReadWAL() ([]byte, error) {
	data, err := b.fs.ReadFile(b.walPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Join(errs.ErrIO, err)
	}

	return data, nil
}

// ResetWAL truncates the WAL file to empty. Index.Save calls it after
// a successful Save once the new snapshot has been durably written and
// subsumes the WAL's contents.
func (b *FileBackend) ResetWAL() error {
	f, err := b.fs.OpenFile(b.walPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Join(errs.ErrIO, err)
	}

	return f.Close()
}

func (b *FileBackend) AtomicWrite(key string, data []byte) error {
	path := filepath.Join(b.dir, key)

	err := b.writer.WriteWithDefaults(path, bytes.NewReader(data))
	if err != nil {
		return errors.Join(errs.ErrIO, err)
	}

	return nil
}

func (b *FileBackend) ReadKey(key string) ([]byte, error) {
	path := filepath.Join(b.dir, key)

	data, err := b.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.ErrNotFound
		}

		return nil, errors.Join(errs.ErrIO, err)
	}

	return data, nil
}

var _ persist.Backend = (*FileBackend)(nil)
