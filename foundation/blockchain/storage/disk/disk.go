// Package disk implements the ability to read and write the encoded chain
// to a single file on disk.
package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
)

// Disk represents the serialization implementation for reading and storing
// the chain in a single file on disk. This implements the storage.Serializer
// interface.
type Disk struct {
	path string
}

// New constructs a Disk value for use. The directory holding the file is
// created if it doesn't exist.
func New(path string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	return &Disk{path: path}, nil
}

// Close in this implementation has nothing to do since the file is
// opened and closed on every write.
func (d *Disk) Close() error {
	return nil
}

// Write replaces the contents of the file with the specified data. The data
// is written to a temporary file first and then renamed into place so a
// reader never sees a partial write.
func (d *Disk) Write(data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Read returns the contents of the file. If the file doesn't exist,
// storage.ErrNoData is returned.
func (d *Disk) Read() ([]byte, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNoData
		}
		return nil, err
	}

	return data, nil
}
