// Package memory implements the ability to read and write the encoded chain
// to memory.
package memory

import (
	"sync"

	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
)

// Memory represents the serialization implementation for reading and storing
// the chain in memory. This implements the storage.Serializer interface.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes a copy of the specified data.
func (m *Memory) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = append([]byte(nil), data...)
	return nil
}

// Read returns a copy of the last data written.
func (m *Memory) Read() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, storage.ErrNoData
	}

	return append([]byte(nil), m.data...), nil
}
