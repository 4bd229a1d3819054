package storage

import (
	"context"
	"sync"

	"github.com/fintra/credvault/logger"
)

type memoryBackend struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryBackend creates an in-memory backend. Snapshots do not survive a
// restart; intended for tests and dev mode.
func NewMemoryBackend(config map[string]string, log logger.Logger) (Backend, error) {
	return &memoryBackend{}, nil
}

func (m *memoryBackend) Name() string {
	return "inmem"
}

func (m *memoryBackend) Load(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, nil
	}

	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *memoryBackend) Store(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make([]byte, len(data))
	copy(m.data, data)
	return nil
}

func (m *memoryBackend) Wipe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
	return nil
}
