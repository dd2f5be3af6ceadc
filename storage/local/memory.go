package localstore

import (
	"context"
	"sync"

	"github.com/trezcool/lms/core"
)

type memory struct {
	mutex sync.RWMutex
	table map[string]string
}

// NewMemory returns a Storage that lives as long as the process.
func NewMemory() core.Storage {
	return &memory{table: make(map[string]string)}
}

func (m *memory) Get(_ context.Context, key string) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if val, ok := m.table[key]; ok {
		return val, nil
	}
	return "", core.ErrKeyNotFound
}

func (m *memory) Set(_ context.Context, key, value string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.table[key] = value
	return nil
}

func (m *memory) Remove(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.table, key)
	return nil
}
