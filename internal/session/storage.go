package session

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("session: key not found")

// Storage is the durable key-value store that keeps session ids across runs.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStorage keeps values for the lifetime of the process.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
