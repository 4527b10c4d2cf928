package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryDriver keeps values in a map. It backs tests and throwaway stores.
type MemoryDriver struct {
	mu   sync.RWMutex
	data map[string]string

	// Fail, when set, is returned by every operation.
	Fail error
}

// NewMemoryDriver returns an empty in-memory backend.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{data: make(map[string]string)}
}

func (m *MemoryDriver) Name() string { return "memory" }

func (m *MemoryDriver) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return "", m.Fail
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryDriver) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.data[key] = value
	return nil
}

func (m *MemoryDriver) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryDriver) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
