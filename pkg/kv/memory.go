package kv

import (
	"strings"
	"sync"
)

// Memory is an in-process Store. A MaxBytes above zero caps the summed size
// of keys and values, mimicking a browser storage quota.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]string
	size     int64
	maxBytes int64
}

// NewMemory creates an empty Memory store. maxBytes <= 0 disables the quota.
func NewMemory(maxBytes int64) *Memory {
	return &Memory{data: make(map[string]string), maxBytes: maxBytes}
}

// Get implements Store.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements Store.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.size + entrySize(key, value)
	if old, ok := m.data[key]; ok {
		next -= entrySize(key, old)
	}
	if m.maxBytes > 0 && next > m.maxBytes {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.size = next
	return nil
}

// Remove implements Store.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.size -= entrySize(key, old)
		delete(m.data, key)
	}
	return nil
}

// ListKeysWithPrefix implements Store.
func (m *Memory) ListKeysWithPrefix(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Size returns the summed size of keys and values in bytes.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

var _ Store = (*Memory)(nil)
