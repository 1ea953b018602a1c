package settings

import (
	"strconv"
	"sync"
)

type memEntry struct {
	kind kind
	text string
}

// MemStore is an in-memory Store. It backs tests and targets without a
// filesystem.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]memEntry

	// SetError, if set, is returned by every setter.
	SetError error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]memEntry)}
}

func (m *MemStore) get(key string) (memEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *MemStore) set(key string, k kind, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetError != nil {
		return m.SetError
	}
	m.entries[key] = memEntry{kind: k, text: text}
	return nil
}

func (m *MemStore) GetInt8(key string) (int8, error) {
	e, ok := m.get(key)
	if !ok {
		return 0, ErrNotFound
	}
	v, err := decode(e.kind, kindInt8, e.text)
	return int8(v), err
}

func (m *MemStore) GetInt32(key string) (int32, error) {
	e, ok := m.get(key)
	if !ok {
		return 0, ErrNotFound
	}
	v, err := decode(e.kind, kindInt32, e.text)
	return int32(v), err
}

func (m *MemStore) GetString(key string) (string, error) {
	e, ok := m.get(key)
	if !ok {
		return "", ErrNotFound
	}
	if e.kind != kindString {
		return "", ErrWrongType
	}
	return e.text, nil
}

func (m *MemStore) SetInt8(key string, v int8) error {
	return m.set(key, kindInt8, strconv.Itoa(int(v)))
}

func (m *MemStore) SetInt32(key string, v int32) error {
	return m.set(key, kindInt32, strconv.Itoa(int(v)))
}

func (m *MemStore) SetString(key string, v string) error {
	return m.set(key, kindString, v)
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}
