package storage

import (
	"strings"
	"sync"
)

// MemoryStorage is an in-memory StorageInterface used by tests and dry runs.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ StorageInterface = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

func (s *MemoryStorage) Store(filename string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	s.blobs[filename] = copied
	return nil
}

func (s *MemoryStorage) Retrieve(filename string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[filename]
	if !ok {
		return nil, ErrNotFound
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

func (s *MemoryStorage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name := range s.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *MemoryStorage) Delete(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, filename)
	return nil
}
