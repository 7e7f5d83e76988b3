package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process DocumentStore
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty in-process DocumentStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, userID, kind string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.docs[userID+"/"+kind]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), body...), true, nil
}

func (s *MemoryStore) Put(_ context.Context, userID, kind string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[userID+"/"+kind] = append([]byte(nil), body...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
