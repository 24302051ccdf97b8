package out

import (
	"context"
	"sync"

	pomodorout "studypomo/internal/modules/pomodoro/port/out"
	apperrors "studypomo/internal/platform/errors"
)

// MemoryStateStore keeps snapshots for the lifetime of the process.
type MemoryStateStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: map[string]string{}}
}

var _ pomodorout.PersistenceAdapter = (*MemoryStateStore)(nil)

func (s *MemoryStateStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return value, nil
}

func (s *MemoryStateStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStateStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}
