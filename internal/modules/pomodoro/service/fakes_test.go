package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"studypomo/internal/modules/pomodoro/domain"
	apperrors "studypomo/internal/platform/errors"
)

type fakeSessionAPI struct {
	mu        sync.Mutex
	created   []domain.CreateSessionRequest
	completed map[string]domain.CompleteSessionRequest
	createErr error
	next      int
}

func (f *fakeSessionAPI) CreateSession(_ context.Context, req domain.CreateSessionRequest) (domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.SessionRecord{}, f.createErr
	}
	f.created = append(f.created, req)
	f.next++
	return domain.SessionRecord{
		ID:              fmt.Sprintf("s-%d", f.next),
		SessionType:     req.SessionType,
		PlannedDuration: req.PlannedDuration,
		StartedAt:       time.Unix(0, 0).UTC(),
	}, nil
}

func (f *fakeSessionAPI) CompleteSession(_ context.Context, id string, req domain.CompleteSessionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed == nil {
		f.completed = map[string]domain.CompleteSessionRequest{}
	}
	f.completed[id] = req
	return nil
}

func (f *fakeSessionAPI) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type mapStore struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMapStore() *mapStore {
	return &mapStore{values: map[string]string{}}
}

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func (s *mapStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
