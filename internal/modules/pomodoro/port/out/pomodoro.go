package out

import (
	"context"

	"studypomo/internal/modules/pomodoro/domain"
	"studypomo/internal/modules/pomodoro/dto"
)

// PersistenceAdapter is a key/value store for whole snapshots. Get returns
// apperrors.ErrNotFound for a missing key.
type PersistenceAdapter interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// SessionAPI is the backend owning session records.
type SessionAPI interface {
	CreateSession(ctx context.Context, req domain.CreateSessionRequest) (domain.SessionRecord, error)
	CompleteSession(ctx context.Context, sessionID string, req domain.CompleteSessionRequest) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event dto.Event) error
}
