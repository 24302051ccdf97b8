package out

import (
	"context"

	"studypomo/internal/modules/session/domain"
)

// SessionRepository returns apperrors.ErrNotFound for unknown ids and
// apperrors.ErrActiveSessionExists when a second active session is inserted.
type SessionRepository interface {
	Insert(ctx context.Context, session domain.Session) error
	Update(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	GetActive(ctx context.Context) (domain.Session, error)
	List(ctx context.Context, status domain.Status, limit int) ([]domain.Session, error)
}

// SessionStore writes the human-readable note for a finished session.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) (string, error)
}
