package service

import (
	"fmt"

	"studypomo/internal/modules/session/domain"
	"studypomo/internal/platform/clock"
	apperrors "studypomo/internal/platform/errors"
	"studypomo/internal/platform/id"
)

type SessionService struct {
	clock clock.Clock
	idGen id.Generator
}

func NewSessionService(clock clock.Clock, idGen id.Generator) *SessionService {
	return &SessionService{clock: clock, idGen: idGen}
}

func (s *SessionService) Begin(sessionType string, plannedDuration int, subjectAreaID, settings string) (domain.Session, error) {
	if !domain.KnownType(sessionType) {
		return domain.Session{}, fmt.Errorf("%w: unknown session type %q", apperrors.ErrInvalidInput, sessionType)
	}
	if plannedDuration <= 0 {
		return domain.Session{}, fmt.Errorf("%w: planned duration must be positive, got %d", apperrors.ErrInvalidInput, plannedDuration)
	}
	return domain.Session{
		ID:              s.idGen.New(),
		SessionType:     sessionType,
		Status:          domain.StatusActive,
		PlannedDuration: plannedDuration,
		SubjectAreaID:   subjectAreaID,
		Settings:        settings,
		StartedAt:       s.clock.Now().UTC(),
	}, nil
}

func (s *SessionService) Finish(session domain.Session, actualMinutes int, interrupted bool, notes string) (domain.Session, error) {
	if !session.Active() {
		return domain.Session{}, fmt.Errorf("%w: session %s is %s", apperrors.ErrSessionFinished, session.ID, session.Status)
	}
	if actualMinutes < 0 {
		return domain.Session{}, fmt.Errorf("%w: actual duration must not be negative", apperrors.ErrInvalidInput)
	}
	session.Status = domain.StatusCompleted
	if interrupted {
		session.Status = domain.StatusInterrupted
	}
	session.ActualDuration = actualMinutes
	session.WasInterrupted = interrupted
	session.Notes = notes
	session.CompletedAt = s.clock.Now().UTC()
	return session, nil
}
