package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"studypomo/internal/modules/session/domain"
	sessiondto "studypomo/internal/modules/session/dto"
	sessionin "studypomo/internal/modules/session/port/in"
	sessionout "studypomo/internal/modules/session/port/out"
	"studypomo/internal/modules/session/service"
	apperrors "studypomo/internal/platform/errors"
	"studypomo/internal/platform/tx"
)

const defaultListLimit = 20

type Interactor struct {
	svc    *service.SessionService
	repo   sessionout.SessionRepository
	notes  sessionout.SessionStore
	tx     tx.Manager
	logger zerolog.Logger
}

// NewInteractor builds the session backend. notes and txm may be nil.
func NewInteractor(svc *service.SessionService, repo sessionout.SessionRepository, notes sessionout.SessionStore, txm tx.Manager, logger zerolog.Logger) sessionin.Usecase {
	if txm == nil {
		txm = tx.NoopManager{}
	}
	return &Interactor{svc: svc, repo: repo, notes: notes, tx: txm, logger: logger.With().Str("module", "session").Logger()}
}

func (i *Interactor) Create(ctx context.Context, input sessiondto.CreateInput) (sessiondto.SessionOutput, error) {
	session, err := i.svc.Begin(input.SessionType, input.PlannedDuration, input.SubjectAreaID, input.Settings)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	err = i.tx.Within(ctx, func(ctx context.Context) error {
		active, err := i.repo.GetActive(ctx)
		if err == nil {
			return fmt.Errorf("%w: session %s is still active", apperrors.ErrActiveSessionExists, active.ID)
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return i.repo.Insert(ctx, session)
	})
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	i.logger.Debug().Str("session_id", session.ID).Str("session_type", session.SessionType).Msg("session created")
	return toOutput(session), nil
}

func (i *Interactor) Complete(ctx context.Context, input sessiondto.CompleteInput) (sessiondto.CompleteOutput, error) {
	if input.SessionID == "" {
		return sessiondto.CompleteOutput{}, fmt.Errorf("%w: session id is required", apperrors.ErrInvalidInput)
	}
	var finished domain.Session
	err := i.tx.Within(ctx, func(ctx context.Context) error {
		session, err := i.repo.Get(ctx, input.SessionID)
		if err != nil {
			return err
		}
		if finished, err = i.svc.Finish(session, input.ActualDurationMinutes, input.WasInterrupted, input.Notes); err != nil {
			return err
		}
		return i.repo.Update(ctx, finished)
	})
	if err != nil {
		return sessiondto.CompleteOutput{}, err
	}

	out := sessiondto.CompleteOutput{SessionOutput: toOutput(finished)}
	if i.notes != nil {
		path, err := i.notes.Save(ctx, finished)
		if err != nil {
			// the record stays closed even when the note cannot be written
			i.logger.Warn().Err(err).Str("session_id", finished.ID).Msg("write session note")
		}
		out.Path = path
	}
	i.logger.Debug().Str("session_id", finished.ID).Str("status", string(finished.Status)).Msg("session finished")
	return out, nil
}

func (i *Interactor) Get(ctx context.Context, id string) (sessiondto.SessionOutput, error) {
	session, err := i.repo.Get(ctx, id)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return toOutput(session), nil
}

func (i *Interactor) List(ctx context.Context, input sessiondto.ListInput) ([]sessiondto.SessionOutput, error) {
	status := domain.Status(input.Status)
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidInput, input.Status)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	sessions, err := i.repo.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	out := make([]sessiondto.SessionOutput, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toOutput(session))
	}
	return out, nil
}

func (i *Interactor) GetActive(ctx context.Context) (sessiondto.SessionOutput, error) {
	session, err := i.repo.GetActive(ctx)
	if errors.Is(err, apperrors.ErrNotFound) {
		return sessiondto.SessionOutput{}, apperrors.ErrNoActiveSession
	}
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return toOutput(session), nil
}

func toOutput(s domain.Session) sessiondto.SessionOutput {
	return sessiondto.SessionOutput{
		ID:              s.ID,
		SessionType:     s.SessionType,
		Status:          string(s.Status),
		PlannedDuration: s.PlannedDuration,
		ActualDuration:  s.ActualDuration,
		SubjectAreaID:   s.SubjectAreaID,
		WasInterrupted:  s.WasInterrupted,
		Notes:           s.Notes,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
	}
}
