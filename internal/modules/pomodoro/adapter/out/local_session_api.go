package out

import (
	"context"
	"encoding/json"

	"studypomo/internal/modules/pomodoro/domain"
	pomodorout "studypomo/internal/modules/pomodoro/port/out"
	sessiondto "studypomo/internal/modules/session/dto"
	sessionin "studypomo/internal/modules/session/port/in"
	apperrors "studypomo/internal/platform/errors"
)

// LocalSessionAPI drives the in-process session backend and reports its
// failures with the same kinds as the HTTP client.
type LocalSessionAPI struct {
	sessions sessionin.Usecase
}

func NewLocalSessionAPI(sessions sessionin.Usecase) *LocalSessionAPI {
	return &LocalSessionAPI{sessions: sessions}
}

var _ pomodorout.SessionAPI = (*LocalSessionAPI)(nil)

func (a *LocalSessionAPI) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (domain.SessionRecord, error) {
	const op = "create session"
	settings, err := json.Marshal(req.Settings)
	if err != nil {
		return domain.SessionRecord{}, apperrors.Backend(op, apperrors.KindValidation, err)
	}
	out, err := a.sessions.Create(ctx, sessiondto.CreateInput{
		SessionType:     string(req.SessionType),
		PlannedDuration: req.PlannedDuration,
		SubjectAreaID:   req.SubjectAreaID,
		Settings:        string(settings),
	})
	if err != nil {
		return domain.SessionRecord{}, apperrors.Backend(op, apperrors.KindOf(err), err)
	}
	return domain.SessionRecord{
		ID:              out.ID,
		SessionType:     domain.SessionType(out.SessionType),
		PlannedDuration: out.PlannedDuration,
		SubjectAreaID:   out.SubjectAreaID,
		StartedAt:       out.StartedAt,
	}, nil
}

func (a *LocalSessionAPI) CompleteSession(ctx context.Context, sessionID string, req domain.CompleteSessionRequest) error {
	_, err := a.sessions.Complete(ctx, sessiondto.CompleteInput{
		SessionID:             sessionID,
		ActualDurationMinutes: req.ActualDurationMinutes,
		WasInterrupted:        req.WasInterrupted,
		Notes:                 req.Notes,
	})
	if err != nil {
		return apperrors.Backend("complete session", apperrors.KindOf(err), err)
	}
	return nil
}
