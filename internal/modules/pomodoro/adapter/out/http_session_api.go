package out

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studypomo/internal/modules/pomodoro/domain"
	pomodorout "studypomo/internal/modules/pomodoro/port/out"
	apperrors "studypomo/internal/platform/errors"
)

// HTTPSessionAPI talks to a remote session backend.
type HTTPSessionAPI struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSessionAPI(baseURL string, timeout time.Duration) *HTTPSessionAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSessionAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

var _ pomodorout.SessionAPI = (*HTTPSessionAPI)(nil)

type createSessionBody struct {
	SessionType     string          `json:"sessionType"`
	PlannedDuration int             `json:"plannedDuration"`
	SubjectAreaID   string          `json:"subjectAreaId,omitempty"`
	Settings        domain.Settings `json:"settings"`
}

type completeSessionBody struct {
	ActualDurationMinutes int    `json:"actualDurationMinutes"`
	WasInterrupted        bool   `json:"wasInterrupted"`
	Notes                 string `json:"notes,omitempty"`
}

type sessionBody struct {
	ID              string    `json:"id"`
	SessionType     string    `json:"sessionType"`
	PlannedDuration int       `json:"plannedDuration"`
	SubjectAreaID   string    `json:"subjectAreaId,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *HTTPSessionAPI) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (domain.SessionRecord, error) {
	const op = "create session"
	body := createSessionBody{
		SessionType:     string(req.SessionType),
		PlannedDuration: req.PlannedDuration,
		SubjectAreaID:   req.SubjectAreaID,
		Settings:        req.Settings,
	}
	out := sessionBody{}
	if err := a.post(ctx, op, "/sessions", body, &out); err != nil {
		return domain.SessionRecord{}, err
	}
	if out.ID == "" {
		return domain.SessionRecord{}, apperrors.Backend(op, apperrors.KindUnknown, errors.New("response has no session id"))
	}
	return domain.SessionRecord{
		ID:              out.ID,
		SessionType:     domain.SessionType(out.SessionType),
		PlannedDuration: out.PlannedDuration,
		SubjectAreaID:   out.SubjectAreaID,
		StartedAt:       out.StartedAt,
	}, nil
}

func (a *HTTPSessionAPI) CompleteSession(ctx context.Context, sessionID string, req domain.CompleteSessionRequest) error {
	const op = "complete session"
	if sessionID == "" {
		return apperrors.Backend(op, apperrors.KindValidation, errors.New("session id is required"))
	}
	body := completeSessionBody{
		ActualDurationMinutes: req.ActualDurationMinutes,
		WasInterrupted:        req.WasInterrupted,
		Notes:                 req.Notes,
	}
	return a.post(ctx, op, "/sessions/"+url.PathEscape(sessionID)+"/complete", body, nil)
}

func (a *HTTPSessionAPI) post(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return apperrors.Backend(op, apperrors.KindValidation, fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperrors.Backend(op, apperrors.KindNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return apperrors.Backend(op, transportKind(ctx, err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Backend(op, transportKind(ctx, err), fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		backendErr := &apperrors.BackendError{Op: op, Kind: statusKind(resp.StatusCode), Status: resp.StatusCode}
		if msg := errorMessage(raw); msg != "" {
			backendErr.Err = remoteError(msg)
		}
		return backendErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Backend(op, apperrors.KindUnknown, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusKind(status int) apperrors.Kind {
	switch status {
	case http.StatusConflict:
		return apperrors.KindConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.KindValidation
	case http.StatusNotFound:
		return apperrors.KindNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return apperrors.KindTimeout
	}
	return apperrors.KindUnknown
}

func transportKind(ctx context.Context, err error) apperrors.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.KindTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.KindTimeout
	}
	return apperrors.KindNetwork
}

func errorMessage(raw []byte) string {
	body := errorBody{}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

// remoteError keeps the conflict sentinels recognizable across the wire.
func remoteError(msg string) error {
	for _, sentinel := range []error{apperrors.ErrActiveSessionExists, apperrors.ErrSessionFinished} {
		if strings.Contains(msg, sentinel.Error()) {
			return fmt.Errorf("%w: %s", sentinel, msg)
		}
	}
	return errors.New(msg)
}
