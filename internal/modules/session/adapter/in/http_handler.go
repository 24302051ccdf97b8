package in

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	sessiondto "studypomo/internal/modules/session/dto"
	sessionin "studypomo/internal/modules/session/port/in"
	apperrors "studypomo/internal/platform/errors"
)

// HTTPHandler serves the session backend over JSON so timers on other
// machines can share one session history.
type HTTPHandler struct {
	usecase sessionin.Usecase
	logger  zerolog.Logger
}

func NewHTTPHandler(usecase sessionin.Usecase, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{usecase: usecase, logger: logger.With().Str("component", "session_http").Logger()}
}

type createRequest struct {
	SessionType     string          `json:"sessionType"`
	PlannedDuration int             `json:"plannedDuration"`
	SubjectAreaID   string          `json:"subjectAreaId"`
	Settings        json.RawMessage `json:"settings"`
}

type completeRequest struct {
	ActualDurationMinutes int    `json:"actualDurationMinutes"`
	WasInterrupted        bool   `json:"wasInterrupted"`
	Notes                 string `json:"notes"`
}

type sessionResponse struct {
	ID              string     `json:"id"`
	SessionType     string     `json:"sessionType"`
	Status          string     `json:"status"`
	PlannedDuration int        `json:"plannedDuration"`
	ActualDuration  int        `json:"actualDuration"`
	SubjectAreaID   string     `json:"subjectAreaId,omitempty"`
	WasInterrupted  bool       `json:"wasInterrupted"`
	Notes           string     `json:"notes,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	NotePath        string     `json:"notePath,omitempty"`
}

func (h *HTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", h.create)
	mux.HandleFunc("GET /sessions", h.list)
	mux.HandleFunc("GET /sessions/active", h.active)
	mux.HandleFunc("GET /sessions/{id}", h.get)
	mux.HandleFunc("POST /sessions/{id}/complete", h.complete)
	return mux
}

func (h *HTTPHandler) create(w http.ResponseWriter, r *http.Request) {
	req := createRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	settings := ""
	if len(req.Settings) > 0 && string(req.Settings) != "null" {
		settings = string(req.Settings)
	}
	out, err := h.usecase.Create(r.Context(), sessiondto.CreateInput{
		SessionType:     req.SessionType,
		PlannedDuration: req.PlannedDuration,
		SubjectAreaID:   req.SubjectAreaID,
		Settings:        settings,
	})
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toResponse(out, ""))
}

func (h *HTTPHandler) complete(w http.ResponseWriter, r *http.Request) {
	req := completeRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := h.usecase.Complete(r.Context(), sessiondto.CompleteInput{
		SessionID:             r.PathValue("id"),
		ActualDurationMinutes: req.ActualDurationMinutes,
		WasInterrupted:        req.WasInterrupted,
		Notes:                 req.Notes,
	})
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(out.SessionOutput, out.Path))
}

func (h *HTTPHandler) get(w http.ResponseWriter, r *http.Request) {
	out, err := h.usecase.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(out, ""))
}

func (h *HTTPHandler) active(w http.ResponseWriter, r *http.Request) {
	out, err := h.usecase.GetActive(r.Context())
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(out, ""))
}

func (h *HTTPHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		limit = parsed
	}
	sessions, err := h.usecase.List(r.Context(), sessiondto.ListInput{Limit: limit, Status: r.URL.Query().Get("status")})
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toResponse(s, ""))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrActiveSessionExists), errors.Is(err, apperrors.ErrSessionFinished):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrNoActiveSession):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func toResponse(s sessiondto.SessionOutput, notePath string) sessionResponse {
	resp := sessionResponse{
		ID:              s.ID,
		SessionType:     s.SessionType,
		Status:          s.Status,
		PlannedDuration: s.PlannedDuration,
		ActualDuration:  s.ActualDuration,
		SubjectAreaID:   s.SubjectAreaID,
		WasInterrupted:  s.WasInterrupted,
		Notes:           s.Notes,
		StartedAt:       s.StartedAt,
		NotePath:        notePath,
	}
	if !s.CompletedAt.IsZero() {
		completed := s.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn().Err(err).Msg("write response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("session request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
