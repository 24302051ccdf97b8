package domain

import "time"

// CreateSessionRequest asks the session backend for a new active record.
type CreateSessionRequest struct {
	SessionType     SessionType `json:"session_type"`
	PlannedDuration int         `json:"planned_duration"`
	SubjectAreaID   string      `json:"subject_area_id,omitempty"`
	Settings        Settings    `json:"settings"`
}

// CompleteSessionRequest closes a backend record. It must reach the backend
// before the next session is created.
type CompleteSessionRequest struct {
	ActualDurationMinutes int    `json:"actual_duration_minutes"`
	WasInterrupted        bool   `json:"was_interrupted"`
	Notes                 string `json:"notes,omitempty"`
}

type SessionRecord struct {
	ID              string      `json:"id"`
	SessionType     SessionType `json:"session_type"`
	PlannedDuration int         `json:"planned_duration"`
	SubjectAreaID   string      `json:"subject_area_id,omitempty"`
	StartedAt       time.Time   `json:"started_at"`
}
