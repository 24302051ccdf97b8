package dto

import (
	"time"

	"studypomo/internal/modules/pomodoro/domain"
)

type StartInput struct {
	Type          string
	Minutes       int
	SubjectAreaID string
	Settings      *domain.Settings
}

type StartOutput struct {
	SessionID       string
	Type            domain.SessionType
	DurationSeconds int
	StartedAt       time.Time
}

type StopInput struct {
	Notes string
}

type StopOutput struct {
	SessionID             string
	Type                  domain.SessionType
	ActualDurationMinutes int
}

type RestoreOutput struct {
	Restored bool
	Expired  bool
	State    domain.TimerState
	Session  *domain.SessionData
}

type AutoStartStatus struct {
	Pending         bool
	Type            domain.SessionType
	DurationMinutes int
	RemainingMs     int64
}

type StatusOutput struct {
	State     domain.TimerState
	Remaining int
	Session   *domain.SessionData
	Cycle     domain.CycleStats
	AutoStart AutoStartStatus
}

type CycleSummaryOutput struct {
	CompletedFocusSessions int
	CycleStartTime         time.Time
	CycleEndTime           time.Time
	HistoryLength          int
}

type EventType string

const (
	EventTick               EventType = "tick"
	EventSessionStarted     EventType = "session.started"
	EventSessionPaused      EventType = "session.paused"
	EventSessionResumed     EventType = "session.resumed"
	EventSessionCompleted   EventType = "session.completed"
	EventSessionInterrupted EventType = "session.interrupted"
	EventAutoStartScheduled EventType = "autostart.scheduled"
	EventAutoStartCancelled EventType = "autostart.cancelled"
	EventAutoStartFailed    EventType = "autostart.failed"
	EventError              EventType = "error"
)

// Event is delivered to subscribers and, except ticks, to the event publisher.
type Event struct {
	Type        EventType          `json:"type"`
	SessionID   string             `json:"session_id,omitempty"`
	SessionType domain.SessionType `json:"session_type,omitempty"`
	Remaining   int                `json:"remaining,omitempty"`
	Next        domain.SessionType `json:"next,omitempty"`
	AutoStarted bool               `json:"auto_started,omitempty"`
	// AutoStartArmed is set on session.completed when the next session will start on its own.
	AutoStartArmed bool      `json:"auto_start_armed,omitempty"`
	Message        string    `json:"message,omitempty"`
	At             time.Time `json:"at"`
}
