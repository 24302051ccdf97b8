package domain

import "time"

const SchemaVersion = 1

type Status string

const (
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusInterrupted:
		return true
	}
	return false
}

// Session is one timed study interval as recorded by the backend.
type Session struct {
	ID              string
	SessionType     string
	Status          Status
	PlannedDuration int
	ActualDuration  int
	SubjectAreaID   string
	Settings        string
	WasInterrupted  bool
	Notes           string
	StartedAt       time.Time
	CompletedAt     time.Time
}

func (s Session) Active() bool {
	return s.Status == StatusActive
}

// KnownType reports whether t is a session type the backend records.
func KnownType(t string) bool {
	switch t {
	case "focus", "short_break", "long_break":
		return true
	}
	return false
}
