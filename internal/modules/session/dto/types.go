package dto

import "time"

type CreateInput struct {
	SessionType     string
	PlannedDuration int
	SubjectAreaID   string
	// Settings is the JSON settings blob the session was started with.
	Settings string
}

type CompleteInput struct {
	SessionID             string
	ActualDurationMinutes int
	WasInterrupted        bool
	Notes                 string
}

type ListInput struct {
	Limit  int
	Status string
}

type SessionOutput struct {
	ID              string
	SessionType     string
	Status          string
	PlannedDuration int
	ActualDuration  int
	SubjectAreaID   string
	WasInterrupted  bool
	Notes           string
	StartedAt       time.Time
	CompletedAt     time.Time
}

type CompleteOutput struct {
	SessionOutput
	Path string
}
