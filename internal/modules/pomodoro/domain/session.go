package domain

import (
	"strings"
	"time"
)

// SessionType is the kind of Pomodoro interval.
type SessionType string

const (
	SessionFocus      SessionType = "focus"
	SessionShortBreak SessionType = "short_break"
	SessionLongBreak  SessionType = "long_break"
)

const (
	DefaultFocusMinutes      = 25
	DefaultShortBreakMinutes = 5
	DefaultLongBreakMinutes  = 20

	// DefaultAutoStartDelay is the grace period before an auto-started session begins.
	DefaultAutoStartDelay = 3 * time.Second

	// LongBreakEvery is the number of focus completions between long breaks.
	LongBreakEvery = 4
)

// ParseSessionType accepts the canonical names plus the legacy "break" and "pomodoro" aliases.
func ParseSessionType(raw string) (SessionType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "focus", "pomodoro", "work":
		return SessionFocus, true
	case "short_break", "short-break", "break":
		return SessionShortBreak, true
	case "long_break", "long-break":
		return SessionLongBreak, true
	}
	return "", false
}

func (t SessionType) Valid() bool {
	switch t {
	case SessionFocus, SessionShortBreak, SessionLongBreak:
		return true
	}
	return false
}

func (t SessionType) IsBreak() bool {
	return t == SessionShortBreak || t == SessionLongBreak
}

// Settings is the per-session configuration handed to the engine. Nil pointers
// mean "inherit": durations fall back to the defaults, per-direction auto start
// flags fall back to AutoStart.
type Settings struct {
	FocusDuration      *int  `json:"focus_duration,omitempty"`
	ShortBreakDuration *int  `json:"short_break_duration,omitempty"`
	LongBreakDuration  *int  `json:"long_break_duration,omitempty"`
	AutoStart          *bool `json:"auto_start,omitempty"`
	AutoStartFocus     *bool `json:"auto_start_focus,omitempty"`
	AutoStartBreak     *bool `json:"auto_start_break,omitempty"`
}

// AutoStartFor reports whether a session of type next should start on its own.
func (s Settings) AutoStartFor(next SessionType) bool {
	direction := s.AutoStartBreak
	if next == SessionFocus {
		direction = s.AutoStartFocus
	}
	if direction != nil {
		return *direction
	}
	if s.AutoStart != nil {
		return *s.AutoStart
	}
	return false
}

// DurationMinutes returns the configured length of a session type, or the default.
// Non-positive overrides are ignored.
func (s Settings) DurationMinutes(t SessionType) int {
	switch t {
	case SessionShortBreak:
		return positiveOr(s.ShortBreakDuration, DefaultShortBreakMinutes)
	case SessionLongBreak:
		return positiveOr(s.LongBreakDuration, DefaultLongBreakMinutes)
	default:
		return positiveOr(s.FocusDuration, DefaultFocusMinutes)
	}
}

func positiveOr(v *int, fallback int) int {
	if v == nil || *v <= 0 {
		return fallback
	}
	return *v
}

// SessionData is the opaque payload carried by a running timer.
type SessionData struct {
	ID              string      `json:"id"`
	Type            SessionType `json:"type"`
	PlannedDuration int         `json:"planned_duration"`
	Settings        Settings    `json:"settings"`
	SubjectAreaID   string      `json:"subject_area_id,omitempty"`
}

// Clone returns a copy that shares no pointers with s.
func (s Settings) Clone() Settings {
	return Settings{
		FocusDuration:      cloneInt(s.FocusDuration),
		ShortBreakDuration: cloneInt(s.ShortBreakDuration),
		LongBreakDuration:  cloneInt(s.LongBreakDuration),
		AutoStart:          cloneBool(s.AutoStart),
		AutoStartFocus:     cloneBool(s.AutoStartFocus),
		AutoStartBreak:     cloneBool(s.AutoStartBreak),
	}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	return Int(*v)
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	return Bool(*v)
}

func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }
