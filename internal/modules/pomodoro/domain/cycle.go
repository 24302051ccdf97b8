package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"studypomo/internal/platform/clock"
)

// CycleKind is how the cycle history records a completed session.
type CycleKind string

const (
	CycleFocus CycleKind = "focus"
	CycleBreak CycleKind = "break"
)

// CycleSnapshotVersion is written with every cycle snapshot.
const CycleSnapshotVersion = 1

type CycleEntry struct {
	SessionType  CycleKind `json:"session_type"`
	CompletedAt  int64     `json:"completed_at"`
	SessionCount int       `json:"session_count"`
}

type CycleSnapshot struct {
	CompletedFocusSessions int          `json:"completed_focus_sessions"`
	CurrentCycleStartTime  int64        `json:"current_cycle_start_time"`
	LastSessionCompletedAt int64        `json:"last_session_completed_at"`
	CycleHistory           []CycleEntry `json:"cycle_history"`
	Version                int          `json:"version"`
}

// CycleSummary is what CompleteCycle harvests before resetting.
type CycleSummary struct {
	CompletedFocusSessions int
	CycleStartTime         time.Time
	CycleEndTime           time.Time
	History                []CycleEntry
}

type CycleStats struct {
	CompletedFocusSessions int
	CurrentCycleStartTime  time.Time
	LastSessionCompletedAt time.Time
	CycleHistoryLength     int
	NextSessionType        SessionType
	IsLongBreakTime        bool
}

// CycleManager tracks completed focus and break sessions and derives the next
// session type from them. It holds no reference to any timer.
type CycleManager struct {
	mu    sync.Mutex
	clock clock.Clock

	completedFocusSessions int
	currentCycleStartTime  time.Time
	lastSessionCompletedAt time.Time
	history                []CycleEntry
}

func NewCycleManager(c clock.Clock) *CycleManager {
	if c == nil {
		c = clock.System()
	}
	return &CycleManager{clock: c}
}

func (m *CycleManager) IncrementFocusSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.completedFocusSessions++
	if m.currentCycleStartTime.IsZero() {
		m.currentCycleStartTime = now
	}
	m.history = append(m.history, CycleEntry{
		SessionType:  CycleFocus,
		CompletedAt:  clock.Millis(now),
		SessionCount: m.completedFocusSessions,
	})
	m.lastSessionCompletedAt = now
}

// CompleteBreakSession records a break. The focus counter is untouched.
func (m *CycleManager) CompleteBreakSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	breaks := 0
	for _, entry := range m.history {
		if entry.SessionType == CycleBreak {
			breaks++
		}
	}
	m.history = append(m.history, CycleEntry{
		SessionType:  CycleBreak,
		CompletedAt:  clock.Millis(now),
		SessionCount: breaks + 1,
	})
	m.lastSessionCompletedAt = now
}

// NextSessionType applies the cadence: focus first and after every break, a
// long break after every fourth focus completion, a short break otherwise.
func (m *CycleManager) NextSessionType() SessionType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextLocked()
}

// NextAfter applies the cadence to a session of type completed that the manager
// has already recorded.
func (m *CycleManager) NextAfter(completed SessionType) SessionType {
	if completed.IsBreak() {
		return SessionFocus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breakTypeLocked()
}

func (m *CycleManager) nextLocked() SessionType {
	if len(m.history) == 0 {
		return SessionFocus
	}
	if m.history[len(m.history)-1].SessionType == CycleBreak {
		return SessionFocus
	}
	return m.breakTypeLocked()
}

func (m *CycleManager) breakTypeLocked() SessionType {
	if m.completedFocusSessions > 0 && m.completedFocusSessions%LongBreakEvery == 0 {
		return SessionLongBreak
	}
	return SessionShortBreak
}

// CompleteCycle returns the current cycle and resets the counter, start time
// and history together.
func (m *CycleManager) CompleteCycle() CycleSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := CycleSummary{
		CompletedFocusSessions: m.completedFocusSessions,
		CycleStartTime:         m.currentCycleStartTime,
		CycleEndTime:           m.clock.Now(),
		History:                append([]CycleEntry(nil), m.history...),
	}
	m.completedFocusSessions = 0
	m.currentCycleStartTime = time.Time{}
	m.history = nil
	return summary
}

func (m *CycleManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *CycleManager) resetLocked() {
	m.completedFocusSessions = 0
	m.currentCycleStartTime = time.Time{}
	m.lastSessionCompletedAt = time.Time{}
	m.history = nil
}

func (m *CycleManager) Stats() CycleStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.nextLocked()
	return CycleStats{
		CompletedFocusSessions: m.completedFocusSessions,
		CurrentCycleStartTime:  m.currentCycleStartTime,
		LastSessionCompletedAt: m.lastSessionCompletedAt,
		CycleHistoryLength:     len(m.history),
		NextSessionType:        next,
		IsLongBreakTime:        next == SessionLongBreak,
	}
}

func (m *CycleManager) Serialize() CycleSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append([]CycleEntry{}, m.history...)
	return CycleSnapshot{
		CompletedFocusSessions: m.completedFocusSessions,
		CurrentCycleStartTime:  clock.Millis(m.currentCycleStartTime),
		LastSessionCompletedAt: clock.Millis(m.lastSessionCompletedAt),
		CycleHistory:           history,
		Version:                CycleSnapshotVersion,
	}
}

// Restore loads a persisted blob. Missing, malformed or inconsistent input
// leaves the manager in its initial state and reports false.
func (m *CycleManager) Restore(raw string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()

	snapshot, err := ParseCycleSnapshot(raw)
	if err != nil || snapshot == nil {
		return false
	}
	m.completedFocusSessions = snapshot.CompletedFocusSessions
	m.currentCycleStartTime = clock.FromMillis(snapshot.CurrentCycleStartTime)
	m.lastSessionCompletedAt = clock.FromMillis(snapshot.LastSessionCompletedAt)
	m.history = append([]CycleEntry(nil), snapshot.CycleHistory...)
	return true
}

func EncodeCycleSnapshot(s CycleSnapshot) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal cycle snapshot: %w", err)
	}
	return string(raw), nil
}

// ParseCycleSnapshot decodes and validates a persisted cycle. Empty input and
// JSON null yield (nil, nil).
func ParseCycleSnapshot(raw string) (*CycleSnapshot, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("cycle snapshot is not an object")
	}
	snapshot := CycleSnapshot{}
	if err := json.Unmarshal(trimmed, &snapshot); err != nil {
		return nil, fmt.Errorf("decode cycle snapshot: %w", err)
	}
	if snapshot.CompletedFocusSessions < 0 {
		return nil, fmt.Errorf("cycle snapshot has negative focus count")
	}
	focus := 0
	for _, entry := range snapshot.CycleHistory {
		switch entry.SessionType {
		case CycleFocus:
			focus++
		case CycleBreak:
		default:
			return nil, fmt.Errorf("cycle snapshot has unknown entry type %q", entry.SessionType)
		}
	}
	if focus != snapshot.CompletedFocusSessions {
		return nil, fmt.Errorf("cycle snapshot focus count %d does not match history (%d)", snapshot.CompletedFocusSessions, focus)
	}
	return &snapshot, nil
}
