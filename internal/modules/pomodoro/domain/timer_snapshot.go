package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TimerSnapshot is the persisted form of a TimerEngine. Times are epoch milliseconds.
type TimerSnapshot struct {
	State           TimerState   `json:"state"`
	StartTime       int64        `json:"start_time"`
	Deadline        int64        `json:"deadline"`
	PausedRemaining int          `json:"paused_remaining"`
	PausedAt        int64        `json:"paused_at"`
	SessionData     *SessionData `json:"session_data"`
	SerializedAt    int64        `json:"serialized_at"`
}

func EncodeTimerSnapshot(s TimerSnapshot) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal timer snapshot: %w", err)
	}
	return string(raw), nil
}

// ParseTimerSnapshot decodes a persisted blob. An empty blob or JSON null yields
// (nil, nil); anything that is not a JSON object is an error.
func ParseTimerSnapshot(raw string) (*TimerSnapshot, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("timer snapshot is not an object")
	}
	snapshot := TimerSnapshot{}
	if err := json.Unmarshal(trimmed, &snapshot); err != nil {
		return nil, fmt.Errorf("decode timer snapshot: %w", err)
	}
	if !snapshot.State.Valid() {
		return nil, fmt.Errorf("timer snapshot has unknown state %q", snapshot.State)
	}
	return &snapshot, nil
}
