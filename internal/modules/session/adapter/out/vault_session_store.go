package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studypomo/internal/modules/session/domain"
	sessionout "studypomo/internal/modules/session/port/out"
	"studypomo/internal/platform/markdown"
	"studypomo/internal/platform/slug"
)

var dayLog = markdown.Block{Start: "<!-- studypomo:sessions:start -->", End: "<!-- studypomo:sessions:end -->"}

type VaultSessionStore struct {
	vaultPath string
}

func NewVaultSessionStore(vaultPath string) sessionout.SessionStore {
	return &VaultSessionStore{vaultPath: vaultPath}
}

type noteMeta struct {
	SchemaVersion   int    `yaml:"schema_version"`
	ID              string `yaml:"id"`
	SessionType     string `yaml:"session_type"`
	Status          string `yaml:"status"`
	SubjectAreaID   string `yaml:"subject_area_id,omitempty"`
	StartedAt       string `yaml:"started_at"`
	CompletedAt     string `yaml:"completed_at"`
	PlannedDuration int    `yaml:"planned_duration_minutes"`
	ActualDuration  int    `yaml:"actual_duration_minutes"`
	WasInterrupted  bool   `yaml:"was_interrupted"`
}

// Save writes sessions/YYYY/MM/DD/HHMMSS-<type>.md and refreshes the day's
// index.md log.
func (s *VaultSessionStore) Save(_ context.Context, session domain.Session) (string, error) {
	date := session.StartedAt.UTC()
	dir := filepath.Join(s.vaultPath, "sessions", date.Format("2006"), date.Format("01"), date.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", date.Format("150405"), slug.Make(session.SessionType, session.SubjectAreaID))
	path := filepath.Join(dir, name)

	meta := noteMeta{
		SchemaVersion:   domain.SchemaVersion,
		ID:              session.ID,
		SessionType:     session.SessionType,
		Status:          string(session.Status),
		SubjectAreaID:   session.SubjectAreaID,
		StartedAt:       session.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt:     session.CompletedAt.UTC().Format(time.RFC3339),
		PlannedDuration: session.PlannedDuration,
		ActualDuration:  session.ActualDuration,
		WasInterrupted:  session.WasInterrupted,
	}
	body := fmt.Sprintf("# %s session\n\n- Planned: %d minutes\n- Actual: %d minutes\n", session.SessionType, session.PlannedDuration, session.ActualDuration)
	if session.WasInterrupted {
		body += "- Interrupted\n"
	}
	if session.Notes != "" {
		body += "\n## Notes\n\n" + session.Notes + "\n"
	}
	rendered, err := markdown.Render(meta, body)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write session note: %w", err)
	}
	if err := s.appendToDayLog(dir, name, session); err != nil {
		return path, err
	}
	return path, nil
}

func (s *VaultSessionStore) appendToDayLog(dir, name string, session domain.Session) error {
	indexPath := filepath.Join(dir, "index.md")
	existing, err := os.ReadFile(indexPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read day log: %w", err)
	}
	body := string(existing)
	if body == "" {
		body = fmt.Sprintf("# Sessions %s\n", session.StartedAt.UTC().Format("2006-01-02"))
	}
	entries, _ := dayLog.Content(body)
	line := fmt.Sprintf("- %s [[%s]] %s, %d min", session.StartedAt.UTC().Format("15:04"), name, session.Status, session.ActualDuration)
	if entries != "" {
		line = entries + "\n" + line
	}
	if err := os.WriteFile(indexPath, []byte(dayLog.Replace(body, line)), 0o644); err != nil {
		return fmt.Errorf("write day log: %w", err)
	}
	return nil
}
