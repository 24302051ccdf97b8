package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"studypomo/internal/modules/pomodoro/domain"
	"studypomo/internal/modules/pomodoro/dto"
	sessiondto "studypomo/internal/modules/session/dto"
	"studypomo/internal/ui/components"
)

type fakePomodoro struct {
	status   dto.StatusOutput
	started  []string
	minutes  []int
	stopped  []string
	resets   int
	restores int
	events   chan dto.Event
	startErr error
}

func newFakePomodoro() *fakePomodoro {
	return &fakePomodoro{status: dto.StatusOutput{State: domain.TimerIdle}, events: make(chan dto.Event, 8)}
}

func (f *fakePomodoro) Start(_ context.Context, kind string, minutes int, _ string) (dto.StartOutput, error) {
	if f.startErr != nil {
		return dto.StartOutput{}, f.startErr
	}
	f.started = append(f.started, kind)
	f.minutes = append(f.minutes, minutes)
	if minutes == 0 {
		minutes = 25
	}
	session := &domain.SessionData{ID: "s-1", Type: domain.SessionType(kind), PlannedDuration: minutes}
	f.status = dto.StatusOutput{State: domain.TimerRunning, Remaining: minutes * 60, Session: session}
	return dto.StartOutput{SessionID: "s-1", Type: session.Type, DurationSeconds: minutes * 60}, nil
}

func (f *fakePomodoro) TogglePause(context.Context) bool {
	switch f.status.State {
	case domain.TimerRunning:
		f.status.State = domain.TimerPaused
	case domain.TimerPaused:
		f.status.State = domain.TimerRunning
	default:
		return false
	}
	return true
}

func (f *fakePomodoro) Skip(context.Context) bool { return false }

func (f *fakePomodoro) Stop(_ context.Context, notes string) (dto.StopOutput, error) {
	f.stopped = append(f.stopped, notes)
	f.status = dto.StatusOutput{State: domain.TimerIdle}
	return dto.StopOutput{SessionID: "s-1", Type: domain.SessionFocus, ActualDurationMinutes: 3}, nil
}

func (f *fakePomodoro) Restore(context.Context) (dto.RestoreOutput, error) {
	f.restores++
	return dto.RestoreOutput{State: f.status.State}, nil
}

func (f *fakePomodoro) Status(context.Context) dto.StatusOutput { return f.status }

func (f *fakePomodoro) StartPendingNow(context.Context) (bool, error) { return false, nil }

func (f *fakePomodoro) CancelAutoStart(context.Context) bool { return false }

func (f *fakePomodoro) ResetCycle(context.Context) { f.resets++ }

func (f *fakePomodoro) CompleteCycle(context.Context) dto.CycleSummaryOutput {
	return dto.CycleSummaryOutput{CompletedFocusSessions: 2, HistoryLength: 1}
}

func (f *fakePomodoro) Events(int) <-chan dto.Event { return f.events }

type fakeSessions struct{ listed int }

func (f *fakeSessions) List(context.Context, int, string) ([]sessiondto.SessionOutput, error) {
	f.listed++
	return []sessiondto.SessionOutput{{ID: "s-0", SessionType: "focus", Status: "completed", PlannedDuration: 25, ActualDuration: 25}}, nil
}

func runCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func press(m Model, keys string) (Model, tea.Cmd) {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	if keys == " " {
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestStartKeyRunsFocusSession(t *testing.T) {
	t.Parallel()
	p := newFakePomodoro()
	m := NewModel("/vault", p, &fakeSessions{}, nil)

	m, cmd := press(m, "f")
	m = runCmd(t, m, cmd)

	if len(p.started) != 1 || p.started[0] != "focus" || p.minutes[0] != 0 {
		t.Fatalf("unexpected start calls %v %v", p.started, p.minutes)
	}
	if m.snapshot.State != domain.TimerRunning {
		t.Fatalf("expected running snapshot, got %s", m.snapshot.State)
	}
	if !strings.Contains(m.status, "focus started (25 min)") {
		t.Fatalf("unexpected status %q", m.status)
	}
	if !strings.Contains(m.View(), "25:00") {
		t.Fatalf("expected countdown in view:\n%s", m.View())
	}
}

func TestStartFailureShownInStatus(t *testing.T) {
	t.Parallel()
	p := newFakePomodoro()
	p.startErr = errors.New("active session already exists")
	m := NewModel("/vault", p, nil, nil)

	m, cmd := press(m, "b")
	m = runCmd(t, m, cmd)
	if !strings.HasPrefix(m.status, "start failed: active session already exists") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestSpaceTogglesPause(t *testing.T) {
	t.Parallel()
	p := newFakePomodoro()
	m := NewModel("/vault", p, nil, nil)
	m, cmd := press(m, "f")
	m = runCmd(t, m, cmd)

	m, _ = press(m, " ")
	if m.snapshot.State != domain.TimerPaused {
		t.Fatalf("expected paused, got %s", m.snapshot.State)
	}
	m, _ = press(m, " ")
	if m.snapshot.State != domain.TimerRunning {
		t.Fatalf("expected running, got %s", m.snapshot.State)
	}
}

func TestTickEventUpdatesRemaining(t *testing.T) {
	t.Parallel()
	p := newFakePomodoro()
	sessions := &fakeSessions{}
	m := NewModel("/vault", p, sessions, nil)
	m, cmd := press(m, "f")
	m = runCmd(t, m, cmd)

	next, _ := m.Update(eventMsg{event: dto.Event{Type: dto.EventTick, Remaining: 61}})
	m = next.(Model)
	if m.snapshot.Remaining != 61 || formatClock(m.snapshot.Remaining) != "01:01" {
		t.Fatalf("unexpected remaining %d", m.snapshot.Remaining)
	}

	next, follow := m.Update(eventMsg{event: dto.Event{Type: dto.EventSessionCompleted, SessionType: domain.SessionFocus, Next: domain.SessionShortBreak}})
	m = next.(Model)
	if m.status != "focus complete, next: short break" {
		t.Fatalf("unexpected status %q", m.status)
	}
	if follow == nil {
		t.Fatalf("expected follow-up commands after completion")
	}
}

func TestPaletteCommands(t *testing.T) {
	t.Parallel()
	p := newFakePomodoro()
	m := NewModel("/vault", p, nil, nil)

	next, cmd := m.Update(components.PaletteSubmitMsg{Input: "start short_break 7"})
	m = runCmd(t, next.(Model), cmd)
	if p.started[0] != "short_break" || p.minutes[0] != 7 {
		t.Fatalf("unexpected palette start %v %v", p.started, p.minutes)
	}

	next, cmd = m.Update(components.PaletteSubmitMsg{Input: "stop read chapter 3"})
	m = runCmd(t, next.(Model), cmd)
	if len(p.stopped) != 1 || p.stopped[0] != "read chapter 3" {
		t.Fatalf("unexpected stop notes %v", p.stopped)
	}

	next, _ = m.Update(components.PaletteSubmitMsg{Input: "cycle:complete"})
	m = next.(Model)
	if m.status != "cycle archived with 2 focus sessions" {
		t.Fatalf("unexpected status %q", m.status)
	}

	next, _ = m.Update(components.PaletteSubmitMsg{Input: "start focus zero"})
	m = next.(Model)
	if m.status != "invalid minutes" {
		t.Fatalf("unexpected status %q", m.status)
	}

	next, _ = m.Update(components.PaletteSubmitMsg{Input: "bogus"})
	if next.(Model).status != "unknown command: bogus" {
		t.Fatalf("unexpected status %q", next.(Model).status)
	}
}

func TestExternalChangeReloadsOnlyWhenIdle(t *testing.T) {
	t.Parallel()
	p := newFakePomodoro()
	m := NewModel("/vault", p, nil, nil)

	m = runCmd(t, m, m.reloadCmd("pomodoro.timer"))
	if p.restores != 1 {
		t.Fatalf("idle timer should reload, restores=%d", p.restores)
	}

	m, cmd := press(m, "f")
	m = runCmd(t, m, cmd)
	_ = runCmd(t, m, m.reloadCmd("pomodoro.timer"))
	if p.restores != 1 {
		t.Fatalf("running timer must not reload, restores=%d", p.restores)
	}
}

func TestRecentSessionsRendered(t *testing.T) {
	t.Parallel()
	sessions := &fakeSessions{}
	m := NewModel("/vault", newFakePomodoro(), sessions, nil)
	m = runCmd(t, m, m.loadRecentCmd())
	if sessions.listed != 1 || len(m.recent) != 1 {
		t.Fatalf("expected recent sessions loaded")
	}
	if !strings.Contains(m.View(), "25/25 min") {
		t.Fatalf("expected session line in view:\n%s", m.View())
	}
}

func TestElapsedRatioAndDots(t *testing.T) {
	t.Parallel()
	if got := elapsedRatio(1500, 750); got != 0.5 {
		t.Fatalf("ratio = %v", got)
	}
	if got := elapsedRatio(0, 10); got != 0 {
		t.Fatalf("ratio without plan = %v", got)
	}
	if got := elapsedRatio(60, 90); got != 0 {
		t.Fatalf("ratio clamps at zero, got %v", got)
	}
	if strings.Count(cycleDots(4), "●") != 4 || strings.Count(cycleDots(5), "●") != 1 || strings.Count(cycleDots(0), "○") != 4 {
		t.Fatalf("unexpected cycle dots")
	}
}
