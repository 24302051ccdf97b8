package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestCycleCadenceShortThenLongBreak(t *testing.T) {
	t.Parallel()
	m := NewCycleManager(clockwork.NewFakeClockAt(epoch))
	if got := m.NextSessionType(); got != SessionFocus {
		t.Fatalf("fresh cycle should start with focus, got %s", got)
	}
	for i := 1; i <= 3; i++ {
		m.IncrementFocusSession()
		if got := m.NextSessionType(); got != SessionShortBreak {
			t.Fatalf("after focus #%d expected short break, got %s", i, got)
		}
		m.CompleteBreakSession()
		if got := m.NextSessionType(); got != SessionFocus {
			t.Fatalf("after break expected focus, got %s", got)
		}
	}
	m.IncrementFocusSession()
	if got := m.NextSessionType(); got != SessionLongBreak {
		t.Fatalf("after 4th focus expected long break, got %s", got)
	}
}

func TestFourFocusSessionsInARowIsLongBreakTime(t *testing.T) {
	t.Parallel()
	m := NewCycleManager(clockwork.NewFakeClockAt(epoch))
	for i := 0; i < 4; i++ {
		m.IncrementFocusSession()
	}
	stats := m.Stats()
	if stats.NextSessionType != SessionLongBreak || !stats.IsLongBreakTime {
		t.Fatalf("expected long break time, got %+v", stats)
	}
	if stats.CompletedFocusSessions != 4 || stats.CycleHistoryLength != 4 {
		t.Fatalf("unexpected counters %+v", stats)
	}
	for i := 0; i < 4; i++ {
		m.IncrementFocusSession()
	}
	if got := m.NextSessionType(); got != SessionLongBreak {
		t.Fatalf("8th focus should also be long break, got %s", got)
	}
}

func TestCycleHistoryRecordsCountsAndTimes(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClockAt(epoch)
	m := NewCycleManager(clk)
	m.IncrementFocusSession()
	clk.Advance(25 * time.Minute)
	m.CompleteBreakSession()
	clk.Advance(5 * time.Minute)
	m.IncrementFocusSession()
	m.CompleteBreakSession()

	snap := m.Serialize()
	if len(snap.CycleHistory) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(snap.CycleHistory))
	}
	want := []CycleEntry{
		{SessionType: CycleFocus, CompletedAt: epoch.UnixMilli(), SessionCount: 1},
		{SessionType: CycleBreak, CompletedAt: epoch.Add(25 * time.Minute).UnixMilli(), SessionCount: 1},
		{SessionType: CycleFocus, CompletedAt: epoch.Add(30 * time.Minute).UnixMilli(), SessionCount: 2},
		{SessionType: CycleBreak, CompletedAt: epoch.Add(30 * time.Minute).UnixMilli(), SessionCount: 2},
	}
	for i, entry := range want {
		if snap.CycleHistory[i] != entry {
			t.Fatalf("entry %d: expected %+v, got %+v", i, entry, snap.CycleHistory[i])
		}
	}
	if snap.CurrentCycleStartTime != epoch.UnixMilli() {
		t.Fatalf("cycle start should be the first focus completion")
	}
	if snap.CompletedFocusSessions != 2 || snap.Version != CycleSnapshotVersion {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCompleteCycleHarvestsAndResets(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClockAt(epoch)
	m := NewCycleManager(clk)
	m.IncrementFocusSession()
	m.CompleteBreakSession()
	m.IncrementFocusSession()
	clk.Advance(time.Hour)

	summary := m.CompleteCycle()
	if summary.CompletedFocusSessions != 2 || len(summary.History) != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !summary.CycleStartTime.Equal(epoch) || !summary.CycleEndTime.Equal(epoch.Add(time.Hour)) {
		t.Fatalf("unexpected summary window %s..%s", summary.CycleStartTime, summary.CycleEndTime)
	}
	stats := m.Stats()
	if stats.CompletedFocusSessions != 0 || stats.CycleHistoryLength != 0 || !stats.CurrentCycleStartTime.IsZero() {
		t.Fatalf("cycle state should be cleared, got %+v", stats)
	}
	if stats.NextSessionType != SessionFocus {
		t.Fatalf("next after harvest should be focus, got %s", stats.NextSessionType)
	}
}

func TestNextAfterUsesCompletedType(t *testing.T) {
	t.Parallel()
	m := NewCycleManager(clockwork.NewFakeClockAt(epoch))
	m.IncrementFocusSession()
	if got := m.NextAfter(SessionFocus); got != SessionShortBreak {
		t.Fatalf("expected short break, got %s", got)
	}
	if got := m.NextAfter(SessionLongBreak); got != SessionFocus {
		t.Fatalf("expected focus after a break, got %s", got)
	}
}

func TestRestoreRoundTripAndTolerance(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClockAt(epoch)
	source := NewCycleManager(clk)
	source.IncrementFocusSession()
	source.CompleteBreakSession()
	source.IncrementFocusSession()
	raw, err := EncodeCycleSnapshot(source.Serialize())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	restored := NewCycleManager(clk)
	if !restored.Restore(raw) {
		t.Fatalf("expected restore to succeed")
	}
	got, want := restored.Stats(), source.Stats()
	if got.CompletedFocusSessions != want.CompletedFocusSessions || got.CycleHistoryLength != want.CycleHistoryLength ||
		got.NextSessionType != want.NextSessionType || !got.CurrentCycleStartTime.Equal(want.CurrentCycleStartTime) ||
		!got.LastSessionCompletedAt.Equal(want.LastSessionCompletedAt) {
		t.Fatalf("restored stats differ: %+v vs %+v", got, want)
	}

	for _, bad := range []string{
		"",
		"null",
		"17",
		"[]",
		"{not json",
		`{"completed_focus_sessions":"three"}`,
		`{"completed_focus_sessions":-1}`,
		`{"completed_focus_sessions":2,"cycle_history":[{"session_type":"focus"}]}`,
		`{"completed_focus_sessions":0,"cycle_history":[{"session_type":"nap"}]}`,
	} {
		if restored.Restore(bad) {
			t.Fatalf("restore should reject %q", bad)
		}
		stats := restored.Stats()
		if stats.CompletedFocusSessions != 0 || stats.CycleHistoryLength != 0 || stats.NextSessionType != SessionFocus {
			t.Fatalf("rejected restore must leave defaults, got %+v for %q", stats, bad)
		}
	}
}

func TestResetClearsEverything(t *testing.T) {
	t.Parallel()
	m := NewCycleManager(clockwork.NewFakeClockAt(epoch))
	m.IncrementFocusSession()
	m.CompleteBreakSession()
	m.Reset()
	stats := m.Stats()
	if stats != (CycleStats{NextSessionType: SessionFocus}) {
		t.Fatalf("expected initial stats, got %+v", stats)
	}
}
