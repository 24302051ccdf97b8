package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	sessionout "studypomo/internal/modules/session/adapter/out"
	sessiondto "studypomo/internal/modules/session/dto"
	sessionin "studypomo/internal/modules/session/port/in"
	"studypomo/internal/modules/session/service"
	"studypomo/internal/modules/session/usecase"
	apperrors "studypomo/internal/platform/errors"
	"studypomo/internal/platform/tx"
)

type seqID struct{ n int }

func (s *seqID) New() string {
	s.n++
	return fmt.Sprintf("sess-%d", s.n)
}

func newBackend(t *testing.T) (sessionin.Usecase, *clockwork.FakeClock, string) {
	t.Helper()
	vault := t.TempDir()
	db, err := sessionout.OpenSQLite(filepath.Join(vault, ".studypomo", "studypomo.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo, err := sessionout.NewSQLiteSessionRepository(db)
	if err != nil {
		t.Fatalf("create repo: %v", err)
	}
	clk := clockwork.NewFakeClockAt(time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC))
	uc := usecase.NewInteractor(
		service.NewSessionService(clk, &seqID{}),
		repo,
		sessionout.NewVaultSessionStore(vault),
		tx.NewSQLManager(db),
		zerolog.Nop(),
	)
	return uc, clk, vault
}

func TestSessionLifecycleWritesNoteAndDayLog(t *testing.T) {
	t.Parallel()
	uc, clk, vault := newBackend(t)
	ctx := context.Background()

	created, err := uc.Create(ctx, sessiondto.CreateInput{SessionType: "focus", PlannedDuration: 25, SubjectAreaID: "Linear Algebra", Settings: `{"auto_start":true}`})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.ID != "sess-1" || created.Status != "active" {
		t.Fatalf("unexpected created session: %+v", created)
	}

	active, err := uc.GetActive(ctx)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != created.ID {
		t.Fatalf("expected active %s, got %s", created.ID, active.ID)
	}

	clk.Advance(12 * time.Minute)
	done, err := uc.Complete(ctx, sessiondto.CompleteInput{SessionID: created.ID, ActualDurationMinutes: 12, WasInterrupted: true, Notes: "fire alarm"})
	if err != nil {
		t.Fatalf("complete session: %v", err)
	}
	if done.Status != "interrupted" || !done.WasInterrupted || done.ActualDuration != 12 {
		t.Fatalf("unexpected completion: %+v", done)
	}
	if !done.CompletedAt.Equal(time.Date(2026, 2, 25, 10, 12, 0, 0, time.UTC)) {
		t.Fatalf("unexpected completed_at: %s", done.CompletedAt)
	}

	wantPath := filepath.Join(vault, "sessions", "2026", "02", "25", "100000-focus-linear-algebra.md")
	if done.Path != wantPath {
		t.Fatalf("expected note at %s, got %s", wantPath, done.Path)
	}
	note, err := os.ReadFile(done.Path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	for _, want := range []string{"id: sess-1", "status: interrupted", "actual_duration_minutes: 12", "was_interrupted: true", "fire alarm"} {
		if !strings.Contains(string(note), want) {
			t.Fatalf("note missing %q: %s", want, note)
		}
	}
	dayLog, err := os.ReadFile(filepath.Join(filepath.Dir(done.Path), "index.md"))
	if err != nil {
		t.Fatalf("read day log: %v", err)
	}
	if !strings.Contains(string(dayLog), "[[100000-focus-linear-algebra.md]] interrupted, 12 min") {
		t.Fatalf("day log missing entry: %s", dayLog)
	}

	if _, err := uc.GetActive(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestCreateRejectsSecondActiveSession(t *testing.T) {
	t.Parallel()
	uc, _, _ := newBackend(t)
	ctx := context.Background()

	first, err := uc.Create(ctx, sessiondto.CreateInput{SessionType: "focus", PlannedDuration: 25})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := uc.Create(ctx, sessiondto.CreateInput{SessionType: "short_break", PlannedDuration: 5}); !errors.Is(err, apperrors.ErrActiveSessionExists) {
		t.Fatalf("expected active session conflict, got %v", err)
	}
	if _, err := uc.Complete(ctx, sessiondto.CompleteInput{SessionID: first.ID, ActualDurationMinutes: 25}); err != nil {
		t.Fatalf("complete first: %v", err)
	}
	second, err := uc.Create(ctx, sessiondto.CreateInput{SessionType: "short_break", PlannedDuration: 5})
	if err != nil {
		t.Fatalf("create after completion: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a new id")
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Parallel()
	uc, _, _ := newBackend(t)
	ctx := context.Background()

	if _, err := uc.Complete(ctx, sessiondto.CompleteInput{SessionID: "missing"}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.Complete(ctx, sessiondto.CompleteInput{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty id, got %v", err)
	}

	created, err := uc.Create(ctx, sessiondto.CreateInput{SessionType: "long_break", PlannedDuration: 20})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := uc.Complete(ctx, sessiondto.CompleteInput{SessionID: created.ID, ActualDurationMinutes: -1}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative duration, got %v", err)
	}
	if _, err := uc.Complete(ctx, sessiondto.CompleteInput{SessionID: created.ID, ActualDurationMinutes: 20}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := uc.Complete(ctx, sessiondto.CompleteInput{SessionID: created.ID, ActualDurationMinutes: 20}); !errors.Is(err, apperrors.ErrSessionFinished) {
		t.Fatalf("expected finished conflict, got %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	t.Parallel()
	uc, _, _ := newBackend(t)
	ctx := context.Background()

	if _, err := uc.Create(ctx, sessiondto.CreateInput{SessionType: "nap", PlannedDuration: 10}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid type error, got %v", err)
	}
	if _, err := uc.Create(ctx, sessiondto.CreateInput{SessionType: "focus", PlannedDuration: 0}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid duration error, got %v", err)
	}
	if _, err := uc.GetActive(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("rejected input must not create a session, got %v", err)
	}
}

func TestListNewestFirstWithStatusFilter(t *testing.T) {
	t.Parallel()
	uc, clk, _ := newBackend(t)
	ctx := context.Background()

	for i, kind := range []string{"focus", "short_break", "focus"} {
		created, err := uc.Create(ctx, sessiondto.CreateInput{SessionType: kind, PlannedDuration: 5})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		clk.Advance(5 * time.Minute)
		if i < 2 {
			if _, err := uc.Complete(ctx, sessiondto.CompleteInput{SessionID: created.ID, ActualDurationMinutes: 5}); err != nil {
				t.Fatalf("complete %d: %v", i, err)
			}
		}
	}

	all, err := uc.List(ctx, sessiondto.ListInput{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "sess-3" || all[2].ID != "sess-1" {
		t.Fatalf("unexpected order: %+v", all)
	}

	completed, err := uc.List(ctx, sessiondto.ListInput{Status: "completed", Limit: 1})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "sess-2" {
		t.Fatalf("unexpected filtered list: %+v", completed)
	}

	if _, err := uc.List(ctx, sessiondto.ListInput{Status: "paused"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid status error, got %v", err)
	}

	got, err := uc.Get(ctx, "sess-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SessionType != "short_break" || got.Status != "completed" {
		t.Fatalf("unexpected session: %+v", got)
	}
}
