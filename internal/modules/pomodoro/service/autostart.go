package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"studypomo/internal/modules/pomodoro/domain"
	pomodorout "studypomo/internal/modules/pomodoro/port/out"
	"studypomo/internal/platform/clock"
)

// PendingSession is the session an armed auto start will create.
type PendingSession struct {
	Type            domain.SessionType
	DurationMinutes int
	Settings        domain.Settings
	SubjectAreaID   string
}

type PendingStatus struct {
	Pending     bool
	Session     PendingSession
	RemainingMs int64
}

// AutoStartHooks connect an auto-started timer to the rest of the application.
type AutoStartHooks struct {
	// Callbacks builds the engine callbacks for a newly created session.
	Callbacks func(session domain.SessionData) domain.Callbacks
	Started   func(session domain.SessionData)
	Failed    func(next domain.SessionType, err error)
}

// AutoStartScheduler decides whether the next session starts on its own and,
// after a grace period, creates it in the backend and starts the engine.
type AutoStartScheduler struct {
	mu       sync.Mutex
	engine   *domain.TimerEngine
	cycle    *domain.CycleManager
	sessions pomodorout.SessionAPI
	clock    clock.Clock
	delay    time.Duration
	logger   zerolog.Logger
	hooks    AutoStartHooks
	// guard serializes execution with the caller's own session operations.
	guard sync.Locker

	pending   *PendingSession
	armedAt   time.Time
	timer     clockwork.Timer
	token     uint64
	executing bool
}

func NewAutoStartScheduler(engine *domain.TimerEngine, cycle *domain.CycleManager, sessions pomodorout.SessionAPI, c clock.Clock, delay time.Duration, logger zerolog.Logger) *AutoStartScheduler {
	if c == nil {
		c = clock.System()
	}
	if delay < 0 {
		delay = 0
	}
	return &AutoStartScheduler{
		engine:   engine,
		cycle:    cycle,
		sessions: sessions,
		clock:    c,
		delay:    delay,
		logger:   logger.With().Str("component", "autostart").Logger(),
	}
}

func (s *AutoStartScheduler) SetHooks(hooks AutoStartHooks) {
	s.mu.Lock()
	s.hooks = hooks
	s.mu.Unlock()
}

// SetGuard installs a lock held for the whole of an execution.
func (s *AutoStartScheduler) SetGuard(guard sync.Locker) {
	s.mu.Lock()
	s.guard = guard
	s.mu.Unlock()
}

func (s *AutoStartScheduler) ShouldAutoStartNext(next domain.SessionType, settings domain.Settings) bool {
	return settings.AutoStartFor(next)
}

// DetermineNextSessionType follows the cycle cadence. Unknown types are treated
// as focus.
func (s *AutoStartScheduler) DetermineNextSessionType(completed domain.SessionData) domain.SessionType {
	if !completed.Type.Valid() {
		s.logger.Warn().Str("session_type", string(completed.Type)).Msg("unknown session type, assuming focus")
		return domain.SessionFocus
	}
	return s.cycle.NextAfter(completed.Type)
}

func (s *AutoStartScheduler) SessionDuration(t domain.SessionType, settings domain.Settings) int {
	return settings.DurationMinutes(t)
}

// ScheduleAutoStartIfEnabled arms the grace timer when the settings allow the
// next session to start unattended. Any earlier pending auto start is replaced.
func (s *AutoStartScheduler) ScheduleAutoStartIfEnabled(completed domain.SessionData) (PendingSession, bool) {
	next := s.DetermineNextSessionType(completed)
	if !s.ShouldAutoStartNext(next, completed.Settings) {
		return PendingSession{}, false
	}
	pending := PendingSession{
		Type:            next,
		DurationMinutes: s.SessionDuration(next, completed.Settings),
		Settings:        completed.Settings,
		SubjectAreaID:   completed.SubjectAreaID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
	s.token++
	token := s.token
	s.pending = &pending
	s.armedAt = s.clock.Now()
	s.timer = s.clock.AfterFunc(s.delay, func() {
		if _, err := s.execute(context.Background(), token, true); err != nil {
			s.logger.Error().Err(err).Str("session_type", string(pending.Type)).Msg("auto start failed")
		}
	})
	s.logger.Debug().Str("session_type", string(next)).Dur("delay", s.delay).Msg("auto start scheduled")
	return pending, true
}

// ExecuteAutoStart starts the pending session now. It reports false without
// error when nothing is pending. The pending state is cleared on every path.
func (s *AutoStartScheduler) ExecuteAutoStart(ctx context.Context) (bool, error) {
	return s.execute(ctx, 0, false)
}

func (s *AutoStartScheduler) execute(ctx context.Context, token uint64, checkToken bool) (bool, error) {
	s.mu.Lock()
	guard := s.guard
	s.mu.Unlock()
	if guard != nil {
		guard.Lock()
		defer guard.Unlock()
	}

	s.mu.Lock()
	if s.pending == nil || s.executing || (checkToken && token != s.token) {
		s.mu.Unlock()
		return false, nil
	}
	pending := *s.pending
	claimed := s.token
	hooks := s.hooks
	s.executing = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.executing = false
		if s.token == claimed {
			s.pending = nil
			s.armedAt = time.Time{}
		}
		s.mu.Unlock()
	}()

	started, err := s.startPending(ctx, pending, hooks)
	if err != nil && hooks.Failed != nil {
		hooks.Failed(pending.Type, err)
	}
	return started, err
}

func (s *AutoStartScheduler) startPending(ctx context.Context, pending PendingSession, hooks AutoStartHooks) (bool, error) {
	record, err := s.sessions.CreateSession(ctx, domain.CreateSessionRequest{
		SessionType:     pending.Type,
		PlannedDuration: pending.DurationMinutes,
		SubjectAreaID:   pending.SubjectAreaID,
		Settings:        pending.Settings,
	})
	if err != nil {
		return false, fmt.Errorf("create %s session: %w", pending.Type, err)
	}
	session := domain.SessionData{
		ID:              record.ID,
		Type:            pending.Type,
		PlannedDuration: pending.DurationMinutes,
		Settings:        pending.Settings,
		SubjectAreaID:   pending.SubjectAreaID,
	}
	var callbacks domain.Callbacks
	if hooks.Callbacks != nil {
		callbacks = hooks.Callbacks(session)
	}
	if err := s.engine.Start(pending.DurationMinutes*60, callbacks, &session); err != nil {
		return false, fmt.Errorf("start %s timer: %w", pending.Type, err)
	}
	s.logger.Info().Str("session_id", session.ID).Str("session_type", string(session.Type)).Msg("auto started session")
	if hooks.Started != nil {
		hooks.Started(session)
	}
	return true, nil
}

// CancelAutoStart drops a pending auto start. A timer already started by an
// in-flight execution keeps running.
func (s *AutoStartScheduler) CancelAutoStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasPending := s.pending != nil && !s.executing
	s.disarmLocked()
	s.token++
	s.pending = nil
	s.armedAt = time.Time{}
	return wasPending
}

func (s *AutoStartScheduler) Status() PendingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingStatus{}
	}
	remaining := s.delay - s.clock.Since(s.armedAt)
	if remaining < 0 {
		remaining = 0
	}
	return PendingStatus{Pending: true, Session: *s.pending, RemainingMs: remaining.Milliseconds()}
}

func (s *AutoStartScheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
