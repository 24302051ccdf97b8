package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studypomo/internal/modules/pomodoro/domain"
	"studypomo/internal/modules/pomodoro/dto"
	pomodoroin "studypomo/internal/modules/pomodoro/port/in"
	pomodorout "studypomo/internal/modules/pomodoro/port/out"
	"studypomo/internal/modules/pomodoro/service"
	"studypomo/internal/platform/clock"
	apperrors "studypomo/internal/platform/errors"
	"studypomo/internal/platform/metrics"
)

type Options struct {
	Clock              clock.Clock
	TickInterval       time.Duration
	AutoStartDelay     time.Duration
	CheckpointInterval time.Duration
	// Defaults apply to sessions started without explicit settings.
	Defaults domain.Settings
	Logger   zerolog.Logger
}

// Interactor composes the timer engine, cycle manager and auto start scheduler
// with the session backend and snapshot persistence. Session operations are
// serialized; a completion always reaches the backend before the next session
// is created.
type Interactor struct {
	opMu       sync.Mutex
	engine     *domain.TimerEngine
	cycle      *domain.CycleManager
	scheduler  *service.AutoStartScheduler
	keeper     *service.StateKeeper
	checkpoint *service.Checkpointer
	sessions   pomodorout.SessionAPI
	publisher  pomodorout.EventPublisher
	clock      clock.Clock
	defaults   domain.Settings
	logger     zerolog.Logger

	// unacked is a session that finished locally but whose completion the
	// backend has not accepted yet. Guarded by opMu.
	unacked    *domain.SessionData
	unackedReq domain.CompleteSessionRequest
	// completionHandled is set once the engine's current countdown has gone
	// through completion. Guarded by opMu.
	completionHandled bool

	subMu       sync.Mutex
	subscribers []chan dto.Event
	closed      bool
}

var _ pomodoroin.Usecase = (*Interactor)(nil)

// NewInteractor wires the pomodoro core. publisher may be nil.
func NewInteractor(sessions pomodorout.SessionAPI, store pomodorout.PersistenceAdapter, publisher pomodorout.EventPublisher, opts Options) (*Interactor, error) {
	if sessions == nil {
		return nil, fmt.Errorf("%w: session api is required", apperrors.ErrInvalidInput)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: persistence adapter is required", apperrors.ErrInvalidInput)
	}
	c := opts.Clock
	if c == nil {
		c = clock.System()
	}
	delay := opts.AutoStartDelay
	if delay < 0 {
		delay = domain.DefaultAutoStartDelay
	}
	logger := opts.Logger.With().Str("module", "pomodoro").Logger()

	engine := domain.NewTimerEngine(c, opts.TickInterval)
	cycle := domain.NewCycleManager(c)
	i := &Interactor{
		engine:    engine,
		cycle:     cycle,
		scheduler: service.NewAutoStartScheduler(engine, cycle, sessions, c, delay, logger),
		keeper:    service.NewStateKeeper(store, logger),
		sessions:  sessions,
		publisher: publisher,
		clock:     c,
		defaults:  opts.Defaults,
		logger:    logger,
	}
	i.scheduler.SetGuard(&i.opMu)
	i.scheduler.SetHooks(service.AutoStartHooks{
		Callbacks: i.callbacksFor,
		Started:   i.onAutoStarted,
		Failed:    i.onAutoStartFailed,
	})

	checkpoint, err := service.NewCheckpointer(c, opts.CheckpointInterval, i.saveRunningTimer, logger)
	if err != nil {
		return nil, err
	}
	i.checkpoint = checkpoint
	i.checkpoint.Start()
	return i, nil
}

func (i *Interactor) Start(ctx context.Context, input dto.StartInput) (dto.StartOutput, error) {
	sessionType := domain.SessionFocus
	if input.Type != "" {
		parsed, ok := domain.ParseSessionType(input.Type)
		if !ok {
			return dto.StartOutput{}, fmt.Errorf("%w: unknown session type %q", apperrors.ErrInvalidInput, input.Type)
		}
		sessionType = parsed
	}
	if input.Minutes < 0 {
		return dto.StartOutput{}, fmt.Errorf("%w: minutes must not be negative", apperrors.ErrInvalidInput)
	}

	i.opMu.Lock()
	defer i.opMu.Unlock()

	switch state := i.engine.State(); state {
	case domain.TimerRunning, domain.TimerPaused:
		return dto.StartOutput{}, fmt.Errorf("%w: a %s session is already %s", apperrors.ErrActiveSessionExists, i.sessionTypeLocked(), state)
	case domain.TimerCompleted:
		// the completion callback may still be waiting for the lock
		if s := i.engine.Session(); s != nil && !i.completionHandled {
			i.completeLocked(*s, false)
		}
	}
	if i.scheduler.CancelAutoStart() {
		i.recordAutoStart("cancelled")
		i.emit(dto.Event{Type: dto.EventAutoStartCancelled})
	}
	if err := i.flushUnackedLocked(ctx); err != nil {
		return dto.StartOutput{}, err
	}

	settings := i.defaults
	if input.Settings != nil {
		settings = *input.Settings
	}
	minutes := input.Minutes
	if minutes == 0 {
		minutes = settings.DurationMinutes(sessionType)
	}

	record, err := i.sessions.CreateSession(ctx, domain.CreateSessionRequest{
		SessionType:     sessionType,
		PlannedDuration: minutes,
		SubjectAreaID:   input.SubjectAreaID,
		Settings:        settings,
	})
	if err != nil {
		i.recordBackendError("create", err)
		return dto.StartOutput{}, fmt.Errorf("create %s session: %w", sessionType, err)
	}
	session := domain.SessionData{
		ID:              record.ID,
		Type:            sessionType,
		PlannedDuration: minutes,
		Settings:        settings,
		SubjectAreaID:   input.SubjectAreaID,
	}
	if err := i.engine.Start(minutes*60, i.callbacksFor(session), &session); err != nil {
		return dto.StartOutput{}, err
	}
	i.completionHandled = false
	i.persistTimer(ctx)
	metrics.SessionsStarted.WithLabelValues(string(sessionType), "manual").Inc()
	i.logger.Info().Str("session_id", session.ID).Str("session_type", string(sessionType)).Int("minutes", minutes).Msg("session started")
	i.emit(dto.Event{Type: dto.EventSessionStarted, SessionID: session.ID, SessionType: sessionType, Remaining: minutes * 60})

	return dto.StartOutput{
		SessionID:       session.ID,
		Type:            sessionType,
		DurationSeconds: minutes * 60,
		StartedAt:       i.clock.Now().UTC(),
	}, nil
}

func (i *Interactor) Pause(ctx context.Context) bool {
	i.opMu.Lock()
	defer i.opMu.Unlock()
	if !i.engine.Pause() {
		return false
	}
	i.persistTimer(ctx)
	i.emitSessionEvent(dto.EventSessionPaused)
	return true
}

func (i *Interactor) Resume(ctx context.Context) bool {
	i.opMu.Lock()
	defer i.opMu.Unlock()
	if !i.engine.Resume() {
		return false
	}
	i.persistTimer(ctx)
	i.emitSessionEvent(dto.EventSessionResumed)
	return true
}

// Skip ends the current countdown now and runs the normal completion path.
func (i *Interactor) Skip(context.Context) bool {
	state := i.engine.State()
	if state != domain.TimerRunning && state != domain.TimerPaused {
		return false
	}
	i.engine.Complete()
	return true
}

// Stop interrupts the active session. The backend is told first; when it
// refuses, the timer keeps its state so the stop can be retried.
func (i *Interactor) Stop(ctx context.Context, input dto.StopInput) (dto.StopOutput, error) {
	i.opMu.Lock()
	defer i.opMu.Unlock()

	if i.scheduler.CancelAutoStart() {
		i.recordAutoStart("cancelled")
		i.emit(dto.Event{Type: dto.EventAutoStartCancelled})
	}
	state := i.engine.State()
	if state != domain.TimerRunning && state != domain.TimerPaused {
		return dto.StopOutput{}, apperrors.ErrNoActiveSession
	}
	session := i.engine.Session()
	actual := i.engine.ActualDurationMinutes()
	out := dto.StopOutput{ActualDurationMinutes: actual}
	if session != nil {
		out.SessionID = session.ID
		out.Type = session.Type
		if session.ID != "" {
			err := i.sessions.CompleteSession(ctx, session.ID, domain.CompleteSessionRequest{
				ActualDurationMinutes: actual,
				WasInterrupted:        true,
				Notes:                 input.Notes,
			})
			if err != nil && !alreadyClosed(err) {
				i.recordBackendError("complete", err)
				return out, fmt.Errorf("interrupt session %s: %w", session.ID, err)
			}
		}
	}

	i.engine.Reset()
	if err := i.keeper.ClearTimer(ctx); err != nil {
		i.logger.Warn().Err(err).Msg("clear timer state")
	}
	metrics.SessionsInterrupted.WithLabelValues(string(out.Type)).Inc()
	i.logger.Info().Str("session_id", out.SessionID).Int("actual_minutes", actual).Msg("session interrupted")
	i.emit(dto.Event{Type: dto.EventSessionInterrupted, SessionID: out.SessionID, SessionType: out.Type})
	return out, nil
}

// Restore reloads the cycle and the last timer snapshot. A running snapshot
// whose deadline passed while the process was down completes through the
// regular completion path.
func (i *Interactor) Restore(ctx context.Context) (dto.RestoreOutput, error) {
	i.opMu.Lock()
	defer i.opMu.Unlock()

	if raw := i.keeper.LoadCycle(ctx); raw != "" && !i.cycle.Restore(raw) {
		i.logger.Warn().Msg("cycle state unreadable, starting a new cycle")
	}

	snapshot := i.keeper.LoadTimer(ctx)
	if snapshot == nil {
		metrics.Restores.WithLabelValues("empty").Inc()
		return dto.RestoreOutput{State: i.engine.State()}, nil
	}
	session := domain.SessionData{}
	if snapshot.SessionData != nil {
		session = *snapshot.SessionData
	}
	expired := snapshot.State == domain.TimerRunning && snapshot.Deadline <= clock.Millis(i.clock.Now())
	i.completionHandled = snapshot.State == domain.TimerCompleted
	orphaned := snapshot.SessionData == nil && (snapshot.State == domain.TimerRunning || snapshot.State == domain.TimerPaused)
	if orphaned || !i.engine.Deserialize(snapshot, i.callbacksFor(session)) {
		metrics.Restores.WithLabelValues("invalid").Inc()
		i.logger.Warn().Str("state", string(snapshot.State)).Msg("timer state rejected")
		if err := i.keeper.ClearTimer(ctx); err != nil {
			i.logger.Warn().Err(err).Msg("clear timer state")
		}
		return dto.RestoreOutput{State: i.engine.State()}, nil
	}

	outcome := string(snapshot.State)
	if expired {
		outcome = "expired"
	}
	metrics.Restores.WithLabelValues(outcome).Inc()
	i.logger.Info().Str("state", string(snapshot.State)).Bool("expired", expired).Msg("timer restored")
	return dto.RestoreOutput{
		Restored: true,
		Expired:  expired,
		State:    i.engine.State(),
		Session:  i.engine.Session(),
	}, nil
}

func (i *Interactor) Status(context.Context) dto.StatusOutput {
	pending := i.scheduler.Status()
	return dto.StatusOutput{
		State:     i.engine.State(),
		Remaining: i.engine.Remaining(),
		Session:   i.engine.Session(),
		Cycle:     i.cycle.Stats(),
		AutoStart: dto.AutoStartStatus{
			Pending:         pending.Pending,
			Type:            pending.Session.Type,
			DurationMinutes: pending.Session.DurationMinutes,
			RemainingMs:     pending.RemainingMs,
		},
	}
}

// StartPendingNow skips the remaining grace period of a pending auto start.
func (i *Interactor) StartPendingNow(ctx context.Context) (bool, error) {
	return i.scheduler.ExecuteAutoStart(ctx)
}

func (i *Interactor) CancelAutoStart(context.Context) bool {
	if !i.scheduler.CancelAutoStart() {
		return false
	}
	i.recordAutoStart("cancelled")
	i.emit(dto.Event{Type: dto.EventAutoStartCancelled})
	return true
}

func (i *Interactor) CycleStats(context.Context) domain.CycleStats {
	return i.cycle.Stats()
}

func (i *Interactor) CompleteCycle(ctx context.Context) dto.CycleSummaryOutput {
	summary := i.cycle.CompleteCycle()
	i.persistCycle(ctx)
	i.logger.Info().Int("focus_sessions", summary.CompletedFocusSessions).Msg("cycle completed")
	return dto.CycleSummaryOutput{
		CompletedFocusSessions: summary.CompletedFocusSessions,
		CycleStartTime:         summary.CycleStartTime,
		CycleEndTime:           summary.CycleEndTime,
		HistoryLength:          len(summary.History),
	}
}

func (i *Interactor) ResetCycle(ctx context.Context) {
	i.cycle.Reset()
	i.persistCycle(ctx)
}

// Subscribe returns a channel of events. Slow subscribers miss events rather
// than stall the timer.
func (i *Interactor) Subscribe(buffer int) <-chan dto.Event {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan dto.Event, buffer)
	i.subMu.Lock()
	defer i.subMu.Unlock()
	if i.closed {
		close(ch)
		return ch
	}
	i.subscribers = append(i.subscribers, ch)
	return ch
}

// Close stops background work and persists a live timer so the next process
// can restore it.
func (i *Interactor) Close() error {
	i.scheduler.CancelAutoStart()
	err := i.checkpoint.Stop()

	i.opMu.Lock()
	if state := i.engine.State(); state == domain.TimerRunning || state == domain.TimerPaused {
		i.persistTimer(context.Background())
	}
	i.engine.Cleanup()
	i.opMu.Unlock()

	i.subMu.Lock()
	if !i.closed {
		i.closed = true
		for _, ch := range i.subscribers {
			close(ch)
		}
		i.subscribers = nil
	}
	i.subMu.Unlock()
	return err
}

func (i *Interactor) callbacksFor(session domain.SessionData) domain.Callbacks {
	return domain.Callbacks{
		OnTick: func(remaining int) {
			i.emit(dto.Event{Type: dto.EventTick, SessionID: session.ID, SessionType: session.Type, Remaining: remaining})
		},
		OnComplete: func() { i.handleCompletion(session) },
		OnError: func(err error) {
			i.logger.Error().Err(err).Str("session_id", session.ID).Msg("timer error")
			i.emit(dto.Event{Type: dto.EventError, SessionID: session.ID, Message: err.Error()})
		},
	}
}

// handleCompletion closes the backend record, advances the cycle and arms the
// next auto start, in that order.
func (i *Interactor) handleCompletion(session domain.SessionData) {
	i.opMu.Lock()
	defer i.opMu.Unlock()

	current := i.engine.Session()
	if i.completionHandled || i.engine.State() != domain.TimerCompleted || current == nil || current.ID != session.ID {
		return
	}
	i.completeLocked(session, true)
}

func (i *Interactor) completeLocked(session domain.SessionData, armAutoStart bool) {
	i.completionHandled = true
	ctx := context.Background()
	req := domain.CompleteSessionRequest{ActualDurationMinutes: i.engine.ActualDurationMinutes()}
	acked := true
	if session.ID != "" {
		if err := i.sessions.CompleteSession(ctx, session.ID, req); err != nil && !alreadyClosed(err) {
			acked = false
			i.recordBackendError("complete", err)
			i.unacked = &session
			i.unackedReq = req
			i.logger.Error().Err(err).Str("session_id", session.ID).Msg("backend rejected completion")
			i.emit(dto.Event{Type: dto.EventError, SessionID: session.ID, Message: err.Error()})
		}
	}

	if session.Type == domain.SessionFocus {
		i.cycle.IncrementFocusSession()
	} else if session.Type.IsBreak() {
		i.cycle.CompleteBreakSession()
	}
	i.persistCycle(ctx)
	if err := i.keeper.ClearTimer(ctx); err != nil {
		i.logger.Warn().Err(err).Msg("clear timer state")
	}

	metrics.SessionsCompleted.WithLabelValues(string(session.Type)).Inc()
	next := i.scheduler.DetermineNextSessionType(session)
	i.logger.Info().Str("session_id", session.ID).Str("session_type", string(session.Type)).Str("next", string(next)).Msg("session completed")

	var pending service.PendingSession
	armed := false
	if acked && armAutoStart {
		pending, armed = i.scheduler.ScheduleAutoStartIfEnabled(session)
	}
	i.emit(dto.Event{Type: dto.EventSessionCompleted, SessionID: session.ID, SessionType: session.Type, Next: next, AutoStartArmed: armed})
	if armed {
		i.recordAutoStart("scheduled")
		i.emit(dto.Event{Type: dto.EventAutoStartScheduled, SessionType: pending.Type, Next: pending.Type})
	}
}

func (i *Interactor) flushUnackedLocked(ctx context.Context) error {
	if i.unacked == nil {
		return nil
	}
	if err := i.sessions.CompleteSession(ctx, i.unacked.ID, i.unackedReq); err != nil && !alreadyClosed(err) {
		i.recordBackendError("complete", err)
		return fmt.Errorf("complete previous session %s: %w", i.unacked.ID, err)
	}
	i.logger.Info().Str("session_id", i.unacked.ID).Msg("delivered pending completion")
	i.unacked = nil
	return nil
}

// onAutoStarted runs while the scheduler holds opMu.
func (i *Interactor) onAutoStarted(session domain.SessionData) {
	i.completionHandled = false
	i.persistTimer(context.Background())
	i.recordAutoStart("started")
	metrics.SessionsStarted.WithLabelValues(string(session.Type), "auto").Inc()
	i.emit(dto.Event{
		Type:        dto.EventSessionStarted,
		SessionID:   session.ID,
		SessionType: session.Type,
		Remaining:   session.PlannedDuration * 60,
		AutoStarted: true,
	})
}

func (i *Interactor) onAutoStartFailed(next domain.SessionType, err error) {
	i.recordAutoStart("failed")
	i.recordBackendError("create", err)
	i.emit(dto.Event{Type: dto.EventAutoStartFailed, SessionType: next, Message: err.Error()})
}

// saveRunningTimer holds opMu so a checkpoint never lands after the
// completion handler or Pause has written newer state.
func (i *Interactor) saveRunningTimer() {
	i.opMu.Lock()
	defer i.opMu.Unlock()
	if i.engine.State() != domain.TimerRunning {
		return
	}
	i.persistTimer(context.Background())
}

func (i *Interactor) persistTimer(ctx context.Context) {
	if err := i.keeper.SaveTimer(ctx, i.engine.Serialize()); err != nil {
		i.logger.Warn().Err(err).Msg("persist timer state")
	}
}

func (i *Interactor) persistCycle(ctx context.Context) {
	if err := i.keeper.SaveCycle(ctx, i.cycle.Serialize()); err != nil {
		i.logger.Warn().Err(err).Msg("persist cycle state")
	}
}

func (i *Interactor) sessionTypeLocked() domain.SessionType {
	if s := i.engine.Session(); s != nil {
		return s.Type
	}
	return ""
}

func (i *Interactor) emitSessionEvent(kind dto.EventType) {
	event := dto.Event{Type: kind, Remaining: i.engine.Remaining()}
	if s := i.engine.Session(); s != nil {
		event.SessionID = s.ID
		event.SessionType = s.Type
	}
	i.emit(event)
}

func (i *Interactor) emit(event dto.Event) {
	if event.At.IsZero() {
		event.At = i.clock.Now().UTC()
	}
	i.subMu.Lock()
	if !i.closed {
		for _, ch := range i.subscribers {
			select {
			case ch <- event:
			default:
			}
		}
	}
	i.subMu.Unlock()

	if event.Type == dto.EventTick || i.publisher == nil {
		return
	}
	if err := i.publisher.Publish(context.Background(), event); err != nil {
		i.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("publish event")
	}
}

func (i *Interactor) recordAutoStart(outcome string) {
	metrics.AutoStarts.WithLabelValues(outcome).Inc()
}

func (i *Interactor) recordBackendError(op string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	metrics.BackendErrors.WithLabelValues(op, string(apperrors.KindOf(err))).Inc()
}

// alreadyClosed reports a completion the backend refused because the record
// is no longer active, for example when another device completed it first.
func alreadyClosed(err error) bool {
	return errors.Is(err, apperrors.ErrSessionFinished)
}
