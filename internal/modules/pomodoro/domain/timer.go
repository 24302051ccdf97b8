package domain

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"studypomo/internal/platform/clock"
	apperrors "studypomo/internal/platform/errors"
)

// TimerState is the lifecycle state of a TimerEngine.
type TimerState string

const (
	TimerIdle      TimerState = "idle"
	TimerRunning   TimerState = "running"
	TimerPaused    TimerState = "paused"
	TimerCompleted TimerState = "completed"
)

func (s TimerState) Valid() bool {
	switch s {
	case TimerIdle, TimerRunning, TimerPaused, TimerCompleted:
		return true
	}
	return false
}

// DefaultTickInterval is the countdown granularity.
const DefaultTickInterval = time.Second

// Callbacks receive timer notifications. Any field may be nil.
type Callbacks struct {
	OnTick     func(remainingSeconds int)
	OnComplete func()
	OnError    func(err error)
}

// TimerEngine counts down to an absolute deadline. Remaining time is always
// derived from the deadline (or a frozen value while paused), never from the
// number of ticks observed, so throttled or late ticks cannot skew it.
//
// Callbacks run without the engine lock held and may call back into the engine,
// except that OnTick must not call Tick.
type TimerEngine struct {
	mu sync.Mutex
	// emitMu orders tick computation with OnTick delivery so observers never
	// see remaining values out of order.
	emitMu       sync.Mutex
	clock        clock.Clock
	tickInterval time.Duration

	state              TimerState
	startTime          time.Time
	deadline           time.Time
	pausedRemaining    int
	pausedAt           time.Time
	session            *SessionData
	lastKnownRemaining int
	hasTicked          bool
	isCompleting       bool
	callbacks          Callbacks

	// generation changes on every Start, Deserialize and Reset so work queued
	// for an earlier countdown cannot act on a newer one.
	generation uint64
	loop       *tickLoop
}

type tickLoop struct {
	ticker clockwork.Ticker
	stop   chan struct{}
}

func NewTimerEngine(c clock.Clock, tickInterval time.Duration) *TimerEngine {
	if c == nil {
		c = clock.System()
	}
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &TimerEngine{clock: c, tickInterval: tickInterval, state: TimerIdle}
}

// Start begins a countdown of durationSeconds, discarding whatever the engine
// held before. The first tick is delivered asynchronously.
func (e *TimerEngine) Start(durationSeconds int, callbacks Callbacks, session *SessionData) error {
	if durationSeconds <= 0 {
		err := fmt.Errorf("%w: timer duration must be positive, got %d", apperrors.ErrInvalidInput, durationSeconds)
		e.invoke(callbacks, func() { callbacks.error(err) })
		return err
	}

	e.mu.Lock()
	e.stopLoopLocked()
	e.generation++
	now := e.clock.Now()
	e.state = TimerRunning
	e.startTime = now
	e.deadline = now.Add(time.Duration(durationSeconds) * time.Second)
	e.pausedRemaining = 0
	e.pausedAt = time.Time{}
	e.session = cloneSession(session)
	e.lastKnownRemaining = durationSeconds
	e.hasTicked = false
	e.isCompleting = false
	e.callbacks = callbacks
	e.startLoopLocked()
	e.mu.Unlock()
	return nil
}

// Tick recomputes the remaining time, reports changes through OnTick and
// completes the countdown once the deadline has passed.
func (e *TimerEngine) Tick() {
	e.tick(nil)
}

func (e *TimerEngine) tick(from *tickLoop) {
	e.emitMu.Lock()
	e.mu.Lock()
	if e.state != TimerRunning || (from != nil && from != e.loop) {
		e.mu.Unlock()
		e.emitMu.Unlock()
		return
	}
	remaining := e.remainingAtLocked(e.clock.Now())
	emit := !e.hasTicked || remaining != e.lastKnownRemaining
	e.hasTicked = true
	e.lastKnownRemaining = remaining
	expired := remaining <= 0 && !e.isCompleting
	gen := e.generation
	cb := e.callbacks
	e.mu.Unlock()

	if emit {
		e.invoke(cb, func() { cb.tick(remaining) })
	}
	e.emitMu.Unlock()
	if expired {
		e.complete(gen)
	}
}

// Complete finishes the countdown. Only the first call has any effect.
func (e *TimerEngine) Complete() {
	e.mu.Lock()
	gen := e.generation
	e.mu.Unlock()
	e.complete(gen)
}

func (e *TimerEngine) complete(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || e.isCompleting || e.state == TimerCompleted || e.state == TimerIdle {
		e.mu.Unlock()
		return
	}
	e.isCompleting = true
	e.stopLoopLocked()
	e.state = TimerCompleted
	e.lastKnownRemaining = 0
	cb := e.callbacks
	e.mu.Unlock()

	e.invoke(cb, cb.complete)
}

// Pause freezes the remaining time. It reports false when the timer was not running.
func (e *TimerEngine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != TimerRunning || e.isCompleting {
		return false
	}
	now := e.clock.Now()
	remaining := e.lastKnownRemaining
	if !e.hasTicked {
		remaining = e.remainingAtLocked(now)
	}
	e.pausedRemaining = remaining
	e.pausedAt = now
	e.stopLoopLocked()
	e.state = TimerPaused
	return true
}

// Resume continues a paused countdown from exactly the frozen remaining time.
func (e *TimerEngine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != TimerPaused {
		return false
	}
	now := e.clock.Now()
	e.deadline = now.Add(time.Duration(e.pausedRemaining) * time.Second)
	e.lastKnownRemaining = e.pausedRemaining
	e.hasTicked = false
	e.pausedAt = time.Time{}
	e.state = TimerRunning
	e.startLoopLocked()
	return true
}

// Serialize captures the engine for persistence.
func (e *TimerEngine) Serialize() TimerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TimerSnapshot{
		State:           e.state,
		StartTime:       clock.Millis(e.startTime),
		Deadline:        clock.Millis(e.deadline),
		PausedRemaining: e.pausedRemaining,
		PausedAt:        clock.Millis(e.pausedAt),
		SessionData:     cloneSession(e.session),
		SerializedAt:    clock.Millis(e.clock.Now()),
	}
}

// Deserialize restores a snapshot. It reports false and leaves the engine idle
// when the snapshot is missing or unusable. A running snapshot whose deadline
// already passed is marked completed right away and OnComplete fires from a
// separate goroutine; a paused snapshot stays paused until Resume.
func (e *TimerEngine) Deserialize(snapshot *TimerSnapshot, callbacks Callbacks) bool {
	e.mu.Lock()
	e.stopLoopLocked()
	e.generation++
	e.resetLocked()
	e.callbacks = callbacks

	if snapshot == nil || !snapshot.State.Valid() {
		e.mu.Unlock()
		return false
	}
	if snapshot.State == TimerRunning && snapshot.Deadline <= 0 {
		e.mu.Unlock()
		return false
	}

	e.startTime = clock.FromMillis(snapshot.StartTime)
	e.deadline = clock.FromMillis(snapshot.Deadline)
	e.pausedRemaining = max(snapshot.PausedRemaining, 0)
	e.pausedAt = clock.FromMillis(snapshot.PausedAt)
	e.session = cloneSession(snapshot.SessionData)

	now := e.clock.Now()
	switch snapshot.State {
	case TimerRunning:
		if !e.deadline.After(now) {
			e.isCompleting = true
			e.state = TimerCompleted
			e.mu.Unlock()
			go e.invoke(callbacks, callbacks.complete)
			return true
		}
		e.state = TimerRunning
		e.lastKnownRemaining = e.remainingAtLocked(now)
		e.startLoopLocked()
	case TimerPaused:
		e.state = TimerPaused
		e.lastKnownRemaining = e.pausedRemaining
		e.hasTicked = true
	default:
		e.state = snapshot.State
	}
	e.mu.Unlock()
	return true
}

// ActualDurationMinutes is the wall time since Start, rounded up to whole minutes.
func (e *TimerEngine) ActualDurationMinutes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startTime.IsZero() {
		return 0
	}
	elapsed := e.clock.Now().Sub(e.startTime)
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(float64(elapsed) / float64(time.Minute)))
}

// Cleanup stops the tick loop without changing state. Safe to call repeatedly.
func (e *TimerEngine) Cleanup() {
	e.mu.Lock()
	e.stopLoopLocked()
	e.mu.Unlock()
}

// Reset stops the loop and returns the engine to idle.
func (e *TimerEngine) Reset() {
	e.mu.Lock()
	e.stopLoopLocked()
	e.generation++
	e.resetLocked()
	e.mu.Unlock()
}

func (e *TimerEngine) State() TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Remaining reports the seconds left: live while running, frozen while paused,
// zero otherwise.
func (e *TimerEngine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case TimerRunning:
		return e.remainingAtLocked(e.clock.Now())
	case TimerPaused:
		return e.pausedRemaining
	}
	return 0
}

// Session returns a copy of the payload handed to Start, or nil.
func (e *TimerEngine) Session() *SessionData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(e.session)
}

func (e *TimerEngine) remainingAtLocked(now time.Time) int {
	left := e.deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(float64(left) / float64(time.Second)))
}

func (e *TimerEngine) resetLocked() {
	e.state = TimerIdle
	e.startTime = time.Time{}
	e.deadline = time.Time{}
	e.pausedRemaining = 0
	e.pausedAt = time.Time{}
	e.session = nil
	e.lastKnownRemaining = 0
	e.hasTicked = false
	e.isCompleting = false
	e.callbacks = Callbacks{}
}

func (e *TimerEngine) startLoopLocked() {
	loop := &tickLoop{ticker: e.clock.NewTicker(e.tickInterval), stop: make(chan struct{})}
	e.loop = loop
	go e.run(loop)
}

func (e *TimerEngine) stopLoopLocked() {
	if e.loop == nil {
		return
	}
	e.loop.ticker.Stop()
	close(e.loop.stop)
	e.loop = nil
}

func (e *TimerEngine) run(loop *tickLoop) {
	e.tick(loop)
	for {
		select {
		case <-loop.stop:
			return
		case <-loop.ticker.Chan():
			e.tick(loop)
		}
	}
}

// invoke runs a callback and turns a panic into an OnError notification.
func (e *TimerEngine) invoke(cb Callbacks, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("timer callback panicked: %v", r)
			func() {
				defer func() { _ = recover() }()
				cb.error(err)
			}()
		}
	}()
	fn()
}

func (c Callbacks) tick(remaining int) {
	if c.OnTick != nil {
		c.OnTick(remaining)
	}
}

func (c Callbacks) complete() {
	if c.OnComplete != nil {
		c.OnComplete()
	}
}

func (c Callbacks) error(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func cloneSession(s *SessionData) *SessionData {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Settings = s.Settings.Clone()
	return &cp
}
