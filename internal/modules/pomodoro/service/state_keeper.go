package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"studypomo/internal/modules/pomodoro/domain"
	pomodorout "studypomo/internal/modules/pomodoro/port/out"
	apperrors "studypomo/internal/platform/errors"
)

const (
	TimerStateKey = "pomodoro.timer"
	CycleStateKey = "pomodoro.cycle"
)

// StateKeeper stores engine and cycle snapshots through a PersistenceAdapter.
// Unreadable snapshots are logged and discarded instead of failing a restore.
type StateKeeper struct {
	store  pomodorout.PersistenceAdapter
	logger zerolog.Logger
}

func NewStateKeeper(store pomodorout.PersistenceAdapter, logger zerolog.Logger) *StateKeeper {
	return &StateKeeper{store: store, logger: logger.With().Str("component", "state").Logger()}
}

func (k *StateKeeper) SaveTimer(ctx context.Context, snapshot domain.TimerSnapshot) error {
	raw, err := domain.EncodeTimerSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := k.store.Set(ctx, TimerStateKey, raw); err != nil {
		return fmt.Errorf("save timer state: %w", err)
	}
	return nil
}

// LoadTimer returns nil when nothing usable is stored.
func (k *StateKeeper) LoadTimer(ctx context.Context) *domain.TimerSnapshot {
	raw, ok := k.load(ctx, TimerStateKey)
	if !ok {
		return nil
	}
	snapshot, err := domain.ParseTimerSnapshot(raw)
	if err != nil {
		k.logger.Warn().Err(err).Msg("discarding unreadable timer state")
		k.discard(ctx, TimerStateKey)
		return nil
	}
	return snapshot
}

func (k *StateKeeper) ClearTimer(ctx context.Context) error {
	if err := k.store.Remove(ctx, TimerStateKey); err != nil {
		return fmt.Errorf("clear timer state: %w", err)
	}
	return nil
}

func (k *StateKeeper) SaveCycle(ctx context.Context, snapshot domain.CycleSnapshot) error {
	raw, err := domain.EncodeCycleSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := k.store.Set(ctx, CycleStateKey, raw); err != nil {
		return fmt.Errorf("save cycle state: %w", err)
	}
	return nil
}

// LoadCycle returns the raw cycle snapshot for CycleManager.Restore.
func (k *StateKeeper) LoadCycle(ctx context.Context) string {
	raw, _ := k.load(ctx, CycleStateKey)
	return raw
}

func (k *StateKeeper) load(ctx context.Context, key string) (string, bool) {
	raw, err := k.store.Get(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", false
	}
	if err != nil {
		k.logger.Warn().Err(err).Str("key", key).Msg("read state")
		return "", false
	}
	return raw, true
}

func (k *StateKeeper) discard(ctx context.Context, key string) {
	if err := k.store.Remove(ctx, key); err != nil {
		k.logger.Warn().Err(err).Str("key", key).Msg("remove state")
	}
}
