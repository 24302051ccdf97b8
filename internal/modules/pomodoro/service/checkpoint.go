package service

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"studypomo/internal/platform/clock"
)

// Checkpointer periodically runs a save function on a gocron scheduler. A zero
// interval disables it.
type Checkpointer struct {
	scheduler gocron.Scheduler
	logger    zerolog.Logger
}

func NewCheckpointer(c clock.Clock, interval time.Duration, save func(), logger zerolog.Logger) (*Checkpointer, error) {
	cp := &Checkpointer{logger: logger.With().Str("component", "checkpoint").Logger()}
	if interval <= 0 || save == nil {
		return cp, nil
	}
	if c == nil {
		c = clock.System()
	}
	scheduler, err := gocron.NewScheduler(gocron.WithClock(c))
	if err != nil {
		return nil, fmt.Errorf("create checkpoint scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(save),
		gocron.WithName("timer-checkpoint"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("schedule checkpoint: %w", err)
	}
	cp.scheduler = scheduler
	return cp, nil
}

func (c *Checkpointer) Enabled() bool {
	return c != nil && c.scheduler != nil
}

func (c *Checkpointer) Start() {
	if !c.Enabled() {
		return
	}
	c.scheduler.Start()
	c.logger.Debug().Msg("checkpointing started")
}

func (c *Checkpointer) Stop() error {
	if !c.Enabled() {
		return nil
	}
	if err := c.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop checkpoint scheduler: %w", err)
	}
	return nil
}
