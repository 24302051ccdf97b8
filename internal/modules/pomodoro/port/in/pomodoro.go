package in

import (
	"context"

	"studypomo/internal/modules/pomodoro/domain"
	"studypomo/internal/modules/pomodoro/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.StartOutput, error)
	Pause(ctx context.Context) bool
	Resume(ctx context.Context) bool
	Skip(ctx context.Context) bool
	Stop(ctx context.Context, input dto.StopInput) (dto.StopOutput, error)
	Restore(ctx context.Context) (dto.RestoreOutput, error)
	Status(ctx context.Context) dto.StatusOutput
	StartPendingNow(ctx context.Context) (bool, error)
	CancelAutoStart(ctx context.Context) bool
	CycleStats(ctx context.Context) domain.CycleStats
	CompleteCycle(ctx context.Context) dto.CycleSummaryOutput
	ResetCycle(ctx context.Context)
	Subscribe(buffer int) <-chan dto.Event
	Close() error
}
