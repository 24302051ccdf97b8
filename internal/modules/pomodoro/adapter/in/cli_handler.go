package in

import (
	"context"

	"studypomo/internal/modules/pomodoro/dto"
	pomodoroin "studypomo/internal/modules/pomodoro/port/in"
)

type CLIHandler struct {
	usecase pomodoroin.Usecase
}

func NewCLIHandler(usecase pomodoroin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Start begins a session; an empty kind means focus and zero minutes means
// the configured duration.
func (h CLIHandler) Start(ctx context.Context, kind string, minutes int, subjectAreaID string) (dto.StartOutput, error) {
	return h.usecase.Start(ctx, dto.StartInput{Type: kind, Minutes: minutes, SubjectAreaID: subjectAreaID})
}

// TogglePause pauses a running timer or resumes a paused one.
func (h CLIHandler) TogglePause(ctx context.Context) bool {
	if h.usecase.Pause(ctx) {
		return true
	}
	return h.usecase.Resume(ctx)
}

func (h CLIHandler) Skip(ctx context.Context) bool {
	return h.usecase.Skip(ctx)
}

func (h CLIHandler) Stop(ctx context.Context, notes string) (dto.StopOutput, error) {
	return h.usecase.Stop(ctx, dto.StopInput{Notes: notes})
}

func (h CLIHandler) Restore(ctx context.Context) (dto.RestoreOutput, error) {
	return h.usecase.Restore(ctx)
}

func (h CLIHandler) Status(ctx context.Context) dto.StatusOutput {
	return h.usecase.Status(ctx)
}

func (h CLIHandler) StartPendingNow(ctx context.Context) (bool, error) {
	return h.usecase.StartPendingNow(ctx)
}

func (h CLIHandler) CancelAutoStart(ctx context.Context) bool {
	return h.usecase.CancelAutoStart(ctx)
}

func (h CLIHandler) ResetCycle(ctx context.Context) {
	h.usecase.ResetCycle(ctx)
}

func (h CLIHandler) CompleteCycle(ctx context.Context) dto.CycleSummaryOutput {
	return h.usecase.CompleteCycle(ctx)
}

func (h CLIHandler) Events(buffer int) <-chan dto.Event {
	return h.usecase.Subscribe(buffer)
}
