package in

import (
	"context"

	"studypomo/internal/modules/session/dto"
)

type Usecase interface {
	Create(ctx context.Context, input dto.CreateInput) (dto.SessionOutput, error)
	Complete(ctx context.Context, input dto.CompleteInput) (dto.CompleteOutput, error)
	Get(ctx context.Context, id string) (dto.SessionOutput, error)
	List(ctx context.Context, input dto.ListInput) ([]dto.SessionOutput, error)
	GetActive(ctx context.Context) (dto.SessionOutput, error)
}
