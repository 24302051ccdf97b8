package in

import (
	"context"

	sessiondto "studypomo/internal/modules/session/dto"
	sessionin "studypomo/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context, limit int, status string) ([]sessiondto.SessionOutput, error) {
	return h.usecase.List(ctx, sessiondto.ListInput{Limit: limit, Status: status})
}

func (h CLIHandler) Show(ctx context.Context, id string) (sessiondto.SessionOutput, error) {
	return h.usecase.Get(ctx, id)
}

func (h CLIHandler) Active(ctx context.Context) (sessiondto.SessionOutput, error) {
	return h.usecase.GetActive(ctx)
}
