package in

import (
	"context"

	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// GetLatestPositionUseCase возвращает последнюю точку водителя по recorded_at
type GetLatestPositionUseCase interface {
	Execute(ctx context.Context, driverID string) (*domain.PositionReport, error)
}
