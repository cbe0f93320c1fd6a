package in

import (
	"context"

	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// GetOrderTrackUseCase возвращает трек заявки: все точки с этим order_id,
// отсортированные по recorded_at по возрастанию
type GetOrderTrackUseCase interface {
	Execute(ctx context.Context, orderID string) ([]domain.PositionReport, error)
}
