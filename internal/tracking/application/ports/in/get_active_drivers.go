package in

import (
	"context"
	"time"

	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// GetActiveDriversUseCase возвращает последнюю точку каждого водителя,
// отметившегося в скользящем окне. window <= 0 — окно из конфигурации.
type GetActiveDriversUseCase interface {
	Execute(ctx context.Context, window time.Duration) ([]domain.ActivePosition, error)
}
