package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/pontipilat22/logcompany1/internal/shared/config"
	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	in "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/in"
	out "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/out"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

type getLatestPositionUseCase struct {
	repo out.PositionRepository
}

// NewGetLatestPositionUseCase — запрос последней позиции водителя
func NewGetLatestPositionUseCase(repo out.PositionRepository) in.GetLatestPositionUseCase {
	return &getLatestPositionUseCase{repo: repo}
}

func (uc *getLatestPositionUseCase) Execute(ctx context.Context, driverID string) (*domain.PositionReport, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", domain.ErrInvalidReport)
	}
	return uc.repo.Latest(ctx, driverID)
}

type getOrderTrackUseCase struct {
	repo out.PositionRepository
}

// NewGetOrderTrackUseCase — запрос трека заявки
func NewGetOrderTrackUseCase(repo out.PositionRepository) in.GetOrderTrackUseCase {
	return &getOrderTrackUseCase{repo: repo}
}

func (uc *getOrderTrackUseCase) Execute(ctx context.Context, orderID string) ([]domain.PositionReport, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidReport)
	}
	return uc.repo.Track(ctx, orderID)
}

// Presence-трекер: производная витрина поверх Position Store,
// своего состояния не имеет — пересчитывается на каждый запрос
type getActiveDriversUseCase struct {
	repo out.PositionRepository
	cfg  config.TrackingConfig
	log  *logger.Logger
	now  func() time.Time
}

// NewGetActiveDriversUseCase — запрос "все активные водители"
func NewGetActiveDriversUseCase(
	repo out.PositionRepository,
	cfg config.TrackingConfig,
	log *logger.Logger,
) in.GetActiveDriversUseCase {
	return &getActiveDriversUseCase{repo: repo, cfg: cfg, log: log, now: time.Now}
}

func (uc *getActiveDriversUseCase) Execute(ctx context.Context, window time.Duration) ([]domain.ActivePosition, error) {
	if window <= 0 {
		window = uc.cfg.PresenceWindow
	}
	since := uc.now().UTC().Add(-window)

	positions, err := uc.repo.ActiveSince(ctx, since)
	if err != nil {
		uc.log.Error(logger.Entry{
			Action:  "active_drivers_query_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return positions, nil
}
