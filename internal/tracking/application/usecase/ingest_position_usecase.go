package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pontipilat22/logcompany1/internal/shared/config"
	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/metrics"
	in "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/in"
	out "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/out"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

type ingestPositionUseCase struct {
	repo        out.PositionRepository
	broadcaster out.PositionBroadcaster
	eventPub    out.EventPublisher
	cfg         config.TrackingConfig
	log         *logger.Logger
	met         *metrics.Metrics
	now         func() time.Time
}

// NewIngestPositionUseCase собирает конвейер ingestion одной точки.
// eventPub может быть nil — тогда публикация в шину пропускается.
func NewIngestPositionUseCase(
	repo out.PositionRepository,
	broadcaster out.PositionBroadcaster,
	eventPub out.EventPublisher,
	cfg config.TrackingConfig,
	log *logger.Logger,
	met *metrics.Metrics,
) in.IngestPositionUseCase {
	return &ingestPositionUseCase{
		repo:        repo,
		broadcaster: broadcaster,
		eventPub:    eventPub,
		cfg:         cfg,
		log:         log,
		met:         met,
		now:         time.Now,
	}
}

func (uc *ingestPositionUseCase) Execute(ctx context.Context, input in.IngestPositionInput) (*in.IngestPositionOutput, error) {
	now := uc.now().UTC()

	report := &domain.PositionReport{
		ID:         uuid.NewString(),
		DriverID:   input.DriverID,
		OrderID:    input.OrderID,
		Latitude:   input.Latitude,
		Longitude:  input.Longitude,
		Accuracy:   input.Accuracy,
		Speed:      input.Speed,
		Heading:    input.Heading,
		RecordedAt: input.RecordedAt,
		ReceivedAt: now,
	}

	// 1. Валидация
	if err := report.Validate(now, uc.cfg.MaxClockSkew); err != nil {
		uc.met.ReportsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		uc.log.Debug(logger.Entry{
			Action:  "report_rejected",
			Message: err.Error(),
			Additional: map[string]any{
				"driver_id": input.DriverID,
			},
		})
		return nil, err
	}

	// 2. Сохранение
	inserted, err := uc.repo.Save(ctx, report)
	if err != nil {
		uc.met.ReportsTotal.WithLabelValues(metrics.ResultError).Inc()
		uc.log.Error(logger.Entry{
			Action:  "report_save_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"driver_id": report.DriverID,
			},
		})
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	result := &in.IngestPositionOutput{
		ReportID:   report.ID,
		ReceivedAt: report.ReceivedAt,
	}

	// Идемпотентный resend: точка уже сохранена и уже транслировалась
	if !inserted {
		uc.met.ReportsTotal.WithLabelValues(metrics.ResultDuplicate).Inc()
		result.ReportID = ""
		result.Duplicate = true
		return result, nil
	}
	uc.met.ReportsTotal.WithLabelValues(metrics.ResultStored).Inc()

	// 3–4. Деривация топиков и доставка. Stale-точки из offline-реплея
	// попадают в историю, но не транслируются как текущая позиция.
	if report.IsStale(now, uc.cfg.StalenessThreshold) {
		uc.log.Debug(logger.Entry{
			Action:  "report_stale_not_routed",
			Message: "report persisted without broadcast",
			Additional: map[string]any{
				"driver_id":   report.DriverID,
				"recorded_at": report.RecordedAt.Format(time.RFC3339),
			},
		})
		return result, nil
	}

	uc.broadcaster.BroadcastPosition(report)
	result.Routed = true

	if uc.eventPub != nil {
		if err := uc.eventPub.PublishPositionUpdate(ctx, domain.NewPositionUpdateEvent(report)); err != nil {
			// Не фатально: точка сохранена и доставлена WS-подписчикам
			uc.log.Error(logger.Entry{
				Action:  "position_publish_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}

	return result, nil
}

// IsRetryable сообщает, имеет ли смысл клиенту повторить отправку
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrStorageUnavailable)
}
