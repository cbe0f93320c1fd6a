package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/pontipilat22/logcompany1/internal/shared/config"
	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	in "github.com/pontipilat22/logcompany1/internal/tracking/application/ports/in"
	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

type ingestBatchUseCase struct {
	ingest in.IngestPositionUseCase
	cfg    config.TrackingConfig
	log    *logger.Logger
}

// NewIngestBatchUseCase собирает обработку offline-батча поверх
// конвейера одиночных точек
func NewIngestBatchUseCase(
	ingest in.IngestPositionUseCase,
	cfg config.TrackingConfig,
	log *logger.Logger,
) in.IngestBatchUseCase {
	return &ingestBatchUseCase{ingest: ingest, cfg: cfg, log: log}
}

// Execute обрабатывает элементы в порядке клиента. Невалидный элемент
// отклоняется, остальные продолжают обрабатываться. Недоступность
// хранилища прерывает батч: оставшиеся точки клиент перешлет повторно.
func (uc *ingestBatchUseCase) Execute(ctx context.Context, input in.IngestBatchInput) (*in.IngestBatchOutput, error) {
	if len(input.Points) == 0 {
		return &in.IngestBatchOutput{Results: []in.BatchElementResult{}}, nil
	}
	if len(input.Points) > uc.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d points, limit %d",
			domain.ErrBatchTooLarge, len(input.Points), uc.cfg.MaxBatchSize)
	}

	results := make([]in.BatchElementResult, 0, len(input.Points))

	for i, point := range input.Points {
		res, err := uc.ingest.Execute(ctx, point)
		switch {
		case errors.Is(err, domain.ErrStorageUnavailable):
			return nil, err

		case err != nil:
			results = append(results, in.BatchElementResult{
				Index:  i,
				Status: in.BatchRejected,
				Error:  err.Error(),
			})

		case res.Duplicate:
			results = append(results, in.BatchElementResult{
				Index:  i,
				Status: in.BatchDuplicate,
			})

		default:
			results = append(results, in.BatchElementResult{
				Index:    i,
				Status:   in.BatchStored,
				ReportID: res.ReportID,
			})
		}
	}

	uc.log.Debug(logger.Entry{
		Action:  "batch_processed",
		Message: fmt.Sprintf("%d points processed", len(input.Points)),
	})

	return &in.IngestBatchOutput{Results: results}, nil
}
