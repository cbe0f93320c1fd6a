package in

import (
	"context"
	"time"
)

// IngestPositionInput — одна GPS-точка от устройства водителя
type IngestPositionInput struct {
	DriverID   string
	OrderID    *string
	Latitude   float64
	Longitude  float64
	Accuracy   *float64
	Speed      *float64
	Heading    *float64
	RecordedAt time.Time
}

// IngestPositionOutput — результат обработки точки
type IngestPositionOutput struct {
	ReportID   string
	ReceivedAt time.Time

	// Duplicate — точка уже была сохранена ранее (идемпотентный resend)
	Duplicate bool

	// Routed — точка транслировалась подписчикам (false для stale и duplicate)
	Routed bool
}

// IngestPositionUseCase — конвейер ingestion одной точки:
// validate → persist → route
type IngestPositionUseCase interface {
	Execute(ctx context.Context, input IngestPositionInput) (*IngestPositionOutput, error)
}
